package engine

import "github.com/jacobwpeng/sectbattled/types"

// Sect is one of the eight factions. Its membership set is disjoint from
// every other sect's; the state engine owns all Sects.
type Sect struct {
	typ     types.SectType
	bornPos types.Pos
	members map[types.UinType]struct{}
}

func NewSect(typ types.SectType, bornPos types.Pos) *Sect {
	return &Sect{typ: typ, bornPos: bornPos, members: make(map[types.UinType]struct{})}
}

func (s *Sect) Type() types.SectType  { return s.typ }
func (s *Sect) BornPos() types.Pos    { return s.bornPos }
func (s *Sect) MemberCount() int      { return len(s.members) }

func (s *Sect) AddMember(uin types.UinType)    { s.members[uin] = struct{}{} }
func (s *Sect) RemoveMember(uin types.UinType) { delete(s.members, uin) }
func (s *Sect) HasMember(uin types.UinType) bool {
	_, ok := s.members[uin]
	return ok
}
