package engine

import (
	"math/rand"

	"github.com/jacobwpeng/sectbattled/types"
)

// Field is a single battlefield cell: its owner sect, its type (never
// changes after creation) and the garrison of combatants standing on it.
type Field struct {
	owner    types.SectType
	typ      types.FieldType
	garrison *GarrisonSet
}

func NewField(owner types.SectType, typ types.FieldType) *Field {
	return &Field{owner: owner, typ: typ, garrison: NewGarrisonSet()}
}

func (f *Field) Owner() types.SectType  { return f.owner }
func (f *Field) Type() types.FieldType  { return f.typ }
func (f *Field) GarrisonNum() int       { return f.garrison.GarrisonNum() }
func (f *Field) ChangeOwner(newOwner types.SectType) { f.owner = newOwner }

func (f *Field) AddGarrison(uin types.UinType, level types.LevelType, lastDefeatedTime types.TimeStamp) Handle {
	return f.garrison.AddGarrison(uin, level, lastDefeatedTime)
}
func (f *Field) ReduceGarrison(h Handle) error { return f.garrison.ReduceGarrison(h) }
func (f *Field) UpdateGarrisonLevel(h Handle, newLevel types.LevelType) (Handle, error) {
	return f.garrison.UpdateGarrisonLevel(h, newLevel)
}
func (f *Field) UpdateGarrisonLastDefeatedTime(h Handle, ts types.TimeStamp) (Handle, error) {
	return f.garrison.UpdateGarrisonLastDefeatedTime(h, ts)
}
func (f *Field) FindByUin(uin types.UinType) (Handle, bool) { return f.garrison.FindByUin(uin) }

func (f *Field) GetOpponents(level types.LevelType, defeatedBefore types.TimeStamp, rng *rand.Rand) []types.UinType {
	return f.garrison.GetOpponents(level, defeatedBefore, rng)
}
