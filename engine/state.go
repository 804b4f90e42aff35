package engine

import (
	"fmt"
	"math/rand"

	"github.com/jacobwpeng/sectbattled/config"
	"github.com/jacobwpeng/sectbattled/persist"
	"github.com/jacobwpeng/sectbattled/types"
)

// State is the runtime battlefield: all 100 fields, the eight sects and
// every joined combatant, plus the persistence maps that back them. It
// is the single data structure every handler operates on: one event
// loop, one owner, no locks needed.
type State struct {
	Maps *persist.Maps
	Conf config.BattleField
	Rng  *rand.Rand

	fields     map[types.Pos]*Field
	sects      map[types.SectType]*Sect
	combatants map[types.UinType]*Combatant
}

// NewState builds the battlefield from scratch: every position gets a
// Field (born positions first, split across
// readBattleFieldFromConf/readSectFromConf), then buildRunData (below)
// repopulates it from whatever is already in Maps.
func NewState(maps *persist.Maps, conf config.BattleField, rng *rand.Rand) (*State, error) {
	s := &State{
		Maps:       maps,
		Conf:       conf,
		Rng:        rng,
		fields:     make(map[types.Pos]*Field, 100),
		sects:      make(map[types.SectType]*Sect, types.SectCount),
		combatants: make(map[types.UinType]*Combatant),
	}
	if err := s.readBattleFieldFromConf(); err != nil {
		return nil, err
	}
	s.readSectFromConf()
	if err := s.buildRunData(); err != nil {
		return nil, err
	}
	return s, nil
}

// readBattleFieldFromConf lays out all 100 fields: born fields at their
// configured positions first, then every remaining position as a
// default field owned by None. Every field exists after startup;
// born-fields are initialized first.
func (s *State) readBattleFieldFromConf() error {
	for _, sect := range types.AllSects() {
		pos, err := s.Conf.BornPosOf(sect)
		if err != nil {
			return err
		}
		if !pos.Valid() {
			return fmt.Errorf("engine: invalid born position for sect %v", sect)
		}
		if _, exists := s.fields[pos]; exists {
			return fmt.Errorf("engine: two sects share born position %v", pos)
		}
		s.fields[pos] = NewField(sect, types.BornField)
	}
	for x := int16(0); x <= types.MaxPos; x++ {
		for y := int16(0); y <= types.MaxPos; y++ {
			pos := types.NewPos(x, y)
			if _, exists := s.fields[pos]; exists {
				continue
			}
			s.fields[pos] = NewField(types.None, types.DefaultField)
		}
	}
	return nil
}

// readSectFromConf creates the eight Sects at their configured born
// positions, mirroring readBattleFieldFromConf's layout exactly.
func (s *State) readSectFromConf() {
	for _, sect := range types.AllSects() {
		pos, _ := s.Conf.BornPosOf(sect)
		s.sects[sect] = NewSect(sect, pos)
	}
}

// buildRunData replays owner_map, combatant_map and opponent_map into
// the freshly-laid-out fields, sects and combatants. A combatant's sect
// is not itself persisted - only its (pos, level, last_defeated_time) is
// (types.CombatantLite carries no sect field) - so, exactly as the
// teacher's BuildRunData does, it is derived from the owner of the field
// the combatant currently occupies, which by construction is always the
// combatant's own sect (a combatant can only stand on a field its sect
// owns or one it is mid-conquest of, and ChangeSect/Move both update
// owner_map and combatant_map together).
func (s *State) buildRunData() error {
	s.Maps.OwnerMap.Ascend(func(pos types.Pos, owner types.SectType) bool {
		if f, ok := s.fields[pos]; ok {
			f.ChangeOwner(owner)
		}
		return true
	})

	var rebuildErr error
	s.Maps.CombatantMap.Ascend(func(uin types.UinType, lite types.CombatantLite) bool {
		field, ok := s.fields[lite.Pos]
		if !ok {
			rebuildErr = fmt.Errorf("engine: combatant_map entry for uin %d has invalid pos %v", uin, lite.Pos)
			return false
		}
		handle := field.AddGarrison(uin, lite.Level, lite.LastDefeatedTime)
		sect, ok := s.sects[field.Owner()]
		if !ok {
			rebuildErr = fmt.Errorf("engine: field %v owner %v has no sect", lite.Pos, field.Owner())
			return false
		}
		c := NewCombatant(sect, lite.Pos, lite.Level, handle)
		s.combatants[uin] = c
		sect.AddMember(uin)
		return true
	})
	if rebuildErr != nil {
		return rebuildErr
	}

	s.Maps.OpponentMap.Ascend(func(uin types.UinType, lite types.OpponentLite) bool {
		c, ok := s.combatants[uin]
		if !ok {
			return true
		}
		for _, d := range types.AllDirections {
			if opponents := lite.Get(d); len(opponents) > 0 {
				c.ChangeOpponents(d, opponents)
			}
		}
		return true
	})
	return nil
}

func (s *State) Field(pos types.Pos) (*Field, bool) {
	f, ok := s.fields[pos]
	return f, ok
}

func (s *State) MustField(pos types.Pos) *Field {
	f, ok := s.fields[pos]
	if !ok {
		panic(fmt.Sprintf("engine: no field at %v", pos))
	}
	return f
}

func (s *State) Sect(t types.SectType) (*Sect, bool) {
	sect, ok := s.sects[t]
	return sect, ok
}

func (s *State) Combatant(uin types.UinType) (*Combatant, bool) {
	c, ok := s.combatants[uin]
	return c, ok
}

func (s *State) CombatantCount() int { return len(s.combatants) }

// RandomSect picks one of the eight sects uniformly at random, used by
// Join when the caller does not request a specific sect (teacher's
// RandomSect: alpha::Random::Rand32(1, kMax)).
func (s *State) RandomSect() types.SectType {
	return types.AllSects()[s.Rng.Intn(types.SectCount)]
}

// AddCombatant registers a brand-new combatant joining the battle at
// sect's born position, persists its combatant_map entry and returns it.
func (s *State) AddCombatant(uin types.UinType, sectType types.SectType, level types.LevelType) (*Combatant, error) {
	sect, ok := s.sects[sectType]
	if !ok {
		return nil, fmt.Errorf("engine: unknown sect %v", sectType)
	}
	field := s.MustField(sect.BornPos())
	handle := field.AddGarrison(uin, level, types.MinTimeStamp)
	c := NewCombatant(sect, sect.BornPos(), level, handle)
	s.combatants[uin] = c
	sect.AddMember(uin)
	if err := s.Maps.CombatantMap.Insert(uin, types.CombatantLite{Pos: sect.BornPos(), Level: level, LastDefeatedTime: types.MinTimeStamp}); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveCombatant evicts uin from its current field and sect, and drops
// its combatant_map and opponent_map records. Used by the admin
// /removeplayer endpoint.
func (s *State) RemoveCombatant(uin types.UinType) error {
	c, ok := s.combatants[uin]
	if !ok {
		return nil
	}
	field := s.MustField(c.CurrentPos())
	if err := field.ReduceGarrison(c.Handle()); err != nil {
		return err
	}
	c.CurrentSect().RemoveMember(uin)
	delete(s.combatants, uin)
	s.Maps.CombatantMap.Erase(uin)
	s.Maps.OpponentMap.Erase(uin)
	return nil
}

// ChangeOwner updates a field's owner in both runtime state and
// owner_map, the one place field ownership changes.
func (s *State) ChangeOwner(pos types.Pos, owner types.SectType) error {
	f := s.MustField(pos)
	f.ChangeOwner(owner)
	return s.Maps.OwnerMap.Insert(pos, owner)
}

// SyncCombatant rewrites uin's combatant_map entry to match its current
// runtime position/level/last_defeated_time. Handlers call this after
// any mutation (Move, ChangeSect, ReportFight) so the mmap image never
// drifts from the in-memory model.
func (s *State) SyncCombatant(uin types.UinType) error {
	c, ok := s.combatants[uin]
	if !ok {
		return fmt.Errorf("engine: unknown combatant %d", uin)
	}
	return s.Maps.CombatantMap.Insert(uin, types.CombatantLite{
		Pos:              c.CurrentPos(),
		Level:            c.Level(),
		LastDefeatedTime: c.Handle().LastDefeatedTime,
	})
}

// SyncOpponents rewrites uin's opponent_map entry from its in-memory
// cache, or erases it if the cache is now empty.
func (s *State) SyncOpponents(uin types.UinType) error {
	c, ok := s.combatants[uin]
	if !ok {
		return fmt.Errorf("engine: unknown combatant %d", uin)
	}
	var lite types.OpponentLite
	any := false
	for _, d := range types.AllDirections {
		if opponents := c.GetOpponents(d); len(opponents) > 0 {
			lite.Set(d, opponents)
			any = true
		}
	}
	if !any {
		s.Maps.OpponentMap.Erase(uin)
		return nil
	}
	return s.Maps.OpponentMap.Insert(uin, lite)
}

// ResetBattleField tears down every combatant and sect and rebuilds the
// battlefield from config, leaving fields, sects and combatants all
// empty afterward. Non-metadata maps are cleared; backup_metadata is
// left untouched - only the season watcher calls this, and only it
// ever touches the three content regions at reset time.
func (s *State) ResetBattleField() error {
	uins := make([]types.UinType, 0, len(s.combatants))
	for uin := range s.combatants {
		uins = append(uins, uin)
	}
	for _, uin := range uins {
		s.Maps.CombatantMap.Erase(uin)
		s.Maps.OpponentMap.Erase(uin)
	}
	positions := make([]types.Pos, 0, len(s.fields))
	for pos := range s.fields {
		positions = append(positions, pos)
	}
	for _, pos := range positions {
		s.Maps.OwnerMap.Erase(pos)
	}

	s.fields = make(map[types.Pos]*Field, 100)
	s.sects = make(map[types.SectType]*Sect, types.SectCount)
	s.combatants = make(map[types.UinType]*Combatant)
	if err := s.readBattleFieldFromConf(); err != nil {
		return err
	}
	s.readSectFromConf()
	return nil
}
