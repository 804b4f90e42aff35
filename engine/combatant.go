package engine

import "github.com/jacobwpeng/sectbattled/types"

// Combatant is a joined player. Its sect back-reference never owns the
// Sect (the state engine does) and never outlives it, because sects are
// destroyed only during ResetBattleField, which destroys all combatants
// first.
type Combatant struct {
	sect      *Sect
	pos       types.Pos
	level     types.LevelType
	handle    Handle
	opponents map[types.Direction][]types.UinType
}

func NewCombatant(sect *Sect, pos types.Pos, level types.LevelType, handle Handle) *Combatant {
	return &Combatant{sect: sect, pos: pos, level: level, handle: handle, opponents: make(map[types.Direction][]types.UinType)}
}

func (c *Combatant) CurrentSect() *Sect   { return c.sect }
func (c *Combatant) CurrentPos() types.Pos { return c.pos }
func (c *Combatant) Level() types.LevelType { return c.level }
func (c *Combatant) Handle() Handle        { return c.handle }

// MoveTo updates the combatant's position and clears any remembered
// opponents, since those were relative to the field it just left.
func (c *Combatant) MoveTo(pos types.Pos, newHandle Handle) {
	c.pos = pos
	c.handle = newHandle
	c.opponents = make(map[types.Direction][]types.UinType)
}

func (c *Combatant) SetHandle(h Handle) { c.handle = h }
func (c *Combatant) SetLevel(l types.LevelType) { c.level = l }

func (c *Combatant) ChangeSect(newSect *Sect) { c.sect = newSect }

func (c *Combatant) ChangeOpponents(d types.Direction, opponents []types.UinType) {
	c.opponents[d] = opponents
}

func (c *Combatant) ClearOpponents(d types.Direction) { delete(c.opponents, d) }

func (c *Combatant) GetOpponents(d types.Direction) []types.UinType { return c.opponents[d] }
