// Package battlefield builds the whole-field snapshot every handler
// response carries, and caches it for a configurable TTL - default 0ms,
// meaning every request rebuilds it fresh.
package battlefield

import (
	"time"

	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/types"
	"github.com/jacobwpeng/sectbattled/wire"
)

// Cache memoizes the sect-counts-and-cells half of a BattleField
// snapshot (everything except the caller-specific self_position) for
// TTL, rebuilding from live state once expired.
type Cache struct {
	ttl      time.Duration
	builtAt  time.Time
	cells    [100]wire.CellSnapshot
	counts   map[types.SectType]int
	hasValue bool
}

// NewCache builds a cache with the given TTL. A zero TTL disables
// memoization: every Snapshot call rebuilds.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Snapshot returns a BattleField for selfPos, rebuilding the shared
// cells/counts half if the cache is empty or older than ttl.
func (c *Cache) Snapshot(s *engine.State, selfPos types.Pos, now time.Time) wire.BattleField {
	if !c.hasValue || now.Sub(c.builtAt) >= c.ttl {
		c.rebuild(s, now)
	}
	bf := wire.BattleField{SelfPosition: selfPos, Cells: c.cells}
	bf.SectCounts = make(map[types.SectType]int, types.SectCount)
	for k, v := range c.counts {
		bf.SectCounts[k] = v
	}
	return bf
}

func (c *Cache) rebuild(s *engine.State, now time.Time) {
	counts := make(map[types.SectType]int, types.SectCount)
	for _, sect := range types.AllSects() {
		counts[sect] = 0
	}
	i := 0
	for y := int16(0); y <= types.MaxPos; y++ {
		for x := int16(0); x <= types.MaxPos; x++ {
			pos := types.NewPos(x, y)
			f := s.MustField(pos)
			c.cells[i] = wire.CellSnapshot{Pos: pos, Owner: f.Owner(), Type: f.Type()}
			i++
		}
	}
	for _, sect := range types.AllSects() {
		if sc, ok := s.Sect(sect); ok {
			counts[sect] = sc.MemberCount()
		}
	}
	c.counts = counts
	c.builtAt = now
	c.hasValue = true
}

// Invalidate forces the next Snapshot call to rebuild regardless of
// TTL, used after ResetBattleField.
func (c *Cache) Invalidate() { c.hasValue = false }
