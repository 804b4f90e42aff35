// Package engine holds the in-memory battlefield model: fields, sects,
// combatants, the garrison set and the level-banded opponent selector.
// It is the algorithmic heart of the server.
package engine

import (
	"fmt"
	"math/rand"

	gbtree "github.com/google/btree"
	"github.com/tidwall/btree"

	"github.com/jacobwpeng/sectbattled/types"
)

// Handle is a stable reference into a GarrisonSet: the combatant
// identity triple itself. Storing the identity triple in the combatant
// and re-finding by value is an acceptable substitute for a native
// iterator handle; both are O(log n).
type Handle = types.CombatantIdentity

type uinItem struct {
	uin types.UinType
	id  types.CombatantIdentity
}

func (a uinItem) Less(than gbtree.Item) bool { return a.uin < than.(uinItem).uin }

// GarrisonSet is the ordered set of combatants occupying one field,
// ordered by (level, -last_defeated_time, uin). It additionally keeps a
// secondary index by uin (a github.com/google/btree.BTree), which
// ReduceGarrison uses to check that a handle is still current and
// FindByUin uses to find the live identity without a linear scan.
type GarrisonSet struct {
	identities *btree.BTreeG[types.CombatantIdentity]
	byUin      *gbtree.BTree
	levelCount map[types.LevelType]int
}

func NewGarrisonSet() *GarrisonSet {
	return &GarrisonSet{
		identities: btree.NewBTreeG(func(a, b types.CombatantIdentity) bool { return a.Less(b) }),
		byUin:      gbtree.New(32),
		levelCount: make(map[types.LevelType]int),
	}
}

// AddGarrison inserts (level, lastDefeatedTime, uin) and returns the
// stable handle.
func (g *GarrisonSet) AddGarrison(uin types.UinType, level types.LevelType, lastDefeatedTime types.TimeStamp) Handle {
	id := types.CombatantIdentity{Level: level, LastDefeatedTime: lastDefeatedTime, Uin: uin}
	g.identities.Set(id)
	g.byUin.ReplaceOrInsert(uinItem{uin: uin, id: id})
	g.levelCount[level]++
	return id
}

// ReduceGarrison removes the entry at handle. handle must currently
// point at its uin; violating that is an invariant failure.
func (g *GarrisonSet) ReduceGarrison(h Handle) error {
	item, ok := g.byUin.Get(uinItem{uin: h.Uin})
	if !ok || item.(uinItem).id != h {
		return fmt.Errorf("engine: stale garrison handle for uin %d", h.Uin)
	}
	g.identities.Delete(h)
	g.byUin.Delete(uinItem{uin: h.Uin})
	g.levelCount[h.Level]--
	if g.levelCount[h.Level] <= 0 {
		delete(g.levelCount, h.Level)
	}
	return nil
}

// UpdateGarrisonLevel reinserts the entry at handle with newLevel,
// preserving last_defeated_time, and returns the new handle.
func (g *GarrisonSet) UpdateGarrisonLevel(h Handle, newLevel types.LevelType) (Handle, error) {
	if err := g.ReduceGarrison(h); err != nil {
		return Handle{}, err
	}
	return g.AddGarrison(h.Uin, newLevel, h.LastDefeatedTime), nil
}

// UpdateGarrisonLastDefeatedTime reinserts the entry at handle with ts,
// preserving level, and returns the new handle.
func (g *GarrisonSet) UpdateGarrisonLastDefeatedTime(h Handle, ts types.TimeStamp) (Handle, error) {
	if err := g.ReduceGarrison(h); err != nil {
		return Handle{}, err
	}
	return g.AddGarrison(h.Uin, h.Level, ts), nil
}

// GarrisonNum is the number of combatants currently in this field.
func (g *GarrisonSet) GarrisonNum() int { return g.identities.Len() }

// FindByUin returns the current handle for uin, if present.
func (g *GarrisonSet) FindByUin(uin types.UinType) (Handle, bool) {
	item, ok := g.byUin.Get(uinItem{uin: uin})
	if !ok {
		return Handle{}, false
	}
	return item.(uinItem).id, true
}

// findInLevel collects up to needs uins from exactly level with
// last_defeated_time <= defeatedBefore, sampled uniformly at random
// without replacement via reservoir sampling: an O(n) single pass is
// an acceptable sampling strategy here.
func (g *GarrisonSet) findInLevel(level types.LevelType, needs int, defeatedBefore types.TimeStamp, rng *rand.Rand, exclude map[types.UinType]bool) []types.UinType {
	if needs <= 0 {
		return nil
	}
	if _, ok := g.levelCount[level]; !ok {
		return nil
	}
	lo := types.CombatantIdentity{Level: level, LastDefeatedTime: defeatedBefore, Uin: types.MinUin}
	hi := types.CombatantIdentity{Level: level, LastDefeatedTime: types.MinTimeStamp, Uin: types.MaxUin}

	reservoir := make([]types.UinType, 0, needs)
	seen := 0
	g.identities.Ascend(lo, func(id types.CombatantIdentity) bool {
		if hi.Less(id) {
			return false
		}
		if exclude[id.Uin] {
			return true
		}
		seen++
		if len(reservoir) < needs {
			reservoir = append(reservoir, id.Uin)
		} else if j := rng.Intn(seen); j < needs {
			reservoir[j] = id.Uin
		}
		return true
	})
	return reservoir
}

func (g *GarrisonSet) minMaxLevels() (min, max types.LevelType, ok bool) {
	first := true
	for l := range g.levelCount {
		if first {
			min, max = l, l
			first = false
			continue
		}
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}
	return min, max, !first
}

// GetOpponents implements the level-banded opponent search: take the
// exact-level band first (respecting the protection window), then
// expand outward by +-offset until 5 candidates are found or both band
// extremes are passed. The caller is responsible for excluding its own
// uin when sampling a field it itself occupies - in practice this is
// prevented by construction, since GetOpponents is only called against
// other fields when moving.
func (g *GarrisonSet) GetOpponents(seekerLevel types.LevelType, defeatedBefore types.TimeStamp, rng *rand.Rand) []types.UinType {
	const want = 5
	result := make([]types.UinType, 0, want)
	have := map[types.UinType]bool{}
	add := func(uins []types.UinType) {
		for _, u := range uins {
			if !have[u] {
				have[u] = true
				result = append(result, u)
			}
		}
	}

	add(g.findInLevel(seekerLevel, want-len(result), defeatedBefore, rng, have))
	if len(result) >= want {
		return result
	}

	minL, maxL, ok := g.minMaxLevels()
	if !ok {
		return result
	}
	for offset := 1; ; offset++ {
		lowerDone := int(seekerLevel)-offset < int(minL)
		upperDone := int(seekerLevel)+offset > int(maxL)
		if lowerDone && upperDone {
			break
		}
		if lower := int(seekerLevel) - offset; lower >= 0 {
			add(g.findInLevel(types.LevelType(lower), want-len(result), defeatedBefore, rng, have))
			if len(result) >= want {
				break
			}
		}
		upper := int(seekerLevel) + offset
		add(g.findInLevel(types.LevelType(upper), want-len(result), defeatedBefore, rng, have))
		if len(result) >= want {
			break
		}
	}
	return result
}
