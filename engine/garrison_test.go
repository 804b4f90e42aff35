package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobwpeng/sectbattled/types"
)

func TestGarrisonSetAddReduce(t *testing.T) {
	g := NewGarrisonSet()
	h := g.AddGarrison(100, 10, 0)
	require.Equal(t, 1, g.GarrisonNum())

	found, ok := g.FindByUin(100)
	require.True(t, ok)
	require.Equal(t, h, found)

	require.NoError(t, g.ReduceGarrison(h))
	require.Equal(t, 0, g.GarrisonNum())
	_, ok = g.FindByUin(100)
	require.False(t, ok)
}

func TestGarrisonSetReduceStaleHandle(t *testing.T) {
	g := NewGarrisonSet()
	h := g.AddGarrison(100, 10, 0)
	require.NoError(t, g.ReduceGarrison(h))
	require.Error(t, g.ReduceGarrison(h), "reducing an already-removed handle must error")
}

func TestGarrisonSetUpdateLevelPreservesDefeatedTime(t *testing.T) {
	g := NewGarrisonSet()
	h := g.AddGarrison(100, 10, 555)
	newH, err := g.UpdateGarrisonLevel(h, 20)
	require.NoError(t, err)
	require.Equal(t, types.LevelType(20), newH.Level)
	require.Equal(t, types.TimeStamp(555), newH.LastDefeatedTime)
}

func TestGetOpponentsProtectionWindow(t *testing.T) {
	g := NewGarrisonSet()
	rng := rand.New(rand.NewSource(1))
	g.AddGarrison(1, 10, 1000) // defeated at t=1000, still protected if defeatedBefore < 1000
	g.AddGarrison(2, 10, 0)    // never defeated, always eligible

	opponents := g.GetOpponents(10, 500, rng)
	require.ElementsMatch(t, []types.UinType{2}, opponents, "uin 1 defeated after the cutoff must be excluded")

	opponents = g.GetOpponents(10, 2000, rng)
	require.ElementsMatch(t, []types.UinType{1, 2}, opponents, "both uins eligible once cutoff passes their defeat time")
}

func TestGetOpponentsBandExpansion(t *testing.T) {
	g := NewGarrisonSet()
	rng := rand.New(rand.NewSource(1))
	g.AddGarrison(1, 8, 0)
	g.AddGarrison(2, 12, 0)

	opponents := g.GetOpponents(10, 0, rng)
	require.ElementsMatch(t, []types.UinType{1, 2}, opponents, "band expansion must reach both neighboring levels")
}

func TestGetOpponentsNoDuplicates(t *testing.T) {
	g := NewGarrisonSet()
	rng := rand.New(rand.NewSource(7))
	for uin := types.UinType(1); uin <= 10; uin++ {
		g.AddGarrison(uin, 10, 0)
	}
	opponents := g.GetOpponents(10, 0, rng)
	require.LessOrEqual(t, len(opponents), 5)
	seen := map[types.UinType]bool{}
	for _, u := range opponents {
		require.False(t, seen[u], "duplicate uin %d in opponent list", u)
		seen[u] = true
	}
}
