package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoveBoundary(t *testing.T) {
	// Testable property: every cell on x in {0,9} or y in {0,9} fails to
	// Apply the corresponding outward direction.
	for x := int16(0); x <= MaxPos; x++ {
		for y := int16(0); y <= MaxPos; y++ {
			p := NewPos(x, y)
			if x == 0 {
				_, ok := p.Apply(Left)
				require.False(t, ok, "pos %v should not move Left", p)
			}
			if x == MaxPos {
				_, ok := p.Apply(Right)
				require.False(t, ok, "pos %v should not move Right", p)
			}
			if y == 0 {
				_, ok := p.Apply(Up)
				require.False(t, ok, "pos %v should not move Up", p)
			}
			if y == MaxPos {
				_, ok := p.Apply(Down)
				require.False(t, ok, "pos %v should not move Down", p)
			}
		}
	}
}

func TestApplyInterior(t *testing.T) {
	p := NewPos(5, 5)
	right, ok := p.Apply(Right)
	require.True(t, ok)
	require.Equal(t, NewPos(6, 5), right)

	left, ok := p.Apply(Left)
	require.True(t, ok)
	require.Equal(t, NewPos(4, 5), left)

	up, ok := p.Apply(Up)
	require.True(t, ok)
	require.Equal(t, NewPos(5, 4), up)

	down, ok := p.Apply(Down)
	require.True(t, ok)
	require.Equal(t, NewPos(5, 6), down)
}

func TestCombatantIdentityOrdering(t *testing.T) {
	// lower level first
	a := CombatantIdentity{Level: 1, LastDefeatedTime: 0, Uin: 5}
	b := CombatantIdentity{Level: 2, LastDefeatedTime: 0, Uin: 5}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))

	// equal level: later last_defeated_time sorts first (reversed)
	c := CombatantIdentity{Level: 1, LastDefeatedTime: 100, Uin: 5}
	d := CombatantIdentity{Level: 1, LastDefeatedTime: 50, Uin: 5}
	require.True(t, c.Less(d))

	// equal level and timestamp: lower uin first
	e := CombatantIdentity{Level: 1, LastDefeatedTime: 100, Uin: 1}
	f := CombatantIdentity{Level: 1, LastDefeatedTime: 100, Uin: 2}
	require.True(t, e.Less(f))
}

func TestSectCountExcludesNone(t *testing.T) {
	require.Equal(t, 8, SectCount)
	require.Len(t, AllSects(), 8)
	for _, s := range AllSects() {
		require.NotEqual(t, None, s)
	}
}

func TestOpponentLiteRoundTrip(t *testing.T) {
	var lite OpponentLite
	lite.Set(Up, []UinType{1, 2, 3})
	got := lite.Get(Up)
	require.Equal(t, []UinType{1, 2, 3}, got)
	require.Empty(t, lite.Get(Down))
}
