package handlers

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	log "github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/jacobwpeng/sectbattled/battlefield"
	"github.com/jacobwpeng/sectbattled/config"
	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/persist"
	"github.com/jacobwpeng/sectbattled/types"
	"github.com/jacobwpeng/sectbattled/wire"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	maps, err := persist.OpenOrCreateMaps(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { maps.Close() })
	conf := config.DefaultBattleField()
	rng := rand.New(rand.NewSource(1))
	state, err := engine.NewState(maps, conf, rng)
	require.NoError(t, err)
	cache := battlefield.NewCache(0)
	return New(state, cache, log.New())
}

// Scenario 1: Join against empty state.
func TestJoinEmptyState(t *testing.T) {
	h := newTestHandlers(t)
	resp := h.Join(wire.JoinRequest{Uin: 100, Level: 10})
	require.Equal(t, types.Ok, resp.Code)
	require.True(t, resp.Sect >= types.Shaolin && resp.Sect <= types.GaiBang)
	sect, _ := h.State.Sect(resp.Sect)
	require.Equal(t, sect.BornPos(), resp.BattleField.SelfPosition)

	lite, ok := h.State.Maps.CombatantMap.Find(100)
	require.True(t, ok)
	require.Equal(t, sect.BornPos(), lite.Pos)
	require.Equal(t, types.LevelType(10), lite.Level)
	require.Equal(t, types.TimeStamp(0), lite.LastDefeatedTime)
}

func TestJoinIdempotentAtBornPos(t *testing.T) {
	h := newTestHandlers(t)
	first := h.Join(wire.JoinRequest{Uin: 100, Level: 10})
	require.Equal(t, types.Ok, first.Code)

	second := h.Join(wire.JoinRequest{Uin: 100, Level: 10})
	require.Equal(t, types.Ok, second.Code)
	require.Equal(t, first.Sect, second.Sect)
}

func TestJoinElsewhereReportsJoinedBattle(t *testing.T) {
	h := newTestHandlers(t)
	first := h.Join(wire.JoinRequest{Uin: 100, Level: 10})
	require.Equal(t, types.Ok, first.Code)

	c, _ := h.State.Combatant(100)
	require.NoError(t, h.performMove(c, 100, types.NewPos(5, 5), 10))

	second := h.Join(wire.JoinRequest{Uin: 100, Level: 10})
	require.Equal(t, types.JoinedBattle, second.Code)
}

func TestJoinBattleFieldFull(t *testing.T) {
	h := newTestHandlers(t)
	require.True(t, h.State.Maps.CombatantMap.MaxSize() > 0)

	// Filling the full-size map is impractical here; swap in a one-slot
	// combatant map so the second Join finds it full.
	region, err := persist.CreateRegion(filepath.Join(t.TempDir(), "combatant_map.mmap"), 4096)
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })
	small, err := persist.CreateOrderedMap(region, 1, persist.UinKeyCodec{}, persist.CombatantLiteValueCodec{})
	require.NoError(t, err)
	h.State.Maps.CombatantMap = small

	require.Equal(t, types.Ok, h.Join(wire.JoinRequest{Uin: 100, Level: 10}).Code)
	require.Equal(t, types.BattleFieldFull, h.Join(wire.JoinRequest{Uin: 101, Level: 10}).Code)
}

// Scenario 2: two combatants sharing Shaolin's born field, one moves.
func TestMoveWithinOwnSect(t *testing.T) {
	h := newTestHandlers(t)
	shaolin, _ := h.State.Sect(types.Shaolin)
	c1, err := h.State.AddCombatant(100, types.Shaolin, 10)
	require.NoError(t, err)
	_, err = h.State.AddCombatant(101, types.Shaolin, 10)
	require.NoError(t, err)
	require.Equal(t, 2, h.State.MustField(shaolin.BornPos()).GarrisonNum())

	var dir types.Direction
	switch {
	case shaolin.BornPos().X < types.MaxPos:
		dir = types.Right
	default:
		dir = types.Left
	}
	resp := h.Move(wire.MoveRequest{Uin: 100, Level: 10, Direction: dir, CanMove: true})
	require.Equal(t, types.Ok, resp.Code)
	newPos, _ := shaolin.BornPos().Apply(dir)
	require.Equal(t, newPos, resp.BattleField.SelfPosition)
	require.Equal(t, types.Shaolin, h.State.MustField(newPos).Owner())
	_ = c1
}

func TestMoveCannotMoveWithoutStamina(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.State.AddCombatant(100, types.Shaolin, 10)
	require.NoError(t, err)
	shaolin, _ := h.State.Sect(types.Shaolin)
	dir := types.Right
	if shaolin.BornPos().X == types.MaxPos {
		dir = types.Left
	}
	resp := h.Move(wire.MoveRequest{Uin: 100, Level: 10, Direction: dir, CanMove: false})
	require.Equal(t, types.CannotMove, resp.Code)
}

func TestMoveInvalidDirectionAtEdge(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.State.AddCombatant(100, types.Shaolin, 10)
	require.NoError(t, err)
	shaolin, _ := h.State.Sect(types.Shaolin)
	// Shaolin borns at (0,0) by default config: Up and Left are both off-board.
	require.Equal(t, types.NewPos(0, 0), shaolin.BornPos())
	resp := h.Move(wire.MoveRequest{Uin: 100, Level: 10, Direction: types.Up, CanMove: true})
	require.Equal(t, types.InvalidDirection, resp.Code)
}

// Scenario 3/4: protection window then a fight report.
func TestMoveIntoProtectedThenEligibleOpponentAndReportFight(t *testing.T) {
	h := newTestHandlers(t)
	now := time.Now()
	h.Clock = func() time.Time { return now }

	_, err := h.State.AddCombatant(200, types.WuDang, 10)
	require.NoError(t, err)

	// Place a Shaolin defender at (8,0), one cell left of WuDang's (9,0) born
	// pos, then mark it as just defeated so it starts inside the
	// protection window.
	c300, err := h.State.AddCombatant(300, types.Shaolin, 10)
	require.NoError(t, err)
	require.NoError(t, h.performMove(c300, 300, types.NewPos(8, 0), 10))
	field := h.State.MustField(types.NewPos(8, 0))
	newHandle, err := field.UpdateGarrisonLastDefeatedTime(c300.Handle(), now.UnixMilli())
	require.NoError(t, err)
	c300.SetHandle(newHandle)
	require.NoError(t, h.State.SyncCombatant(300))

	resp := h.Move(wire.MoveRequest{Uin: 200, Level: 10, Direction: types.Left, CanMove: true})
	require.Equal(t, types.NoOpponentFound, resp.Code, "defender still inside the protection window")

	// Advance time past the 30s protection window.
	h.Clock = func() time.Time { return now.Add(31 * time.Second) }
	resp = h.Move(wire.MoveRequest{Uin: 200, Level: 10, Direction: types.Left, CanMove: true})
	require.Equal(t, types.Occupied, resp.Code)
	require.Equal(t, []types.UinType{300}, resp.Opponents)

	checkResp := h.CheckFight(wire.CheckFightRequest{Uin: 200, Opponent: 300, Direction: types.Left})
	require.Equal(t, types.Ok, checkResp.Code)

	reportResp := h.ReportFight(wire.ReportFightRequest{
		Uin: 200, Opponent: 300, Loser: 300, Direction: types.Left,
		ResetSelf: false, ResetOpponent: true, Level: 10, OpponentLevel: 10,
	})
	require.Equal(t, types.Ok, reportResp.Code)

	loser, ok := h.State.Combatant(300)
	require.True(t, ok)
	require.Equal(t, loser.CurrentSect().BornPos(), loser.CurrentPos())
	require.Equal(t, now.Add(31*time.Second).UnixMilli(), loser.Handle().LastDefeatedTime)
}

// CheckFight must validate the opponent before the seeker: when both
// uins are absent from the battlefield, the result is InvalidOpponent,
// not NotInBattle.
func TestCheckFightBothAbsentReportsInvalidOpponent(t *testing.T) {
	h := newTestHandlers(t)
	resp := h.CheckFight(wire.CheckFightRequest{Uin: 1, Opponent: 2, Direction: types.Left})
	require.Equal(t, types.InvalidOpponent, resp.Code)
}

func TestCheckFightSeekerAbsentOpponentPresentReportsNotInBattle(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.State.AddCombatant(2, types.WuDang, 5)
	require.NoError(t, err)
	resp := h.CheckFight(wire.CheckFightRequest{Uin: 1, Opponent: 2, Direction: types.Left})
	require.Equal(t, types.NotInBattle, resp.Code)
}
