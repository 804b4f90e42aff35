// Package handlers implements the seven request handlers against the
// in-memory engine.State, each producing a wire response and, on
// success, leaving the persistence maps in sync with the runtime
// mutation it made.
package handlers

import (
	"time"

	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/battlefield"
	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/types"
	"github.com/jacobwpeng/sectbattled/wire"
)

// protectionWindow is the interval after a defeat during which a
// combatant is excluded from opponent sampling.
const protectionWindow = 30 * time.Second

// Handlers wires the seven game operations to one engine.State.
// Clock is overridable so tests can control the protection window and
// last_defeated_time stamps deterministically.
type Handlers struct {
	State *engine.State
	Cache *battlefield.Cache
	Log   log.Logger
	Clock func() time.Time
}

func New(state *engine.State, cache *battlefield.Cache, logger log.Logger) *Handlers {
	return &Handlers{State: state, Cache: cache, Log: logger, Clock: time.Now}
}

func (h *Handlers) now() time.Time { return h.Clock() }

func (h *Handlers) nowMillis() types.TimeStamp { return h.now().UnixMilli() }

// lastTimeNotInProtection is the defeated_before threshold passed to
// GetOpponents: a combatant defeated at or before this instant is no
// longer protected.
func (h *Handlers) lastTimeNotInProtection() types.TimeStamp {
	return h.now().Add(-protectionWindow).UnixMilli()
}

func (h *Handlers) snapshot(selfPos types.Pos) wire.BattleField {
	return h.Cache.Snapshot(h.State, selfPos, h.now())
}

// Join implements Join.
func (h *Handlers) Join(req wire.JoinRequest) wire.JoinResponse {
	if c, ok := h.State.Combatant(req.Uin); ok {
		if c.CurrentPos() == c.CurrentSect().BornPos() {
			return wire.JoinResponse{Uin: req.Uin, Code: types.Ok, Sect: c.CurrentSect().Type(), BattleField: h.snapshot(c.CurrentPos())}
		}
		return wire.JoinResponse{Uin: req.Uin, Code: types.JoinedBattle, BattleField: h.snapshot(c.CurrentPos())}
	}
	if h.State.Maps.CombatantMap.Size() >= h.State.Maps.CombatantMap.MaxSize() {
		return wire.JoinResponse{Uin: req.Uin, Code: types.BattleFieldFull}
	}
	sectType := h.State.RandomSect()
	c, err := h.State.AddCombatant(req.Uin, sectType, req.Level)
	if err != nil {
		h.Log.Error("join: add combatant failed", "uin", req.Uin, "err", err)
		return wire.JoinResponse{Uin: req.Uin, Code: types.BattleFieldFull}
	}
	h.Log.Debug("join", "uin", req.Uin, "sect", sectType, "pos", c.CurrentPos())
	return wire.JoinResponse{Uin: req.Uin, Code: types.Ok, Sect: sectType, BattleField: h.snapshot(c.CurrentPos())}
}

// QueryBattleField implements QueryBattleField.
func (h *Handlers) QueryBattleField(req wire.QueryBattleFieldRequest) wire.QueryBattleFieldResponse {
	c, ok := h.State.Combatant(req.Uin)
	if !ok {
		return wire.QueryBattleFieldResponse{Uin: req.Uin, Code: types.NotInBattle, BattleField: h.snapshot(types.Invalid())}
	}
	if req.Level != c.Level() {
		field := h.State.MustField(c.CurrentPos())
		newHandle, err := field.UpdateGarrisonLevel(c.Handle(), req.Level)
		if err != nil {
			h.Log.Error("query_battle_field: stale garrison handle", "uin", req.Uin, "err", err)
		} else {
			c.SetHandle(newHandle)
			c.SetLevel(req.Level)
			if err := h.State.SyncCombatant(req.Uin); err != nil {
				h.Log.Error("query_battle_field: sync failed", "uin", req.Uin, "err", err)
			}
		}
	}
	return wire.QueryBattleFieldResponse{Uin: req.Uin, Code: types.Ok, BattleField: h.snapshot(c.CurrentPos())}
}

// Move implements Move, including the Occupied/NoOpponentFound/
// CannotMoveToBornPos branch over GetOpponents.
func (h *Handlers) Move(req wire.MoveRequest) wire.MoveResponse {
	c, ok := h.State.Combatant(req.Uin)
	if !ok {
		return wire.MoveResponse{Uin: req.Uin, Code: types.NotInBattle}
	}
	if !types.IsValidDirection(int(req.Direction)) {
		return wire.MoveResponse{Uin: req.Uin, Code: types.InvalidDirection, BattleField: h.snapshot(c.CurrentPos())}
	}
	newPos, inBounds := c.CurrentPos().Apply(req.Direction)
	if !inBounds {
		return wire.MoveResponse{Uin: req.Uin, Code: types.InvalidDirection, BattleField: h.snapshot(c.CurrentPos())}
	}

	destField := h.State.MustField(newPos)
	ownSect := c.CurrentSect().Type()

	if destField.Owner() == types.None || destField.Owner() == ownSect {
		if !req.CanMove {
			return wire.MoveResponse{Uin: req.Uin, Code: types.CannotMove, BattleField: h.snapshot(c.CurrentPos())}
		}
		if err := h.performMove(c, req.Uin, newPos, req.Level); err != nil {
			h.Log.Error("move: perform move failed", "uin", req.Uin, "err", err)
		}
		return wire.MoveResponse{Uin: req.Uin, Code: types.Ok, BattleField: h.snapshot(c.CurrentPos())}
	}

	// Occupied by another sect.
	if cached := c.GetOpponents(req.Direction); len(cached) == 0 {
		opponents := destField.GetOpponents(req.Level, h.lastTimeNotInProtection(), h.State.Rng)
		if len(opponents) == 0 {
			if destField.GarrisonNum() > 0 {
				return wire.MoveResponse{Uin: req.Uin, Code: types.NoOpponentFound, BattleField: h.snapshot(c.CurrentPos())}
			}
			sect, ok := h.State.Sect(destField.Owner())
			if ok && newPos == sect.BornPos() {
				return wire.MoveResponse{Uin: req.Uin, Code: types.CannotMoveToBornPos, BattleField: h.snapshot(c.CurrentPos())}
			}
			if !req.CanMove {
				return wire.MoveResponse{Uin: req.Uin, Code: types.CannotMove, BattleField: h.snapshot(c.CurrentPos())}
			}
			if err := h.performMove(c, req.Uin, newPos, req.Level); err != nil {
				h.Log.Error("move: perform move failed", "uin", req.Uin, "err", err)
			}
			return wire.MoveResponse{Uin: req.Uin, Code: types.Ok, BattleField: h.snapshot(c.CurrentPos())}
		}
		c.ChangeOpponents(req.Direction, opponents)
		if err := h.State.SyncOpponents(req.Uin); err != nil {
			h.Log.Error("move: sync opponents failed", "uin", req.Uin, "err", err)
		}
		return wire.MoveResponse{Uin: req.Uin, Code: types.Occupied, Opponents: opponents, BattleField: h.snapshot(c.CurrentPos())}
	} else {
		return wire.MoveResponse{Uin: req.Uin, Code: types.Occupied, Opponents: cached, BattleField: h.snapshot(c.CurrentPos())}
	}
}

// performMove carries out the actual relocation shared by Move and
// ChangeSect: remove garrison at the old field, insert at the new one,
// change owner if crossing into a field not already the mover's own,
// update the combatant and persist both maps.
func (h *Handlers) performMove(c *engine.Combatant, uin types.UinType, newPos types.Pos, level types.LevelType) error {
	oldField := h.State.MustField(c.CurrentPos())
	if err := oldField.ReduceGarrison(c.Handle()); err != nil {
		return err
	}
	newField := h.State.MustField(newPos)
	ownSect := c.CurrentSect().Type()
	if newField.Owner() != ownSect {
		h.Log.Info("move: owner change", "pos", newPos, "from", newField.Owner(), "to", ownSect)
		if err := h.State.ChangeOwner(newPos, ownSect); err != nil {
			return err
		}
	}
	handle := newField.AddGarrison(uin, level, types.MinTimeStamp)
	c.MoveTo(newPos, handle)
	c.SetLevel(level)
	if err := h.State.SyncCombatant(uin); err != nil {
		return err
	}
	h.Cache.Invalidate()
	return nil
}

// ChangeSect implements ChangeSect: a forced teleport to
// the new sect's born position, no can_move gate.
func (h *Handlers) ChangeSect(req wire.ChangeSectRequest) wire.ChangeSectResponse {
	c, ok := h.State.Combatant(req.Uin)
	if !ok {
		return wire.ChangeSectResponse{Uin: req.Uin, Code: types.NotInBattle}
	}
	if c.CurrentSect().Type() == req.Sect {
		return wire.ChangeSectResponse{Uin: req.Uin, Code: types.InSameSect, BattleField: h.snapshot(c.CurrentPos())}
	}
	newSect, ok := h.State.Sect(req.Sect)
	if !ok {
		return wire.ChangeSectResponse{Uin: req.Uin, Code: types.InSameSect, BattleField: h.snapshot(c.CurrentPos())}
	}

	oldField := h.State.MustField(c.CurrentPos())
	if err := oldField.ReduceGarrison(c.Handle()); err != nil {
		h.Log.Error("change_sect: reduce garrison failed", "uin", req.Uin, "err", err)
	}
	c.CurrentSect().RemoveMember(req.Uin)
	newSect.AddMember(req.Uin)

	bornPos := newSect.BornPos()
	bornField := h.State.MustField(bornPos)
	if bornField.Owner() != req.Sect {
		if err := h.State.ChangeOwner(bornPos, req.Sect); err != nil {
			h.Log.Error("change_sect: change owner failed", "uin", req.Uin, "err", err)
		}
	}
	handle := bornField.AddGarrison(req.Uin, req.Level, types.MinTimeStamp)
	c.ChangeSect(newSect)
	c.MoveTo(bornPos, handle)
	c.SetLevel(req.Level)
	if err := h.State.SyncCombatant(req.Uin); err != nil {
		h.Log.Error("change_sect: sync failed", "uin", req.Uin, "err", err)
	}
	h.Cache.Invalidate()
	return wire.ChangeSectResponse{Uin: req.Uin, Code: types.Ok, BattleField: h.snapshot(bornPos)}
}

// ChangeOpponent implements ChangeOpponent.
func (h *Handlers) ChangeOpponent(req wire.ChangeOpponentRequest) wire.ChangeOpponentResponse {
	c, ok := h.State.Combatant(req.Uin)
	if !ok {
		return wire.ChangeOpponentResponse{Uin: req.Uin, Code: types.NotInBattle}
	}
	if !types.IsValidDirection(int(req.Direction)) {
		return wire.ChangeOpponentResponse{Uin: req.Uin, Code: types.InvalidDirection, BattleField: h.snapshot(c.CurrentPos())}
	}
	if cached := c.GetOpponents(req.Direction); len(cached) == 0 {
		return wire.ChangeOpponentResponse{Uin: req.Uin, Code: types.NoOpponent, BattleField: h.snapshot(c.CurrentPos())}
	}
	neighborPos, inBounds := c.CurrentPos().Apply(req.Direction)
	if !inBounds {
		return wire.ChangeOpponentResponse{Uin: req.Uin, Code: types.InvalidDirection, BattleField: h.snapshot(c.CurrentPos())}
	}
	neighbor := h.State.MustField(neighborPos)
	opponents := neighbor.GetOpponents(req.Level, h.lastTimeNotInProtection(), h.State.Rng)
	if len(opponents) == 0 {
		return wire.ChangeOpponentResponse{Uin: req.Uin, Code: types.NoOpponentFound, BattleField: h.snapshot(c.CurrentPos())}
	}
	c.ChangeOpponents(req.Direction, opponents)
	if err := h.State.SyncOpponents(req.Uin); err != nil {
		h.Log.Error("change_opponent: sync failed", "uin", req.Uin, "err", err)
	}
	return wire.ChangeOpponentResponse{Uin: req.Uin, Code: types.Ok, Opponents: opponents, BattleField: h.snapshot(c.CurrentPos())}
}

// CheckFight implements CheckFight. No state change.
func (h *Handlers) CheckFight(req wire.CheckFightRequest) wire.CheckFightResponse {
	opponent, ok := h.State.Combatant(req.Opponent)
	if !ok {
		return wire.CheckFightResponse{Uin: req.Uin, Code: types.InvalidOpponent}
	}
	seeker, ok := h.State.Combatant(req.Uin)
	if !ok {
		return wire.CheckFightResponse{Uin: req.Uin, Code: types.NotInBattle}
	}
	if !types.IsValidDirection(int(req.Direction)) {
		return wire.CheckFightResponse{Uin: req.Uin, Code: types.InvalidDirection}
	}
	cached := seeker.GetOpponents(req.Direction)
	found := false
	for _, u := range cached {
		if u == req.Opponent {
			found = true
			break
		}
	}
	if !found {
		return wire.CheckFightResponse{Uin: req.Uin, Code: types.InvalidOpponent}
	}
	neighborPos, inBounds := seeker.CurrentPos().Apply(req.Direction)
	if !inBounds || opponent.CurrentPos() != neighborPos {
		return wire.CheckFightResponse{Uin: req.Uin, Code: types.OpponentMoved}
	}
	return wire.CheckFightResponse{Uin: req.Uin, Code: types.Ok}
}

// ReportFight implements ReportFight.
func (h *Handlers) ReportFight(req wire.ReportFightRequest) wire.ReportFightResponse {
	seeker, ok := h.State.Combatant(req.Uin)
	if !ok {
		return wire.ReportFightResponse{Uin: req.Uin, Code: types.NotInBattle}
	}
	opponent, ok := h.State.Combatant(req.Opponent)
	if !ok {
		return wire.ReportFightResponse{Uin: req.Uin, Code: types.InvalidOpponent}
	}
	if !types.IsValidDirection(int(req.Direction)) {
		return wire.ReportFightResponse{Uin: req.Uin, Code: types.InvalidDirection}
	}
	neighborPos, inBounds := seeker.CurrentPos().Apply(req.Direction)
	if !inBounds || opponent.CurrentPos() != neighborPos {
		return wire.ReportFightResponse{Uin: req.Uin, Code: types.OpponentMoved}
	}

	seeker.ClearOpponents(req.Direction)
	if err := h.State.SyncOpponents(req.Uin); err != nil {
		h.Log.Error("report_fight: sync opponents failed", "uin", req.Uin, "err", err)
	}

	if req.ResetSelf {
		if err := h.performMove(seeker, req.Uin, seeker.CurrentSect().BornPos(), req.Level); err != nil {
			h.Log.Error("report_fight: reset self failed", "uin", req.Uin, "err", err)
		}
	} else {
		seeker.SetLevel(req.Level)
		if err := h.State.SyncCombatant(req.Uin); err != nil {
			h.Log.Error("report_fight: sync self failed", "uin", req.Uin, "err", err)
		}
	}
	if req.ResetOpponent {
		if err := h.performMove(opponent, req.Opponent, opponent.CurrentSect().BornPos(), req.OpponentLevel); err != nil {
			h.Log.Error("report_fight: reset opponent failed", "uin", req.Opponent, "err", err)
		}
	} else {
		opponent.SetLevel(req.OpponentLevel)
		if err := h.State.SyncCombatant(req.Opponent); err != nil {
			h.Log.Error("report_fight: sync opponent failed", "uin", req.Opponent, "err", err)
		}
	}

	loserUin := req.Loser
	loser := seeker
	if loserUin == req.Opponent {
		loser = opponent
	}
	field := h.State.MustField(loser.CurrentPos())
	newHandle, err := field.UpdateGarrisonLastDefeatedTime(loser.Handle(), h.nowMillis())
	if err != nil {
		h.Log.Error("report_fight: update last defeated time failed", "uin", loserUin, "err", err)
	} else {
		loser.SetHandle(newHandle)
		if err := h.State.SyncCombatant(loserUin); err != nil {
			h.Log.Error("report_fight: sync loser failed", "uin", loserUin, "err", err)
		}
	}

	return wire.ReportFightResponse{Uin: req.Uin, Code: types.Ok, BattleField: h.snapshot(seeker.CurrentPos())}
}
