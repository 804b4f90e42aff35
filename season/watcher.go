// Package season implements a periodic check that resets the
// battlefield whenever the calendar crosses a weekly boundary offset
// by a configurable number of hours - kept configurable rather than
// hardcoding one particular deployment's "Wednesday 06:00" rollover
// convention.
package season

import (
	"time"

	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/backup"
	"github.com/jacobwpeng/sectbattled/battlefield"
	"github.com/jacobwpeng/sectbattled/engine"
)

const week = 7 * 24 * time.Hour

// Index returns the season number containing t: weeks since the Unix
// epoch, shifted by offsetHours so the weekly boundary falls at the
// configured local convention rather than exactly at an epoch-aligned
// Thursday 00:00 UTC.
func Index(t time.Time, offsetHours int) int64 {
	shifted := t.Add(-time.Duration(offsetHours) * time.Hour)
	return shifted.Unix() / int64(week/time.Second)
}

// Watcher compares the current season against the live metadata's
// latest reset and triggers engine.State.ResetBattleField on rollover.
// The caller is expected to invoke Tick once a second (e.g. from the
// same periodic tick driving the backup routine's Due check).
type Watcher struct {
	State          *engine.State
	Cache          *battlefield.Cache
	OffsetHours    int
	Log            log.Logger
	ReadMetadata   func() (backup.Metadata, error)
	WriteResetTime func(ts int64) error
}

// Tick checks whether now's season differs from the last recorded
// reset's season, and if so resets the battlefield and records the new
// reset time.
func (w *Watcher) Tick(now time.Time) error {
	live, err := w.ReadMetadata()
	lastResetSeason := int64(-1)
	if err == nil {
		lastResetSeason = Index(time.UnixMilli(live.LatestBattleFieldResetTime), w.OffsetHours)
	}
	current := Index(now, w.OffsetHours)
	if current == lastResetSeason {
		return nil
	}
	w.Log.Info("season: rollover detected, resetting battlefield", "season", current)
	if err := w.State.ResetBattleField(); err != nil {
		return err
	}
	w.Cache.Invalidate()
	return w.WriteResetTime(now.UnixMilli())
}
