package backup

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	log "github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/jacobwpeng/sectbattled/kvclient"
	"github.com/jacobwpeng/sectbattled/persist"
)

// failingMetadataPutKV wraps a *kvclient.Memory and fails the
// metadata-commit Put, simulating a late-step failure so tests can
// check the previously committed prefix is left alone.
type failingMetadataPutKV struct {
	*kvclient.Memory
	failMetadataPut bool
}

func (f *failingMetadataPutKV) Put(ctx context.Context, key string, value []byte) error {
	if f.failMetadataPut && key == metadataKey {
		return fmt.Errorf("simulated metadata put failure")
	}
	return f.Memory.Put(ctx, key, value)
}

func newTestRoutine(t *testing.T) (*Routine, *kvclient.Memory) {
	t.Helper()
	maps, err := persist.OpenOrCreateMaps(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { maps.Close() })
	mem := kvclient.NewMemory()
	r := NewRoutine(maps, mem, "unused", log.New())
	return r, mem
}

func TestRoutineFirstRunUsesTickPrefix(t *testing.T) {
	r, mem := newTestRoutine(t)
	require.NoError(t, r.Run(context.Background()))

	live, err := r.ReadLive()
	require.NoError(t, err)
	require.Equal(t, PrefixTick, live.Prefix)

	var gotMeta, gotRegion bool
	for k := range mem.Dump() {
		if k == metadataKey {
			gotMeta = true
		}
		if strings.HasPrefix(k, PrefixTick+"_") {
			gotRegion = true
		}
	}
	require.True(t, gotMeta, "backup_metadata key must be written")
	require.True(t, gotRegion, "at least one tick_-prefixed region key must be written")
}

func TestRoutineAlternatesPrefixAndRetainsPreviousUntilReused(t *testing.T) {
	r, mem := newTestRoutine(t)
	now := time.Now()
	r.Clock = func() time.Time { return now }
	require.NoError(t, r.Run(context.Background()))

	r.Clock = func() time.Time { return now.Add(Interval + time.Minute) }
	require.NoError(t, r.Run(context.Background()))

	live, err := r.ReadLive()
	require.NoError(t, err)
	require.Equal(t, PrefixTock, live.Prefix)

	var hasTick, hasTock bool
	for k := range mem.Dump() {
		if strings.HasPrefix(k, PrefixTick+"_") {
			hasTick = true
		}
		if strings.HasPrefix(k, PrefixTock+"_") {
			hasTock = true
		}
	}
	require.True(t, hasTick, "the previously committed tick_ backup must survive the tock run uncommitted")
	require.True(t, hasTock, "the new tock_ backup must be present")

	r.Clock = func() time.Time { return now.Add(2*Interval + 2*time.Minute) }
	require.NoError(t, r.Run(context.Background()))

	live, err = r.ReadLive()
	require.NoError(t, err)
	require.Equal(t, PrefixTick, live.Prefix)

	for k := range mem.Dump() {
		require.False(t, strings.HasPrefix(k, PrefixTock+"_"), "stale tock_ keys must be cleared once a run retargets tick and tock is no longer live: found %q", k)
	}
}

// TestRoutineFailureAfterDeleteLeavesPriorPrefixIntact covers the
// reliability property the A/B scheme exists for: if a run fails after
// clearing its target prefix but before the metadata commit, the
// previously committed, still-valid prefix must be untouched.
func TestRoutineFailureAfterDeleteLeavesPriorPrefixIntact(t *testing.T) {
	r, mem := newTestRoutine(t)
	now := time.Now()
	r.Clock = func() time.Time { return now }
	require.NoError(t, r.Run(context.Background()))

	tickKeysBefore := map[string][]byte{}
	for k, v := range mem.Dump() {
		if strings.HasPrefix(k, PrefixTick+"_") {
			tickKeysBefore[k] = v
		}
	}
	require.NotEmpty(t, tickKeysBefore)

	wrapped := &failingMetadataPutKV{Memory: mem, failMetadataPut: true}
	r.KV = wrapped
	r.Clock = func() time.Time { return now.Add(Interval + time.Minute) }
	require.Error(t, r.Run(context.Background()))

	live, err := r.ReadLive()
	require.NoError(t, err)
	require.Equal(t, PrefixTick, live.Prefix, "live metadata must still point at the last successful backup")

	for k, want := range tickKeysBefore {
		got, ok := mem.Dump()[k]
		require.True(t, ok, "prior prefix key %q must still be present after a failed attempt", k)
		require.Equal(t, want, got, "prior prefix key %q must be unchanged", k)
	}
}

func TestRoutineDue(t *testing.T) {
	r, _ := newTestRoutine(t)
	now := time.Now()
	r.Clock = func() time.Time { return now }
	require.True(t, r.Due(Metadata{BackupEndTime: now.Add(-Interval - time.Second).UnixMilli()}))
	require.False(t, r.Due(Metadata{BackupEndTime: now.Add(-Interval + time.Second).UnixMilli()}))
}

func TestRoutineOptimizesEveryFourthRun(t *testing.T) {
	r, mem := newTestRoutine(t)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Run(context.Background()))
	}
	require.Equal(t, 1, mem.OptimizeCalls(), "optimize must fire on run 1 and run 5, not runs 2-4")
}

func TestUploadRegionSplitsOversizedParts(t *testing.T) {
	r, mem := newTestRoutine(t)
	data := make([]byte, int(PartSize)+10)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, r.uploadRegion(context.Background(), PrefixTick, "combatant_map", data))

	part1, ok := mem.Dump()["tick_combatant_map_1"]
	require.True(t, ok)
	part2, ok := mem.Dump()["tick_combatant_map_2"]
	require.True(t, ok)
	require.Equal(t, data[:PartSize], part1)
	require.Equal(t, data[PartSize:], part2)
}
