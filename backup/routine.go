package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/kvclient"
	"github.com/jacobwpeng/sectbattled/persist"
)

// Interval is kBackupInterval: a backup is triggered once this much
// time has elapsed since the last successful backup's end time.
const Interval = 30 * time.Minute

// ConnectTimeout is the wall-clock budget for the connect phase; if
// exceeded the whole attempt aborts.
const ConnectTimeout = 5 * time.Minute

// PartSize is the per-Put size ceiling; a region larger than this is
// split into ordered parts.
const PartSize = 16 * datasize.MB

// metadataKey is never prefixed; writing it is the backup's commit
// point.
const metadataKey = "backup_metadata"

// Routine drives one backup attempt end to end. A Routine should be
// constructed once and reused across attempts so the every-4th-run
// Optimize counter (runCount) persists between runs; the A/B prefix is
// not held here but read from the live backup_metadata on each run.
type Routine struct {
	Maps   *persist.Maps
	KV     kvclient.Client
	Addr   string
	Log    log.Logger
	Clock  func() time.Time

	runCount int
}

func NewRoutine(maps *persist.Maps, kv kvclient.Client, addr string, logger log.Logger) *Routine {
	return &Routine{Maps: maps, KV: kv, Addr: addr, Log: logger, Clock: time.Now}
}

// Due reports whether a backup should be triggered given the live
// metadata's end time: now - metadata.end_time >= Interval.
func (r *Routine) Due(live Metadata) bool {
	return r.Clock().Sub(time.UnixMilli(live.BackupEndTime)) >= Interval
}

// ReadLive decodes whatever is currently in the backup_metadata
// region. A fresh data directory decodes to an error, in which case the
// caller should treat the prefix as uninitialized (defaults to tick).
func (r *Routine) ReadLive() (Metadata, error) {
	return Decode(r.Maps.MetaRegion().Bytes())
}

func (r *Routine) writeLive(m Metadata) error {
	buf, err := Encode(m)
	if err != nil {
		return err
	}
	region := r.Maps.MetaRegion()
	copy(region.Bytes(), buf)
	return region.Flush()
}

// Run executes one full backup attempt: connect, optionally optimize,
// delete any stale keys under the target prefix (the one this attempt
// is about to write, left over from two generations ago), upload every
// region under that prefix, then commit metadata. The previously
// committed, still-valid prefix is never touched, so a failure at any
// later step leaves a complete backup in place. A failure at any step
// abandons the attempt, leaves live metadata untouched, and does not
// advance runCount or the A/B prefix; the next trigger retries from
// scratch.
func (r *Routine) Run(ctx context.Context) error {
	live, err := r.ReadLive()
	prefix := PrefixTick
	resetTime := int64(0)
	if err == nil {
		resetTime = live.LatestBattleFieldResetTime
		prefix = NextPrefix(live.Prefix)
	}

	now := r.Clock()
	snapshot := map[string][]byte{}
	for key, region := range r.Maps.Regions() {
		snapshot[key] = region.Snapshot()
	}
	pending := Metadata{
		BackupStartTime:            now.UnixMilli(),
		LatestBattleFieldResetTime: resetTime,
		Prefix:                     prefix,
	}

	connectCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	if err := r.KV.Connect(connectCtx, r.Addr); err != nil {
		r.Log.Warn("backup: connect failed, aborting attempt", "err", err)
		return fmt.Errorf("backup: connect: %w", err)
	}

	if r.runCount%4 == 0 {
		if err := r.KV.Optimize(ctx); err != nil {
			r.Log.Warn("backup: optimize failed, aborting attempt", "err", err)
			return fmt.Errorf("backup: optimize: %w", err)
		}
	}

	if delErr := r.deletePrefix(ctx, pending.Prefix); delErr != nil {
		r.Log.Warn("backup: delete target prefix failed, aborting attempt", "err", delErr)
		return fmt.Errorf("backup: delete prefix: %w", delErr)
	}

	for key, data := range snapshot {
		if uploadErr := r.uploadRegion(ctx, pending.Prefix, key, data); uploadErr != nil {
			r.Log.Warn("backup: upload region failed, aborting attempt", "region", key, "err", uploadErr)
			return fmt.Errorf("backup: upload %s: %w", key, uploadErr)
		}
	}

	pending.BackupEndTime = r.Clock().UnixMilli()
	metaBytes, encErr := Encode(pending)
	if encErr != nil {
		return fmt.Errorf("backup: encode metadata: %w", encErr)
	}
	if err := r.KV.Put(ctx, metadataKey, metaBytes); err != nil {
		r.Log.Warn("backup: commit metadata failed, aborting attempt", "err", err)
		return fmt.Errorf("backup: put metadata: %w", err)
	}

	if err := r.writeLive(pending); err != nil {
		return fmt.Errorf("backup: write live metadata: %w", err)
	}
	r.runCount++
	r.Log.Info("backup: attempt succeeded", "prefix", pending.Prefix, "run", r.runCount)
	return nil
}

func (r *Routine) deletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	err := r.KV.GetForwardMatchKeys(ctx, prefix, 0, func(key string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := r.KV.Out(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (r *Routine) uploadRegion(ctx context.Context, prefix, regionKey string, data []byte) error {
	if datasize.ByteSize(len(data)) <= PartSize {
		return r.KV.Put(ctx, fmt.Sprintf("%s_%s", prefix, regionKey), data)
	}
	part := 1
	for off := 0; off < len(data); off += int(PartSize) {
		end := off + int(PartSize)
		if end > len(data) {
			end = len(data)
		}
		key := fmt.Sprintf("%s_%s_%d", prefix, regionKey, part)
		if err := r.KV.Put(ctx, key, data[off:end]); err != nil {
			return err
		}
		part++
	}
	return nil
}
