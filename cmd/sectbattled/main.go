// Command sectbattled runs the authoritative SectBattleServer process:
// opens (or restores) the mmap persistence maps, rebuilds runtime
// state, serves the datagram game protocol and the admin HTTP observer,
// and drives the season watcher and backup routine off one ticker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gofrs/flock"
	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/adminhttp"
	"github.com/jacobwpeng/sectbattled/backup"
	"github.com/jacobwpeng/sectbattled/battlefield"
	"github.com/jacobwpeng/sectbattled/config"
	"github.com/jacobwpeng/sectbattled/coop"
	"github.com/jacobwpeng/sectbattled/dispatch"
	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/handlers"
	"github.com/jacobwpeng/sectbattled/kvclient"
	"github.com/jacobwpeng/sectbattled/persist"
	"github.com/jacobwpeng/sectbattled/restore"
	"github.com/jacobwpeng/sectbattled/season"
)

func main() {
	var flags config.Flags
	kong.Parse(&flags)

	logger := log.New()

	os.Exit(run(flags, logger))
}

func run(flags config.Flags, logger log.Logger) int {
	lock := flock.New(flags.LockFilePath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		logger.Error("startup: failed to acquire lock file", "path", flags.LockFilePath, "err", err)
		return 1
	}
	defer lock.Unlock()

	if err := os.MkdirAll(flags.DataPath, 0o755); err != nil {
		logger.Error("startup: failed to create data path", "path", flags.DataPath, "err", err)
		return 1
	}

	if flags.Recovery {
		if err := runRecovery(flags, logger); err != nil {
			logger.Error("recovery: failed", "err", err)
			return 1
		}
		logger.Info("recovery: complete, exiting; restart normally to resume")
		return 0
	}

	conf, err := config.LoadBattleField(flags.ConfigPath)
	if err != nil {
		logger.Error("startup: bad config", "err", err)
		return 1
	}

	maps, err := persist.OpenOrCreateMaps(flags.DataPath)
	if err != nil {
		logger.Error("startup: failed to open persistence maps", "err", err)
		return 1
	}
	defer maps.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	state, err := engine.NewState(maps, conf, rng)
	if err != nil {
		logger.Error("startup: failed to build run data", "err", err)
		return 1
	}

	cache := battlefield.NewCache(time.Duration(flags.CacheTTLMs) * time.Millisecond)
	h := handlers.New(state, cache, logger)
	d := dispatch.New(h, dispatch.JSONCodec{}, logger)

	kv := kvclient.NewGRPCClient()
	routine := backup.NewRoutine(maps, kv, flags.BackupKVAddr, logger)
	backupRunner := coop.NewRunner()

	watcher := &season.Watcher{
		State:       state,
		Cache:       cache,
		OffsetHours: conf.SeasonOffsetHours,
		Log:         logger,
		ReadMetadata: routine.ReadLive,
		WriteResetTime: func(ts int64) error {
			live, err := routine.ReadLive()
			if err != nil {
				live = backup.Metadata{Prefix: backup.PrefixTick}
			}
			live.LatestBattleFieldResetTime = ts
			buf, err := backup.Encode(live)
			if err != nil {
				return err
			}
			region := maps.MetaRegion()
			copy(region.Bytes(), buf)
			return region.Flush()
		},
	}

	admin := adminhttp.New(state, routine, backupRunner, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go func() {
		if err := adminhttp.Serve(ctx, flags.AdminBindAddr, admin, logger); err != nil {
			logger.Error("adminhttp: serve failed", "err", err)
		}
	}()

	go tickLoop(ctx, watcher, routine, backupRunner, logger)

	if err := serveDatagrams(ctx, flags.BindAddr, d, logger); err != nil {
		logger.Error("datagram listener: failed", "err", err)
		return 1
	}
	return 0
}

func runRecovery(flags config.Flags, logger log.Logger) error {
	kv := kvclient.NewGRPCClient()
	paths := restore.RegionPaths{
		DataPath: flags.DataPath,
		RegionFiles: map[string]string{
			"owner_map":     flags.DataPath + "/owner_map.mmap",
			"combatant_map": flags.DataPath + "/combatant_map.mmap",
			"opponent_map":  flags.DataPath + "/opponent_map.mmap",
		},
		MetadataFile: flags.DataPath + "/backup_metadata.mmap",
	}
	return restore.Run(context.Background(), kv, flags.BackupKVAddr, paths, logger)
}

// tickLoop drives the season watcher and backup routine off one
// per-second ticker. The backup trigger hands off to runner so a
// tick-triggered attempt and an admin-forced one (adminhttp's
// /forcebackup, sharing the same runner) never overlap.
func tickLoop(ctx context.Context, watcher *season.Watcher, routine *backup.Routine, runner *coop.Runner, logger log.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := watcher.Tick(now); err != nil {
				logger.Error("season: tick failed", "err", err)
			}
			maybeTriggerBackup(ctx, routine, runner, logger)
		}
	}
}

// maybeTriggerBackup starts a backup attempt in its own goroutine when
// one is due, so the ticker's one-second cadence is never blocked on a
// backup's duration. RunExclusive itself is what prevents two attempts
// from running at once; a trigger that finds one already in flight is
// simply dropped.
func maybeTriggerBackup(ctx context.Context, routine *backup.Routine, runner *coop.Runner, logger log.Logger) {
	live, err := routine.ReadLive()
	if err == nil && !routine.Due(live) {
		return
	}
	go func() {
		if ran, err := runner.RunExclusive(ctx, routine.Run); ran && err != nil {
			logger.Warn("backup: attempt failed", "err", err)
		}
	}()
}

// serveDatagrams is a minimal JSON-over-UDP front end (one JSON-encoded
// dispatch.Wrapper per datagram) so
// this repo has a runnable entry point; the real wire transport and
// codec are external collaborators.
func serveDatagrams(ctx context.Context, addr string, d *dispatch.Dispatcher, logger log.Logger) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 65536)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			logger.Warn("datagram: read failed", "err", err)
			continue
		}
		var w dispatch.Wrapper
		if err := json.Unmarshal(buf[:n], &w); err != nil {
			logger.Warn("datagram: malformed wrapper", "err", err)
			continue
		}
		resp, err := d.Handle(w)
		if err != nil {
			logger.Warn("datagram: dispatch failed", "name", w.Name, "err", err)
			continue
		}
		if _, err := conn.WriteToUDP(resp, peer); err != nil {
			logger.Warn("datagram: write failed", "err", err)
		}
	}
}
