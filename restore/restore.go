// Package restore fetches backup_metadata and each content region
// from the remote KV, writes them to the local region files, and
// exits - the next normal startup finds the files already populated
// and restores rather than creates.
package restore

import (
	"context"
	"fmt"
	"sort"

	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/backup"
	"github.com/jacobwpeng/sectbattled/kvclient"
	"github.com/jacobwpeng/sectbattled/persist"
)

// RegionPaths maps each content region's key to the local file path the
// fetched bytes should be written to (owner_map.mmap etc. under the
// configured data_path), plus the metadata file path.
type RegionPaths struct {
	DataPath     string
	RegionFiles  map[string]string // region key -> file path
	MetadataFile string
}

// Run executes the full restore: connect, fetch metadata, fetch every
// content region (concatenating multi-part uploads in order), write
// raw files. There is no timeout and no retry - any KV error aborts
// immediately and the operator is expected to kill the process and
// retry the whole recovery-mode launch.
func Run(ctx context.Context, kv kvclient.Client, addr string, paths RegionPaths, logger log.Logger) error {
	if err := kv.Connect(ctx, addr); err != nil {
		return fmt.Errorf("restore: connect: %w", err)
	}

	metaBytes, found, err := kv.Get(ctx, "backup_metadata")
	if err != nil {
		return fmt.Errorf("restore: fetch metadata: %w", err)
	}
	if !found {
		return fmt.Errorf("restore: no backup_metadata found at %s", addr)
	}
	meta, err := backup.Decode(metaBytes)
	if err != nil {
		return fmt.Errorf("restore: decode metadata: %w", err)
	}
	logger.Info("restore: fetched metadata", "prefix", meta.Prefix, "backup_end_time", meta.BackupEndTime)

	for regionKey, path := range paths.RegionFiles {
		data, err := fetchRegion(ctx, kv, meta.Prefix, regionKey)
		if err != nil {
			return fmt.Errorf("restore: fetch region %s: %w", regionKey, err)
		}
		if err := persist.WriteRawToFile(path, data); err != nil {
			return fmt.Errorf("restore: write region %s: %w", regionKey, err)
		}
		logger.Info("restore: wrote region", "region", regionKey, "bytes", len(data))
	}

	if err := persist.WriteRawToFile(paths.MetadataFile, metaBytes); err != nil {
		return fmt.Errorf("restore: write metadata file: %w", err)
	}
	logger.Info("restore: complete, process should now exit")
	return nil
}

// fetchRegion prefix-scans "{prefix}_{regionKey}" and either reads the
// single whole-region value or concatenates the "_1".."_n" parts in
// order.
func fetchRegion(ctx context.Context, kv kvclient.Client, prefix, regionKey string) ([]byte, error) {
	base := fmt.Sprintf("%s_%s", prefix, regionKey)
	var keys []string
	if err := kv.GetForwardMatchKeys(ctx, base, 0, func(key string) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("restore: no keys found for region %s under prefix %s", regionKey, prefix)
	}
	if len(keys) == 1 {
		data, found, err := kv.Get(ctx, keys[0])
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("restore: key %s vanished mid-scan", keys[0])
		}
		return data, nil
	}

	// Every key is base + "_" + a part number without leading zeros, so a
	// shorter key is a smaller part; equal lengths compare as text.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	var out []byte
	for _, k := range keys {
		data, found, err := kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("restore: key %s vanished mid-scan", k)
		}
		out = append(out, data...)
	}
	return out, nil
}
