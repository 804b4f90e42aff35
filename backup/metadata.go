// Package backup implements the A/B-prefix backup state machine:
// snapshot the three content regions, connect to the remote KV,
// clear any stale keys under the target prefix, upload the new ones
// under that prefix, and commit by writing backup_metadata last. The
// previously committed prefix is left untouched until the new one is
// safely in place.
package backup

import (
	"encoding/binary"
	"fmt"

	"github.com/jacobwpeng/sectbattled/types"
)

// Magic identifies a valid backup_metadata image, matching the
// original's BackupMetadata::kMagic exactly (sect_battle_backup_metadata.h).
const Magic uint64 = 0x3d8e180672a78ca5

// MaxPrefixSize is the fixed, null-terminated prefix field width
// (original's kMaxBackupPrefixSize).
const MaxPrefixSize = 20

const metadataSize = 8 /*magic*/ + 8*3 /*three timestamps*/ + MaxPrefixSize

// Metadata is the backup_metadata record: magic, start/end time, the
// latest battlefield-reset time the season watcher stamped, and which
// of the two A/B prefixes the most recent successful backup used.
type Metadata struct {
	BackupStartTime            types.TimeStamp
	BackupEndTime               types.TimeStamp
	LatestBattleFieldResetTime types.TimeStamp
	Prefix                     string
}

// Other prefix constants: the two alternating generations.
const (
	PrefixTick = "tick"
	PrefixTock = "tock"
)

// NextPrefix swaps tick <-> tock; any other value is treated as not
// yet initialized and defaults to tick.
func NextPrefix(cur string) string {
	if cur == PrefixTick {
		return PrefixTock
	}
	return PrefixTick
}

// Encode serializes m into the fixed metadataSize-byte record layout.
func Encode(m Metadata) ([]byte, error) {
	if len(m.Prefix) >= MaxPrefixSize {
		return nil, fmt.Errorf("backup: prefix %q too long for %d-byte field", m.Prefix, MaxPrefixSize)
	}
	buf := make([]byte, metadataSize)
	binary.LittleEndian.PutUint64(buf[0:8], Magic)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.BackupStartTime))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(m.BackupEndTime))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(m.LatestBattleFieldResetTime))
	copy(buf[32:32+MaxPrefixSize], m.Prefix)
	return buf, nil
}

// Decode validates the magic and null-terminated prefix and parses a
// Metadata record, or returns an error.
func Decode(buf []byte) (Metadata, error) {
	if len(buf) < metadataSize {
		return Metadata{}, fmt.Errorf("backup: metadata buffer too small: %d < %d", len(buf), metadataSize)
	}
	magic := binary.LittleEndian.Uint64(buf[0:8])
	if magic != Magic {
		return Metadata{}, fmt.Errorf("backup: bad magic %x, want %x", magic, Magic)
	}
	m := Metadata{
		BackupStartTime:            types.TimeStamp(binary.LittleEndian.Uint64(buf[8:16])),
		BackupEndTime:               types.TimeStamp(binary.LittleEndian.Uint64(buf[16:24])),
		LatestBattleFieldResetTime: types.TimeStamp(binary.LittleEndian.Uint64(buf[24:32])),
	}
	prefixBytes := buf[32 : 32+MaxPrefixSize]
	nul := -1
	for i, b := range prefixBytes {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 {
		return Metadata{}, fmt.Errorf("backup: prefix field is not null-terminated")
	}
	m.Prefix = string(prefixBytes[:nul])
	return m, nil
}

// MetadataSize is the exact on-disk record width: magic, two 64-bit
// timestamps, a 64-bit reset timestamp, and a 20-byte prefix.
func MetadataSize() int { return metadataSize }
