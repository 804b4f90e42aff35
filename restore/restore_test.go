package restore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	log "github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/jacobwpeng/sectbattled/backup"
	"github.com/jacobwpeng/sectbattled/kvclient"
	"github.com/jacobwpeng/sectbattled/persist"
	"github.com/jacobwpeng/sectbattled/types"
)

// TestRestoreRoundTrip backs up a populated data directory to an
// in-memory KV, wipes the local region files, restores them, and
// checks every region file's bytes match the original snapshot
// exactly.
func TestRestoreRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	maps, err := persist.OpenOrCreateMaps(srcDir)
	require.NoError(t, err)

	require.NoError(t, maps.OwnerMap.Insert(types.NewPos(3, 4), types.Shaolin))
	require.NoError(t, maps.CombatantMap.Insert(42, types.CombatantLite{Pos: types.NewPos(3, 4), Level: 7, LastDefeatedTime: 0}))

	wantRegions := map[string][]byte{}
	for key, region := range maps.Regions() {
		wantRegions[key] = append([]byte(nil), region.Snapshot()...)
	}

	mem := kvclient.NewMemory()
	routine := backup.NewRoutine(maps, mem, "unused", log.New())
	require.NoError(t, routine.Run(context.Background()))
	require.NoError(t, maps.Close())

	dstDir := t.TempDir()
	paths := RegionPaths{
		DataPath: dstDir,
		RegionFiles: map[string]string{
			"owner_map":     filepath.Join(dstDir, "owner_map.mmap"),
			"combatant_map": filepath.Join(dstDir, "combatant_map.mmap"),
			"opponent_map":  filepath.Join(dstDir, "opponent_map.mmap"),
		},
		MetadataFile: filepath.Join(dstDir, "backup_metadata.mmap"),
	}
	require.NoError(t, Run(context.Background(), mem, "unused", paths, log.New()))

	for key, want := range wantRegions {
		got, err := os.ReadFile(paths.RegionFiles[key])
		require.NoError(t, err)
		require.Equal(t, want, got, "region %s must round-trip byte-identical", key)
	}

	metaBytes, err := os.ReadFile(paths.MetadataFile)
	require.NoError(t, err)
	meta, err := backup.Decode(metaBytes)
	require.NoError(t, err)
	require.Equal(t, backup.PrefixTick, meta.Prefix)
}

func TestRestoreFailsWithoutMetadata(t *testing.T) {
	mem := kvclient.NewMemory()
	err := Run(context.Background(), mem, "unused", RegionPaths{}, log.New())
	require.Error(t, err)
}
