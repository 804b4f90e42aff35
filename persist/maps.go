package persist

import (
	"fmt"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/jacobwpeng/sectbattled/types"
)

// Region sizes, fixed for the lifetime of a deployment.
const (
	OwnerMapSize      = 20 * datasize.KB
	CombatantMapSize  = 120 * datasize.MB
	OpponentMapSize   = 200 * datasize.MB
	BackupMetaSize    = 20 * datasize.KB
	ownerMapFile      = "owner_map.mmap"
	combatantMapFile  = "combatant_map.mmap"
	opponentMapFile   = "opponent_map.mmap"
	backupMetaFile    = "backup_metadata.mmap"
)

// Maps is the set of four mmap-backed regions the engine persists into:
// owner_map, combatant_map, opponent_map and backup_metadata.
type Maps struct {
	OwnerMap     *OrderedMap[types.Pos, types.SectType]
	CombatantMap *OrderedMap[types.UinType, types.CombatantLite]
	OpponentMap  *OrderedMap[types.UinType, types.OpponentLite]

	ownerRegion     *Region
	combatantRegion *Region
	opponentRegion  *Region
	metaRegion      *Region
}

func capacityFor(size datasize.ByteSize, keySize, valSize int) int {
	return int((int64(size) - headerSize) / int64(slotSize(keySize, valSize)))
}

// OwnerMapCapacity, CombatantMapCapacity and OpponentMapCapacity are the
// entry counts implied by the fixed region sizes above. The combatant
// map's count is clamped to the opponent map's, so every combatant can
// always hold an opponent_map entry.
func OwnerMapCapacity() int {
	return capacityFor(OwnerMapSize, PosKeyCodec{}.Size(), SectTypeValueCodec{}.Size())
}
func CombatantMapCapacity() int {
	c := capacityFor(CombatantMapSize, UinKeyCodec{}.Size(), CombatantLiteValueCodec{}.Size())
	if o := OpponentMapCapacity(); c > o {
		return o
	}
	return c
}
func OpponentMapCapacity() int {
	return capacityFor(OpponentMapSize, UinKeyCodec{}.Size(), OpponentLiteValueCodec{}.Size())
}

// OpenOrCreateMaps opens the four region files under dataPath, creating
// and formatting a map whose file is missing, has the wrong size or fails
// header validation; files that already exist and are valid (including
// ones written by recovery) are restored instead. It asserts the boot
// invariant that
// opponent_map.max_size() >= combatant_map.max_size().
func OpenOrCreateMaps(dataPath string) (*Maps, error) {
	if CombatantMapCapacity() > OpponentMapCapacity() {
		return nil, fmt.Errorf("persist: invariant violated: opponent_map capacity %d < combatant_map capacity %d",
			OpponentMapCapacity(), CombatantMapCapacity())
	}

	m := &Maps{}
	var err error

	m.ownerRegion, err = openOrCreateRegion(filepath.Join(dataPath, ownerMapFile), int64(OwnerMapSize))
	if err != nil {
		return nil, err
	}
	m.OwnerMap, err = openOrCreateOrdered(m.ownerRegion, OwnerMapCapacity(), PosKeyCodec{}, SectTypeValueCodec{})
	if err != nil {
		return nil, err
	}

	m.combatantRegion, err = openOrCreateRegion(filepath.Join(dataPath, combatantMapFile), int64(CombatantMapSize))
	if err != nil {
		return nil, err
	}
	m.CombatantMap, err = openOrCreateOrdered(m.combatantRegion, CombatantMapCapacity(), UinKeyCodec{}, CombatantLiteValueCodec{})
	if err != nil {
		return nil, err
	}

	m.opponentRegion, err = openOrCreateRegion(filepath.Join(dataPath, opponentMapFile), int64(OpponentMapSize))
	if err != nil {
		return nil, err
	}
	m.OpponentMap, err = openOrCreateOrdered(m.opponentRegion, OpponentMapCapacity(), UinKeyCodec{}, OpponentLiteValueCodec{})
	if err != nil {
		return nil, err
	}

	m.metaRegion, err = openOrCreateRegion(filepath.Join(dataPath, backupMetaFile), int64(BackupMetaSize))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func openOrCreateRegion(path string, size int64) (*Region, error) {
	if fileExistsWithSize(path, size) {
		return OpenRegion(path, size)
	}
	return CreateRegion(path, size)
}

func openOrCreateOrdered[K any, V any](r *Region, capacity int, kc KeyCodec[K], vc ValueCodec[V]) (*OrderedMap[K, V], error) {
	if m, err := RestoreOrderedMap(r, capacity, kc, vc); err == nil {
		return m, nil
	}
	return CreateOrderedMap(r, capacity, kc, vc)
}

// MetaRegion exposes the raw backup_metadata region for package backup.
func (m *Maps) MetaRegion() *Region { return m.metaRegion }

// Regions returns the three non-metadata regions keyed by their backup
// region_key name, used by the backup routine to snapshot and by the
// restore routine to rewrite raw files.
func (m *Maps) Regions() map[string]*Region {
	return map[string]*Region{
		"owner_map":     m.ownerRegion,
		"combatant_map": m.combatantRegion,
		"opponent_map":  m.opponentRegion,
	}
}

func (m *Maps) Close() error {
	for _, r := range []*Region{m.ownerRegion, m.combatantRegion, m.opponentRegion, m.metaRegion} {
		if r != nil {
			if err := r.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}
