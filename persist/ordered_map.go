package persist

import (
	"encoding/binary"
	"fmt"

	"github.com/tidwall/btree"
)

// indexEntry is the unit stored in the ordering B-tree: a key plus the
// slot it currently occupies in the region.
type indexEntry[K any] struct {
	key K
	idx int
}

// magic identifies a region as a valid OrderedMap image. It is distinct
// from the backup_metadata magic (0x3d8e180672a78ca5, see package
// backup) because the two headers are never interchangeable.
const mapMagic uint64 = 0x5345435442544c4d // "SECTBTLM"

const headerSize = 8 /*magic*/ + 4 /*count*/ + 4 /*capacity*/

// KeyCodec fixes the on-disk encoding and ordering of a map's key type.
type KeyCodec[K any] interface {
	Size() int
	Encode(k K, buf []byte)
	Decode(buf []byte) K
	Less(a, b K) bool
}

// ValueCodec fixes the on-disk encoding of a map's value type.
type ValueCodec[V any] interface {
	Size() int
	Encode(v V, buf []byte)
	Decode(buf []byte) V
}

// slot layout: 1 tombstone byte (1 = live, 0 = free) + key + value.
func slotSize(keySize, valSize int) int { return 1 + keySize + valSize }

// OrderedMap is a key-ordered associative container backed by a fixed
// capacity Region. Iteration is in key order via an in-memory index
// (a github.com/tidwall/btree.BTreeG ordered by the key codec) rebuilt
// from the mapped bytes on Create/Restore; every Insert/Erase mutates
// the mapped bytes in place so a crash at any point leaves a prefix of
// committed operations visible on disk.
type OrderedMap[K any, V any] struct {
	region   *Region
	keyCodec KeyCodec[K]
	valCodec ValueCodec[V]
	slotSz   int
	capacity int

	index *btree.BTreeG[indexEntry[K]] // ordered by keyCodec.Less
	free  []int                        // free slot indices, LIFO
	count int
}

func newIndex[K any](kc KeyCodec[K]) *btree.BTreeG[indexEntry[K]] {
	return btree.NewBTreeG(func(a, b indexEntry[K]) bool {
		return kc.Less(a.key, b.key)
	})
}

// CreateOrderedMap formats a brand-new region for capacity entries of the
// given codecs and returns the empty map.
func CreateOrderedMap[K any, V any](region *Region, capacity int, kc KeyCodec[K], vc ValueCodec[V]) (*OrderedMap[K, V], error) {
	slotSz := slotSize(kc.Size(), vc.Size())
	need := int64(headerSize) + int64(capacity)*int64(slotSz)
	if need > region.Size() {
		return nil, fmt.Errorf("persist: region %s too small for capacity %d (need %d, have %d)",
			region.Path(), capacity, need, region.Size())
	}
	b := region.Bytes()
	for i := range b {
		b[i] = 0
	}
	binary.LittleEndian.PutUint64(b[0:8], mapMagic)
	binary.LittleEndian.PutUint32(b[8:12], 0)
	binary.LittleEndian.PutUint32(b[12:16], uint32(capacity))
	if err := region.Flush(); err != nil {
		return nil, err
	}
	m := &OrderedMap[K, V]{
		region:   region,
		keyCodec: kc,
		valCodec: vc,
		slotSz:   slotSz,
		capacity: capacity,
		index:    newIndex(kc),
	}
	for i := 0; i < capacity; i++ {
		m.free = append(m.free, capacity-1-i)
	}
	return m, nil
}

// RestoreOrderedMap validates the header of an existing region and
// rebuilds the in-memory free-list and ordering index by scanning every
// slot.
func RestoreOrderedMap[K any, V any](region *Region, capacity int, kc KeyCodec[K], vc ValueCodec[V]) (*OrderedMap[K, V], error) {
	b := region.Bytes()
	if len(b) < headerSize {
		return nil, fmt.Errorf("persist: region %s too small for header", region.Path())
	}
	magic := binary.LittleEndian.Uint64(b[0:8])
	if magic != mapMagic {
		return nil, fmt.Errorf("persist: region %s bad magic %x", region.Path(), magic)
	}
	storedCap := int(binary.LittleEndian.Uint32(b[12:16]))
	if storedCap != capacity {
		return nil, fmt.Errorf("persist: region %s capacity mismatch: stored %d, want %d", region.Path(), storedCap, capacity)
	}
	slotSz := slotSize(kc.Size(), vc.Size())
	m := &OrderedMap[K, V]{
		region:   region,
		keyCodec: kc,
		valCodec: vc,
		slotSz:   slotSz,
		capacity: capacity,
		index:    newIndex(kc),
	}
	count := 0
	for i := 0; i < capacity; i++ {
		off := headerSize + i*slotSz
		slot := b[off : off+slotSz]
		if slot[0] == 1 {
			k := kc.Decode(slot[1 : 1+kc.Size()])
			m.index.Set(indexEntry[K]{key: k, idx: i})
			count++
		} else {
			m.free = append(m.free, i)
		}
	}
	m.count = count
	return m, nil
}

func (m *OrderedMap[K, V]) slotBytes(i int) []byte {
	off := headerSize + i*m.slotSz
	return m.region.Bytes()[off : off+m.slotSz]
}

func (m *OrderedMap[K, V]) writeCount() {
	binary.LittleEndian.PutUint32(m.region.Bytes()[8:12], uint32(m.count))
}

// Size returns the number of live entries.
func (m *OrderedMap[K, V]) Size() int { return m.count }

// MaxSize returns the map's fixed capacity.
func (m *OrderedMap[K, V]) MaxSize() int { return m.capacity }

func (m *OrderedMap[K, V]) lookup(k K) (int, bool) {
	e, ok := m.index.Get(indexEntry[K]{key: k})
	return e.idx, ok
}

// Find looks up k, returning its value and whether it was present.
func (m *OrderedMap[K, V]) Find(k K) (V, bool) {
	var zero V
	idx, ok := m.lookup(k)
	if !ok {
		return zero, false
	}
	slot := m.slotBytes(idx)
	return m.valCodec.Decode(slot[1+m.keyCodec.Size():]), true
}

// Insert adds or overwrites k -> v. Returns an error if the map is full
// and k is not already present.
func (m *OrderedMap[K, V]) Insert(k K, v V) error {
	if idx, ok := m.lookup(k); ok {
		m.encodeSlot(idx, k, v)
		return nil
	}
	if len(m.free) == 0 {
		return fmt.Errorf("persist: map at capacity (%d)", m.capacity)
	}
	idx := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]
	m.encodeSlot(idx, k, v)
	m.index.Set(indexEntry[K]{key: k, idx: idx})
	m.count++
	m.writeCount()
	return nil
}

func (m *OrderedMap[K, V]) encodeSlot(idx int, k K, v V) {
	slot := m.slotBytes(idx)
	slot[0] = 1
	m.keyCodec.Encode(k, slot[1:1+m.keyCodec.Size()])
	m.valCodec.Encode(v, slot[1+m.keyCodec.Size():])
}

// Erase removes k, if present.
func (m *OrderedMap[K, V]) Erase(k K) {
	idx, ok := m.lookup(k)
	if !ok {
		return
	}
	slot := m.slotBytes(idx)
	slot[0] = 0
	m.index.Delete(indexEntry[K]{key: k})
	m.free = append(m.free, idx)
	m.count--
	m.writeCount()
}

// Ascend iterates all entries in key order, stopping early if fn returns
// false.
func (m *OrderedMap[K, V]) Ascend(fn func(k K, v V) bool) {
	m.index.Scan(func(e indexEntry[K]) bool {
		slot := m.slotBytes(e.idx)
		v := m.valCodec.Decode(slot[1+m.keyCodec.Size():])
		return fn(e.key, v)
	})
}

// AscendRange iterates entries with key in [lo, hi], in key order.
func (m *OrderedMap[K, V]) AscendRange(lo, hi K, fn func(k K, v V) bool) {
	m.index.Ascend(indexEntry[K]{key: lo}, func(e indexEntry[K]) bool {
		if m.keyCodec.Less(hi, e.key) {
			return false
		}
		slot := m.slotBytes(e.idx)
		v := m.valCodec.Decode(slot[1+m.keyCodec.Size():])
		return fn(e.key, v)
	})
}
