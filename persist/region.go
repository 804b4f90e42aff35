// Package persist implements the mmap-backed ordered maps the battlefield
// engine is persisted into: owner_map, combatant_map, opponent_map and the
// single-record backup_metadata region. Every region is a fixed-size file
// mapped once at process start (or recovery) and kept mapped for the
// lifetime of the process.
package persist

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Region owns a fixed-size memory-mapped file for the lifetime of the
// process. Every mutation to Bytes() is visible to the OS page cache
// immediately and survives a crash as whatever prefix of writes the
// kernel had flushed; no cross-key transactional guarantee is offered or
// required.
type Region struct {
	path string
	file *os.File
	m    mmap.MMap
	size int64
}

// CreateRegion creates (or truncates) path to exactly size bytes and maps
// it. Callers format the header and initial contents afterward with
// CreateOrderedMap (or, for backup_metadata, by writing the record).
func CreateRegion(path string, size int64) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("persist: create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("persist: truncate %s: %w", path, err)
	}
	return mapRegion(f, path, size)
}

// OpenRegion maps an existing region file. The file must already be
// exactly size bytes. The map on an opened region is restored, or
// formatted afresh by CreateOrderedMap if its header fails validation.
func OpenRegion(path string, size int64) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != size {
		f.Close()
		return nil, fmt.Errorf("persist: %s has size %d, want %d", path, fi.Size(), size)
	}
	return mapRegion(f, path, size)
}

func mapRegion(f *os.File, path string, size int64) (*Region, error) {
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("persist: mmap %s: %w", path, err)
	}
	return &Region{path: path, file: f, m: m, size: size}, nil
}

// Bytes returns the mapped region in place; writes through this slice are
// writes to the file.
func (r *Region) Bytes() []byte { return r.m }

// Snapshot returns an owned copy of the region's current bytes, used by
// the backup routine to take an atomic-at-this-instant copy before any
// network I/O begins.
func (r *Region) Snapshot() []byte {
	cp := make([]byte, len(r.m))
	copy(cp, r.m)
	return cp
}

// WriteRaw overwrites the whole region with data, used by the restore
// routine. len(data) must equal the region size.
func (r *Region) WriteRaw(data []byte) error {
	if int64(len(data)) != r.size {
		return fmt.Errorf("persist: WriteRaw size mismatch: got %d want %d", len(data), r.size)
	}
	copy(r.m, data)
	return r.m.Flush()
}

func (r *Region) Flush() error { return r.m.Flush() }

func (r *Region) Close() error {
	if err := r.m.Unmap(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

func (r *Region) Path() string { return r.path }
func (r *Region) Size() int64  { return r.size }

// WriteRawToFile truncates the file at path to data and writes it,
// without requiring a live mmap — used by the restore routine before
// normal startup has opened any region.
func WriteRawToFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func fileExistsWithSize(path string, size int64) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Size() == size
}
