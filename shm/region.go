// Package shm provides the shared memory region and the named counting
// semaphores the supervisor and its generators communicate through.
//
// Memory layout of the region (single mmap, /dev/shm/<namespace>):
//   - stop:         int32, nonzero tells every generator to exit
//   - write_cursor: int32, next slot a generator may claim
//   - ring:         64 slots × 50 bytes, NUL-terminated records
//
// Total: 3208 bytes
package shm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	Capacity  = 64          // ring slots
	SlotLen   = 50          // bytes per slot, terminator included
	MaxRecord = SlotLen - 1 // longest record a slot can hold
)

var (
	ErrRecordTooLarge = errors.New("shm: record too large for slot")
	ErrRecordInvalid  = errors.New("shm: record contains NUL byte")
	ErrRegionSize     = errors.New("shm: region size mismatch")
	ErrClosed         = errors.New("shm: closed")
)

// layout is the in-memory shape of the region.
// Field order and sizes are part of the cross-process contract.
type layout struct {
	stop        int32
	writeCursor int32
	ring        [Capacity][SlotLen]byte
}

const regionSize = 8 + Capacity*SlotLen

func init() {
	if unsafe.Sizeof(layout{}) != regionSize {
		panic(fmt.Sprintf("shm: region layout is %d bytes, expected %d", unsafe.Sizeof(layout{}), regionSize))
	}
}

// Region is a mapped view of the shared region. All field access goes
// through its methods; nothing outside this file knows the offsets.
type Region struct {
	ns   string
	path string
	data []byte
	mem  *layout
}

// CreateRegion creates, sizes and maps the region for ns.
// It fails if the region already exists.
func CreateRegion(ns string) (*Region, error) {
	path := RegionPath(ns)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create region %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(regionSize); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("truncate region %s: %w", path, err)
	}

	r, err := mapRegion(ns, path, f)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	r.Reset()
	return r, nil
}

// OpenRegion maps an existing region for ns. The backing object must
// have exactly the layout size.
func OpenRegion(ns string) (*Region, error) {
	path := RegionPath(ns)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open region %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat region %s: %w", path, err)
	}
	if info.Size() != regionSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrRegionSize, path, info.Size(), regionSize)
	}

	return mapRegion(ns, path, f)
}

// RemoveRegion unlinks the region for ns. Existing mappings stay valid
// until closed. A missing region is not an error.
func RemoveRegion(ns string) error {
	path := RegionPath(ns)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove region %s: %w", path, err)
	}
	return nil
}

func mapRegion(ns, path string, f *os.File) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, regionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap region %s: %w", path, err)
	}
	return &Region{
		ns:   ns,
		path: path,
		data: data,
		mem:  (*layout)(unsafe.Pointer(&data[0])),
	}, nil
}

// Namespace returns the namespace the region was created or opened with.
func (r *Region) Namespace() string { return r.ns }

// Path returns the backing file of the region.
func (r *Region) Path() string { return r.path }

// Stopped reports whether the stop flag is set.
func (r *Region) Stopped() bool {
	return atomic.LoadInt32(&r.mem.stop) != 0
}

// SetStop sets the stop flag. Setting it twice has no further effect.
func (r *Region) SetStop() {
	atomic.StoreInt32(&r.mem.stop, 1)
}

// Reset clears the stop flag and rewinds the write cursor.
func (r *Region) Reset() {
	atomic.StoreInt32(&r.mem.stop, 0)
	atomic.StoreInt32(&r.mem.writeCursor, 0)
}

// WriteCursor returns the index of the next slot to be written.
func (r *Region) WriteCursor() int {
	return wrap(int(atomic.LoadInt32(&r.mem.writeCursor)))
}

// WriteSlot copies record into the slot at the write cursor and advances
// the cursor. Callers must hold the mutex semaphore and a free slot.
// Records that do not fit are rejected before the slot is touched.
func (r *Region) WriteSlot(record []byte) (int, error) {
	if len(record) > MaxRecord {
		return -1, fmt.Errorf("%w: %d bytes, max %d", ErrRecordTooLarge, len(record), MaxRecord)
	}
	if bytes.IndexByte(record, 0) >= 0 {
		return -1, ErrRecordInvalid
	}

	idx := r.WriteCursor()
	slot := &r.mem.ring[idx]
	n := copy(slot[:], record)
	clear(slot[n:])

	atomic.StoreInt32(&r.mem.writeCursor, int32(wrap(idx+1)))
	return idx, nil
}

// ReadSlot copies the record held in slot idx into dst and returns the
// number of bytes copied.
func (r *Region) ReadSlot(idx int, dst []byte) int {
	slot := &r.mem.ring[wrap(idx)]
	n := bytes.IndexByte(slot[:], 0)
	if n < 0 {
		n = MaxRecord
	}
	return copy(dst, slot[:n])
}

// Close unmaps the region. The backing object is left in place.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data, r.mem = nil, nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap region %s: %w", r.path, err)
	}
	return nil
}

func wrap(i int) int {
	return ((i % Capacity) + Capacity) % Capacity
}
