package shm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrInterrupted is returned by a wait whose context was cancelled,
	// typically by SIGINT or SIGTERM. It is a stop request, not a failure.
	ErrInterrupted = errors.New("shm: wait interrupted")

	// ErrAborted is returned by WaitUnless when its abort condition held.
	ErrAborted = errors.New("shm: wait aborted")

	errFutexTimeout = errors.New("shm: futex timeout")
)

// DefaultPollInterval bounds a single futex sleep. Waiters re-check
// cancellation and abort conditions at least this often.
const DefaultPollInterval = 50 * time.Millisecond

// semWord is the shared state of one semaphore.
type semWord struct {
	count   uint32   // 0..4: current value
	waiters uint32   // 4..8: processes sleeping in Wait
	_       [56]byte // 8..64 padding
}

const semSize = 64

func init() {
	if unsafe.Sizeof(semWord{}) != semSize {
		panic(fmt.Sprintf("shm: semaphore word is %d bytes, expected %d", unsafe.Sizeof(semWord{}), semSize))
	}
}

// Semaphore is a named counting semaphore shared between processes.
// Its value lives in a small mapped file; blocking waits sleep on a
// futex keyed by that shared word.
type Semaphore struct {
	name string
	path string
	data []byte
	word *semWord
	poll time.Duration
}

// CreateSemaphore creates the semaphore ns_name with the given initial
// value. It fails if the semaphore already exists.
func CreateSemaphore(ns, name string, initial uint32) (*Semaphore, error) {
	path := SemaphorePath(ns, name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create semaphore %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(semSize); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("truncate semaphore %s: %w", path, err)
	}

	s, err := mapSemaphore(ns+"_"+name, path, f)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	atomic.StoreUint32(&s.word.waiters, 0)
	atomic.StoreUint32(&s.word.count, initial)
	return s, nil
}

// OpenSemaphore opens the existing semaphore ns_name.
func OpenSemaphore(ns, name string) (*Semaphore, error) {
	path := SemaphorePath(ns, name)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open semaphore %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat semaphore %s: %w", path, err)
	}
	if info.Size() != semSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrRegionSize, path, info.Size(), semSize)
	}

	return mapSemaphore(ns+"_"+name, path, f)
}

// RemoveSemaphore unlinks the semaphore ns_name. A missing semaphore is
// not an error.
func RemoveSemaphore(ns, name string) error {
	path := SemaphorePath(ns, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove semaphore %s: %w", path, err)
	}
	return nil
}

func mapSemaphore(name, path string, f *os.File) (*Semaphore, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, semSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap semaphore %s: %w", path, err)
	}
	return &Semaphore{
		name: name,
		path: path,
		data: data,
		word: (*semWord)(unsafe.Pointer(&data[0])),
		poll: DefaultPollInterval,
	}, nil
}

// Name returns the semaphore name, e.g. "3col_free".
func (s *Semaphore) Name() string { return s.name }

// SetPollInterval changes the longest single sleep inside Wait.
func (s *Semaphore) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.poll = d
	}
}

// Value returns the current count.
func (s *Semaphore) Value() int {
	if s.word == nil {
		return 0
	}
	return int(atomic.LoadUint32(&s.word.count))
}

// TryWait decrements the semaphore if it is positive and reports
// whether it did.
func (s *Semaphore) TryWait() bool {
	w := s.word
	if w == nil {
		return false
	}
	for {
		v := atomic.LoadUint32(&w.count)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&w.count, v, v-1) {
			return true
		}
	}
}

// Wait blocks until the semaphore is positive and decrements it.
// A cancelled ctx ends the wait with an error wrapping ErrInterrupted.
func (s *Semaphore) Wait(ctx context.Context) error {
	return s.WaitUnless(ctx, nil)
}

// WaitUnless is Wait that also gives up with ErrAborted as soon as
// abort reports true. abort is polled between sleeps and after every
// wake, so WakeAll makes waiters observe it promptly.
//
// An already cancelled ctx fails the wait even if the count is positive.
func (s *Semaphore) WaitUnless(ctx context.Context, abort func() bool) error {
	if s.word == nil {
		return ErrClosed
	}
	if err := s.interrupted(ctx); err != nil {
		return err
	}
	if s.TryWait() {
		return nil
	}

	w := s.word
	atomic.AddUint32(&w.waiters, 1)
	defer atomic.AddUint32(&w.waiters, ^uint32(0))

	stop := context.AfterFunc(ctx, func() {
		futexWake(&w.count, math.MaxInt32)
	})
	defer stop()

	for {
		if s.TryWait() {
			return nil
		}
		if err := s.interrupted(ctx); err != nil {
			return err
		}
		if abort != nil && abort() {
			return ErrAborted
		}
		if err := futexWait(&w.count, 0, s.poll); err != nil && err != errFutexTimeout {
			return fmt.Errorf("wait %s: %w", s.name, err)
		}
	}
}

func (s *Semaphore) interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInterrupted, s.name, context.Cause(ctx))
}

// Post increments the semaphore and wakes one waiter.
func (s *Semaphore) Post() error {
	if s.word == nil {
		return ErrClosed
	}
	w := s.word
	atomic.AddUint32(&w.count, 1)
	if atomic.LoadUint32(&w.waiters) == 0 {
		return nil
	}
	if _, err := futexWake(&w.count, 1); err != nil {
		return fmt.Errorf("post %s: %w", s.name, err)
	}
	return nil
}

// WakeAll wakes every waiter without changing the count, so each one
// re-evaluates its abort condition.
func (s *Semaphore) WakeAll() error {
	if s.word == nil {
		return ErrClosed
	}
	if _, err := futexWake(&s.word.count, math.MaxInt32); err != nil {
		return fmt.Errorf("wake %s: %w", s.name, err)
	}
	return nil
}

// Close unmaps the semaphore. The named object is left in place.
func (s *Semaphore) Close() error {
	if s.data == nil {
		return nil
	}
	data := s.data
	s.data, s.word = nil, nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap semaphore %s: %w", s.path, err)
	}
	return nil
}
