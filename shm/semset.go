package shm

import (
	"errors"
	"fmt"
	"time"
)

// SemaphoreSet groups the three semaphores guarding the ring.
type SemaphoreSet struct {
	Free  *Semaphore // empty slots, starts at Capacity
	Used  *Semaphore // filled slots, starts at 0
	Mutex *Semaphore // generator-side exclusion, starts at 1
}

// CreateSemaphoreSet creates free, used and mutex for ns. If any of
// them cannot be created, the ones this call created are closed and
// unlinked again; pre-existing objects are never touched.
func CreateSemaphoreSet(ns string) (*SemaphoreSet, error) {
	var set SemaphoreSet
	var created []string

	specs := []struct {
		name    string
		initial uint32
		dst     **Semaphore
	}{
		{SemUsed, 0, &set.Used},
		{SemFree, Capacity, &set.Free},
		{SemMutex, 1, &set.Mutex},
	}
	for _, sp := range specs {
		sem, err := CreateSemaphore(ns, sp.name, sp.initial)
		if err != nil {
			set.Close()
			for _, name := range created {
				RemoveSemaphore(ns, name)
			}
			return nil, err
		}
		*sp.dst = sem
		created = append(created, sp.name)
	}
	return &set, nil
}

// OpenSemaphoreSet opens the existing semaphores for ns.
func OpenSemaphoreSet(ns string) (*SemaphoreSet, error) {
	var set SemaphoreSet
	var err error

	if set.Used, err = OpenSemaphore(ns, SemUsed); err == nil {
		if set.Free, err = OpenSemaphore(ns, SemFree); err == nil {
			set.Mutex, err = OpenSemaphore(ns, SemMutex)
		}
	}
	if err != nil {
		set.Close()
		return nil, err
	}
	return &set, nil
}

// RemoveSemaphoreSet unlinks all three semaphores of ns.
func RemoveSemaphoreSet(ns string) error {
	return errors.Join(
		RemoveSemaphore(ns, SemUsed),
		RemoveSemaphore(ns, SemFree),
		RemoveSemaphore(ns, SemMutex),
	)
}

// SetPollInterval applies d to every semaphore in the set.
func (s *SemaphoreSet) SetPollInterval(d time.Duration) {
	for _, sem := range s.all() {
		sem.SetPollInterval(d)
	}
}

// Close unmaps every semaphore that was opened.
func (s *SemaphoreSet) Close() error {
	var errs []error
	for _, sem := range s.all() {
		if err := sem.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close semaphores: %w", errors.Join(errs...))
	}
	return nil
}

func (s *SemaphoreSet) all() []*Semaphore {
	sems := make([]*Semaphore, 0, 3)
	for _, sem := range []*Semaphore{s.Used, s.Free, s.Mutex} {
		if sem != nil {
			sems = append(sems, sem)
		}
	}
	return sems
}
