package supervisor

import (
	"errors"
	"log"

	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// Stop asks every generator to exit. It sets the stop flag, posts one
// free slot for the generator that may hold the mutex while waiting on
// a full ring, and wakes any other free waiter so it rechecks the flag.
// Generators queued on the mutex see the flag once they acquire it.
//
// The stop flag is written without taking the mutex: a generator may be
// holding it while blocked on free, which the supervisor no longer
// drains.
func (s *Supervisor) Stop() error {
	s.stopOnce.Do(func() {
		s.setState(StateStopping)
		s.region.SetStop()
		s.stopErr = errors.Join(s.sems.Free.Post(), s.sems.Free.WakeAll())
		log.Printf("supervisor: stop flag set")
	})
	return s.stopErr
}

// Close stops the generators if that has not happened yet, then unmaps
// and unlinks the region and the three semaphores. Generators still
// attached keep their mappings until they exit. Close is idempotent.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		err := s.Stop()
		s.closeErr = errors.Join(err, s.teardown())
		s.setState(StateTornDown)
		log.Printf("supervisor: removed %s", s.region.Path())
	})
	return s.closeErr
}

func (s *Supervisor) teardown() error {
	ns := s.cfg.Namespace
	return errors.Join(
		s.region.Close(),
		shm.RemoveRegion(ns),
		s.sems.Close(),
		shm.RemoveSemaphoreSet(ns),
	)
}
