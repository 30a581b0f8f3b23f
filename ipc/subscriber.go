package ipc

import (
	"context"

	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// Subscriber drains the ring for the supervisor. There is exactly one
// per region; it keeps its own read cursor, which advances in lockstep
// with the generators' write cursor.
type Subscriber struct {
	region  *shm.Region
	sems    *shm.SemaphoreSet
	readPos int
}

// NewSubscriber returns a Subscriber starting at slot 0.
func NewSubscriber(region *shm.Region, sems *shm.SemaphoreSet) *Subscriber {
	return &Subscriber{region: region, sems: sems}
}

// Next waits for a filled slot, copies its record into buf and hands
// the slot back to the generators. It returns the record length.
//
// A cancelled ctx returns an error wrapping shm.ErrInterrupted without
// consuming a slot.
func (s *Subscriber) Next(ctx context.Context, buf []byte) (int, error) {
	if err := s.sems.Used.Wait(ctx); err != nil {
		return 0, err
	}

	n := s.region.ReadSlot(s.readPos, buf)
	s.readPos = (s.readPos + 1) % shm.Capacity

	if err := s.sems.Free.Post(); err != nil {
		return n, err
	}
	return n, nil
}

// ReadPos returns the index of the next slot Next will read.
func (s *Subscriber) ReadPos() int { return s.readPos }
