// Package ipc implements the two sides of the ring protocol: generators
// publish records through a Publisher, the supervisor drains them with
// a Subscriber. Both only ever touch the ring through shm.Region and
// order their accesses with the free/used/mutex semaphores.
package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// ErrStopped is returned by Publish once the supervisor has set the
// stop flag. The generator should exit successfully.
var ErrStopped = errors.New("ipc: stopped")

// Publisher writes records into the ring on behalf of one generator.
type Publisher struct {
	region *shm.Region
	sems   *shm.SemaphoreSet

	// inCritical is called with +1/-1 around the mutex-guarded section.
	// Tests use it to count concurrent holders.
	inCritical func(delta int)
}

// NewPublisher returns a Publisher over an opened region and semaphore set.
func NewPublisher(region *shm.Region, sems *shm.SemaphoreSet) *Publisher {
	return &Publisher{region: region, sems: sems}
}

// Publish claims a free slot and writes record into it.
//
// The stop flag is checked under the mutex before any free slot is
// claimed; a generator waiting for a free slot also gives up as soon as
// stop becomes visible. Records that cannot fit a slot are rejected
// before any shared state is touched.
//
// Returned errors: ErrStopped, shm.ErrRecordTooLarge/ErrRecordInvalid
// (discard and retry), shm.ErrInterrupted (ctx cancelled), anything else
// is a primitive failure.
func (p *Publisher) Publish(ctx context.Context, record []byte) (int, error) {
	if len(record) > shm.MaxRecord {
		return -1, fmt.Errorf("%w: %d bytes, max %d", shm.ErrRecordTooLarge, len(record), shm.MaxRecord)
	}
	if bytes.IndexByte(record, 0) >= 0 {
		return -1, shm.ErrRecordInvalid
	}

	if err := p.sems.Mutex.Wait(ctx); err != nil {
		return -1, err
	}
	p.enter(1)

	slot, err := p.publishLocked(ctx, record)

	p.enter(-1)
	if perr := p.sems.Mutex.Post(); perr != nil {
		return -1, errors.Join(err, perr)
	}
	return slot, err
}

// publishLocked runs with the mutex held.
func (p *Publisher) publishLocked(ctx context.Context, record []byte) (int, error) {
	if p.region.Stopped() {
		return -1, ErrStopped
	}

	if err := p.sems.Free.WaitUnless(ctx, p.region.Stopped); err != nil {
		if errors.Is(err, shm.ErrAborted) {
			return -1, ErrStopped
		}
		return -1, err
	}

	slot, err := p.region.WriteSlot(record)
	if err != nil {
		// Give the slot back untouched.
		if perr := p.sems.Free.Post(); perr != nil {
			return -1, errors.Join(err, perr)
		}
		return -1, err
	}

	if err := p.sems.Used.Post(); err != nil {
		return -1, err
	}
	return slot, nil
}

func (p *Publisher) enter(delta int) {
	if p.inCritical != nil {
		p.inCritical(delta)
	}
}
