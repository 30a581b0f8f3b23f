// Package supervisor owns the shared region and its semaphores. It
// drains records published by generators, keeps the smallest edge set
// seen so far and reports every strict improvement. A record with no
// edges proves the graph 3-colorable and ends the run.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlephTX/aleph-tx/threecol/config"
	"github.com/AlephTX/aleph-tx/threecol/graph"
	"github.com/AlephTX/aleph-tx/threecol/ipc"
	"github.com/AlephTX/aleph-tx/threecol/report"
	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// ErrNotRunning is returned by Run on a supervisor that already drained
// or was closed.
var ErrNotRunning = errors.New("supervisor: not running")

// Result summarizes a finished drain.
type Result struct {
	Reason Reason
	// Best is the smallest record seen; Edges is -1 if none arrived.
	Best    string
	Edges   int
	Records uint64
}

type Supervisor struct {
	cfg      *config.Config
	region   *shm.Region
	sems     *shm.SemaphoreSet
	sub      *ipc.Subscriber
	reporter report.Reporter

	state atomic.Int32

	best    int
	bestRec string
	records uint64

	stopOnce  sync.Once
	stopErr   error
	closeOnce sync.Once
	closeErr  error
}

// New creates the region and the semaphore set named by cfg.Namespace.
// Both are created exclusively: a leftover object from a crashed run
// makes New fail instead of sharing state with it. Anything New created
// is removed again if a later step fails.
func New(cfg *config.Config, reporter report.Reporter) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	if reporter == nil {
		reporter = report.Multi{}
	}
	ns := cfg.Namespace

	region, err := shm.CreateRegion(ns)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	sems, err := shm.CreateSemaphoreSet(ns)
	if err != nil {
		region.Close()
		shm.RemoveRegion(ns)
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	sems.SetPollInterval(cfg.PollInterval.Duration)

	s := &Supervisor{
		cfg:      cfg,
		region:   region,
		sems:     sems,
		sub:      ipc.NewSubscriber(region, sems),
		reporter: reporter,
		best:     math.MaxInt,
	}
	if err := s.reset(); err != nil {
		s.teardown()
		return nil, fmt.Errorf("supervisor: reset: %w", err)
	}
	s.setState(StateRunning)

	log.Printf("supervisor: region %s ready (%d slots of %d bytes)", region.Path(), shm.Capacity, shm.SlotLen)
	return s, nil
}

// reset clears stop and the write cursor under the mutex.
func (s *Supervisor) reset() error {
	if err := s.sems.Mutex.Wait(context.Background()); err != nil {
		return err
	}
	s.region.Reset()
	return s.sems.Mutex.Post()
}

func (s *Supervisor) State() State      { return State(s.state.Load()) }
func (s *Supervisor) setState(st State) { s.state.Store(int32(st)) }

// Namespace returns the name generators must open.
func (s *Supervisor) Namespace() string { return s.cfg.Namespace }

// Run drains the ring until a solvable record arrives, ctx is cancelled
// or the configured record limit is reached, then stops the generators
// and tears the shared objects down. Cancellation is a normal outcome
// and is reported through Result.Reason, not as an error.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return Result{}, ErrNotRunning
	}

	res, err := s.drain(ctx)
	log.Printf("supervisor: draining ended (%s) after %d records", res.Reason, res.Records)

	return res, errors.Join(err, s.Close())
}

func (s *Supervisor) drain(ctx context.Context) (Result, error) {
	if d := s.cfg.Supervisor.Delay.Duration; d > 0 {
		log.Printf("supervisor: waiting %s before draining", d)
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return s.result(ReasonInterrupted), nil
		case <-t.C:
		}
	}

	limit := s.cfg.Supervisor.Limit
	var buf [shm.SlotLen]byte
	for {
		if ctx.Err() != nil {
			return s.result(ReasonInterrupted), nil
		}
		n, err := s.sub.Next(ctx, buf[:])
		if err != nil {
			if errors.Is(err, shm.ErrInterrupted) {
				return s.result(ReasonInterrupted), nil
			}
			return s.result(ReasonNone), fmt.Errorf("supervisor: drain: %w", err)
		}
		s.records++

		if s.evaluate(buf[:n]) {
			return s.result(ReasonSolved), nil
		}
		if limit > 0 && s.records >= limit {
			return s.result(ReasonLimit), nil
		}
	}
}

// evaluate reports strict improvements and returns true once a record
// with no edges arrives.
func (s *Supervisor) evaluate(record []byte) bool {
	edges := graph.CountEdges(record)
	if edges >= s.best {
		return false
	}
	s.best = edges
	s.bestRec = string(record)

	if edges == 0 {
		s.reporter.Solvable()
		return true
	}
	s.reporter.Solution(edges, s.bestRec)
	return false
}

func (s *Supervisor) result(reason Reason) Result {
	r := Result{Reason: reason, Best: s.bestRec, Edges: s.best, Records: s.records}
	if s.best == math.MaxInt {
		r.Edges = -1
	}
	return r
}
