// Package generator runs the producer side: it keeps guessing random
// 3-colorings and publishes the edges each guess had to drop, until the
// supervisor tells it to stop.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/AlephTX/aleph-tx/threecol/graph"
	"github.com/AlephTX/aleph-tx/threecol/ipc"
	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// Publisher is the minimal interface the generator needs.
type Publisher interface {
	Publish(ctx context.Context, record []byte) (int, error)
}

// Options tune a generator run. The zero value is usable.
type Options struct {
	// Seed for the coloring RNG; 0 derives one from pid and clock.
	Seed int64

	// Verbose logs every published record.
	Verbose bool

	// Stopped, if set, is polled after a dropped candidate so a generator
	// that never produces a publishable record still notices the stop flag.
	Stopped func() bool

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Run publishes candidates from a Colorer over g until the ring is
// stopped or ctx is cancelled; both end the run without error.
func Run(ctx context.Context, g *graph.Graph, pub Publisher, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano() ^ int64(os.Getpid())<<32
	}

	colorer := NewColorer(g, seed)
	buf := make([]byte, 0, shm.SlotLen)
	pid := os.Getpid()

	for {
		record, ok := colorer.Generate(buf)
		if !ok {
			if ctx.Err() != nil || (opts.Stopped != nil && opts.Stopped()) {
				return nil
			}
			continue
		}

		slot, err := pub.Publish(ctx, record)
		switch {
		case err == nil:
			if opts.Verbose {
				logger.Printf("generator [%d]: shm[%d]::%s", pid, slot, record)
			}
		case errors.Is(err, ipc.ErrStopped), errors.Is(err, shm.ErrInterrupted):
			return nil
		case errors.Is(err, shm.ErrRecordTooLarge), errors.Is(err, shm.ErrRecordInvalid):
			continue
		default:
			return fmt.Errorf("generator: publish: %w", err)
		}
	}
}
