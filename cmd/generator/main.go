// Command generator attaches to a running supervisor's ring and keeps
// publishing the edges that random 3-colorings of the given graph leave
// monochromatic, until the supervisor stops it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlephTX/aleph-tx/threecol/config"
	"github.com/AlephTX/aleph-tx/threecol/generator"
	"github.com/AlephTX/aleph-tx/threecol/graph"
	"github.com/AlephTX/aleph-tx/threecol/ipc"
	"github.com/AlephTX/aleph-tx/threecol/shm"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s EDGE1...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  EDGE is U-V with non-negative integer vertices, e.g. 0-1 1-2 2-0\n")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code.
func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	if args[0] == "-h" || args[0] == "--help" {
		usage()
		return 0
	}
	if err := generate(args); err != nil {
		log.Printf("generator [%d]: %v", os.Getpid(), err)
		return 1
	}
	return 0
}

// generate parses the graph before touching any shared object.
func generate(args []string) error {
	g, err := graph.Parse(args)
	if err != nil {
		usage()
		return err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	region, err := shm.OpenRegion(cfg.Namespace)
	if err != nil {
		return fmt.Errorf("is the supervisor running? %w", err)
	}
	defer region.Close()

	sems, err := shm.OpenSemaphoreSet(cfg.Namespace)
	if err != nil {
		return err
	}
	defer sems.Close()
	sems.SetPollInterval(cfg.PollInterval.Duration)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return generator.Run(ctx, g, ipc.NewPublisher(region, sems), generator.Options{
		Seed:    cfg.Generator.Seed,
		Verbose: cfg.Generator.Verbose,
		Stopped: region.Stopped,
	})
}
