// Command supervisor creates the shared ring, drains the records that
// generators publish and prints every smaller edge set it sees. It
// exits once a generator finds a proper 3-coloring or on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AlephTX/aleph-tx/threecol/config"
	"github.com/AlephTX/aleph-tx/threecol/report"
	"github.com/AlephTX/aleph-tx/threecol/supervisor"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  environment: %s, %s, %s\n", config.EnvConfig, config.EnvNamespace, config.EnvReportAddr)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code. Results are printed to stdout.
func run(args []string, stdout io.Writer) int {
	if len(args) > 0 {
		usage()
		if len(args) == 1 && (args[0] == "-h" || args[0] == "--help") {
			return 0
		}
		return 1
	}
	if err := supervise(stdout); err != nil {
		log.Printf("supervisor: %v", err)
		return 1
	}
	return 0
}

func supervise(stdout io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reporters := report.Multi{report.NewPrinter(stdout)}
	var hub *report.Hub
	if cfg.Supervisor.ReportAddr != "" {
		hub = report.NewHub()
		reporters = append(reporters, hub)
	}

	sup, err := supervisor.New(cfg, reporters)
	if err != nil {
		return err
	}
	defer sup.Close()
	log.Printf("🎨 supervisor: namespace %q, waiting for generators", cfg.Namespace)

	g, gctx := errgroup.WithContext(ctx)
	drained := make(chan struct{})

	g.Go(func() error {
		defer close(drained)
		res, err := sup.Run(gctx)
		if err != nil {
			return err
		}
		if res.Edges > 0 {
			log.Printf("supervisor: best has %d edges: %s", res.Edges, res.Best)
		}
		return nil
	})

	if hub != nil {
		srv := &http.Server{Addr: cfg.Supervisor.ReportAddr, Handler: hub}
		g.Go(func() error {
			log.Printf("📡 supervisor: report stream on ws://%s", cfg.Supervisor.ReportAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("report server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-drained:
			case <-gctx.Done():
			}
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
