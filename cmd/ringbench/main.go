// Command ringbench pushes events through a fan-out and join pipeline
// and reports throughput.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/five-vee/ringpipe"
	"github.com/five-vee/ringpipe/metrics"
)

var (
	capacity    = flag.Int64("capacity", 1<<12, "Ring buffer capacity, a power of two.")
	producers   = flag.Int("producers", 1, "Number of producer goroutines. More than one selects the multi-producer sequencer.")
	events      = flag.Int64("events", 1<<22, "Total number of events to publish.")
	waitFlag    = flag.String("wait", "blocking", "Wait strategy: spin or blocking.")
	batch       = flag.Int64("batch", 1, "Number of slots claimed per publish.")
	metricsAddr = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :2112. Disabled when empty.")
	verbose     = flag.Bool("v", false, "Log stage lifecycle events.")
)

type sample struct {
	producer int
	value    int64
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	logger := logr.FromSlogHandler(handler)

	ws, err := parseWaitStrategy(*waitFlag)
	if err != nil {
		return err
	}
	if *producers < 1 {
		return fmt.Errorf("invalid -producers %d, must be at least 1", *producers)
	}
	if *batch < 1 || *batch >= *capacity {
		return fmt.Errorf("invalid -batch %d, must be in [1, %d)", *batch, *capacity)
	}
	mode := ringpipe.SingleProducer
	if *producers > 1 {
		mode = ringpipe.MultiProducer
	}

	var (
		sum     int64 // stage 0, handler 0
		counted int64 // stage 0, handler 1
		joined  int64 // stage 1
	)
	d, err := ringpipe.NewBuilder[sample](*capacity).
		WithProducerMode(mode).
		WithWaitStrategy(ws).
		WithLogger(logger).
		WithStage(
			ringpipe.HandlerFunc[sample](func(s *sample, _ int64, _ bool) error {
				sum += s.value
				return nil
			}),
			ringpipe.BatchHandlerFunc(func(_, _ []sample, lo, hi int64) error {
				counted += hi - lo + 1
				return nil
			}),
		).
		WithStage(ringpipe.HandlerFunc[sample](func(*sample, int64, bool) error {
			joined++
			return nil
		})).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	slog.Info("Configuration", "capacity", *capacity, "producerMode", mode, "producers", *producers,
		"events", *events, "wait", *waitFlag, "batch", *batch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gCtx)
	defer stopServing()

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector("ringbench", d.Sequencer()))
		serveMetrics(serveCtx, g, reg, *metricsAddr)
	}

	start := time.Now()
	g.Go(func() error {
		defer stopServing()
		return d.Run(gCtx)
	})
	g.Go(func() error {
		defer d.Drain()
		return produce(d, *producers, *events, *batch)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	stats := d.Sequencer().Stats()
	slog.Info("Pipeline finished",
		"events", joined,
		"elapsed", elapsed,
		"eventsPerSecond", float64(joined)/elapsed.Seconds(),
		"claims", stats.Claims,
		"claimRetries", stats.ClaimRetries,
		"backpressureWaits", stats.BackpressureWaits)

	if ctx.Err() != nil {
		slog.Info("Interrupted before all events were published")
		return nil
	}
	if want := expectedSum(*producers, *events); sum != want || counted != *events || joined != *events {
		return fmt.Errorf("pipeline lost events: sum %d want %d, counted %d, joined %d, want %d",
			sum, want, counted, joined, *events)
	}
	return nil
}

func parseWaitStrategy(name string) (ringpipe.WaitStrategy, error) {
	switch name {
	case "spin":
		return ringpipe.NewSpinWaitStrategy(), nil
	case "blocking":
		return ringpipe.NewBlockingWaitStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown wait strategy %q, must be spin or blocking", name)
	}
}

// share returns how many of total events producer p publishes.
func share(p, producers int, total int64) int64 {
	n := total / int64(producers)
	if p == 0 {
		n += total % int64(producers)
	}
	return n
}

func produce(d *ringpipe.Disruptor[sample], producers int, total, batch int64) error {
	var g errgroup.Group
	for p := range producers {
		g.Go(func() error {
			n := share(p, producers, total)
			for written := int64(0); written < n; {
				k := min(batch, n-written)
				value := written
				err := d.WriteBatch(k, func(_ int64, s *sample) {
					s.producer = p
					s.value = value
					value++
				})
				if errors.Is(err, ringpipe.ErrDrained) {
					// Halted by a signal or a failing stage.
					return nil
				}
				if err != nil {
					return err
				}
				written += k
			}
			return nil
		})
	}
	return g.Wait()
}

func expectedSum(producers int, total int64) int64 {
	var sum int64
	for p := range producers {
		n := share(p, producers, total)
		sum += n * (n - 1) / 2
	}
	return sum
}

func serveMetrics(ctx context.Context, g *errgroup.Group, reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		slog.Info("Starting metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
