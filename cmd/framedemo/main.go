package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/oriumgames/pipeline"
	"github.com/oriumgames/pipeline/internal/cli"
	"github.com/oriumgames/pipeline/internal/render"
	"github.com/oriumgames/pipeline/internal/terrain"
	"github.com/oriumgames/pipeline/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run drives the terrain workload for a fixed number of frames.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("framedemo", flag.ContinueOnError)
	flagSet.SetOutput(logW)
	frames := flagSet.Int("frames", 60, "Number of frames to run.")
	size := flagSet.Int("size", 64, "Heightfield edge length.")
	tick := flagSet.Duration("tick", 16*time.Millisecond, "Interval between frames.")
	workers := flagSet.Int("workers", 0, "Stage concurrency limit. 0 uses GOMAXPROCS.")
	logLevel := flagSet.String("log-level", "info", "Set the logging level.")
	color := flagSet.Bool("color", false, "Render the plan with colors.")
	metricsAddr := flagSet.String("metrics-addr", "", "Serve Prometheus metrics on this address while running.")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *frames < 0 {
		return fmt.Errorf("framedemo: -frames must not be negative, got %d", *frames)
	}

	logger := cli.NewLogger(*logLevel, "text", logW)
	scene := terrain.NewScene(*size, 4)

	b := pipeline.NewBuilder[pipeline.Runnable](terrain.Registry(scene, logger), pipeline.WithLogger(logger))
	p, err := b.Bundle(terrain.Bundle()).Build()
	if err != nil {
		return err
	}
	fmt.Fprintln(outW, render.Plan(render.New(*color), "terrain", p))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "framedemo")
	if *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("framedemo: metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}
	reports := make(chan pipeline.FrameReport, *frames)
	s := pipeline.NewScheduler(p,
		pipeline.WithTickRate(*tick),
		pipeline.WithWorkers(*workers),
		pipeline.WithSchedulerLogger(logger),
		pipeline.WithStageHook(m.ObserveStage),
		pipeline.WithFrameHook(func(r pipeline.FrameReport) {
			m.ObserveFrame(r)
			select {
			case reports <- r:
			default:
			}
		}),
	)

	s.Start(ctx)
	defer s.Stop()

	var total time.Duration
	for i := 0; i < *frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-reports:
			if r.Err != nil {
				return r.Err
			}
			total += r.Duration
		}
	}

	s.Stop()
	fmt.Fprintf(outW, "%d frames, mean %s, brightness %.3f\n",
		*frames, total/time.Duration(max(*frames, 1)), scene.Brightness)
	return nil
}
