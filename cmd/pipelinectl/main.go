package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/oriumgames/pipeline"
	"github.com/oriumgames/pipeline/internal/cli"
	"github.com/oriumgames/pipeline/internal/render"
	"github.com/oriumgames/pipeline/manifest"
)

// main is the entrypoint for pipelinectl.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads the manifest, builds it and prints the rendered plan.
func run(outW, logW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := cli.NewLogger(cfg.LogLevel, cfg.LogFormat, logW)

	def, err := manifest.LoadFile(cfg.ManifestPath)
	if err != nil {
		return err
	}
	bundle, err := def.Bundle()
	if err != nil {
		return err
	}
	logger.Debug("loaded manifest", "path", cfg.ManifestPath, "name", def.Name, "systems", bundle.Len())

	// Plans need no real bindings; every system is bound to its own ID.
	resolver := pipeline.ResolverFunc[pipeline.SystemID](func(id pipeline.SystemID) (pipeline.SystemID, error) {
		return id, nil
	})
	b := pipeline.NewBuilder[pipeline.SystemID](resolver,
		pipeline.WithLogger(logger),
		pipeline.WithHazardSplit(!cfg.NoHazardSplit))

	p, err := b.Bundle(bundle).Build()
	if err != nil {
		return err
	}

	fmt.Fprintln(outW, render.Plan(render.New(cfg.Color), def.Name, p))
	return nil
}
