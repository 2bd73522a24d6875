package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/d2verb/katago-sgf/internal/daemon"
	"github.com/d2verb/katago-sgf/internal/katago"
	"github.com/d2verb/katago-sgf/internal/logging"
	"github.com/d2verb/katago-sgf/internal/pathutil"
	"github.com/d2verb/katago-sgf/internal/protocol"
	"github.com/d2verb/katago-sgf/internal/ui"
)

type AnalyzeCmd struct {
	Files          []string `arg:"" predictor:"sgf" help:"Game records to analyze"`
	MaxVariations  int      `help:"Variations added per position (0 adds every candidate)"`
	MaxVisits      int      `help:"Engine visits per position (default from config)"`
	DestinationDir string   `short:"o" type:"path" help:"Directory for analyzed records (default from config)"`
	Parallel       int      `short:"j" default:"4" help:"Files analyzed at once"`
	Verbose        bool     `short:"v" help:"Log engine and job events to stderr"`
}

func (c *AnalyzeCmd) Run(g *Globals) error {
	paths, cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelInfo
	}
	logger := logging.NewLoggerWithLevel(os.Stderr, level)

	engineLog := logging.NewRotatingWriter(logging.DefaultConfig(paths.EngineLog))
	defer engineLog.Close()

	eng := katago.New(engineConfig(cfg), logger)
	eng.SetLogWriter(engineLog)
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Shutdown(context.Background())

	jc := jobConfig(cfg)
	jc.SourceDir = ""
	jc.MaxVariations = -1 // unlimited unless the flag is set
	if c.MaxVariations > 0 {
		jc.MaxVariations = c.MaxVariations
	}
	if c.DestinationDir != "" {
		jc.DestinationDir = c.DestinationDir
	}
	d := daemon.New(jc, eng, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	files := lo.Uniq(c.Files)
	var failed atomic.Int32
	var eg errgroup.Group
	eg.SetLimit(max(c.Parallel, 1))
	for _, file := range files {
		eg.Go(func() error {
			err := d.Analyze(ctx, protocol.SubmitParams{Filename: file, MaxVisits: c.MaxVisits})
			if err != nil {
				failed.Add(1)
				ui.PrintError(fmt.Sprintf("%s: %v", file, err))
				return nil
			}
			ui.PrintSuccess(fmt.Sprintf("%s -> %s", file, pathutil.OutputPath(file, jc.DestinationDir)))
			return nil
		})
	}
	eg.Wait()

	if n := int(failed.Load()); n > 0 {
		return errFilesFailed(n, len(files))
	}
	return nil
}
