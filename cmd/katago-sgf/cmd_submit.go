package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/d2verb/katago-sgf/internal/client"
	"github.com/d2verb/katago-sgf/internal/pathutil"
	"github.com/d2verb/katago-sgf/internal/protocol"
	"github.com/d2verb/katago-sgf/internal/ui"
)

type SubmitCmd struct {
	File          string `arg:"" predictor:"source" help:"Game record to analyze (relative to source_dir when configured)"`
	MaxVariations int    `help:"Variations added per position (default from config)"`
	MaxVisits     int    `help:"Engine visits per position (default from config)"`
}

func (c *SubmitCmd) Run(g *Globals) error {
	_, cfg, err := g.load()
	if err != nil {
		return err
	}
	cl, err := newClient(cfg)
	if err != nil {
		return err
	}

	filename := c.File
	if cfg.SourceDir == "" {
		// the daemon does not share our working directory
		if filename, err = filepath.Abs(c.File); err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
	}

	id, err := cl.Submit(protocol.SubmitParams{
		Filename:      filename,
		MaxVariations: c.MaxVariations,
		MaxVisits:     c.MaxVisits,
	})
	switch {
	case errors.Is(err, client.ErrUnreachable):
		return errDaemonNotRunning()
	case protocol.IsCode(err, protocol.CodeFileNotFound):
		return errFileNotFound(pathutil.SourcePath(c.File, cfg.SourceDir))
	case err != nil:
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Submitted %s", id))
	ui.PrintInfo(fmt.Sprintf("Output: %s", pathutil.OutputPath(id, cfg.DestinationDir)))
	return nil
}
