package main

import (
	"errors"

	"github.com/d2verb/katago-sgf/internal/client"
	"github.com/d2verb/katago-sgf/internal/ui"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(g *Globals) error {
	paths, cfg, err := g.load()
	if err != nil {
		return err
	}
	cl, err := newClient(cfg)
	if err != nil {
		return err
	}

	status, err := cl.WithDialAttempts(1).Status()
	if errors.Is(err, client.ErrUnreachable) {
		ui.PrintStatus(ui.DaemonStatus{Logs: paths.DaemonLog})
		return errDaemonNotRunning()
	}
	if err != nil {
		return err
	}

	ui.PrintStatus(ui.DaemonStatus{
		State:  status.Engine,
		PID:    status.PID,
		Jobs:   status.Jobs,
		Listen: status.Listen,
		Logs:   paths.DaemonLog,
	})
	return nil
}
