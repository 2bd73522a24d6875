package main

import (
	"fmt"
	"os"
	"time"

	"github.com/d2verb/katago-sgf/internal/config"
	"github.com/d2verb/katago-sgf/internal/daemon"
	"github.com/d2verb/katago-sgf/internal/ui"
)

// stopTimeout covers the daemon's own shutdown, which waits for jobs and
// the engine.
const stopTimeout = shutdownTimeout + 5*time.Second

type StopCmd struct{}

func (c *StopCmd) Run(g *Globals) error {
	paths, cfg, err := g.load()
	if err != nil {
		return err
	}
	network, address, err := config.ParseListen(cfg.Listen)
	if err != nil {
		return err
	}

	status, err := daemon.GetProcessStatus(paths.PID, network, address)
	if err != nil {
		if status.Listening {
			ui.PrintWarning("stale daemon state detected")
			if network == "unix" {
				fmt.Printf("Manual cleanup may be needed: rm %s\n", address)
			}
		}
		return fmt.Errorf("check daemon status: %w", err)
	}

	if !status.Running {
		ui.PrintInfo("Daemon is not running")
		daemon.RemovePIDFile(paths.PID)
		if network == "unix" && !status.Listening {
			os.Remove(address)
		}
		return nil
	}

	ui.PrintInfo("Stopping daemon...")
	forced, err := daemon.StopProcess(status.PID, stopTimeout)
	if err != nil {
		return err
	}
	if forced {
		ui.PrintWarning("Daemon did not stop gracefully and was killed")
	}
	daemon.RemovePIDFile(paths.PID)
	ui.PrintSuccess("Daemon stopped")
	return nil
}
