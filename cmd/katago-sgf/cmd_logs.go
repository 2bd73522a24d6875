package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

type LogsCmd struct {
	Follow bool `short:"f" help:"Follow log output in real-time (tail -f)"`
	Engine bool `short:"e" help:"Show the engine's diagnostic log instead of the daemon log"`
	Lines  int  `short:"n" default:"50" help:"Number of lines to show"`
}

func (c *LogsCmd) Run() error {
	paths, err := getPaths()
	if err != nil {
		return err
	}

	logPath := paths.DaemonLog
	if c.Engine {
		logPath = paths.EngineLog
	}
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nHint: Start the daemon first with 'katago-sgf start'", logPath)
	}

	tailPath, err := exec.LookPath("tail")
	if err != nil {
		return fmt.Errorf("tail command not found in PATH (install coreutils or similar)")
	}

	// Replace current process with tail
	return syscall.Exec(tailPath, c.tailArgs(logPath), os.Environ())
}

func (c *LogsCmd) tailArgs(logPath string) []string {
	args := []string{"tail", "-n", fmt.Sprint(c.Lines)}
	if c.Follow {
		args = append(args, "-f")
	}
	return append(args, logPath)
}
