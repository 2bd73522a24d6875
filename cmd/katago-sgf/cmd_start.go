package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/d2verb/katago-sgf/internal/config"
	"github.com/d2verb/katago-sgf/internal/daemon"
	"github.com/d2verb/katago-sgf/internal/katago"
	"github.com/d2verb/katago-sgf/internal/logging"
	"github.com/d2verb/katago-sgf/internal/ui"
)

const (
	startupWaitAttempts = 50
	startupWaitDelay    = 100 * time.Millisecond
	shutdownTimeout     = 30 * time.Second
)

var (
	engineRestartAttempts uint = 3
	engineRestartDelay         = time.Second
)

var errNotListening = errors.New("daemon not listening yet")

type StartCmd struct {
	Foreground bool `help:"Run the daemon in the foreground"`
}

func (c *StartCmd) Run(g *Globals) error {
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
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if status.Running {
		ui.PrintInfo(fmt.Sprintf("Daemon is already running (PID: %d)", status.PID))
		return nil
	}
	if status.PID > 0 {
		daemon.RemovePIDFile(paths.PID)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if c.Foreground {
		return runDaemon(paths, cfg, network, address)
	}
	return startBackground(g, paths, network, address)
}

func startBackground(g *Globals, paths *config.Paths, network, address string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"start", "--foreground"}
	if g.ConfigFile != "" {
		args = append(args, "--config", g.ConfigFile)
	}

	cmd := exec.Command(exe, args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // detach from the terminal
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	err = retry.Do(
		func() error {
			select {
			case err := <-exited:
				return retry.Unrecoverable(fmt.Errorf("daemon exited during startup (%v), check logs: %s", err, paths.DaemonLog))
			default:
			}
			if !daemon.IsListening(network, address) {
				return errNotListening
			}
			return nil
		},
		retry.Attempts(startupWaitAttempts),
		retry.Delay(startupWaitDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, errNotListening) {
		return fmt.Errorf("daemon did not start within %s, check logs: %s", startupWaitAttempts*startupWaitDelay, paths.DaemonLog)
	}
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Daemon started (PID: %d)", cmd.Process.Pid))
	ui.PrintInfo(fmt.Sprintf("Logs: %s", paths.DaemonLog))
	return nil
}

func runDaemon(paths *config.Paths, cfg *config.Config, network, address string) error {
	files, err := logging.OpenFiles(paths.DaemonLog, paths.EngineLog)
	if err != nil {
		return err
	}
	defer files.Close()
	logger := logging.NewLogger(files.Daemon)

	if err := daemon.WritePIDFile(paths.PID); err != nil {
		return err
	}
	defer daemon.RemovePIDFile(paths.PID)

	eng := katago.New(engineConfig(cfg), logger)
	eng.SetLogWriter(files.Engine)
	if err := eng.Start(); err != nil {
		logger.Error("start engine", "error", err)
		return err
	}

	d := daemon.New(jobConfig(cfg), eng, logger)
	server := daemon.NewServer(d, network, address, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		logger.Error("start server", "error", err)
		eng.Shutdown(context.Background())
		return err
	}
	logger.Info("daemon started", "pid", os.Getpid(), "listen", cfg.Listen)

	runErr := superviseEngine(ctx, eng, logger)

	logger.Info("daemon stopping")
	if err := server.Stop(); err != nil {
		logger.Warn("stop server", "error", err)
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := d.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs still running at shutdown", "error", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Warn("stop engine", "error", err)
	}
	logger.Info("daemon stopped")
	return runErr
}

// supervisedEngine is the part of *katago.Engine the daemon keeps alive.
type supervisedEngine interface {
	Start() error
	WaitReady(ctx context.Context) error
	Crashes() <-chan error
}

// superviseEngine restarts the engine each time it crashes, until ctx is
// done. Work pending at the crash has already failed. Restarts the daemon
// asks for itself are not crashes.
func superviseEngine(ctx context.Context, eng supervisedEngine, logger *slog.Logger) error {
	for {
		var crash error
		select {
		case <-ctx.Done():
			return nil
		case crash = <-eng.Crashes():
		}

		logger.Error("engine exited unexpectedly, restarting", "error", crash)
		err := retry.Do(
			func() error {
				if err := eng.Start(); err != nil {
					return err
				}
				return eng.WaitReady(ctx)
			},
			retry.Context(ctx),
			retry.Attempts(engineRestartAttempts),
			retry.Delay(engineRestartDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.OnRetry(func(n uint, err error) {
				logger.Warn("engine restart failed", "attempt", n+1, "error", err)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("restart engine: %w", err)
		}
		logger.Info("engine restarted")
	}
}
