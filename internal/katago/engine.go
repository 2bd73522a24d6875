package katago

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	// ReadySentinel is the stderr line fragment KataGo prints once it accepts
	// queries.
	ReadySentinel = "Started, ready to begin handling requests"

	// GracefulShutdownTimeout is the time Shutdown waits after SIGTERM before
	// killing the engine.
	GracefulShutdownTimeout = 10 * time.Second

	readChunkSize = 64 * 1024
)

// State is the engine lifecycle state.
type State string

const (
	StateNotStarted State = "not-started"
	StateStarting   State = "starting"
	StateReady      State = "ready"
	StateStopped    State = "stopped"
)

// Config describes how to launch the engine.
type Config struct {
	Path           string
	AnalysisConfig string
	ExtraArgs      []string
	BufferLimit    int
}

// Args returns the engine command line arguments.
func (c Config) Args() []string {
	args := []string{"analysis"}
	if c.AnalysisConfig != "" {
		args = append(args, "-config", c.AnalysisConfig)
	}
	args = append(args, "-quit-without-waiting")
	return append(args, c.ExtraArgs...)
}

// Engine supervises one KataGo analysis process. All queries are multiplexed
// over the process's stdin; its stdout is read by a single goroutine that
// frames responses and hands them to the correlator.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	corr      *Correlator
	logWriter io.Writer
	crashes   chan error

	// mu protects state, run and lastErr.
	mu      sync.Mutex
	state   State
	run     *run
	lastErr error
}

// run is one spawned engine process.
type run struct {
	cmd      *exec.Cmd
	framer   *Framer
	ready    chan struct{}
	done     chan struct{}
	stopping atomic.Bool

	readyOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func (r *run) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *run) getErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// New creates an engine supervisor. The process is not started.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		corr:      NewCorrelator(nil, logger),
		logWriter: io.Discard,
		crashes:   make(chan error, 1),
		state:     StateNotStarted,
	}
}

// SetLogWriter sets where the engine's stderr diagnostics are copied.
func (e *Engine) SetLogWriter(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logWriter = w
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pid returns the engine process id, or 0 when no process was started.
func (e *Engine) Pid() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil || e.run.cmd.Process == nil {
		return 0
	}
	return e.run.cmd.Process.Pid
}

// Pending returns the number of turns awaiting a response.
func (e *Engine) Pending() int {
	return e.corr.Pending()
}

// Start launches the engine. It is a no-op while the engine is starting or
// ready. After Stop, Start launches a fresh process with an empty output
// buffer.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStarting || e.state == StateReady {
		return nil
	}

	cmd := exec.Command(e.cfg.Path, e.cfg.Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ProcessError{Op: ProcessOpStart, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ProcessError{Op: ProcessOpStart, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ProcessError{Op: ProcessOpStart, Err: err}
	}

	if err := cmd.Start(); err != nil {
		perr := &ProcessError{Op: ProcessOpStart, Err: err}
		e.state = StateStopped
		e.lastErr = perr
		return perr
	}

	r := &run{
		cmd:    cmd,
		framer: NewFramer(e.cfg.BufferLimit),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.run = r
	e.state = StateStarting
	e.lastErr = nil
	e.corr.SetWriter(stdin)

	e.logger.Info("engine started", "pid", cmd.Process.Pid, "path", e.cfg.Path)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		e.readStdout(r, stdout)
	}()
	go func() {
		defer readers.Done()
		e.readStderr(r, stderr, e.logWriter)
	}()
	go e.wait(r, &readers)

	return nil
}

func (e *Engine) readStdout(r *run, stdout io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			responses, ferr := r.framer.Feed(buf[:n])
			for i := range responses {
				e.corr.Dispatch(&responses[i])
			}
			if errors.Is(ferr, ErrBufferFull) {
				e.logger.Error("engine output exceeded buffer", "limit", r.framer.limit)
				r.setErr(&ProcessError{Op: ProcessOpExit, Err: ErrBufferFull})
				e.corr.FailAll(r.getErr())
				_ = r.cmd.Process.Kill()
				_, _ = io.Copy(io.Discard, stdout)
				return
			}
			if ferr != nil {
				e.logger.Warn("discarded engine output", "error", ferr)
			}
		}
		if err != nil {
			return
		}
	}
}

func (e *Engine) readStderr(r *run, stderr io.Reader, logWriter io.Writer) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		_, _ = io.WriteString(logWriter, line+"\n")
		if strings.Contains(line, ReadySentinel) {
			e.markReady(r)
		}
	}
	// Keep draining so the engine never blocks on a full stderr pipe.
	_, _ = io.Copy(logWriter, stderr)
}

func (e *Engine) markReady(r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != r || e.state != StateStarting {
		return
	}
	e.state = StateReady
	r.readyOnce.Do(func() { close(r.ready) })
	e.logger.Info("engine ready", "pid", r.cmd.Process.Pid)
}

func (e *Engine) wait(r *run, readers *sync.WaitGroup) {
	// Wait closes the pipes, so every read must finish first.
	readers.Wait()
	exitErr := r.cmd.Wait()
	if exitErr == nil {
		exitErr = errors.New("exit status 0")
	}

	requested := r.stopping.Load()
	select {
	case <-r.ready:
		if requested {
			r.setErr(ErrNotRunning)
		} else {
			r.setErr(&ProcessError{Op: ProcessOpExit, Err: fmt.Errorf("exited unexpectedly: %w", exitErr)})
		}
	default:
		if requested {
			r.setErr(&ProcessError{Op: ProcessOpReady, Err: errors.New("stopped before ready")})
		} else {
			r.setErr(&ProcessError{Op: ProcessOpReady, Err: fmt.Errorf("exited before ready: %w", exitErr)})
		}
	}
	fatal := r.getErr()

	e.mu.Lock()
	current := e.run == r
	if current {
		e.state = StateStopped
		if !requested {
			e.lastErr = fatal
		}
		e.corr.SetWriter(nil)
	}
	e.mu.Unlock()
	close(r.done)

	if requested {
		e.logger.Info("engine stopped", "pid", r.cmd.Process.Pid)
		return
	}
	e.logger.Error("engine exited", "pid", r.cmd.Process.Pid, "error", fatal)
	if current {
		e.corr.FailAll(fatal)
		e.notifyCrash(fatal)
	}
}

// notifyCrash reports an exit nobody asked for. A report already waiting to
// be received is kept.
func (e *Engine) notifyCrash(err error) {
	select {
	case e.crashes <- err:
	default:
	}
}

// Crashes returns a channel that receives the fatal error each time the
// engine exits without Stop, Shutdown or Restart asking it to, and when
// Restart fails to launch the new process.
func (e *Engine) Crashes() <-chan error {
	return e.crashes
}

// WaitReady blocks until the engine is ready to take queries. It returns the
// fatal error if the engine exits first.
func (e *Engine) WaitReady(ctx context.Context) error {
	e.mu.Lock()
	r, state, lastErr := e.run, e.state, e.lastErr
	e.mu.Unlock()

	if r == nil || state == StateStopped {
		if lastErr != nil {
			return lastErr
		}
		return ErrNotRunning
	}

	select {
	case <-r.ready:
		select {
		case <-r.done:
			return r.getErr()
		default:
			return nil
		}
	case <-r.done:
		return r.getErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the current process exits, or nil when
// no process was started.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	return e.run.done
}

// Submit sends a query and returns one completion per analyzed turn, in the
// order of q.AnalyzeTurns.
func (e *Engine) Submit(q *Query) ([]*Completion, error) {
	e.mu.Lock()
	state, lastErr := e.state, e.lastErr
	e.mu.Unlock()

	if state != StateStarting && state != StateReady {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNotRunning
	}
	return e.corr.Submit(q)
}

// Abandon forgets the completions pending for id and asks the engine to stop
// working on it.
func (e *Engine) Abandon(id string) {
	if e.corr.Abandon(id) == 0 {
		return
	}
	if err := e.corr.Terminate(id); err != nil && !errors.Is(err, ErrNotRunning) {
		e.logger.Warn("terminate query", "query", id, "error", err)
	}
}

// Stop sends SIGTERM to the engine without waiting for it to exit. Pending
// completions are left unresolved.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	if e.run == nil || e.state == StateStopped || e.state == StateNotStarted {
		return nil
	}
	e.run.stopping.Store(true)
	e.state = StateStopped
	e.corr.SetWriter(nil)

	if err := e.run.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("send SIGTERM: %w", err)
	}
	return nil
}

// Shutdown stops the engine and waits for it to exit, killing it after
// GracefulShutdownTimeout or when ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	r := e.run
	if err := e.stopLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-time.After(GracefulShutdownTimeout):
		if err := r.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill katago: %w", err)
		}
		<-r.done
		return nil
	case <-ctx.Done():
		_ = r.cmd.Process.Kill()
		return ctx.Err()
	}
}

// Restart shuts the engine down, fails every pending completion with cause,
// and starts a fresh process.
func (e *Engine) Restart(ctx context.Context, cause error) error {
	e.logger.Warn("restarting engine", "cause", cause)
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown katago: %w", err)
	}
	e.corr.FailAll(cause)
	if err := e.Start(); err != nil {
		e.notifyCrash(err)
		return err
	}
	return nil
}
