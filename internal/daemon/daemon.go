// Package daemon implements the katago-sgf daemon: a job manager that
// analyzes game records on one shared engine, and the socket server that
// accepts jobs.
package daemon

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/d2verb/katago-sgf/internal/analysis"
	"github.com/d2verb/katago-sgf/internal/katago"
	"github.com/d2verb/katago-sgf/internal/pathutil"
	"github.com/d2verb/katago-sgf/internal/protocol"
	"github.com/d2verb/katago-sgf/internal/sgf"
)

// engine is the part of *katago.Engine the job manager drives.
type engine interface {
	WaitReady(ctx context.Context) error
	Submit(q *katago.Query) ([]*katago.Completion, error)
	Abandon(id string)
	Restart(ctx context.Context, cause error) error
	State() katago.State
	Pid() int
}

// restartTimeout bounds an engine restart after a job timeout.
const restartTimeout = katago.GracefulShutdownTimeout + 5*time.Second

// ErrAlreadyActive is returned by Analyze when the file is already being
// analyzed.
var ErrAlreadyActive = errors.New("file is already being analyzed")

// FileNotFoundError is returned when a submitted game record does not exist.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// IsFileNotFound reports whether err is a FileNotFoundError.
func IsFileNotFound(err error) bool {
	var fe *FileNotFoundError
	return errors.As(err, &fe)
}

// Config holds the job defaults and file locations.
type Config struct {
	SourceDir      string
	DestinationDir string
	MaxVariations  int
	MaxVisits      int
	JobTimeout     time.Duration // zero means no timeout
}

// Daemon manages analysis jobs. A job is keyed by the filename it was
// submitted with; at most one job per filename is active at a time.
type Daemon struct {
	cfg    Config
	engine engine
	logger *slog.Logger
	ids    *sgf.IDCounter

	// mu protects jobs. Checking for an active job and marking a new one
	// happen under one lock.
	mu   sync.Mutex
	jobs map[string]*protocol.Job

	restartMu sync.Mutex

	inflight sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc

	now func() time.Time
}

// New creates a job manager that runs every job on eng.
func New(cfg Config, eng engine, logger *slog.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		cfg:     cfg,
		engine:  eng,
		logger:  logger,
		ids:     &sgf.IDCounter{},
		jobs:    make(map[string]*protocol.Job),
		baseCtx: ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Submit schedules an analysis of params.Filename and returns its job id.
// Submitting a file that is already active returns the existing id without
// scheduling it again. A missing file is reported as *FileNotFoundError.
func (d *Daemon) Submit(params protocol.SubmitParams) (string, error) {
	job, created, err := d.activate(params)
	if err != nil {
		return "", err
	}
	if !created {
		d.logger.Info("job already active", "job", job.Filename)
		return job.Filename, nil
	}

	go func() {
		d.finish(job.Filename, d.run(d.baseCtx, job))
	}()
	return job.Filename, nil
}

// Analyze runs one job to completion and returns its error. It fails with
// ErrAlreadyActive when the file is already active.
func (d *Daemon) Analyze(ctx context.Context, params protocol.SubmitParams) error {
	job, created, err := d.activate(params)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%s: %w", job.Filename, ErrAlreadyActive)
	}

	err = d.run(ctx, job)
	d.finish(job.Filename, err)
	return err
}

// activate returns the job already active for params.Filename, or checks
// that the source exists and marks a new job active with default limits
// applied.
func (d *Daemon) activate(params protocol.SubmitParams) (protocol.Job, bool, error) {
	if params.Filename == "" {
		return protocol.Job{}, false, errors.New("filename is required")
	}
	if params.MaxVariations <= 0 {
		params.MaxVariations = d.cfg.MaxVariations
	}
	if params.MaxVisits <= 0 {
		params.MaxVisits = d.cfg.MaxVisits
	}

	// The check, the stat and the insert happen under one lock so an active
	// job is found even after its source file is gone.
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.jobs[params.Filename]; ok {
		return *existing, false, nil
	}

	src := pathutil.SourcePath(params.Filename, d.cfg.SourceDir)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return protocol.Job{}, false, &FileNotFoundError{Path: src}
		}
		return protocol.Job{}, false, fmt.Errorf("stat %s: %w", src, err)
	}

	job := &protocol.Job{
		Filename:      params.Filename,
		MaxVariations: params.MaxVariations,
		MaxVisits:     params.MaxVisits,
		Status:        protocol.JobPending,
		SubmittedAt:   d.now(),
	}
	d.jobs[job.Filename] = job
	d.inflight.Add(1)
	d.logger.Info("job submitted", "job", job.Filename, "max_variations", job.MaxVariations, "max_visits", job.MaxVisits)
	return *job, true, nil
}

func (d *Daemon) finish(filename string, err error) {
	d.mu.Lock()
	delete(d.jobs, filename)
	d.mu.Unlock()
	d.inflight.Done()

	if err != nil {
		d.logger.Error("job failed", "job", filename, "error", err)
	}
}

func (d *Daemon) setStatus(filename, status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if job, ok := d.jobs[filename]; ok {
		job.Status = status
	}
}

// run analyzes one file: one query per game tree, all awaited together, then
// the merged trees are written next to the source (or under the destination
// directory).
func (d *Daemon) run(ctx context.Context, job protocol.Job) error {
	if d.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.JobTimeout)
		defer cancel()
	}

	if err := d.engine.WaitReady(ctx); err != nil {
		return fmt.Errorf("wait for engine: %w", err)
	}

	src := pathutil.SourcePath(job.Filename, d.cfg.SourceDir)
	roots, err := sgf.ParseFile(src, d.ids)
	if err != nil {
		return err
	}
	d.setStatus(job.Filename, protocol.JobRunning)

	queries := make([]*katago.Query, 0, len(roots))
	for i, root := range roots {
		q, err := analysis.BuildQuery(fmt.Sprintf("%s-%d", job.Filename, i), root, job.MaxVisits)
		if err != nil {
			return fmt.Errorf("build query for tree %d: %w", i, err)
		}
		queries = append(queries, q)
	}

	results, err := d.analyze(ctx, queries)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && d.cfg.JobTimeout > 0 {
			d.restartEngine()
			return fmt.Errorf("job timed out after %s: %w", d.cfg.JobTimeout, err)
		}
		return err
	}

	builder := analysis.Builder{IDs: d.ids, MaxVariations: job.MaxVariations}
	for i, root := range roots {
		if err := builder.Merge(root, results[i]); err != nil {
			return fmt.Errorf("merge tree %d: %w", i, err)
		}
	}

	out := pathutil.OutputPath(job.Filename, d.cfg.DestinationDir)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := atomicWriteFile(out, sgf.Stringify(roots)); err != nil {
		return err
	}
	d.logger.Info("job finished", "job", job.Filename, "file", out, "trees", len(roots))
	return nil
}

// analyze submits every query and waits for all of their turns. On failure
// the queries still pending are abandoned.
func (d *Daemon) analyze(ctx context.Context, queries []*katago.Query) ([][]*katago.Response, error) {
	submitted := make([][]*katago.Completion, 0, len(queries))
	abandon := func() {
		for _, q := range queries[:len(submitted)] {
			d.engine.Abandon(q.ID)
		}
	}

	for _, q := range queries {
		completions, err := d.engine.Submit(q)
		if err != nil {
			abandon()
			return nil, fmt.Errorf("submit query %s: %w", q.ID, err)
		}
		submitted = append(submitted, completions)
	}

	results := make([][]*katago.Response, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, completions := range submitted {
		g.Go(func() error {
			resps := make([]*katago.Response, 0, len(completions))
			for _, c := range completions {
				resp, err := c.Wait(gctx)
				if err != nil {
					return fmt.Errorf("query %s turn %d: %w", c.ID, c.TurnNumber, err)
				}
				resps = append(resps, resp)
			}
			results[i] = resps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		abandon()
		return nil, err
	}
	return results, nil
}

// restartEngine clears a stalled engine. Other pending work fails with
// katago.ErrEngineRestarted.
func (d *Daemon) restartEngine() {
	d.restartMu.Lock()
	defer d.restartMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
	defer cancel()
	if err := d.engine.Restart(ctx, katago.ErrEngineRestarted); err != nil {
		d.logger.Error("restart engine", "error", err)
	}
}

// ListJobs returns a snapshot of the active jobs sorted by filename.
func (d *Daemon) ListJobs() []protocol.Job {
	d.mu.Lock()
	jobs := lo.Map(lo.Values(d.jobs), func(j *protocol.Job, _ int) protocol.Job {
		return *j
	})
	d.mu.Unlock()

	slices.SortFunc(jobs, func(a, b protocol.Job) int {
		return cmp.Compare(a.Filename, b.Filename)
	})
	return jobs
}

// Status reports the engine state and the number of active jobs.
func (d *Daemon) Status() protocol.Status {
	d.mu.Lock()
	n := len(d.jobs)
	d.mu.Unlock()

	return protocol.Status{
		Engine: string(d.engine.State()),
		PID:    d.engine.Pid(),
		Jobs:   n,
	}
}

// Shutdown waits for the active jobs to settle. When ctx ends first, the
// jobs still waiting on the engine are cancelled and ctx's error returned.
func (d *Daemon) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
