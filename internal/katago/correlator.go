package katago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Completion is the pending result of one analyzed turn. It is resolved at
// most once, either with the engine's response or with an error.
type Completion struct {
	ID         string
	TurnNumber int

	done chan struct{}
	resp *Response
	err  error
}

func newCompletion(id string, turn int) *Completion {
	return &Completion{ID: id, TurnNumber: turn, done: make(chan struct{})}
}

// Done is closed once the completion is resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Result returns the response or error. It must only be called after Done
// is closed.
func (c *Completion) Result() (*Response, error) {
	return c.resp, c.err
}

// Wait blocks until the completion resolves or ctx is done.
func (c *Completion) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Completion) resolve(resp *Response, err error) {
	c.resp, c.err = resp, err
	close(c.done)
}

type pendingKey struct {
	id   string
	turn int
}

// Correlator writes queries to the engine and matches engine responses to
// the completions waiting for them.
type Correlator struct {
	// mu protects pending.
	mu      sync.Mutex
	pending map[pendingKey]*Completion

	// writeMu serializes query lines on the engine's stdin.
	writeMu sync.Mutex
	w       io.Writer

	logger *slog.Logger
}

// NewCorrelator creates a correlator writing queries to w, which may be nil
// until an engine is running.
func NewCorrelator(w io.Writer, logger *slog.Logger) *Correlator {
	return &Correlator{
		pending: make(map[pendingKey]*Completion),
		w:       w,
		logger:  logger,
	}
}

// Submit registers one completion per entry of q.AnalyzeTurns, in the same
// order, then writes q to the engine as a single line. Completions are
// registered before the write so a fast response cannot be missed.
func (c *Correlator) Submit(q *Query) ([]*Completion, error) {
	line, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query %s: %w", q.ID, err)
	}
	line = append(line, '\n')

	completions, err := c.register(q)
	if err != nil {
		return nil, err
	}

	if err := c.write(line); err != nil {
		c.unregister(completions)
		return nil, fmt.Errorf("write query %s: %w", q.ID, err)
	}
	return completions, nil
}

func (c *Correlator) register(q *Query) ([]*Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[int]bool, len(q.AnalyzeTurns))
	for _, turn := range q.AnalyzeTurns {
		if _, ok := c.pending[pendingKey{q.ID, turn}]; ok || seen[turn] {
			return nil, fmt.Errorf("query %s turn %d: %w", q.ID, turn, ErrDuplicateTurn)
		}
		seen[turn] = true
	}

	completions := make([]*Completion, 0, len(q.AnalyzeTurns))
	for _, turn := range q.AnalyzeTurns {
		comp := newCompletion(q.ID, turn)
		c.pending[pendingKey{q.ID, turn}] = comp
		completions = append(completions, comp)
	}
	return completions, nil
}

func (c *Correlator) unregister(completions []*Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, comp := range completions {
		key := pendingKey{comp.ID, comp.TurnNumber}
		if c.pending[key] == comp {
			delete(c.pending, key)
		}
	}
}

func (c *Correlator) write(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.w == nil {
		return ErrNotRunning
	}
	_, err := c.w.Write(line)
	return err
}

// SetWriter points query output at a new engine stdin. A nil writer makes
// Submit fail with ErrNotRunning.
func (c *Correlator) SetWriter(w io.Writer) {
	c.writeMu.Lock()
	c.w = w
	c.writeMu.Unlock()
}

// Terminate asks the engine to stop analyzing the query with the given id.
func (c *Correlator) Terminate(id string) error {
	line, err := json.Marshal(terminateQuery{
		ID:          "terminate-" + id,
		Action:      "terminate",
		TerminateID: id,
	})
	if err != nil {
		return err
	}
	return c.write(append(line, '\n'))
}

// Dispatch routes one engine response. A normal response resolves the
// completion for its (id, turn); an error response fails every completion
// still pending for its id. Responses nobody waits for are dropped.
func (c *Correlator) Dispatch(resp *Response) {
	switch {
	case resp.Warning != "":
		c.logger.Warn("engine warning", "query", resp.ID, "warning", resp.Warning, "field", resp.Field)
		return
	case resp.Action != "", resp.IsDuringSearch:
		return
	case resp.Error != "":
		c.failID(resp.ID, &EngineError{ID: resp.ID, Message: resp.Error, Field: resp.Field})
		return
	}

	key := pendingKey{resp.ID, resp.TurnNumber}
	c.mu.Lock()
	comp, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping unmatched response", "query", resp.ID, "turn", resp.TurnNumber)
		return
	}
	comp.resolve(resp, nil)
}

func (c *Correlator) failID(id string, err error) {
	c.mu.Lock()
	var failed []*Completion
	for key, comp := range c.pending {
		if key.id == id {
			failed = append(failed, comp)
			delete(c.pending, key)
		}
	}
	c.mu.Unlock()

	if len(failed) == 0 {
		c.logger.Warn("engine error for unknown query", "query", id, "error", err)
	}
	for _, comp := range failed {
		comp.resolve(nil, err)
	}
}

// Abandon forgets every completion pending for id without resolving it.
// Later responses for id are dropped.
func (c *Correlator) Abandon(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.pending {
		if key.id == id {
			delete(c.pending, key)
			n++
		}
	}
	return n
}

// FailAll fails every pending completion with err.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	failed := c.pending
	c.pending = make(map[pendingKey]*Completion)
	c.mu.Unlock()

	for _, comp := range failed {
		comp.resolve(nil, err)
	}
}

// Pending returns the number of unresolved completions.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
