package katago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

// lockedBuffer is a bytes.Buffer safe for the concurrent writers used in
// these tests.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimRight(b.buf.String(), "\n"), "\n")
}

func newQuery(id string, turns ...int) *Query {
	return &Query{
		ID:           id,
		Moves:        []Move{{Player: "B", Vertex: "Q16"}, {Player: "W", Vertex: "D4"}},
		Rules:        "tromp-taylor",
		BoardXSize:   19,
		BoardYSize:   19,
		AnalyzeTurns: turns,
	}
}

func resolved(c *Completion) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func TestCorrelator_SubmitWritesOneLine(t *testing.T) {
	// Arrange
	var out lockedBuffer
	c := NewCorrelator(&out, discardLogger())

	// Act
	completions, err := c.Submit(newQuery("game.sgf-0", 0, 1, 2))

	// Assert
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(completions) != 3 {
		t.Fatalf("got %d completions, want 3", len(completions))
	}
	for i, comp := range completions {
		if comp.ID != "game.sgf-0" || comp.TurnNumber != i {
			t.Errorf("completion %d = (%s, %d)", i, comp.ID, comp.TurnNumber)
		}
	}
	lines := out.Lines()
	if len(lines) != 1 {
		t.Fatalf("wrote %d lines, want 1", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("query line is not JSON: %v", err)
	}
	if decoded["id"] != "game.sgf-0" {
		t.Errorf("id = %v", decoded["id"])
	}
	if _, ok := decoded["komi"]; ok {
		t.Error("komi should be omitted when unset")
	}
	if c.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", c.Pending())
	}
}

func TestCorrelator_DispatchResolvesEachTurnOnce(t *testing.T) {
	// Arrange
	c := NewCorrelator(io.Discard, discardLogger())
	completions, err := c.Submit(newQuery("q", 0, 1, 2, 3))
	if err != nil {
		t.Fatal(err)
	}

	// Act: responses arrive out of order
	for _, turn := range []int{2, 0, 3, 1} {
		c.Dispatch(&Response{ID: "q", TurnNumber: turn, RootInfo: RootInfo{ScoreLead: float64(turn)}})
	}
	// a duplicate is dropped
	c.Dispatch(&Response{ID: "q", TurnNumber: 1})

	// Assert
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i, comp := range completions {
		resp, err := comp.Wait(ctx)
		if err != nil {
			t.Fatalf("turn %d: Wait() error = %v", i, err)
		}
		if resp.TurnNumber != i || resp.RootInfo.ScoreLead != float64(i) {
			t.Errorf("turn %d resolved with %+v", i, resp)
		}
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestCorrelator_ErrorFailsOnlyItsQuery(t *testing.T) {
	// Arrange
	c := NewCorrelator(io.Discard, discardLogger())
	bad, _ := c.Submit(newQuery("bad", 0, 1))
	good, _ := c.Submit(newQuery("good", 0, 1))

	// Act
	c.Dispatch(&Response{ID: "bad", Error: "Illegal move", Field: "moves"})

	// Assert
	for _, comp := range bad {
		if !resolved(comp) {
			t.Fatalf("turn %d of bad query not resolved", comp.TurnNumber)
		}
		_, err := comp.Result()
		var engErr *EngineError
		if !errors.As(err, &engErr) {
			t.Fatalf("error = %v, want EngineError", err)
		}
		if engErr.Message != "Illegal move" || engErr.Field != "moves" {
			t.Errorf("EngineError = %+v", engErr)
		}
		if !IsEngineError(err) {
			t.Error("IsEngineError() = false")
		}
	}
	for _, comp := range good {
		if resolved(comp) {
			t.Errorf("turn %d of good query resolved", comp.TurnNumber)
		}
	}
	if c.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", c.Pending())
	}
}

func TestCorrelator_IgnoredResponses(t *testing.T) {
	tests := []struct {
		name string
		resp Response
	}{
		{name: "unknown id", resp: Response{ID: "other", TurnNumber: 0}},
		{name: "unknown turn", resp: Response{ID: "q", TurnNumber: 9}},
		{name: "warning", resp: Response{ID: "q", TurnNumber: 0, Warning: "unused field", Field: "foo"}},
		{name: "during search", resp: Response{ID: "q", TurnNumber: 0, IsDuringSearch: true}},
		{name: "action ack", resp: Response{ID: "q", Action: "terminate"}},
		{name: "error for unknown id", resp: Response{ID: "other", Error: "bad"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			c := NewCorrelator(io.Discard, discardLogger())
			completions, _ := c.Submit(newQuery("q", 0))

			// Act
			c.Dispatch(&tt.resp)

			// Assert
			if resolved(completions[0]) {
				t.Error("completion resolved by ignored response")
			}
			if c.Pending() != 1 {
				t.Errorf("Pending() = %d, want 1", c.Pending())
			}
		})
	}
}

func TestCorrelator_DuplicateTurn(t *testing.T) {
	tests := []struct {
		name   string
		first  *Query
		second *Query
	}{
		{name: "already pending", first: newQuery("q", 0, 1), second: newQuery("q", 1, 2)},
		{name: "repeated in query", second: newQuery("q", 3, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out lockedBuffer
			c := NewCorrelator(&out, discardLogger())
			want := 0
			if tt.first != nil {
				if _, err := c.Submit(tt.first); err != nil {
					t.Fatal(err)
				}
				want = len(tt.first.AnalyzeTurns)
			}

			_, err := c.Submit(tt.second)

			if !errors.Is(err, ErrDuplicateTurn) {
				t.Fatalf("error = %v, want ErrDuplicateTurn", err)
			}
			if c.Pending() != want {
				t.Errorf("Pending() = %d, want %d", c.Pending(), want)
			}
		})
	}
}

func TestCorrelator_WriteFailureUnregisters(t *testing.T) {
	c := NewCorrelator(failingWriter{}, discardLogger())

	_, err := c.Submit(newQuery("q", 0, 1))

	if err == nil {
		t.Fatal("Submit() succeeded on broken writer")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestCorrelator_NoWriter(t *testing.T) {
	c := NewCorrelator(nil, discardLogger())

	_, err := c.Submit(newQuery("q", 0))

	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("error = %v, want ErrNotRunning", err)
	}
}

func TestCorrelator_Abandon(t *testing.T) {
	// Arrange
	var out lockedBuffer
	c := NewCorrelator(&out, discardLogger())
	abandoned, _ := c.Submit(newQuery("a", 0, 1))
	kept, _ := c.Submit(newQuery("b", 0))

	// Act
	n := c.Abandon("a")
	c.Dispatch(&Response{ID: "a", TurnNumber: 0})
	c.Dispatch(&Response{ID: "b", TurnNumber: 0})

	// Assert
	if n != 2 {
		t.Errorf("Abandon() = %d, want 2", n)
	}
	for _, comp := range abandoned {
		if resolved(comp) {
			t.Error("abandoned completion resolved")
		}
	}
	if !resolved(kept[0]) {
		t.Error("unrelated completion not resolved")
	}
}

func TestCorrelator_Terminate(t *testing.T) {
	var out lockedBuffer
	c := NewCorrelator(&out, discardLogger())

	if err := c.Terminate("game.sgf-0"); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal([]byte(out.Lines()[0]), &got); err != nil {
		t.Fatal(err)
	}
	if got["action"] != "terminate" || got["terminateId"] != "game.sgf-0" || got["id"] == "" {
		t.Errorf("terminate line = %v", got)
	}
}

func TestCorrelator_FailAll(t *testing.T) {
	c := NewCorrelator(io.Discard, discardLogger())
	first, _ := c.Submit(newQuery("a", 0, 1))
	second, _ := c.Submit(newQuery("b", 0))

	c.FailAll(ErrEngineRestarted)

	for _, comp := range append(first, second...) {
		if !resolved(comp) {
			t.Fatalf("%s turn %d not resolved", comp.ID, comp.TurnNumber)
		}
		if _, err := comp.Result(); !errors.Is(err, ErrEngineRestarted) {
			t.Errorf("error = %v, want ErrEngineRestarted", err)
		}
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestCompletion_WaitHonorsContext(t *testing.T) {
	c := NewCorrelator(io.Discard, discardLogger())
	completions, _ := c.Submit(newQuery("q", 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := completions[0].Wait(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
