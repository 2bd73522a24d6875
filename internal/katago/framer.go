package katago

import (
	"encoding/json"
	"errors"
	"slices"
)

const (
	// DefaultBufferLimit bounds the bytes held for a single incomplete
	// response. Responses with many long principal variations are large.
	DefaultBufferLimit = 10_000_000

	initialBufferSize = 1 << 20
	maxStrayReport    = 256
)

// Framer reassembles engine responses from stdout chunks split at arbitrary
// byte boundaries. The engine writes one flat JSON object per line; Framer
// finds object boundaries by tracking brace depth outside of strings, so a
// line feed inside a partially received object never confuses it.
//
// Framer is not safe for concurrent use; the engine's stdout reader is its
// only caller.
type Framer struct {
	buf   []byte
	limit int

	// scan state, relative to buf
	scanned  int
	start    int
	depth    int
	inString bool
	escaped  bool

	// stray holds non-JSON bytes being discarded up to the next line feed.
	skipping bool
	stray    []byte
}

// NewFramer creates a framer that fails once more than limit bytes of
// incomplete output are pending. A limit <= 0 uses DefaultBufferLimit.
func NewFramer(limit int) *Framer {
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	return &Framer{
		buf:   make([]byte, 0, min(limit, initialBufferSize)),
		limit: limit,
	}
}

// Reset discards all buffered output.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.scanned, f.start, f.depth = 0, 0, 0
	f.inString, f.escaped = false, false
	f.skipping, f.stray = false, nil
}

// Buffered returns the number of bytes held for an incomplete response.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Feed appends a chunk of engine output and returns every response completed
// by it, in arrival order. A partial trailing object stays buffered until a
// later chunk completes it.
//
// The returned error is ErrBufferFull when the pending object outgrows the
// limit; the framer is unusable until Reset. Any other error wraps one or more
// *FrameError values for output that could not be decoded; the responses
// returned alongside it are still valid.
func (f *Framer) Feed(chunk []byte) ([]Response, error) {
	f.buf = append(f.buf, chunk...)

	var (
		objects  [][]byte
		frameErr []error
	)
	for i := f.scanned; i < len(f.buf); i++ {
		c := f.buf[i]

		if f.skipping {
			if c == '\n' {
				f.skipping = false
				frameErr = append(frameErr, &FrameError{Data: f.stray})
				f.stray = nil
			} else if len(f.stray) < maxStrayReport {
				f.stray = append(f.stray, c)
			}
			continue
		}

		if f.depth == 0 {
			switch c {
			case '{':
				f.start = i
				f.depth = 1
			case ' ', '\t', '\r', '\n':
			default:
				f.skipping = true
				f.stray = append(f.stray, c)
			}
			continue
		}

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
			}
			continue
		}

		switch c {
		case '"':
			f.inString = true
		case '{', '[':
			f.depth++
		case '}', ']':
			f.depth--
			if f.depth == 0 {
				objects = append(objects, f.buf[f.start:i+1])
			}
		}
	}

	responses := make([]Response, 0, len(objects))
	for _, obj := range objects {
		var resp Response
		if err := json.Unmarshal(obj, &resp); err != nil {
			frameErr = append(frameErr, &FrameError{Data: slices.Clone(obj), Err: err})
			continue
		}
		responses = append(responses, resp)
	}

	f.compact()

	if len(f.buf) > f.limit {
		return responses, ErrBufferFull
	}
	return responses, errors.Join(frameErr...)
}

// compact drops everything before the start of a pending object.
func (f *Framer) compact() {
	if f.depth == 0 {
		f.buf = f.buf[:0]
		f.scanned, f.start = 0, 0
		return
	}
	n := copy(f.buf, f.buf[f.start:])
	f.buf = f.buf[:n]
	f.scanned = n
	f.start = 0
}
