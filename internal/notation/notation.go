// Package notation converts between SGF point encoding and the GTP vertex
// encoding spoken by the KataGo analysis engine.
package notation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Pass is the GTP vertex for a pass move.
const Pass = "pass"

// MaxBoardSize is the largest board GTP can address (25 columns, no "I").
const MaxBoardSize = 25

const (
	sgfLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	gtpColumns = "ABCDEFGHJKLMNOPQRSTUVWXYZ"
)

// ErrMalformedPoint is returned for points that do not address a board
// intersection.
var ErrMalformedPoint = errors.New("malformed point")

// Color is a player color as used by both SGF properties and GTP moves.
type Color string

const (
	Black Color = "B"
	White Color = "W"
)

// Opponent returns the other color.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Valid reports whether c is Black or White.
func (c Color) Valid() bool {
	return c == Black || c == White
}

// Board is the coordinate frame of a possibly rectangular board.
type Board struct {
	Cols int
	Rows int
}

// Square returns the frame of a size x size board.
func Square(size int) Board {
	return Board{Cols: size, Rows: size}
}

func (b Board) check() error {
	if b.Cols < 1 || b.Cols > MaxBoardSize || b.Rows < 1 || b.Rows > MaxBoardSize {
		return fmt.Errorf("%w: board size %dx%d out of range", ErrMalformedPoint, b.Cols, b.Rows)
	}
	return nil
}

// ToGTP converts an SGF point such as "pd" to a GTP vertex such as "Q16".
// The empty point, and "tt" on boards up to 19x19, are passes.
func (b Board) ToGTP(point string) (string, error) {
	if err := b.check(); err != nil {
		return "", err
	}
	if point == "" || (point == "tt" && b.Cols <= 19 && b.Rows <= 19) {
		return Pass, nil
	}
	if len(point) != 2 {
		return "", fmt.Errorf("%w: %q", ErrMalformedPoint, point)
	}

	col := strings.IndexByte(sgfLetters, point[0])
	row := strings.IndexByte(sgfLetters, point[1])
	if col < 0 || row < 0 || col >= b.Cols || row >= b.Rows {
		return "", fmt.Errorf("%w: %q on %dx%d", ErrMalformedPoint, point, b.Cols, b.Rows)
	}

	return string(gtpColumns[col]) + strconv.Itoa(b.Rows-row), nil
}

// ToSGF converts a GTP vertex such as "Q16" back to an SGF point such as
// "pd". Pass becomes the empty point.
func (b Board) ToSGF(vertex string) (string, error) {
	if err := b.check(); err != nil {
		return "", err
	}
	if strings.EqualFold(vertex, Pass) {
		return "", nil
	}
	if len(vertex) < 2 {
		return "", fmt.Errorf("%w: %q", ErrMalformedPoint, vertex)
	}

	col := strings.IndexByte(gtpColumns, strings.ToUpper(vertex[:1])[0])
	num, err := strconv.Atoi(vertex[1:])
	if err != nil || col < 0 || col >= b.Cols || num < 1 || num > b.Rows {
		return "", fmt.Errorf("%w: %q on %dx%d", ErrMalformedPoint, vertex, b.Cols, b.Rows)
	}

	return string(sgfLetters[col]) + string(sgfLetters[b.Rows-num]), nil
}

// SGFToGTP converts an SGF point on a size x size board to a GTP vertex.
func SGFToGTP(point string, size int) (string, error) {
	return Square(size).ToGTP(point)
}

// GTPToSGF converts a GTP vertex on a size x size board to an SGF point.
func GTPToSGF(vertex string, size int) (string, error) {
	return Square(size).ToSGF(vertex)
}

// ExpandPointList expands SGF point-list values, including FF[4] compressed
// rectangles like "aa:cc", into single points.
func ExpandPointList(values []string) ([]string, error) {
	var points []string
	for _, v := range values {
		from, to, compressed := strings.Cut(v, ":")
		if !compressed {
			points = append(points, v)
			continue
		}
		if len(from) != 2 || len(to) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPoint, v)
		}
		c1, r1 := strings.IndexByte(sgfLetters, from[0]), strings.IndexByte(sgfLetters, from[1])
		c2, r2 := strings.IndexByte(sgfLetters, to[0]), strings.IndexByte(sgfLetters, to[1])
		if c1 < 0 || r1 < 0 || c2 < 0 || r2 < 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPoint, v)
		}
		c1, c2 = min(c1, c2), max(c1, c2)
		r1, r2 = min(r1, r2), max(r1, r2)
		for c := c1; c <= c2; c++ {
			for r := r1; r <= r2; r++ {
				points = append(points, string(sgfLetters[c])+string(sgfLetters[r]))
			}
		}
	}
	return points, nil
}
