// Package analysis turns parsed game records into engine queries and folds
// engine responses back into the game trees as annotated variations.
package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/d2verb/katago-sgf/internal/katago"
	"github.com/d2verb/katago-sgf/internal/notation"
	"github.com/d2verb/katago-sgf/internal/sgf"
)

// DefaultBoardSize applies when a record has no SZ property.
const DefaultBoardSize = 19

// Rule set names understood by the engine.
const (
	RulesTrompTaylor = "tromp-taylor"
	RulesChinese     = "chinese-ogs"
	RulesJapanese    = "japanese"
	RulesKorean      = "korean"
	RulesAGA         = "aga"
)

var rulesByName = map[string]string{
	"chinese":  RulesChinese,
	"japanese": RulesJapanese,
	"korean":   RulesKorean,
	"aga":      RulesAGA,
}

// Board returns the board frame declared by the root's SZ property, which is
// either "N" or "X:Y".
func Board(root *sgf.Node) (notation.Board, error) {
	sz, ok := root.Get("SZ")
	if !ok || strings.TrimSpace(sz) == "" {
		return notation.Square(DefaultBoardSize), nil
	}

	xs, ys, rect := strings.Cut(sz, ":")
	if !rect {
		ys = xs
	}
	cols, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return notation.Board{}, fmt.Errorf("parse SZ %q: %w", sz, err)
	}
	rows, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return notation.Board{}, fmt.Errorf("parse SZ %q: %w", sz, err)
	}
	if cols < 1 || cols > notation.MaxBoardSize || rows < 1 || rows > notation.MaxBoardSize {
		return notation.Board{}, fmt.Errorf("parse SZ %q: board size out of range", sz)
	}
	return notation.Board{Cols: cols, Rows: rows}, nil
}

// Rules maps the root's RU property to an engine rule set. Unknown or missing
// rules fall back to Tromp-Taylor.
func Rules(root *sgf.Node) string {
	ru, _ := root.Get("RU")
	if rules, ok := rulesByName[strings.ToLower(strings.TrimSpace(ru))]; ok {
		return rules
	}
	return RulesTrompTaylor
}

// Komi returns the root's KM property, or nil when the record sets none.
func Komi(root *sgf.Node) (*float64, error) {
	km, ok := root.Get("KM")
	if !ok || strings.TrimSpace(km) == "" {
		return nil, nil
	}
	komi, err := strconv.ParseFloat(strings.TrimSpace(km), 64)
	if err != nil {
		return nil, fmt.Errorf("parse KM %q: %w", km, err)
	}
	return &komi, nil
}

// MoveNodes returns root followed by every main-line node that plays a move.
// Index i is the position after i moves, which is the engine's turn number.
func MoveNodes(root *sgf.Node) []*sgf.Node {
	nodes := []*sgf.Node{root}
	for _, n := range root.MainLine()[1:] {
		if _, ok := nodeMove(n); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

type playedMove struct {
	color notation.Color
	point string
}

// nodeMove returns the color and SGF point a node plays. B wins when a
// malformed node carries both.
func nodeMove(n *sgf.Node) (playedMove, bool) {
	for _, color := range []notation.Color{notation.Black, notation.White} {
		if n.Has(string(color)) {
			point, _ := n.Get(string(color))
			return playedMove{color, point}, true
		}
	}
	return playedMove{}, false
}

// BuildQuery builds the query analyzing every position on the main line of
// the tree at root, from the initial position through the final move.
func BuildQuery(id string, root *sgf.Node, maxVisits int) (*katago.Query, error) {
	board, err := Board(root)
	if err != nil {
		return nil, err
	}
	komi, err := Komi(root)
	if err != nil {
		return nil, err
	}

	q := &katago.Query{
		ID:            id,
		Moves:         []katago.Move{},
		InitialStones: []katago.Move{},
		Rules:         Rules(root),
		Komi:          komi,
		BoardXSize:    board.Cols,
		BoardYSize:    board.Rows,
		MaxVisits:     maxVisits,
	}

	for _, color := range []notation.Color{notation.Black, notation.White} {
		points, err := notation.ExpandPointList(root.Values("A" + string(color)))
		if err != nil {
			return nil, fmt.Errorf("setup stones: %w", err)
		}
		for _, p := range points {
			vertex, err := board.ToGTP(p)
			if err != nil {
				return nil, fmt.Errorf("setup stones: %w", err)
			}
			q.InitialStones = append(q.InitialStones, katago.Move{Player: string(color), Vertex: vertex})
		}
	}

	for i, n := range MoveNodes(root)[1:] {
		m, _ := nodeMove(n)
		vertex, err := board.ToGTP(m.point)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
		q.Moves = append(q.Moves, katago.Move{Player: string(m.color), Vertex: vertex})
	}

	q.AnalyzeTurns = make([]int, len(q.Moves)+1)
	for i := range q.AnalyzeTurns {
		q.AnalyzeTurns[i] = i
	}
	return q, nil
}
