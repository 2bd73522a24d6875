package analysis

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/d2verb/katago-sgf/internal/katago"
	"github.com/d2verb/katago-sgf/internal/notation"
	"github.com/d2verb/katago-sgf/internal/sgf"
)

// Annotation property identifiers written into analyzed records.
const (
	PropScoreLead  = "SCORELEAD"
	PropScoreStdev = "SCORESTDEV"
	PropVisits     = "VISITS"
	PropWinrate    = "WINRATE"
)

// Builder folds engine responses into a game tree.
type Builder struct {
	// IDs numbers the nodes of new variations. It must be the counter the
	// tree was parsed with.
	IDs *sgf.IDCounter
	// MaxVariations caps candidate moves per position; <= 0 keeps all.
	MaxVariations int
}

// Merge annotates the tree at root with one response per analyzed turn.
//
// The position node gets the engine's aggregate evaluation with zero visits.
// The next main-line move is annotated in place when the engine considered
// it; every other candidate becomes a new variation under
// the position node.
func (b *Builder) Merge(root *sgf.Node, responses []*katago.Response) error {
	board, err := Board(root)
	if err != nil {
		return err
	}
	nodes := MoveNodes(root)

	ordered := slices.Clone(responses)
	slices.SortStableFunc(ordered, func(x, y *katago.Response) int {
		return cmp.Compare(x.TurnNumber, y.TurnNumber)
	})

	for _, resp := range ordered {
		if resp.TurnNumber < 0 || resp.TurnNumber >= len(nodes) {
			return fmt.Errorf("response %s turn %d: outside main line of %d positions", resp.ID, resp.TurnNumber, len(nodes))
		}
		var played *sgf.Node
		if next := resp.TurnNumber + 1; next < len(nodes) {
			played = nodes[next]
		}
		if err := b.mergeTurn(board, nodes[resp.TurnNumber], played, resp); err != nil {
			return fmt.Errorf("response %s turn %d: %w", resp.ID, resp.TurnNumber, err)
		}
	}
	return nil
}

// mergeTurn annotates the position node. played is the main-line node of the
// next move, which may sit below moveless nodes; nil at the last position.
func (b *Builder) mergeTurn(board notation.Board, node, played *sgf.Node, resp *katago.Response) error {
	info := resp.RootInfo
	if !node.Has(PropVisits) {
		annotate(node, info.ScoreLead, info.ScoreStdev, 0, info.Winrate)
	}

	var (
		playedNode   *sgf.Node
		playedVertex string
	)
	if played != nil {
		if m, ok := nodeMove(played); ok {
			vertex, err := board.ToGTP(m.point)
			if err != nil {
				return err
			}
			playedNode, playedVertex = played, vertex
		}
	}

	candidates := lo.Filter(resp.MoveInfos, func(mi katago.MoveInfo, _ int) bool {
		return mi.IsSymmetryOf == "" || (playedNode != nil && strings.EqualFold(mi.Move, playedVertex))
	})
	slices.SortStableFunc(candidates, func(x, y katago.MoveInfo) int {
		return cmp.Compare(x.Order, y.Order)
	})
	if b.MaxVariations > 0 && len(candidates) > b.MaxVariations {
		candidates = candidates[:b.MaxVariations]
	}

	mover := notation.Color(info.CurrentPlayer)
	for _, mi := range candidates {
		if playedNode != nil && strings.EqualFold(mi.Move, playedVertex) {
			annotate(playedNode, mi.ScoreLead, mi.ScoreStdev, mi.Visits, mi.Winrate)
			continue
		}
		if !mover.Valid() {
			return fmt.Errorf("unknown player to move %q", info.CurrentPlayer)
		}
		variation, err := b.variation(board, mover, mi)
		if err != nil {
			return err
		}
		node.AddChild(variation)
	}
	return nil
}

// variation builds the chain of nodes for a candidate's principal
// variation. The first node carries the candidate's evaluation.
func (b *Builder) variation(board notation.Board, mover notation.Color, mi katago.MoveInfo) (*sgf.Node, error) {
	pv := mi.PV
	if len(pv) == 0 {
		pv = []string{mi.Move}
	}

	var first, parent *sgf.Node
	for _, vertex := range pv {
		point, err := board.ToSGF(vertex)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", mi.Move, err)
		}
		n := sgf.NewNode(b.IDs)
		n.Set(string(mover), point)
		if first == nil {
			annotate(n, mi.ScoreLead, mi.ScoreStdev, mi.Visits, mi.Winrate)
			first = n
		} else {
			parent.AddChild(n)
		}
		parent = n
		mover = mover.Opponent()
	}
	return first, nil
}

func annotate(n *sgf.Node, scoreLead, scoreStdev float64, visits int, winrate float64) {
	n.Set(PropScoreLead, formatFloat(scoreLead))
	n.Set(PropScoreStdev, formatFloat(scoreStdev))
	n.Set(PropVisits, strconv.Itoa(visits))
	n.Set(PropWinrate, formatFloat(winrate))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
