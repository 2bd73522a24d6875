// Package katago drives a KataGo analysis engine subprocess: it frames the
// engine's streamed JSON output, correlates responses with outstanding
// queries, and supervises the process lifecycle.
package katago

import (
	"encoding/json"
	"fmt"
)

// Move is a (player, vertex) pair, encoded as a two-element JSON array.
type Move struct {
	Player string
	Vertex string
}

// MarshalJSON encodes the move as ["B","Q16"].
func (m Move) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{m.Player, m.Vertex})
}

// UnmarshalJSON decodes a ["B","Q16"] pair.
func (m *Move) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode move: %w", err)
	}
	m.Player, m.Vertex = pair[0], pair[1]
	return nil
}

// Query is one analysis request. It must not be modified after Submit.
type Query struct {
	ID            string   `json:"id"`
	Moves         []Move   `json:"moves"`
	InitialStones []Move   `json:"initialStones"`
	Rules         string   `json:"rules"`
	Komi          *float64 `json:"komi,omitempty"`
	BoardXSize    int      `json:"boardXSize"`
	BoardYSize    int      `json:"boardYSize"`
	AnalyzeTurns  []int    `json:"analyzeTurns"`
	MaxVisits     int      `json:"maxVisits,omitempty"`
}

// terminateQuery asks the engine to stop work on an earlier query.
type terminateQuery struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	TerminateID string `json:"terminateId"`
}

// RootInfo summarizes the position at the analyzed turn.
type RootInfo struct {
	CurrentPlayer string  `json:"currentPlayer"`
	ScoreLead     float64 `json:"scoreLead"`
	ScoreStdev    float64 `json:"scoreStdev"`
	Winrate       float64 `json:"winrate"`
	Visits        int     `json:"visits"`
}

// MoveInfo is one candidate move considered by the engine.
type MoveInfo struct {
	Move         string   `json:"move"`
	PV           []string `json:"pv"`
	Order        int      `json:"order"`
	ScoreLead    float64  `json:"scoreLead"`
	ScoreStdev   float64  `json:"scoreStdev"`
	Visits       int      `json:"visits"`
	Winrate      float64  `json:"winrate"`
	IsSymmetryOf string   `json:"isSymmetryOf,omitempty"`
}

// Response is one object emitted by the engine. A normal response answers
// exactly one (ID, TurnNumber) pair. Error and Warning responses are tagged
// with the ID only.
type Response struct {
	ID             string     `json:"id"`
	TurnNumber     int        `json:"turnNumber"`
	IsDuringSearch bool       `json:"isDuringSearch,omitempty"`
	RootInfo       RootInfo   `json:"rootInfo"`
	MoveInfos      []MoveInfo `json:"moveInfos"`
	Error          string     `json:"error,omitempty"`
	Warning        string     `json:"warning,omitempty"`
	Field          string     `json:"field,omitempty"`
	Action         string     `json:"action,omitempty"`
}
