// Package main provides a fake KataGo analysis engine for testing
// katago.Engine. It speaks the analysis protocol with canned results.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

type query struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	TerminateID  string `json:"terminateId"`
	AnalyzeTurns []int  `json:"analyzeTurns"`
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "analysis" {
		fmt.Fprintln(os.Stderr, "usage: fakekatago analysis [flags]")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("analysis", flag.ExitOnError)
	fs.String("config", "", "analysis config (ignored)")
	fs.Bool("quit-without-waiting", false, "ignored")
	mode := fs.String("mode", "normal", "Mode: normal, split, noready, exit-before-ready, crash-on-query, silent, flood")
	startDelay := fs.Duration("start-delay", 0, "Delay before announcing readiness")
	fs.Parse(os.Args[2:])

	fmt.Fprintln(os.Stderr, "KataGo fake engine v0")
	fmt.Fprintln(os.Stderr, "Loading model...")
	time.Sleep(*startDelay)

	switch *mode {
	case "exit-before-ready":
		fmt.Fprintln(os.Stderr, "failed to load model")
		os.Exit(1)
	case "noready":
		time.Sleep(time.Hour)
		os.Exit(0)
	}

	fmt.Fprintln(os.Stderr, "Started, ready to begin handling requests")

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for in.Scan() {
		var q query
		if err := json.Unmarshal(in.Bytes(), &q); err != nil {
			emit(*mode, map[string]any{"error": "could not parse json", "field": ""})
			continue
		}

		switch {
		case *mode == "crash-on-query":
			fmt.Fprintln(os.Stderr, "segfault")
			os.Exit(3)
		case *mode == "silent":
			continue
		case *mode == "flood":
			// One object larger than any sane buffer limit, never finished.
			os.Stdout.WriteString(`{"id":"` + q.ID + `","padding":"` + strings.Repeat("x", 4096))
			continue
		case q.Action == "terminate":
			emit(*mode, map[string]any{"id": q.ID, "action": "terminate", "terminateId": q.TerminateID})
			continue
		case strings.HasPrefix(q.ID, "fail"):
			emit(*mode, map[string]any{"id": q.ID, "error": "Illegal move", "field": "moves"})
			continue
		}

		if strings.HasPrefix(q.ID, "warn") {
			emit(*mode, map[string]any{"id": q.ID, "warning": "Unexpected field", "field": "bogus"})
		}

		// Answer the last turn first; callers must not rely on order.
		for i := len(q.AnalyzeTurns) - 1; i >= 0; i-- {
			emit(*mode, response(q.ID, q.AnalyzeTurns[i]))
		}
	}
}

func response(id string, turn int) map[string]any {
	player := "B"
	if turn%2 == 1 {
		player = "W"
	}
	return map[string]any{
		"id":         id,
		"turnNumber": turn,
		"rootInfo": map[string]any{
			"currentPlayer": player,
			"scoreLead":     0.5 + float64(turn),
			"scoreStdev":    10.0,
			"winrate":       0.5,
			"visits":        100,
		},
		"moveInfos": []map[string]any{
			{"move": "Q16", "order": 0, "pv": []string{"Q16", "D4", "Q4"}, "scoreLead": 1.0, "scoreStdev": 9.0, "visits": 60, "winrate": 0.55},
			{"move": "D4", "order": 1, "pv": []string{"D4"}, "scoreLead": 0.8, "scoreStdev": 9.5, "visits": 30, "winrate": 0.53},
			{"move": "Q4", "order": 2, "pv": []string{"Q4"}, "scoreLead": 0.8, "scoreStdev": 9.5, "visits": 10, "winrate": 0.53, "isSymmetryOf": "D4"},
		},
	}
}

func emit(mode string, v any) {
	data, _ := json.Marshal(v)
	data = append(data, '\n')
	if mode != "split" {
		os.Stdout.Write(data)
		return
	}
	// Deliver in small uneven pieces so the reader sees partial objects.
	for len(data) > 0 {
		n := min(7, len(data))
		os.Stdout.Write(data[:n])
		data = data[n:]
		time.Sleep(100 * time.Microsecond)
	}
}
