// Package uci decodes engine output lines and builds engine commands for the
// subset of the UCI protocol used by the analysis session.
package uci

import (
	"strconv"
	"strings"
)

// Parse maps one raw engine output line to its events. It never fails: a line
// that matches nothing yields a single Unrecognized event.
//
// Matching is done on whole tokens, so "seldepth" never reads as "depth" and a
// token merely containing "bestmove" is ignored. An info line may carry both a
// depth and a score; both are extracted, depth first.
func Parse(line string) []Event {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return unrecognized(line)
	}

	switch fields[0] {
	case "uciok", "readyok":
		if len(fields) == 1 {
			return []Event{ReadyAck{Token: fields[0]}}
		}
	case "bestmove":
		if ev, ok := parseBestMove(fields[1:]); ok {
			return []Event{ev}
		}
	case "info":
		if events := parseInfo(fields[1:]); len(events) > 0 {
			return events
		}
	case "id":
		if len(fields) >= 3 && fields[1] == "name" {
			return []Event{Identity{Name: strings.Join(fields[2:], " ")}}
		}
	}

	return unrecognized(line)
}

func unrecognized(line string) []Event {
	return []Event{Unrecognized{Line: line}}
}

func parseBestMove(args []string) (BestMove, bool) {
	if len(args) == 0 {
		return BestMove{}, false
	}

	// "(none)" from Stockfish, "0000" is the UCI null move
	if args[0] == "(none)" || args[0] == "0000" {
		return BestMove{None: true}, true
	}

	m, err := ParseMove(args[0])
	if err != nil {
		return BestMove{}, false
	}
	bm := BestMove{Move: m}

	if len(args) >= 3 && args[1] == "ponder" {
		if p, err := ParseMove(args[2]); err == nil {
			bm.Ponder = &p
		}
	}
	return bm, true
}

// parseInfo scans the info fields independently for depth and score so that
// neither extraction consumes tokens the other needs
func parseInfo(args []string) []Event {
	var (
		depth *SearchDepth
		eval  *Evaluation
	)

scan:
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "string":
			// free text runs to the end of the line
			break scan
		case "depth":
			if i+1 < len(args) && depth == nil {
				if n, err := strconv.ParseUint(args[i+1], 10, 31); err == nil {
					depth = &SearchDepth{Depth: int(n)}
					i++
				}
			}
		case "score":
			if i+2 < len(args) && eval == nil {
				if score, ok := parseScore(args[i+1], args[i+2]); ok {
					eval = &Evaluation{Score: score}
					i += 2
				}
			}
		}
	}

	var events []Event
	if depth != nil {
		events = append(events, *depth)
	}
	if eval != nil {
		events = append(events, *eval)
	}
	return events
}

func parseScore(kind, value string) (Score, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return Score{}, false
	}
	switch kind {
	case "cp":
		return Score{Kind: ScoreCentipawn, Value: n}, true
	case "mate":
		return Score{Kind: ScoreMate, Value: n}, true
	default:
		return Score{}, false
	}
}
