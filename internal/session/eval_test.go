package session

import (
	"errors"
	"math"
	"testing"

	"chessanalysis/internal/core"
	"chessanalysis/internal/uci"
)

func TestToEvaluationView(t *testing.T) {
	tests := []struct {
		name  string
		score uci.Score
		side  core.Color
		want  EvaluationView
		label string
	}{
		{"white cp", uci.Score{Kind: uci.ScoreCentipawn, Value: 35}, core.ColorWhite, EvaluationView{ScoreForWhite: 0.35}, "+0.35"},
		{"black cp flipped", uci.Score{Kind: uci.ScoreCentipawn, Value: 300}, core.ColorBlack, EvaluationView{ScoreForWhite: -3.0}, "-3.00"},
		{"black losing", uci.Score{Kind: uci.ScoreCentipawn, Value: -120}, core.ColorBlack, EvaluationView{ScoreForWhite: 1.2}, "+1.20"},
		{"level", uci.Score{Kind: uci.ScoreCentipawn, Value: 0}, core.ColorBlack, EvaluationView{}, "+0.00"},
		{"white mates", uci.Score{Kind: uci.ScoreMate, Value: 3}, core.ColorWhite, EvaluationView{ScoreForWhite: 100, IsMate: true, MateCount: 3}, "M3"},
		{"white mated", uci.Score{Kind: uci.ScoreMate, Value: -2}, core.ColorWhite, EvaluationView{ScoreForWhite: -100, IsMate: true, MateCount: 2}, "-M2"},
		{"black mates", uci.Score{Kind: uci.ScoreMate, Value: 1}, core.ColorBlack, EvaluationView{ScoreForWhite: -100, IsMate: true, MateCount: 1}, "-M1"},
		{"black mated", uci.Score{Kind: uci.ScoreMate, Value: -4}, core.ColorBlack, EvaluationView{ScoreForWhite: 100, IsMate: true, MateCount: 4}, "M4"},
		{"mate zero is mated", uci.Score{Kind: uci.ScoreMate, Value: 0}, core.ColorWhite, EvaluationView{ScoreForWhite: -100, IsMate: true}, "-M0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToEvaluationView(tt.score, tt.side)
			if got.IsMate != tt.want.IsMate || got.MateCount != tt.want.MateCount ||
				math.Abs(got.ScoreForWhite-tt.want.ScoreForWhite) > 1e-9 {
				t.Fatalf("ToEvaluationView = %+v, want %+v", got, tt.want)
			}
			if s := got.String(); s != tt.label {
				t.Errorf("String() = %q, want %q", s, tt.label)
			}
		})
	}
}

func TestBarFill(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0, 50},
		{5, 100},
		{-5, 0},
		{7.5, 100},
		{-12, 0},
		{MateSentinel, 100},
		{-MateSentinel, 0},
		{1.5, 65},
		{-0.35, 46.5},
	}
	for _, tt := range tests {
		if got := BarFill(tt.score); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BarFill(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}

	prev := BarFill(-10)
	for s := -10.0; s <= 10.0; s += 0.25 {
		got := BarFill(s)
		if got < prev {
			t.Fatalf("BarFill not monotonic at %v: %v < %v", s, got, prev)
		}
		if got < 0 || got > 100 {
			t.Fatalf("BarFill(%v) = %v out of range", s, got)
		}
		prev = got
	}
}

func TestEngineErrorUnwrap(t *testing.T) {
	cause := errors.New("pipe closed")
	err := &EngineError{Kind: FailureTerminated, Err: cause}

	if !errors.Is(err, ErrTerminated) {
		t.Errorf("terminated error does not match ErrTerminated")
	}
	if errors.Is(err, ErrStartFailure) {
		t.Errorf("terminated error matches ErrStartFailure")
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable through EngineError")
	}

	start := &EngineError{Kind: FailureStart, Err: cause}
	if !errors.Is(start, ErrStartFailure) {
		t.Errorf("start error does not match ErrStartFailure")
	}
}
