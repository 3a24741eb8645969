package session

import (
	"fmt"

	"chessanalysis/internal/core"
	"chessanalysis/internal/uci"
)

const (
	// MateSentinel stands in for a forced mate when filling the evaluation bar.
	// It is a display artifact and never a stored evaluation.
	MateSentinel = 100.0

	barClamp = 5.0
)

// EvaluationView is an engine evaluation from White's point of view
type EvaluationView struct {
	ScoreForWhite float64 // pawns, or ±MateSentinel for mates
	IsMate        bool
	MateCount     int // moves to mate, unsigned
}

// ToEvaluationView converts a side-to-move relative score to White's
// perspective. Mate in n with n>0 means the side to move delivers mate; n<=0
// means it is mated.
func ToEvaluationView(score uci.Score, sideToMove core.Color) EvaluationView {
	sign := 1.0
	if sideToMove == core.ColorBlack {
		sign = -1.0
	}

	if score.Kind == uci.ScoreMate {
		n := score.Value
		v := EvaluationView{IsMate: true, MateCount: n}
		if n < 0 {
			v.MateCount = -n
		}
		if n > 0 {
			v.ScoreForWhite = sign * MateSentinel
		} else {
			v.ScoreForWhite = -sign * MateSentinel
		}
		return v
	}

	return EvaluationView{ScoreForWhite: sign * float64(score.Value) / 100}
}

// BarFill maps a White-relative score to the evaluation bar fill percentage:
// 0 at -5 pawns or worse, 50 when level, 100 at +5 or better
func BarFill(scoreForWhite float64) float64 {
	s := scoreForWhite
	if s < -barClamp {
		s = -barClamp
	} else if s > barClamp {
		s = barClamp
	}
	return 50 + 10*s
}

// String formats the view the way the evaluation label shows it: "+0.35", "-1.20", "M3", "-M2"
func (v EvaluationView) String() string {
	if v.IsMate {
		if v.ScoreForWhite < 0 {
			return fmt.Sprintf("-M%d", v.MateCount)
		}
		return fmt.Sprintf("M%d", v.MateCount)
	}
	return fmt.Sprintf("%+.2f", v.ScoreForWhite)
}
