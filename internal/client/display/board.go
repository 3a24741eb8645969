package display

import (
	"fmt"
	"io"
	"strings"

	"chessanalysis/internal/core"
)

// RenderBoard writes an ASCII board with colored pieces
func RenderBoard(w io.Writer, asciiBoard string) {
	lines := strings.Split(asciiBoard, "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		isFileLine := (i == 0) || (i == 9)

		for _, char := range line {
			switch {
			case char >= 'a' && char <= 'h' && isFileLine:
				fmt.Fprintf(w, "%s%c%s", Cyan, char, Reset)
			case char >= 'A' && char <= 'Z':
				// White pieces
				fmt.Fprintf(w, "%s%c%s", Blue, char, Reset)
			case char >= 'a' && char <= 'z':
				// Black pieces
				fmt.Fprintf(w, "%s%c%s", Red, char, Reset)
			case char >= '1' && char <= '8':
				fmt.Fprintf(w, "%s%c%s", Cyan, char, Reset)
			default:
				fmt.Fprintf(w, "%c", char)
			}
		}
		fmt.Fprintln(w)
	}
}

// ColorForTurn returns colored turn indicator
func ColorForTurn(turn string) string {
	if turn == "w" {
		return Blue + "White" + Reset
	}
	return Red + "Black" + Reset
}

// EvalBar draws a horizontal evaluation bar of width cells, White's share
// filled from the left
func EvalBar(ev *core.EvaluationInfo, width int) string {
	fill := 50.0
	label := "  ?  "
	if ev != nil {
		fill = ev.BarFill
		label = ev.Display
	}

	white := int(fill/100*float64(width) + 0.5)
	if white < 0 {
		white = 0
	} else if white > width {
		white = width
	}
	return "[" + strings.Repeat("#", white) + strings.Repeat(".", width-white) + "] " + label
}
