package display

import (
	"encoding/json"
	"fmt"
	"io"

	"chessanalysis/internal/core"
)

// PrettyPrintJSON writes v as indented JSON
func PrettyPrintJSON(w io.Writer, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%sError formatting JSON: %s%s\n", Red, err.Error(), Reset)
		return
	}
	fmt.Fprintln(w, string(data))
}

// AnalysisLine summarizes an analysis state in one line
func AnalysisLine(a core.AnalysisState) string {
	switch a.Status {
	case "failed":
		return fmt.Sprintf("%sengine %s failure: %s%s", Red, a.Failure, a.Message, Reset)
	case "uninitialized", "starting":
		return fmt.Sprintf("%s%s%s", Yellow, a.Status, Reset)
	}

	line := fmt.Sprintf("%-9s depth %2d/%-2d", a.Status, a.Depth, a.TargetDepth)
	if a.Evaluation != nil {
		line += fmt.Sprintf("  %s%6s%s", Magenta, a.Evaluation.Display, Reset)
	}
	if a.BestMove != nil {
		move := a.BestMove.Move
		if a.BestMove.None {
			move = "(none)"
		}
		line += fmt.Sprintf("  best %s%s%s", Green, move, Reset)
	}
	return line
}
