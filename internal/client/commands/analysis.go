package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"chessanalysis/internal/client/api"
	"chessanalysis/internal/client/display"
	"chessanalysis/internal/core"
)

const defaultWatchTimeout = 60 * time.Second

func (r *Registry) registerAnalysisCommands() {
	r.Register(&Command{
		Name:        "eval",
		ShortName:   "e",
		Description: "Show the current analysis",
		Usage:       "eval",
		Handler:     evalHandler,
	})

	r.Register(&Command{
		Name:        "engine",
		ShortName:   "k",
		Description: "Restart the board's engine",
		Usage:       "engine",
		Handler:     engineHandler,
	})

	r.Register(&Command{
		Name:        "poll",
		ShortName:   "p",
		Description: "Long-poll for the next analysis update",
		Usage:       "poll",
		Handler:     pollHandler,
	})

	r.Register(&Command{
		Name:        "watch",
		ShortName:   "w",
		Description: "Stream analysis until the search completes",
		Usage:       "watch [seconds]",
		Handler:     watchHandler,
	})

	r.Register(&Command{
		Name:        "log",
		ShortName:   "l",
		Description: "List logged analyses",
		Usage:       "log [all|fen]",
		Handler:     logHandler,
	})
}

func printAnalysis(a core.AnalysisState) {
	if a.Engine != "" {
		fmt.Printf("Engine: %s\n", a.Engine)
	}
	fmt.Printf("Eval:   %s\n", display.EvalBar(a.Evaluation, 30))
	fmt.Println(display.AnalysisLine(a))
	if a.Message != "" && a.Status != "failed" {
		fmt.Printf("%s%s%s\n", display.Cyan, a.Message, display.Reset)
	}
}

func evalHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}

	resp, err := s.GetClient().GetBoard(boardID)
	if err != nil {
		return err
	}
	s.SetBoardState(resp)
	printAnalysis(resp.Analysis)
	return nil
}

func engineHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}

	resp, err := s.GetClient().RestartEngine(boardID)
	if err != nil {
		return err
	}
	s.SetBoardState(resp)
	fmt.Printf("%sEngine restarted%s\n", display.Green, display.Reset)
	fmt.Println(display.AnalysisLine(resp.Analysis))
	return nil
}

func pollHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}

	version := s.LastVersion()
	fmt.Printf("%sWaiting for analysis past version %d%s\n", display.Cyan, version, display.Reset)
	fmt.Printf("%sThis may take up to 30 seconds%s\n", display.Cyan, display.Reset)

	resp, err := s.GetClient().GetBoardWithPoll(boardID, version)
	if err != nil {
		return err
	}
	s.SetBoardState(resp)

	if resp.Analysis.Version != version {
		fmt.Printf("%sAnalysis updated (version %d)%s\n", display.Green, resp.Analysis.Version, display.Reset)
	} else {
		fmt.Printf("%sNo updates (timeout)%s\n", display.Yellow, display.Reset)
	}
	fmt.Println(display.AnalysisLine(resp.Analysis))
	return nil
}

func watchHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}

	timeout := defaultWatchTimeout
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs < 1 {
			return fmt.Errorf("invalid seconds: %s", args[0])
		}
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	fmt.Printf("%sWatching %s (Ctrl-C to stop)%s\n", display.Cyan, boardID, display.Reset)

	var last *core.AnalysisState
	err = s.GetClient().Watch(ctx, boardID, func(msg core.StreamMessage) error {
		a := msg.Analysis
		if a == nil {
			return nil
		}
		last = a
		fmt.Println(display.AnalysisLine(*a))
		if searchSettled(*a) {
			return api.ErrWatchDone
		}
		return nil
	})

	if last != nil {
		if state := s.GetBoardState(); state != nil && state.BoardID == boardID {
			state.Analysis = *last
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Printf("%sStopped after %s%s\n", display.Yellow, timeout, display.Reset)
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

// searchSettled reports a finished search or a state no search will leave
func searchSettled(a core.AnalysisState) bool {
	switch a.Status {
	case "failed", "uninitialized":
		return true
	case "ready":
		return a.BestMove != nil
	}
	return false
}

func logHandler(s Session, args []string) error {
	boardID := s.GetCurrentBoard()
	fen := ""
	if len(args) > 0 {
		if args[0] == "all" {
			boardID = ""
		} else {
			fen = strings.Join(args, " ")
		}
	}

	resp, err := s.GetClient().Analyses(boardID, fen)
	if err != nil {
		return err
	}
	if len(resp.Analyses) == 0 {
		fmt.Println("No analyses logged")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDEPTH\tSCORE\tBEST\tFEN")
	for _, a := range resp.Analyses {
		score := "-"
		switch a.ScoreKind {
		case "cp":
			score = fmt.Sprintf("%+.2f", float64(a.ScoreValue)/100)
		case "mate":
			score = fmt.Sprintf("M%d", a.ScoreValue)
			if a.ScoreValue < 0 {
				score = fmt.Sprintf("-M%d", -a.ScoreValue)
			}
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%s\n",
			a.RecordedAt.Local().Format("15:04:05"), a.ReachedDepth, a.TargetDepth, score, a.BestMove, a.FEN)
	}
	return tw.Flush()
}
