// Package main implements an interactive debugging client for the chess
// analysis server API.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"chessanalysis/internal/client/commands"
	"chessanalysis/internal/client/display"
	"chessanalysis/internal/client/session"
	"chessanalysis/internal/config"

	"github.com/chzyer/readline"
)

func main() {
	_ = config.LoadEnv(os.Getenv("ENV_FILE"))

	apiURL := flag.String("api", envOr("CLIENT_API_URL", "http://localhost:8080"), "Analysis server API URL")
	streamURL := flag.String("stream", envOr("CLIENT_STREAM_URL", "ws://localhost:8081/ws"), "Analysis feed websocket URL")
	history := flag.String("history", ".chess_analysis_history", "Readline history file")
	flag.Parse()

	display.ConfigureColors(os.Stdout)

	s := session.New(*apiURL, *streamURL)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("analysis"),
		HistoryFile:     *history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("%sChess Analysis Debug Client%s\n", display.Cyan, display.Reset)
	fmt.Printf("%sAPI: %s  Stream: %s%s\n", display.Cyan, s.APIBaseURL, s.StreamURL, display.Reset)
	fmt.Printf("Type 'help' for commands\n\n")

	registry := commands.NewRegistry(s)

	for {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line == "exit" || line == "quit" || line == "x" {
			break
		}

		// Check for verbose flag
		if strings.HasSuffix(line, " -v") {
			s.Verbose = true
			line = strings.TrimSuffix(line, " -v")
		} else {
			s.Verbose = false
		}

		registry.Execute(line)
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func buildPrompt(s *session.Session) string {
	promptStr := "analysis"

	if s.CurrentBoard != "" {
		id := s.CurrentBoard
		if len(id) > 8 {
			id = id[:8]
		}
		promptStr += display.Yellow + " [" + display.Reset + display.White + id + display.Reset + display.Yellow + "]"
	}

	if b := s.BoardState; b != nil {
		promptStr += " - " + display.ColorForTurn(b.Turn)
		if ev := b.Analysis.Evaluation; ev != nil {
			promptStr += " " + display.Magenta + ev.Display + display.Reset
		}
	}

	return display.Prompt(promptStr)
}
