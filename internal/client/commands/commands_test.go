package commands

import (
	"testing"

	"chessanalysis/internal/client/session"
	"chessanalysis/internal/core"
)

func TestParseNewArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    core.CreateBoardRequest
		wantErr bool
	}{
		{"empty", nil, core.CreateBoardRequest{}, false},
		{"depth only", []string{"18"}, core.CreateBoardRequest{Depth: 18}, false},
		{"fen only", []string{"8/8/8/8/8/8/8/k6K", "w", "-", "-", "0", "1"}, core.CreateBoardRequest{FEN: "8/8/8/8/8/8/8/k6K w - - 0 1"}, false},
		{"depth and fen", []string{"5", "8/8/8/8/8/8/8/k6K", "b", "-", "-", "0", "1"}, core.CreateBoardRequest{Depth: 5, FEN: "8/8/8/8/8/8/8/k6K b - - 0 1"}, false},
		{"depth out of range", []string{"41"}, core.CreateBoardRequest{}, true},
	}
	for _, tt := range tests {
		got, err := parseNewArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: error = %v", tt.name, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestSearchSettled(t *testing.T) {
	tests := []struct {
		state core.AnalysisState
		want  bool
	}{
		{core.AnalysisState{Status: "starting"}, false},
		{core.AnalysisState{Status: "analyzing"}, false},
		{core.AnalysisState{Status: "ready"}, false},
		{core.AnalysisState{Status: "ready", BestMove: &core.BestMoveInfo{Move: "e2e4"}}, true},
		{core.AnalysisState{Status: "failed"}, true},
		{core.AnalysisState{Status: "uninitialized"}, true},
	}
	for _, tt := range tests {
		if got := searchSettled(tt.state); got != tt.want {
			t.Errorf("searchSettled(%+v) = %v", tt.state, got)
		}
	}
}

func TestRegistryAliases(t *testing.T) {
	r := NewRegistry(session.New("http://localhost:8080", "ws://localhost:8081/ws"))

	for _, name := range []string{
		"new", "join", "move", "reset", "pgn", "show", "eval", "engine", "poll",
		"watch", "log", "delete", "health", "url", "raw", "clear", "help", "exit",
	} {
		cmd, ok := r.Lookup(name)
		if !ok {
			t.Errorf("command %q not registered", name)
			continue
		}
		if cmd.ShortName != "" {
			if alias, ok := r.Lookup(cmd.ShortName); !ok || alias != cmd {
				t.Errorf("short name %q does not resolve to %q", cmd.ShortName, name)
			}
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := normalizeURL("localhost:8080", "http"); got != "http://localhost:8080" {
		t.Errorf("got %q", got)
	}
	if got := normalizeURL("wss://example.com/ws", "ws"); got != "wss://example.com/ws" {
		t.Errorf("got %q", got)
	}
}

func TestSessionBoardSwitch(t *testing.T) {
	s := session.New("http://localhost:8080", "")
	s.SetCurrentBoard("a")
	s.SetBoardState(&core.BoardResponse{BoardID: "a", Analysis: core.AnalysisState{Version: 7}})
	if s.LastVersion() != 7 {
		t.Errorf("LastVersion = %d", s.LastVersion())
	}
	s.SetCurrentBoard("b")
	if s.GetBoardState() != nil || s.LastVersion() != 0 {
		t.Error("state kept across board switch")
	}
}
