package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chessanalysis/internal/core"
	"chessanalysis/internal/engine/enginetest"
	"chessanalysis/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

func newTestStream(t *testing.T) (*service.Service, string) {
	t.Helper()
	svc := service.New(&enginetest.Fake{}, nil, service.Config{DefaultDepth: 5}, zerolog.Nop())
	ts := httptest.NewServer(New(svc, zerolog.Nop()).Handler())
	t.Cleanup(func() {
		_ = svc.Shutdown(time.Second)
		ts.Close()
	})
	return svc, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func receive(t *testing.T, ws *websocket.Conn) core.StreamMessage {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg core.StreamMessage
	if err := websocket.JSON.Receive(ws, &msg); err != nil {
		t.Fatalf("receive: %v", err)
	}
	return msg
}

func TestFeedDeliversAnalysis(t *testing.T) {
	svc, url := newTestStream(t)
	board, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}

	ws := dial(t, url+"?board="+board.BoardID)

	var last uint64
	for {
		msg := receive(t, ws)
		if msg.Type != MessageAnalysis || msg.BoardID != board.BoardID || msg.Analysis == nil {
			t.Fatalf("message = %+v", msg)
		}
		a := msg.Analysis
		if a.Version < last {
			t.Fatalf("version went back from %d to %d", last, a.Version)
		}
		last = a.Version
		if a.Status == "ready" && a.BestMove != nil {
			if a.BestMove.Move != "e2e4" || a.Evaluation == nil || a.Evaluation.Display != "+0.25" {
				t.Errorf("final state = %+v", a)
			}
			break
		}
	}

	// A move starts a new analysis on the same feed
	if _, err := svc.MakeMove(board.BoardID, "e2e4"); err != nil {
		t.Fatal(err)
	}
	for {
		a := receive(t, ws).Analysis
		if a.Status == "ready" && a.BestMove != nil && strings.Contains(a.Position, " b ") {
			if a.Evaluation.ScoreForWhite != -0.25 {
				t.Errorf("evaluation after e2e4 = %+v", a.Evaluation)
			}
			break
		}
	}
}

func TestFeedEndsOnDelete(t *testing.T) {
	svc, url := newTestStream(t)
	board, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}

	ws := dial(t, url+"?board="+board.BoardID)
	receive(t, ws)

	if err := svc.DeleteBoard(board.BoardID); err != nil {
		t.Fatal(err)
	}

	// Drain what was queued, then the server closes the connection
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg core.StreamMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			if strings.Contains(err.Error(), "timeout") {
				t.Fatal("feed still open after board deletion")
			}
			return
		}
	}
}

func TestFeedErrors(t *testing.T) {
	_, url := newTestStream(t)

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"missing board", "", core.ErrInvalidRequest},
		{"malformed id", "?board=abc", core.ErrInvalidRequest},
		{"unknown board", "?board=0b9c7f6e-5a4d-4c3b-8a29-1f0e9d8c7b6a", core.ErrBoardNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := receive(t, dial(t, url+tt.query))
			if msg.Type != MessageError || msg.Error == nil || msg.Error.Code != tt.code {
				t.Errorf("message = %+v", msg)
			}
		})
	}
}
