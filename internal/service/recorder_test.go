package service

import (
	"testing"

	"chessanalysis/internal/core"
	"chessanalysis/internal/session"
	"chessanalysis/internal/uci"

	"github.com/rs/zerolog"
)

const afterE4FEN = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"

func TestRecorderDropsSupersededOutput(t *testing.T) {
	var published int
	r := newRecorder("b1", nil, func(core.AnalysisState) { published++ }, zerolog.Nop())

	r.beginAnalysis(session.AnalysisRequest{ID: 1, Position: startFEN, SideToMove: core.ColorWhite, TargetDepth: 10}, "Fakefish 1")
	r.OnDepthUpdate(1, 4)
	r.beginAnalysis(session.AnalysisRequest{ID: 2, Position: afterE4FEN, SideToMove: core.ColorBlack, TargetDepth: 10}, "Fakefish 1")

	before := r.Snapshot()
	count := published

	// Output of the first request delivered after the second began
	r.OnDepthUpdate(1, 9)
	r.OnEvaluationUpdate(1, session.EvaluationView{ScoreForWhite: 0.3})
	r.OnBestMove(session.BestMoveNotice{Request: 1, From: uci.Square{File: 'e', Rank: '2'}, To: uci.Square{File: 'e', Rank: '4'}})

	st := r.Snapshot()
	if st.Version != before.Version || published != count {
		t.Fatalf("superseded output published: version %d -> %d, %d publishes", before.Version, st.Version, published-count)
	}
	if st.Status != "analyzing" || st.Position != afterE4FEN || st.Depth != 0 || st.Evaluation != nil || st.BestMove != nil {
		t.Fatalf("state after superseded output = %+v", st)
	}

	r.OnDepthUpdate(2, 6)
	r.OnBestMove(session.BestMoveNotice{Request: 2, From: uci.Square{File: 'e', Rank: '7'}, To: uci.Square{File: 'e', Rank: '5'}})
	st = r.Snapshot()
	if st.Status != "ready" || st.Depth != 6 || st.BestMove == nil || st.BestMove.Move != "e7e5" {
		t.Fatalf("state after current output = %+v", st)
	}
}

func TestRecorderEngineStopped(t *testing.T) {
	r := newRecorder("b1", nil, nil, zerolog.Nop())
	r.OnReady("Fakefish 1 ready")
	r.engineStopped()

	st := r.Snapshot()
	if st.Status != "uninitialized" || st.Message != "Engine stopped" {
		t.Fatalf("state = %+v", st)
	}
}
