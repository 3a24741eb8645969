package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chessanalysis/internal/core"
	"chessanalysis/internal/engine/enginetest"
	"chessanalysis/internal/position"
	"chessanalysis/internal/session"
	"chessanalysis/internal/storage"

	"github.com/rs/zerolog"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newDyingEngine() *enginetest.Fake {
	fe := &enginetest.Fake{}
	fe.SetDieOnGo(true)
	return fe
}

func newTestService(t *testing.T, fe *enginetest.Fake, store *storage.Store, cfg Config) *Service {
	t.Helper()
	svc := New(fe, store, cfg, zerolog.Nop())
	t.Cleanup(func() { _ = svc.Shutdown(time.Second) })
	return svc
}

// waitForBoard polls until cond holds for the board state
func waitForBoard(t *testing.T, svc *Service, id string, what string, cond func(core.BoardResponse) bool) core.BoardResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := svc.GetBoard(id)
		if err != nil {
			t.Fatalf("GetBoard error: %v", err)
		}
		if cond(resp) {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last analysis %+v", what, resp.Analysis)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func analysisDone(fen string) func(core.BoardResponse) bool {
	return func(r core.BoardResponse) bool {
		a := r.Analysis
		return a.Status == "ready" && a.BestMove != nil && a.Position == fen
	}
}

func TestCreateBoardAnalyzesWhenReady(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{DefaultDepth: 12})

	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	if resp.FEN != startFEN || resp.Turn != "w" || resp.Status != "White to move" {
		t.Fatalf("new board = %+v", resp)
	}

	got := waitForBoard(t, svc, resp.BoardID, "initial analysis", analysisDone(startFEN))
	a := got.Analysis
	if a.Engine != "Fakefish 1" || a.TargetDepth != 12 || a.Depth != 1 {
		t.Errorf("analysis = %+v", a)
	}
	if a.Evaluation == nil || a.Evaluation.ScoreForWhite != 0.25 || a.Evaluation.BarFill != 52.5 || a.Evaluation.Display != "+0.25" {
		t.Errorf("evaluation = %+v", a.Evaluation)
	}
	if a.BestMove.Move != "e2e4" || a.BestMove.From != "e2" || a.BestMove.To != "e4" {
		t.Errorf("best move = %+v", a.BestMove)
	}
	if svc.BoardCount() != 1 {
		t.Errorf("BoardCount = %d", svc.BoardCount())
	}
}

func TestMakeMoveReanalyzes(t *testing.T) {
	fe := &enginetest.Fake{}
	svc := newTestService(t, fe, nil, Config{})

	resp, err := svc.CreateBoard(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	id := resp.BoardID
	waitForBoard(t, svc, id, "initial analysis", analysisDone(startFEN))

	moved, err := svc.MakeMove(id, "e2e4")
	if err != nil {
		t.Fatalf("MakeMove error: %v", err)
	}
	if moved.Turn != "b" || len(moved.Moves) != 1 || moved.Moves[0] != "e2e4" {
		t.Fatalf("after move = %+v", moved)
	}

	got := waitForBoard(t, svc, id, "analysis after e4", analysisDone(moved.FEN))
	// Fake engine scores +25 for the side to move, which is Black here
	if got.Analysis.Evaluation == nil || got.Analysis.Evaluation.ScoreForWhite != -0.25 {
		t.Fatalf("evaluation = %+v", got.Analysis.Evaluation)
	}

	cmds := strings.Join(fe.Commands(), "\n")
	if !strings.Contains(cmds, "stop\nposition fen "+moved.FEN+"\ngo depth 10") {
		t.Fatalf("engine commands:\n%s", cmds)
	}
}

func TestMoveErrors(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{})
	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}

	if _, err := svc.MakeMove(resp.BoardID, "zz"); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("malformed move = %v, want ErrInvalidMove", err)
	}
	if _, err := svc.MakeMove(resp.BoardID, "e2e5"); !errors.Is(err, position.ErrIllegalMove) {
		t.Errorf("illegal move = %v, want ErrIllegalMove", err)
	}
	if _, err := svc.MakeMove("missing", "e2e4"); !errors.Is(err, ErrBoardNotFound) {
		t.Errorf("unknown board = %v, want ErrBoardNotFound", err)
	}

	after, _ := svc.GetBoard(resp.BoardID)
	if after.FEN != startFEN {
		t.Fatalf("rejected moves changed the board: %s", after.FEN)
	}
}

func TestCreateBoardValidation(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{MaxBoards: 1})

	if _, err := svc.CreateBoard(context.Background(), "not a fen", 0); !errors.Is(err, position.ErrInvalidFEN) {
		t.Errorf("bad FEN = %v, want ErrInvalidFEN", err)
	}
	if _, err := svc.CreateBoard(context.Background(), startFEN+"\nquit", 0); !errors.Is(err, position.ErrInvalidFEN) {
		t.Errorf("FEN with newline = %v, want ErrInvalidFEN", err)
	}
	if _, err := svc.CreateBoard(context.Background(), "", 41); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("depth 41 = %v, want ErrInvalidDepth", err)
	}

	black := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	resp, err := svc.CreateBoard(context.Background(), black, 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	if resp.Turn != "b" {
		t.Errorf("turn = %q", resp.Turn)
	}

	if _, err := svc.CreateBoard(context.Background(), "", 0); !errors.Is(err, ErrResourceLimit) {
		t.Errorf("over limit = %v, want ErrResourceLimit", err)
	}
}

func TestResetAndLoadPGN(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{})
	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	id := resp.BoardID

	loaded, err := svc.LoadPGN(id, "1. e4 e5 2. Nf3 *")
	if err != nil {
		t.Fatalf("LoadPGN error: %v", err)
	}
	if len(loaded.Moves) != 3 || loaded.Turn != "b" {
		t.Fatalf("after PGN = %+v", loaded)
	}

	if _, err := svc.LoadPGN(id, "1. e4 e5 2. Ke3 *"); !errors.Is(err, position.ErrInvalidPGN) {
		t.Fatalf("invalid PGN = %v", err)
	}
	unchanged, _ := svc.GetBoard(id)
	if unchanged.FEN != loaded.FEN {
		t.Fatalf("invalid PGN changed the board")
	}

	reset, err := svc.Reset(id)
	if err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if reset.FEN != startFEN || len(reset.Moves) != 0 {
		t.Fatalf("after reset = %+v", reset)
	}
	waitForBoard(t, svc, id, "analysis after reset", analysisDone(startFEN))

	ascii, err := svc.BoardASCII(id)
	if err != nil {
		t.Fatalf("BoardASCII error: %v", err)
	}
	if !strings.Contains(ascii.Board, "8 r n b q k b n r  8") {
		t.Fatalf("ascii:\n%s", ascii.Board)
	}
}

func TestEngineStartFailureAndRestart(t *testing.T) {
	fe := &enginetest.Fake{}
	fe.SetLaunchErr(errors.New("engine binary not found"))
	svc := newTestService(t, fe, nil, Config{})

	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard should succeed without an engine: %v", err)
	}
	if resp.Analysis.Status != "failed" || resp.Analysis.Failure != "start" {
		t.Fatalf("analysis = %+v", resp.Analysis)
	}

	// The board stays usable, analysis stays idle
	moved, err := svc.MakeMove(resp.BoardID, "d2d4")
	if err != nil {
		t.Fatalf("MakeMove error: %v", err)
	}
	if moved.Analysis.Status != "failed" {
		t.Fatalf("status after move = %q", moved.Analysis.Status)
	}
	if n := fe.Launches(); n != 1 {
		t.Fatalf("launches = %d, want 1 (no retry)", n)
	}

	fe.SetLaunchErr(nil)
	if _, err := svc.RestartEngine(context.Background(), resp.BoardID); err != nil {
		t.Fatalf("RestartEngine error: %v", err)
	}
	got := waitForBoard(t, svc, resp.BoardID, "analysis after restart", analysisDone(moved.FEN))
	if got.Analysis.Failure != "" {
		t.Errorf("failure not cleared: %+v", got.Analysis)
	}
}

func TestEngineTerminatedMidAnalysis(t *testing.T) {
	fe := newDyingEngine()
	svc := newTestService(t, fe, nil, Config{})

	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	got := waitForBoard(t, svc, resp.BoardID, "termination", func(r core.BoardResponse) bool {
		return r.Analysis.Status == "failed"
	})
	if got.Analysis.Failure != "terminated" {
		t.Fatalf("failure = %q, want terminated", got.Analysis.Failure)
	}
}

func TestRegisterWait(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{WaitTimeout: 2 * time.Second})
	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	id := resp.BoardID
	ready := waitForBoard(t, svc, id, "initial analysis", analysisDone(startFEN))

	// Stale version returns at once
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := svc.RegisterWait(id, ready.Analysis.Version-1, ctx)
	if err != nil {
		t.Fatalf("RegisterWait error: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("stale version did not return immediately")
	}

	// Current version waits for the next change
	ch, err = svc.RegisterWait(id, ready.Analysis.Version, ctx)
	if err != nil {
		t.Fatalf("RegisterWait error: %v", err)
	}
	select {
	case <-ch:
		t.Fatalf("woke without a change")
	case <-time.After(50 * time.Millisecond):
	}
	if _, err := svc.MakeMove(id, "e2e4"); err != nil {
		t.Fatalf("MakeMove error: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("waiter not notified after move")
	}

	if _, err := svc.RegisterWait("missing", 0, ctx); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("RegisterWait unknown board = %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{})
	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	id := resp.BoardID

	ch, cancel, err := svc.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer cancel()

	var last uint64
	deadline := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case st := <-ch:
			if st.Version < last {
				t.Fatalf("version went backwards: %d after %d", st.Version, last)
			}
			last = st.Version
			done = st.BestMove != nil && st.Status == "ready"
		case <-deadline:
			t.Fatalf("no completed analysis on the feed")
		}
	}

	if err := svc.DeleteBoard(id); err != nil {
		t.Fatalf("DeleteBoard error: %v", err)
	}
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				cancel() // no-op after close
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("feed not closed on delete")
		}
	}
}

func TestDeleteBoard(t *testing.T) {
	fe := &enginetest.Fake{}
	svc := newTestService(t, fe, nil, Config{})
	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	waitForBoard(t, svc, resp.BoardID, "initial analysis", analysisDone(startFEN))

	if err := svc.DeleteBoard(resp.BoardID); err != nil {
		t.Fatalf("DeleteBoard error: %v", err)
	}
	if _, err := svc.GetBoard(resp.BoardID); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("GetBoard after delete = %v", err)
	}
	if err := svc.DeleteBoard(resp.BoardID); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("second delete = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		cmds := fe.Commands()
		last := cmds[len(cmds)-1]
		if last == "quit" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine not told to quit, last command %q", last)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCleanupIdle(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{BoardTTL: time.Minute})
	idle, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	watched, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	_, cancel, err := svc.Subscribe(watched.BoardID)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer cancel()

	if n := svc.cleanupIdle(time.Now()); n != 0 {
		t.Fatalf("fresh boards cleaned up: %d", n)
	}
	if n := svc.cleanupIdle(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("cleanupIdle removed %d boards, want 1", n)
	}
	if _, err := svc.GetBoard(idle.BoardID); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("idle board survived cleanup")
	}
	if _, err := svc.GetBoard(watched.BoardID); err != nil {
		t.Fatalf("subscribed board removed: %v", err)
	}
}

func TestAnalysesLogged(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "analyses.db"), false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	if err := store.InitDB(); err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	svc := newTestService(t, &enginetest.Fake{}, store, Config{})

	if svc.GetStorageHealth() != "ok" {
		t.Fatalf("storage health = %q", svc.GetStorageHealth())
	}

	resp, err := svc.CreateBoard(context.Background(), "", 9)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	waitForBoard(t, svc, resp.BoardID, "initial analysis", analysisDone(startFEN))

	var records []core.AnalysisRecord
	deadline := time.Now().Add(3 * time.Second)
	for len(records) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("analysis never logged")
		}
		time.Sleep(20 * time.Millisecond)
		if records, err = svc.Analyses(resp.BoardID, ""); err != nil {
			t.Fatalf("Analyses error: %v", err)
		}
	}

	r := records[0]
	if r.FEN != startFEN || r.SideToMove != "w" || r.TargetDepth != 9 || r.ReachedDepth != 1 ||
		r.ScoreKind != "cp" || r.ScoreValue != 25 || r.BestMove != "e2e4" {
		t.Fatalf("record = %+v", r)
	}
}

func TestAnalysesWithoutStorage(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{})
	if _, err := svc.Analyses("", ""); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("Analyses = %v, want ErrStorageDisabled", err)
	}
	if svc.GetStorageHealth() != "disabled" {
		t.Fatalf("storage health = %q", svc.GetStorageHealth())
	}
}

func TestShutdown(t *testing.T) {
	svc := New(&enginetest.Fake{}, nil, Config{}, zerolog.Nop())
	if _, err := svc.CreateBoard(context.Background(), "", 0); err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	if err := svc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if svc.BoardCount() != 0 {
		t.Fatalf("boards left after shutdown")
	}
	if _, err := svc.CreateBoard(context.Background(), "", 0); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("CreateBoard after shutdown = %v", err)
	}
}

// gatedPresenter holds back the first best move until released, so a new
// request can begin while the notice is in flight
type gatedPresenter struct {
	*Recorder
	gated   atomic.Bool
	blocked chan struct{}
	release chan struct{}
	once    sync.Once
	after   chan core.AnalysisState
}

func (g *gatedPresenter) open() { g.once.Do(func() { close(g.release) }) }

func (g *gatedPresenter) OnBestMove(n session.BestMoveNotice) {
	if !g.gated.CompareAndSwap(false, true) {
		g.Recorder.OnBestMove(n)
		return
	}
	close(g.blocked)
	<-g.release
	g.Recorder.OnBestMove(n)
	g.after <- g.Recorder.Snapshot()
}

func TestBestMoveInFlightDuringMove(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{})
	b := svc.newBoard("gated", position.New(), 5)
	gate := &gatedPresenter{
		Recorder: b.recorder,
		blocked:  make(chan struct{}),
		release:  make(chan struct{}),
		after:    make(chan core.AnalysisState, 1),
	}
	b.session = session.New(&enginetest.Fake{}, gate, session.Config{DefaultDepth: 5}, zerolog.Nop())
	t.Cleanup(func() { _ = b.close() })
	t.Cleanup(gate.open)

	if err := b.startEngine(context.Background()); err != nil {
		t.Fatalf("startEngine error: %v", err)
	}
	select {
	case <-gate.blocked:
	case <-time.After(3 * time.Second):
		t.Fatal("initial analysis never finished")
	}

	// The start position's best move is still undelivered
	if err := b.makeMove("e2e4"); err != nil {
		t.Fatalf("makeMove error: %v", err)
	}
	gate.open()

	var st core.AnalysisState
	select {
	case st = <-gate.after:
	case <-time.After(3 * time.Second):
		t.Fatal("held best move never delivered")
	}
	if st.Position != afterE4FEN || st.Status != "analyzing" || st.BestMove != nil {
		t.Fatalf("state after stale best move = status %s position %q best move %+v", st.Status, st.Position, st.BestMove)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		st = b.recorder.Snapshot()
		if st.Status == "ready" && st.BestMove != nil && st.Position == afterE4FEN {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("analysis of the new position never finished: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseMarksEngineStopped(t *testing.T) {
	svc := newTestService(t, &enginetest.Fake{}, nil, Config{})
	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	waitForBoard(t, svc, resp.BoardID, "initial analysis", analysisDone(startFEN))

	b, err := svc.getBoard(resp.BoardID)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if st := b.recorder.Snapshot(); st.Status != "uninitialized" || st.Message != "Engine stopped" {
		t.Fatalf("analysis after close = %+v", st)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogComponentTaggedOnce(t *testing.T) {
	var out lockedBuffer
	svc := New(&enginetest.Fake{}, nil, Config{}, zerolog.New(&out).Level(zerolog.DebugLevel))
	t.Cleanup(func() { _ = svc.Shutdown(time.Second) })

	resp, err := svc.CreateBoard(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("CreateBoard error: %v", err)
	}
	waitForBoard(t, svc, resp.BoardID, "initial analysis", analysisDone(startFEN))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("nothing logged")
	}
	for _, line := range lines {
		if n := strings.Count(line, `"component":`); n > 1 {
			t.Errorf("component tagged %d times: %s", n, line)
		}
	}
}
