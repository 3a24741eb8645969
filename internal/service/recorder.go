package service

import (
	"math"
	"sync"
	"time"

	"chessanalysis/internal/core"
	"chessanalysis/internal/session"
	"chessanalysis/internal/storage"

	"github.com/rs/zerolog"
)

// Recorder is the session Presenter of one board. It folds notifications
// into an AnalysisState and publishes every change.
type Recorder struct {
	boardID string
	store   *storage.Store // nil if persistence disabled
	publish func(core.AnalysisState)
	onReady func()
	log     zerolog.Logger

	mu      sync.Mutex
	state   core.AnalysisState
	view    *session.EvaluationView
	side    core.Color
	request uint64 // ID of the request the state describes
}

func newRecorder(boardID string, store *storage.Store, publish func(core.AnalysisState), log zerolog.Logger) *Recorder {
	r := &Recorder{
		boardID: boardID,
		store:   store,
		publish: publish,
		log:     log,
	}
	r.state.Status = session.StatusUninitialized.String()
	return r
}

// Snapshot returns a copy of the current state
func (r *Recorder) Snapshot() core.AnalysisState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyState(r.state)
}

func (r *Recorder) OnReady(message string) {
	r.update(func(st *core.AnalysisState) {
		st.Status = session.StatusReady.String()
		st.Message = message
		st.Failure = ""
	})
	if r.onReady != nil {
		r.onReady()
	}
}

func (r *Recorder) OnBestMove(notice session.BestMoveNotice) {
	var record *storage.AnalysisRecord

	r.updateFor(notice.Request, func(st *core.AnalysisState) {
		st.Status = session.StatusReady.String()
		st.BestMove = bestMoveInfo(notice)
		if r.store != nil && st.Position != "" {
			record = r.analysisRecordLocked(st, notice)
		}
	})

	if record != nil {
		r.store.RecordAnalysis(*record)
	}
}

func (r *Recorder) OnEvaluationUpdate(request uint64, view session.EvaluationView) {
	r.updateFor(request, func(st *core.AnalysisState) {
		r.view = &view
		st.Evaluation = &core.EvaluationInfo{
			ScoreForWhite: view.ScoreForWhite,
			IsMate:        view.IsMate,
			MateCount:     view.MateCount,
			BarFill:       session.BarFill(view.ScoreForWhite),
			Display:       view.String(),
		}
	})
}

func (r *Recorder) OnDepthUpdate(request uint64, depth int) {
	r.updateFor(request, func(st *core.AnalysisState) {
		st.Depth = depth
	})
}

func (r *Recorder) OnEngineFailure(kind session.FailureKind, err error) {
	r.log.Warn().Err(err).Str("kind", kind.String()).Msg("analysis engine failed")
	r.update(func(st *core.AnalysisState) {
		st.Status = session.StatusFailed.String()
		st.Failure = kind.String()
		st.Message = err.Error()
	})
}

// engineStarting marks a (re)start of the engine connection
func (r *Recorder) engineStarting() {
	r.update(func(st *core.AnalysisState) {
		*st = core.AnalysisState{
			Version: st.Version,
			Status:  session.StatusStarting.String(),
			Message: "Starting engine",
		}
		r.view = nil
	})
}

// engineStopped marks the board's session as disposed
func (r *Recorder) engineStopped() {
	r.update(func(st *core.AnalysisState) {
		st.Status = session.StatusUninitialized.String()
		st.Message = "Engine stopped"
	})
}

// beginAnalysis clears the previous results for a new request
func (r *Recorder) beginAnalysis(req session.AnalysisRequest, engineName string) {
	r.update(func(st *core.AnalysisState) {
		st.Status = session.StatusAnalyzing.String()
		st.Engine = engineName
		st.Position = req.Position
		st.TargetDepth = req.TargetDepth
		st.Depth = 0
		st.Evaluation = nil
		st.BestMove = nil
		r.view = nil
		r.side = req.SideToMove
		r.request = req.ID
	})
}

// syncFailed corrects an analyzing state whose failure notice was already
// delivered before the request began
func (r *Recorder) syncFailed() {
	r.mu.Lock()
	stale := r.state.Status == session.StatusAnalyzing.String()
	r.mu.Unlock()
	if !stale {
		return
	}
	r.update(func(st *core.AnalysisState) {
		st.Status = session.StatusFailed.String()
		if st.Failure == "" {
			st.Failure = session.FailureTerminated.String()
		}
	})
}

// update applies fn under the lock, bumps the version and publishes
func (r *Recorder) update(fn func(st *core.AnalysisState)) {
	r.mu.Lock()
	r.applyLocked(fn)
}

// updateFor is update for search output. Output of a request other than the
// one in progress arrived after a newer request began and is dropped.
func (r *Recorder) updateFor(request uint64, fn func(st *core.AnalysisState)) {
	r.mu.Lock()
	if request != r.request {
		current := r.request
		r.mu.Unlock()
		r.log.Debug().Uint64("request", request).Uint64("current", current).Msg("dropped output of superseded request")
		return
	}
	r.applyLocked(fn)
}

// applyLocked is called with mu held and releases it before publishing
func (r *Recorder) applyLocked(fn func(st *core.AnalysisState)) {
	fn(&r.state)
	r.state.Version++
	snapshot := copyState(r.state)
	r.mu.Unlock()

	if r.publish != nil {
		r.publish(snapshot)
	}
}

func (r *Recorder) analysisRecordLocked(st *core.AnalysisState, notice session.BestMoveNotice) *storage.AnalysisRecord {
	rec := &storage.AnalysisRecord{
		BoardID:      r.boardID,
		FEN:          st.Position,
		SideToMove:   r.side.String(),
		TargetDepth:  st.TargetDepth,
		ReachedDepth: st.Depth,
		BestMove:     notice.Move().String(),
		RecordedAt:   time.Now().UTC(),
	}
	if notice.None {
		rec.BestMove = "(none)"
	}
	// Scores are stored from White's point of view
	if v := r.view; v != nil {
		if v.IsMate {
			rec.ScoreKind = "mate"
			rec.ScoreValue = v.MateCount
			if v.ScoreForWhite < 0 {
				rec.ScoreValue = -v.MateCount
			}
		} else {
			rec.ScoreKind = "cp"
			rec.ScoreValue = int(math.Round(v.ScoreForWhite * 100))
		}
	}
	return rec
}

func bestMoveInfo(n session.BestMoveNotice) *core.BestMoveInfo {
	if n.None {
		return &core.BestMoveInfo{None: true}
	}
	info := &core.BestMoveInfo{
		Move: n.Move().String(),
		From: n.From.String(),
		To:   n.To.String(),
	}
	if s := n.Promotion.Suffix(); s != 0 {
		info.Promotion = string(s)
	}
	return info
}

func copyState(st core.AnalysisState) core.AnalysisState {
	out := st
	if st.Evaluation != nil {
		ev := *st.Evaluation
		out.Evaluation = &ev
	}
	if st.BestMove != nil {
		bm := *st.BestMove
		out.BestMove = &bm
	}
	return out
}
