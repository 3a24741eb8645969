package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chessanalysis/internal/core"
	"chessanalysis/internal/position"
	"chessanalysis/internal/session"
	"chessanalysis/internal/uci"

	"github.com/rs/zerolog"
)

// Board is one analysis board: a position, the engine session analyzing it
// and the recorder presenting the session's output. Position changes are
// serialized by mu; each change is followed by a new analysis request.
type Board struct {
	ID string

	mu       sync.Mutex
	game     *position.Game
	session  *session.Session
	recorder *Recorder
	depth    int
	requests uint64 // last analysis request ID
	log      zerolog.Logger

	lastAccess atomic.Int64 // unix nanos
}

func (b *Board) touch() {
	b.lastAccess.Store(time.Now().UnixNano())
}

func (b *Board) idleSince() time.Time {
	return time.Unix(0, b.lastAccess.Load())
}

// startEngine launches the board's engine. A failure is reported through the
// recorder and also returned.
func (b *Board) startEngine(ctx context.Context) error {
	b.recorder.engineStarting()
	return b.session.Start(ctx)
}

// restartEngine disposes the current engine connection and starts a new one
func (b *Board) restartEngine(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.session.Dispose(); err != nil {
		b.log.Debug().Err(err).Msg("dispose before restart")
	}
	return b.startEngine(ctx)
}

// analyzeCurrent is the engine-ready hook: analyze whatever is on the board
func (b *Board) analyzeCurrent() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analyzeLocked()
}

// analyzeLocked asks the session to analyze the current position. Outside
// Ready and Analyzing nothing is sent. Engine failures reach the recorder
// through the session, so they are only logged here.
func (b *Board) analyzeLocked() {
	switch b.session.Status() {
	case session.StatusReady, session.StatusAnalyzing:
	default:
		return
	}

	b.requests++
	req := session.AnalysisRequest{
		ID:          b.requests,
		Position:    b.game.CurrentPositionNotation(),
		SideToMove:  b.game.SideToMove(),
		TargetDepth: b.depth,
	}
	b.recorder.beginAnalysis(req, b.session.EngineName())
	if err := b.session.RequestAnalysis(req); err != nil {
		b.log.Warn().Err(err).Msg("analysis request failed")
	}

	// Failed between the status check and the request
	if b.session.Status() == session.StatusFailed {
		b.recorder.syncFailed()
	}
}

func (b *Board) makeMove(move string) error {
	mv, err := uci.ParseMove(move)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.game.ApplyMove(mv.From, mv.To, mv.Promotion)
	if err != nil {
		return err
	}
	b.log.Debug().Str("move", res.Move.String()).Str("san", res.SAN).Msg("move applied")

	b.analyzeLocked()
	return nil
}

func (b *Board) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.game.Reset()
	b.analyzeLocked()
}

func (b *Board) loadPGN(pgn string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.game.LoadPGN(pgn); err != nil {
		return err
	}
	b.analyzeLocked()
	return nil
}

func (b *Board) fen() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.game.CurrentPositionNotation()
}

func (b *Board) snapshot() core.BoardResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	return core.BoardResponse{
		BoardID:   b.ID,
		FEN:       b.game.CurrentPositionNotation(),
		Turn:      b.game.SideToMove().String(),
		Status:    b.game.StatusLine(),
		Check:     b.game.IsInCheck(),
		Checkmate: b.game.IsCheckmate(),
		Draw:      b.game.IsDraw(),
		Moves:     b.game.Moves(),
		PGN:       b.game.PGN(),
		Analysis:  b.recorder.Snapshot(),
	}
}

func (b *Board) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.session.Dispose()
	b.recorder.engineStopped()
	return err
}
