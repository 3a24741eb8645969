// Package service coordinates analysis boards: each board pairs a position
// with its own engine session. It also fans analysis updates out to
// long-polling clients and live subscribers, and logs completed analyses.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chessanalysis/internal/board"
	"chessanalysis/internal/core"
	"chessanalysis/internal/engine"
	"chessanalysis/internal/logging"
	"chessanalysis/internal/position"
	"chessanalysis/internal/session"
	"chessanalysis/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxBoards   = 16
	DefaultBoardTTL    = 2 * time.Hour
	CleanupJobInterval = 10 * time.Minute

	MaxDepth = 40

	subscriberBuffer = 16
)

var (
	ErrBoardNotFound   = errors.New("board not found")
	ErrResourceLimit   = errors.New("board limit reached")
	ErrInvalidMove     = errors.New("invalid move")
	ErrInvalidDepth    = errors.New("invalid depth")
	ErrStorageDisabled = errors.New("storage disabled")
	ErrShuttingDown    = errors.New("service shutting down")
)

type Config struct {
	DefaultDepth int
	MaxBoards    int
	BoardTTL     time.Duration
	WaitTimeout  time.Duration  // long-poll limit, WaitTimeout when zero
	Session      session.Config // handshake timeout and engine options; depth is per board
}

// Service coordinates analysis boards, notifications and storage
type Service struct {
	cfg      Config
	launcher engine.Launcher
	store    *storage.Store // nil if persistence disabled
	waiter   *WaitRegistry
	root     zerolog.Logger // untagged, boards derive their loggers from it
	log      zerolog.Logger

	mu       sync.RWMutex
	boards   map[string]*Board
	shutdown bool

	subMu sync.Mutex
	subs  map[string]map[chan core.AnalysisState]struct{}
}

// New creates a service. store may be nil.
func New(launcher engine.Launcher, store *storage.Store, cfg Config, log zerolog.Logger) *Service {
	if cfg.DefaultDepth < 1 {
		cfg.DefaultDepth = session.DefaultDepth
	}
	if cfg.MaxBoards < 1 {
		cfg.MaxBoards = DefaultMaxBoards
	}
	if cfg.BoardTTL <= 0 {
		cfg.BoardTTL = DefaultBoardTTL
	}
	return &Service{
		cfg:      cfg,
		launcher: launcher,
		store:    store,
		waiter:   NewWaitRegistry(cfg.WaitTimeout),
		root:     log,
		log:      log.With().Str("component", "service").Logger(),
		boards:   make(map[string]*Board),
		subs:     make(map[string]map[chan core.AnalysisState]struct{}),
	}
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// BoardCount returns the number of live boards
func (s *Service) BoardCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.boards)
}

// CreateBoard sets up a board at fen (standard start when empty) and starts
// its engine. An engine start failure does not fail creation: the board is
// usable without analysis and the failure shows in its analysis state.
func (s *Service) CreateBoard(ctx context.Context, fen string, depth int) (core.BoardResponse, error) {
	if depth == 0 {
		depth = s.cfg.DefaultDepth
	}
	if depth < 1 || depth > MaxDepth {
		return core.BoardResponse{}, fmt.Errorf("%w: %d, must be 1-%d", ErrInvalidDepth, depth, MaxDepth)
	}

	var (
		game *position.Game
		err  error
	)
	if fen == "" {
		game = position.New()
	} else {
		if !board.IsSafeFEN(fen) {
			return core.BoardResponse{}, fmt.Errorf("%w: malformed", position.ErrInvalidFEN)
		}
		if game, err = position.FromFEN(fen); err != nil {
			return core.BoardResponse{}, err
		}
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return core.BoardResponse{}, ErrShuttingDown
	}
	if len(s.boards) >= s.cfg.MaxBoards {
		s.mu.Unlock()
		return core.BoardResponse{}, fmt.Errorf("%w: maximum %d boards", ErrResourceLimit, s.cfg.MaxBoards)
	}

	id := uuid.New().String()
	b := s.newBoard(id, game, depth)
	s.boards[id] = b
	s.mu.Unlock()

	b.log.Info().Str("fen", game.CurrentPositionNotation()).Int("depth", depth).Msg("board created")

	if err := b.startEngine(ctx); err != nil {
		b.log.Warn().Err(err).Msg("engine did not start")
	}

	return b.snapshot(), nil
}

func (s *Service) newBoard(id string, game *position.Game, depth int) *Board {
	log := logging.ForBoard(s.root, id)
	b := &Board{
		ID:    id,
		game:  game,
		depth: depth,
		log:   log,
	}
	b.recorder = newRecorder(id, s.store, func(st core.AnalysisState) {
		s.publish(id, st)
	}, log)
	b.recorder.onReady = b.analyzeCurrent
	b.session = session.New(s.launcher, b.recorder, session.Config{
		DefaultDepth:     depth,
		HandshakeTimeout: s.cfg.Session.HandshakeTimeout,
		Options:          s.cfg.Session.Options,
	}, log)
	b.touch()
	return b
}

func (s *Service) getBoard(id string) (*Board, error) {
	s.mu.RLock()
	b, ok := s.boards[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBoardNotFound, id)
	}
	b.touch()
	return b, nil
}

// GetBoard returns the board's position and analysis state
func (s *Service) GetBoard(id string) (core.BoardResponse, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return core.BoardResponse{}, err
	}
	return b.snapshot(), nil
}

// MakeMove applies a UCI coordinate move and starts analysis of the result
func (s *Service) MakeMove(id, move string) (core.BoardResponse, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return core.BoardResponse{}, err
	}
	if err := b.makeMove(move); err != nil {
		return core.BoardResponse{}, err
	}
	return b.snapshot(), nil
}

// Reset returns the board to the standard starting position
func (s *Service) Reset(id string) (core.BoardResponse, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return core.BoardResponse{}, err
	}
	b.reset()
	return b.snapshot(), nil
}

// LoadPGN replaces the board's game. An invalid PGN leaves it unchanged.
func (s *Service) LoadPGN(id, pgn string) (core.BoardResponse, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return core.BoardResponse{}, err
	}
	if err := b.loadPGN(pgn); err != nil {
		return core.BoardResponse{}, err
	}
	return b.snapshot(), nil
}

// RestartEngine replaces the board's engine connection, the only way out of
// a failed session
func (s *Service) RestartEngine(ctx context.Context, id string) (core.BoardResponse, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return core.BoardResponse{}, err
	}
	if err := b.restartEngine(ctx); err != nil {
		b.log.Warn().Err(err).Msg("engine restart failed")
	}
	return b.snapshot(), nil
}

// BoardASCII renders the board's current position
func (s *Service) BoardASCII(id string) (core.BoardASCIIResponse, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return core.BoardASCIIResponse{}, err
	}
	fen := b.fen()
	parsed, err := board.ParseFEN(fen)
	if err != nil {
		return core.BoardASCIIResponse{}, err
	}
	return core.BoardASCIIResponse{FEN: fen, Board: parsed.ToASCII()}, nil
}

// DeleteBoard stops the board's engine and releases its waiters and subscribers
func (s *Service) DeleteBoard(id string) error {
	s.mu.Lock()
	b, ok := s.boards[id]
	delete(s.boards, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrBoardNotFound, id)
	}

	s.waiter.RemoveBoard(id)
	s.closeSubscribers(id)

	if err := b.close(); err != nil {
		b.log.Debug().Err(err).Msg("engine close on delete")
	}
	b.log.Info().Msg("board deleted")
	return nil
}

// RegisterWait returns a channel that fires once the board's analysis
// version differs from version, or on timeout
func (s *Service) RegisterWait(id string, version uint64, ctx context.Context) (<-chan struct{}, error) {
	b, err := s.getBoard(id)
	if err != nil {
		return nil, err
	}
	ch := s.waiter.RegisterWait(id, version, ctx)

	// Covers an update between the client's read and registration
	s.waiter.NotifyBoard(id, b.recorder.Snapshot().Version)
	return ch, nil
}

// Subscribe streams every analysis state of the board, starting with the
// current one. The channel closes when the board is deleted or cancel is
// called. A slow subscriber loses intermediate states, never the latest.
func (s *Service) Subscribe(id string) (<-chan core.AnalysisState, func(), error) {
	b, err := s.getBoard(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan core.AnalysisState, subscriberBuffer)

	s.subMu.Lock()
	ch <- b.recorder.Snapshot()
	if s.subs[id] == nil {
		s.subs[id] = make(map[chan core.AnalysisState]struct{})
	}
	s.subs[id][ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if set, ok := s.subs[id]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(s.subs, id)
			}
		}
	}
	return ch, cancel, nil
}

// publish is the recorder's change hook
func (s *Service) publish(id string, st core.AnalysisState) {
	s.waiter.NotifyBoard(id, st.Version)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs[id] {
		select {
		case ch <- st:
		default:
			// Drop the oldest queued state to make room for the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

func (s *Service) closeSubscribers(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs[id] {
		close(ch)
	}
	delete(s.subs, id)
}

func (s *Service) hasSubscribers(id string) bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs[id]) > 0
}

// Analyses returns logged analyses. Empty filters match everything.
func (s *Service) Analyses(boardID, fen string) ([]core.AnalysisRecord, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	records, err := s.store.QueryAnalyses(boardID, fen)
	if err != nil {
		return nil, err
	}

	out := make([]core.AnalysisRecord, 0, len(records))
	for _, r := range records {
		out = append(out, core.AnalysisRecord{
			BoardID:      r.BoardID,
			FEN:          r.FEN,
			SideToMove:   r.SideToMove,
			TargetDepth:  r.TargetDepth,
			ReachedDepth: r.ReachedDepth,
			ScoreKind:    r.ScoreKind,
			ScoreValue:   r.ScoreValue,
			BestMove:     r.BestMove,
			RecordedAt:   r.RecordedAt,
		})
	}
	return out, nil
}

// RunCleanupJob periodically deletes boards idle for longer than BoardTTL.
// Boards with live subscribers are kept.
func (s *Service) RunCleanupJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupIdle(time.Now())
		}
	}
}

func (s *Service) cleanupIdle(now time.Time) int {
	s.mu.RLock()
	var expired []string
	for id, b := range s.boards {
		if now.Sub(b.idleSince()) > s.cfg.BoardTTL && !s.hasSubscribers(id) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	deleted := 0
	for _, id := range expired {
		if err := s.DeleteBoard(id); err == nil {
			deleted++
		}
	}
	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Msg("cleanup: removed idle boards")
	}
	return deleted
}

// Shutdown stops every engine and releases waiters, subscribers and storage
func (s *Service) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.waiter.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("wait registry: %w", err))
	}

	s.mu.Lock()
	s.shutdown = true
	boards := s.boards
	s.boards = make(map[string]*Board)
	s.mu.Unlock()

	for id, b := range boards {
		s.closeSubscribers(id)
		if err := b.close(); err != nil {
			errs = append(errs, fmt.Errorf("board %s: %w", id, err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	return errors.Join(errs...)
}
