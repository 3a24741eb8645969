// Package session implements the engine session: it owns one engine
// connection, serializes analysis requests against it, and turns the engine's
// output stream into typed presenter notifications.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"chessanalysis/internal/core"
	"chessanalysis/internal/engine"
	"chessanalysis/internal/uci"

	"github.com/rs/zerolog"
)

const (
	DefaultDepth            = 15
	DefaultHandshakeTimeout = 10 * time.Second
)

// Option is an engine option applied with setoption after the handshake
type Option struct {
	Name  string
	Value string
}

type Config struct {
	DefaultDepth     int           // depth used by PositionChanged
	HandshakeTimeout time.Duration // zero disables the handshake deadline
	Options          []Option
}

// AnalysisRequest asks for analysis of one position. SideToMove is captured
// with the position so evaluations are oriented against the position that
// was actually searched. ID is chosen by the caller and echoed on every
// notification produced for the request.
type AnalysisRequest struct {
	ID          uint64
	Position    string
	SideToMove  core.Color
	TargetDepth int
}

func (r AnalysisRequest) validate() error {
	if r.TargetDepth < 1 {
		return fmt.Errorf("%w: target depth %d, must be at least 1", ErrInvalidRequest, r.TargetDepth)
	}
	if strings.TrimSpace(r.Position) == "" {
		return fmt.Errorf("%w: empty position", ErrInvalidRequest)
	}
	// A newline would let the position smuggle extra engine commands
	for _, c := range r.Position {
		if unicode.IsControl(c) {
			return fmt.Errorf("%w: control character in position", ErrInvalidRequest)
		}
	}
	if r.SideToMove != core.ColorWhite && r.SideToMove != core.ColorBlack {
		return fmt.Errorf("%w: side to move not set", ErrInvalidRequest)
	}
	return nil
}

// Session manages exactly one engine connection. All interaction with the
// engine goes through its methods; output is reported through the Presenter.
type Session struct {
	launcher  engine.Launcher
	presenter Presenter
	cfg       Config
	log       zerolog.Logger

	mu         sync.Mutex
	status     Status
	conn       engine.Conn
	generation uint64 // bumped per connection, output from older ones is dropped
	current    *AnalysisRequest
	staleStops int // bestmove replies still owed by superseded searches
	engineName string
	handshake  *time.Timer
}

func New(launcher engine.Launcher, presenter Presenter, cfg Config, log zerolog.Logger) *Session {
	if cfg.DefaultDepth < 1 {
		cfg.DefaultDepth = DefaultDepth
	}
	return &Session{
		launcher:  launcher,
		presenter: presenter,
		cfg:       cfg,
		log:       log,
	}
}

// Status returns the current lifecycle state
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Current returns the most recently issued analysis request, if any
func (s *Session) Current() (AnalysisRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return AnalysisRequest{}, false
	}
	return *s.current, true
}

// EngineName returns the name the engine reported in its handshake
func (s *Session) EngineName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engineName
}

// Start launches the engine connection. It blocks across the launch step
// only; the handshake completes asynchronously and is reported with OnReady.
// A launch failure moves the session to Failed and is reported both to the
// caller and through OnEngineFailure. There is no automatic retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusUninitialized && s.status != StatusFailed {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidRequestState, status)
	}
	s.status = StatusStarting
	s.generation++
	gen := s.generation
	s.current = nil
	s.staleStops = 0
	s.engineName = ""
	s.mu.Unlock()

	s.log.Debug().Msg("launching engine")
	conn, err := s.launcher.Launch(ctx)
	if err != nil {
		return s.fail(gen, err)
	}

	s.mu.Lock()
	if gen != s.generation {
		// Disposed while launching
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: session disposed during start", ErrInvalidRequestState)
	}
	s.conn = conn

	if err = conn.Send(uci.CmdUCI); err != nil {
		s.mu.Unlock()
		return s.fail(gen, err)
	}

	if timeout := s.cfg.HandshakeTimeout; timeout > 0 {
		s.handshake = time.AfterFunc(timeout, func() {
			s.handshakeExpired(gen, timeout)
		})
	}
	s.mu.Unlock()

	go s.readLoop(gen, conn)
	return nil
}

// RequestAnalysis supersedes any in-flight search with a new one. The stop
// command always precedes the new position so the engine never keeps
// searching a stale position. Outside Ready and Analyzing the request is
// logged and dropped.
func (s *Session) RequestAnalysis(req AnalysisRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.status.acceptsAnalysis() {
		status := s.status
		s.mu.Unlock()
		s.log.Debug().Str("status", status.String()).Msg("analysis request ignored")
		return nil
	}

	gen := s.generation
	superseding := s.status == StatusAnalyzing

	for _, cmd := range []string{uci.CmdStop, uci.PositionFEN(req.Position), uci.GoDepth(req.TargetDepth)} {
		if err := s.conn.Send(cmd); err != nil {
			s.mu.Unlock()
			return s.fail(gen, err)
		}
	}

	if superseding {
		s.staleStops++
	}
	s.status = StatusAnalyzing
	s.current = &req
	s.mu.Unlock()

	s.log.Debug().Str("fen", req.Position).Int("depth", req.TargetDepth).Msg("analysis requested")
	return nil
}

// PositionChanged requests analysis of the source's current position at the
// configured default depth
func (s *Session) PositionChanged(src PositionSource) error {
	return s.RequestAnalysis(AnalysisRequest{
		Position:    src.CurrentPositionNotation(),
		SideToMove:  src.SideToMove(),
		TargetDepth: s.cfg.DefaultDepth,
	})
}

// Dispose closes the engine connection without reporting a failure and
// returns the session to Uninitialized. Start may be called again afterwards.
func (s *Session) Dispose() error {
	s.mu.Lock()
	s.generation++
	conn := s.conn
	s.conn = nil
	s.status = StatusUninitialized
	s.current = nil
	s.staleStops = 0
	s.stopHandshakeLocked()
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) readLoop(gen uint64, conn engine.Conn) {
	for line := range conn.Lines() {
		s.onLine(gen, line)
	}

	err := conn.Err()
	if err == nil {
		err = errors.New("engine output closed")
	}
	_ = s.fail(gen, err)
}

// onLine parses one output line and dispatches its events. Notifications are
// collected under the lock and delivered after it is released, in order.
func (s *Session) onLine(gen uint64, line string) {
	events := uci.Parse(line)

	var notes []func()

	s.mu.Lock()
	if gen != s.generation || s.status == StatusFailed {
		s.mu.Unlock()
		return
	}

	for _, ev := range events {
		switch ev := ev.(type) {
		case uci.Identity:
			s.engineName = ev.Name

		case uci.ReadyAck:
			if s.status != StatusStarting {
				continue
			}
			s.stopHandshakeLocked()
			for _, opt := range s.cfg.Options {
				if err := s.conn.Send(uci.SetOption(opt.Name, opt.Value)); err != nil {
					conn, kind, ok := s.markFailedLocked(gen)
					s.mu.Unlock()
					if ok {
						s.report(conn, kind, err)
					}
					return
				}
			}
			s.status = StatusReady
			msg := "Engine ready"
			if s.engineName != "" {
				msg = s.engineName + " ready"
			}
			s.log.Info().Str("engine", s.engineName).Msg("engine ready")
			notes = append(notes, func() { s.presenter.OnReady(msg) })

		case uci.BestMove:
			if s.status != StatusAnalyzing {
				continue
			}
			if s.staleStops > 0 {
				// Reply to a superseded search
				s.staleStops--
				continue
			}
			s.status = StatusReady
			notice := BestMoveNotice{
				Request:   s.current.ID,
				From:      ev.Move.From,
				To:        ev.Move.To,
				Promotion: ev.Move.Promotion,
				None:      ev.None,
				Ponder:    ev.Ponder,
			}
			notes = append(notes, func() { s.presenter.OnBestMove(notice) })

		case uci.Evaluation:
			if !s.deliveringLocked() {
				continue
			}
			id := s.current.ID
			view := ToEvaluationView(ev.Score, s.current.SideToMove)
			notes = append(notes, func() { s.presenter.OnEvaluationUpdate(id, view) })

		case uci.SearchDepth:
			if !s.deliveringLocked() {
				continue
			}
			id, depth := s.current.ID, ev.Depth
			notes = append(notes, func() { s.presenter.OnDepthUpdate(id, depth) })

		case uci.Unrecognized:
			s.log.Trace().Str("line", ev.Line).Msg("unrecognized engine output")
		}
	}
	s.mu.Unlock()

	for _, note := range notes {
		note()
	}
}

// deliveringLocked reports whether search output belongs to the current request
func (s *Session) deliveringLocked() bool {
	return s.status == StatusAnalyzing && s.staleStops == 0 && s.current != nil
}

func (s *Session) handshakeExpired(gen uint64, timeout time.Duration) {
	s.mu.Lock()
	if gen != s.generation || s.status != StatusStarting {
		s.mu.Unlock()
		return
	}
	conn, kind, ok := s.markFailedLocked(gen)
	s.mu.Unlock()

	if ok {
		s.report(conn, kind, fmt.Errorf("no handshake acknowledgment within %s", timeout))
	}
}

// fail moves the session to Failed and reports it once. A failure before the
// handshake completes is a start failure, anything later is a termination.
func (s *Session) fail(gen uint64, cause error) error {
	s.mu.Lock()
	conn, kind, ok := s.markFailedLocked(gen)
	s.mu.Unlock()

	if !ok {
		return &EngineError{Kind: kind, Err: cause}
	}
	return s.report(conn, kind, cause)
}

// markFailedLocked returns ok=false if gen is stale or the failure was
// already reported
func (s *Session) markFailedLocked(gen uint64) (engine.Conn, FailureKind, bool) {
	kind := FailureTerminated
	if s.status == StatusStarting {
		kind = FailureStart
	}
	if gen != s.generation || s.status == StatusFailed || s.status == StatusUninitialized {
		return nil, kind, false
	}

	s.status = StatusFailed
	s.stopHandshakeLocked()
	conn := s.conn
	s.conn = nil
	return conn, kind, true
}

func (s *Session) report(conn engine.Conn, kind FailureKind, cause error) error {
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("engine close after failure")
		}
	}

	engErr := &EngineError{Kind: kind, Err: cause}
	s.log.Warn().Err(cause).Str("kind", kind.String()).Msg("engine session failed")
	s.presenter.OnEngineFailure(kind, engErr)
	return engErr
}

func (s *Session) stopHandshakeLocked() {
	if s.handshake != nil {
		s.handshake.Stop()
		s.handshake = nil
	}
}
