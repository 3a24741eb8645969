// Package stream pushes live analysis states to websocket clients
package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"chessanalysis/internal/core"
	"chessanalysis/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"
)

const (
	MessageAnalysis = "analysis"
	MessageError    = "error"

	writeTimeout = 10 * time.Second
)

// Server serves GET /ws?board=<id>
type Server struct {
	svc *service.Service
	log zerolog.Logger
	srv *http.Server
}

func New(svc *service.Service, log zerolog.Logger) *Server {
	s := &Server{svc: svc, log: log}

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Server{
		// Any origin, like the REST API's CORS policy
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   s.serveFeed,
	})
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the feed's routes
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	s.log.Info().Str("addr", addr).Msg("analysis stream listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections. Open feeds end when the service
// closes their subscriptions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveFeed(ws *websocket.Conn) {
	defer ws.Close()

	boardID := ws.Request().URL.Query().Get("board")
	if _, err := uuid.Parse(boardID); err != nil {
		s.sendError(ws, core.ErrorResponse{
			Error:   "invalid board ID format",
			Code:    core.ErrInvalidRequest,
			Details: "board query parameter must be a valid UUID",
		})
		return
	}

	states, cancel, err := s.svc.Subscribe(boardID)
	if err != nil {
		code := core.ErrInternalError
		if errors.Is(err, service.ErrBoardNotFound) {
			code = core.ErrBoardNotFound
		}
		s.sendError(ws, core.ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	defer cancel()

	log := s.log.With().Str("board", boardID).Logger()
	log.Debug().Msg("feed subscriber connected")

	// Clients never send; a read error means they went away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_, _ = io.Copy(io.Discard, ws)
	}()

	for {
		select {
		case st, ok := <-states:
			if !ok {
				log.Debug().Msg("feed closed by board removal")
				return
			}
			msg := core.StreamMessage{Type: MessageAnalysis, BoardID: boardID, Analysis: &st}
			if err := s.send(ws, msg); err != nil {
				log.Debug().Err(err).Msg("feed send failed")
				return
			}
		case <-gone:
			log.Debug().Msg("feed subscriber disconnected")
			return
		}
	}
}

func (s *Server) send(ws *websocket.Conn, msg core.StreamMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.JSON.Send(ws, msg)
}

func (s *Server) sendError(ws *websocket.Conn, e core.ErrorResponse) {
	if err := s.send(ws, core.StreamMessage{Type: MessageError, Error: &e}); err != nil {
		s.log.Debug().Err(err).Msg("feed error send failed")
	}
}
