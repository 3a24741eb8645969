// Package session holds the debug client's interactive state
package session

import (
	"chessanalysis/internal/client/api"
	"chessanalysis/internal/core"
)

type Session struct {
	APIBaseURL   string
	StreamURL    string
	Client       *api.Client
	CurrentBoard string
	BoardState   *core.BoardResponse
	Verbose      bool
}

func New(apiURL, streamURL string) *Session {
	return &Session{
		APIBaseURL: apiURL,
		StreamURL:  streamURL,
		Client:     api.New(apiURL, streamURL),
	}
}

func (s *Session) GetAPIBaseURL() string { return s.APIBaseURL }

func (s *Session) SetAPIBaseURL(url string) {
	s.APIBaseURL = url
	s.Client.SetBaseURL(url)
}

func (s *Session) GetStreamURL() string { return s.StreamURL }

func (s *Session) SetStreamURL(url string) {
	s.StreamURL = url
	s.Client.SetStreamURL(url)
}

func (s *Session) GetCurrentBoard() string { return s.CurrentBoard }

// SetCurrentBoard switches boards and forgets the previous board's state
func (s *Session) SetCurrentBoard(id string) {
	if id != s.CurrentBoard {
		s.BoardState = nil
	}
	s.CurrentBoard = id
}

func (s *Session) GetBoardState() *core.BoardResponse { return s.BoardState }

func (s *Session) SetBoardState(b *core.BoardResponse) { s.BoardState = b }

// LastVersion is the analysis version of the last seen board state
func (s *Session) LastVersion() uint64 {
	if s.BoardState == nil {
		return 0
	}
	return s.BoardState.Analysis.Version
}

func (s *Session) GetClient() *api.Client { return s.Client }

func (s *Session) IsVerbose() bool { return s.Verbose }
