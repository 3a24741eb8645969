package core

import "time"

// Request types

type CreateBoardRequest struct {
	FEN   string `json:"fen,omitempty" validate:"omitempty,max=100,fen"`
	Depth int    `json:"depth,omitempty" validate:"omitempty,min=1,max=40"` // Server default when omitted
}

type MoveRequest struct {
	Move string `json:"move" validate:"required,ucimove"` // UCI coordinate move, promotion defaults to queen
}

type LoadPGNRequest struct {
	PGN string `json:"pgn" validate:"required,max=65536"`
}

// Response types

type BoardResponse struct {
	BoardID   string        `json:"boardId"`
	FEN       string        `json:"fen"`
	Turn      string        `json:"turn"`   // "w" or "b"
	Status    string        `json:"status"` // "White to move", "Game over, drawn position", etc
	Check     bool          `json:"check"`
	Checkmate bool          `json:"checkmate"`
	Draw      bool          `json:"draw"`
	Moves     []string      `json:"moves"`
	PGN       string        `json:"pgn"`
	Analysis  AnalysisState `json:"analysis"`
}

// AnalysisState is the presenter-visible engine state for one board. Version
// increases on every update and drives long-polling and the live feed.
type AnalysisState struct {
	Version     uint64          `json:"version"`
	Status      string          `json:"status"` // engine session status
	Engine      string          `json:"engine,omitempty"`
	Message     string          `json:"message,omitempty"`
	Position    string          `json:"position,omitempty"` // FEN under analysis
	TargetDepth int             `json:"targetDepth,omitempty"`
	Depth       int             `json:"depth"`
	Evaluation  *EvaluationInfo `json:"evaluation,omitempty"`
	BestMove    *BestMoveInfo   `json:"bestMove,omitempty"`
	Failure     string          `json:"failure,omitempty"` // "start" or "terminated"
}

type EvaluationInfo struct {
	ScoreForWhite float64 `json:"scoreForWhite"`
	IsMate        bool    `json:"isMate"`
	MateCount     int     `json:"mateCount,omitempty"`
	BarFill       float64 `json:"barFill"` // percent, 0 is Black winning, 100 is White winning
	Display       string  `json:"display"` // "+0.35", "M3"
}

type BestMoveInfo struct {
	Move      string `json:"move,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	None      bool   `json:"none"`
}

type BoardASCIIResponse struct {
	FEN   string `json:"fen"`
	Board string `json:"board"` // ASCII representation
}

type AnalysisRecord struct {
	BoardID      string    `json:"boardId"`
	FEN          string    `json:"fen"`
	SideToMove   string    `json:"sideToMove"`
	TargetDepth  int       `json:"targetDepth"`
	ReachedDepth int       `json:"reachedDepth"`
	ScoreKind    string    `json:"scoreKind,omitempty"`
	ScoreValue   int       `json:"scoreValue"`
	BestMove     string    `json:"bestMove"`
	RecordedAt   time.Time `json:"recordedAt"`
}

type AnalysesResponse struct {
	Analyses []AnalysisRecord `json:"analyses"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Time    int64  `json:"time"`
	Storage string `json:"storage"`
	Boards  int    `json:"boards"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// StreamMessage is one frame of the live analysis feed
type StreamMessage struct {
	Type     string         `json:"type"` // "analysis" or "error"
	BoardID  string         `json:"boardId,omitempty"`
	Analysis *AnalysisState `json:"analysis,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}
