package session

import (
	"chessanalysis/internal/core"
	"chessanalysis/internal/uci"
)

// BestMoveNotice is the terminal result of one analysis request
type BestMoveNotice struct {
	Request   uint64 // ID of the AnalysisRequest this result answers
	From      uci.Square
	To        uci.Square
	Promotion uci.PieceKind
	None      bool // no legal move in the analyzed position
	Ponder    *uci.Move
}

func (n BestMoveNotice) Move() uci.Move {
	return uci.Move{From: n.From, To: n.To, Promotion: n.Promotion}
}

// Presenter receives session notifications. Ready, best move, evaluation
// and depth notifications arrive on the session's reader goroutine in engine
// output order. OnEngineFailure may instead come from the goroutine calling
// Start or RequestAnalysis, or from the handshake timer, so implementations
// must be safe for concurrent use. Search notifications carry the ID of the
// request they belong to; a request may already be superseded by the time
// its notification is delivered.
type Presenter interface {
	OnReady(message string)
	OnBestMove(notice BestMoveNotice)
	OnEvaluationUpdate(request uint64, view EvaluationView)
	OnDepthUpdate(request uint64, depth int)
	OnEngineFailure(kind FailureKind, err error)
}

// PositionSource is the read side of the rules engine the session analyzes
type PositionSource interface {
	CurrentPositionNotation() string
	SideToMove() core.Color
}
