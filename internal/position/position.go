// Package position holds the rules-engine backed game state of an analysis
// board. Move legality, PGN and FEN handling are delegated to notnil/chess.
package position

import (
	"errors"
	"fmt"
	"strings"

	"chessanalysis/internal/core"
	"chessanalysis/internal/uci"

	"github.com/notnil/chess"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrInvalidFEN  = errors.New("invalid FEN")
	ErrInvalidPGN  = errors.New("invalid PGN")
	ErrGameOver    = errors.New("game is over")
)

// MoveResult describes an applied move
type MoveResult struct {
	Move uci.Move
	SAN  string
	FEN  string // position after the move
}

// Game is not safe for concurrent use; the owning board serializes access.
type Game struct {
	g *chess.Game
}

// New returns a game at the standard starting position
func New() *Game {
	return &Game{g: chess.NewGame()}
}

func FromFEN(fen string) (*Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Game{g: chess.NewGame(opt)}, nil
}

// CurrentPositionNotation returns the FEN of the current position
func (p *Game) CurrentPositionNotation() string {
	return p.g.Position().String()
}

func (p *Game) SideToMove() core.Color {
	if p.g.Position().Turn() == chess.Black {
		return core.ColorBlack
	}
	return core.ColorWhite
}

// ApplyMove plays from-to if it is legal. A promotion left unspecified
// defaults to a queen.
func (p *Game) ApplyMove(from, to uci.Square, promotion uci.PieceKind) (*MoveResult, error) {
	if p.g.Outcome() != chess.NoOutcome {
		return nil, ErrGameOver
	}

	want := promoType(promotion)
	pos := p.g.Position()

	for _, m := range p.g.ValidMoves() {
		if m.S1().String() != from.String() || m.S2().String() != to.String() {
			continue
		}
		if m.Promo() != chess.NoPieceType {
			target := want
			if target == chess.NoPieceType {
				target = chess.Queen
			}
			if m.Promo() != target {
				continue
			}
		} else if want != chess.NoPieceType {
			continue
		}

		san := chess.AlgebraicNotation{}.Encode(pos, m)
		if err := p.g.Move(m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
		}
		played := uci.Move{From: from, To: to, Promotion: fromPromoType(m.Promo())}
		return &MoveResult{Move: played, SAN: san, FEN: p.CurrentPositionNotation()}, nil
	}

	mv := uci.Move{From: from, To: to, Promotion: promotion}
	return nil, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
}

// LoadPGN replaces the game with the one described by pgn. On error the
// current game is left untouched.
func (p *Game) LoadPGN(pgn string) error {
	if strings.TrimSpace(pgn) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPGN)
	}
	opt, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPGN, err)
	}
	p.g = chess.NewGame(opt)
	return nil
}

// Reset returns to the standard starting position
func (p *Game) Reset() {
	p.g = chess.NewGame()
}

func (p *Game) IsCheckmate() bool {
	return p.g.Method() == chess.Checkmate
}

func (p *Game) IsDraw() bool {
	return p.g.Outcome() == chess.Draw
}

// IsInCheck reports whether the side to move is in check. Without move
// history (a bare FEN start) only checkmate is detected.
func (p *Game) IsInCheck() bool {
	if p.IsCheckmate() {
		return true
	}
	moves := p.g.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(chess.Check)
}

// PGN returns the move text of the game
func (p *Game) PGN() string {
	return strings.TrimSpace(p.g.String())
}

// Moves returns the played moves in UCI coordinate notation
func (p *Game) Moves() []string {
	moves := p.g.Moves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// StatusLine is the one-line game status shown under the board
func (p *Game) StatusLine() string {
	mover := p.SideToMove().Name()

	if p.IsCheckmate() {
		return fmt.Sprintf("Game over, %s is in checkmate.", mover)
	}
	if p.IsDraw() {
		return "Game over, drawn position"
	}

	status := mover + " to move"
	if p.IsInCheck() {
		status += ", " + mover + " is in check"
	}
	return status
}

func promoType(k uci.PieceKind) chess.PieceType {
	switch k {
	case uci.Queen:
		return chess.Queen
	case uci.Rook:
		return chess.Rook
	case uci.Bishop:
		return chess.Bishop
	case uci.Knight:
		return chess.Knight
	default:
		return chess.NoPieceType
	}
}

func fromPromoType(t chess.PieceType) uci.PieceKind {
	switch t {
	case chess.Queen:
		return uci.Queen
	case chess.Rook:
		return uci.Rook
	case chess.Bishop:
		return uci.Bishop
	case chess.Knight:
		return uci.Knight
	default:
		return uci.NoPiece
	}
}
