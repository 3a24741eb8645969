package uci

import (
	"fmt"
)

// Square is an algebraic board coordinate
type Square struct {
	File byte // 'a'..'h'
	Rank byte // '1'..'8'
}

func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, fmt.Errorf("invalid square %q: expected 2 characters", s)
	}
	if s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	return Square{File: s[0], Rank: s[1]}, nil
}

func (sq Square) String() string {
	if sq.File == 0 {
		return ""
	}
	return string([]byte{sq.File, sq.Rank})
}

func (sq Square) IsZero() bool {
	return sq.File == 0 && sq.Rank == 0
}

// PieceKind is the piece a pawn promotes to
type PieceKind byte

const (
	NoPiece PieceKind = iota
	Queen
	Rook
	Bishop
	Knight
)

// ParsePieceKind maps a UCI promotion suffix to a piece kind
func ParsePieceKind(c byte) (PieceKind, bool) {
	switch c {
	case 'q':
		return Queen, true
	case 'r':
		return Rook, true
	case 'b':
		return Bishop, true
	case 'n':
		return Knight, true
	default:
		return NoPiece, false
	}
}

// Suffix returns the UCI promotion character, 0 for NoPiece
func (p PieceKind) Suffix() byte {
	switch p {
	case Queen:
		return 'q'
	case Rook:
		return 'r'
	case Bishop:
		return 'b'
	case Knight:
		return 'n'
	default:
		return 0
	}
}

func (p PieceKind) String() string {
	switch p {
	case Queen:
		return "queen"
	case Rook:
		return "rook"
	case Bishop:
		return "bishop"
	case Knight:
		return "knight"
	default:
		return "none"
	}
}

// Move is a move in coordinate notation, e.g. e2e4 or e7e8q
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
}

// ParseMove accepts the 4 or 5 character coordinate form only
func ParseMove(s string) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return Move{}, fmt.Errorf("invalid move %q: expected 4-5 characters", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("invalid move %q: %w", s, err)
	}

	m := Move{From: from, To: to}
	if len(s) == 5 {
		promo, ok := ParsePieceKind(s[4])
		if !ok {
			return Move{}, fmt.Errorf("invalid move %q: bad promotion piece", s)
		}
		m.Promotion = promo
	}
	return m, nil
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if c := m.Promotion.Suffix(); c != 0 {
		s += string(c)
	}
	return s
}
