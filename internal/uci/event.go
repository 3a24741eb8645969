package uci

// Event is one typed item decoded from an engine output line.
// The set of implementations is closed: ReadyAck, BestMove, Evaluation,
// SearchDepth, Identity and Unrecognized.
type Event interface {
	isEvent()
}

// ReadyAck is the engine's acknowledgment of uci or isready
type ReadyAck struct {
	Token string // "uciok" or "readyok"
}

// BestMove terminates a search. None is set when the engine has no legal move.
type BestMove struct {
	Move   Move
	None   bool
	Ponder *Move
}

type ScoreKind int

const (
	ScoreCentipawn ScoreKind = iota
	ScoreMate
)

func (k ScoreKind) String() string {
	if k == ScoreMate {
		return "mate"
	}
	return "cp"
}

// Score is relative to the side to move. For ScoreMate, a positive value
// means the side to move mates in Value, negative means it is mated.
type Score struct {
	Kind  ScoreKind
	Value int
}

type Evaluation struct {
	Score Score
}

type SearchDepth struct {
	Depth int
}

// Identity carries the engine name reported during the handshake
type Identity struct {
	Name string
}

// Unrecognized is any line that matches no known pattern
type Unrecognized struct {
	Line string
}

func (ReadyAck) isEvent()     {}
func (BestMove) isEvent()     {}
func (Evaluation) isEvent()   {}
func (SearchDepth) isEvent()  {}
func (Identity) isEvent()     {}
func (Unrecognized) isEvent() {}
