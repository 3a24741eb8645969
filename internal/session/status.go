package session

// Status is the engine session lifecycle state. It decides which commands
// may be sent to the engine.
type Status int

const (
	StatusUninitialized Status = iota
	StatusStarting
	StatusReady
	StatusAnalyzing
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusStarting:
		return "starting"
	case StatusReady:
		return "ready"
	case StatusAnalyzing:
		return "analyzing"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// acceptsAnalysis reports whether an analysis request may be sent
func (s Status) acceptsAnalysis() bool {
	return s == StatusReady || s == StatusAnalyzing
}
