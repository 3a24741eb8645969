package core

type Color byte

const (
	ColorWhite Color = iota + 1
	ColorBlack
)

func (c Color) String() string {
	if c == ColorWhite {
		return "w"
	} else if c == ColorBlack {
		return "b"
	} else {
		return "-"
	}
}

// Name returns the capitalized color name used in status lines
func (c Color) Name() string {
	if c == ColorBlack {
		return "Black"
	}
	return "White"
}

// ParseColor accepts the FEN side-to-move field
func ParseColor(s string) (Color, bool) {
	switch s {
	case "w":
		return ColorWhite, true
	case "b":
		return ColorBlack, true
	default:
		return 0, false
	}
}
