package uci

import (
	"fmt"
)

// Commands sent to the engine, one per line
const (
	CmdUCI        = "uci"
	CmdIsReady    = "isready"
	CmdStop       = "stop"
	CmdQuit       = "quit"
	CmdUCINewGame = "ucinewgame"
)

func PositionFEN(fen string) string {
	return "position fen " + fen
}

func GoDepth(depth int) string {
	return fmt.Sprintf("go depth %d", depth)
}

func SetOption(name, value string) string {
	return fmt.Sprintf("setoption name %s value %s", name, value)
}
