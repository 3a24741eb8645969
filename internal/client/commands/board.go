package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"chessanalysis/internal/client/display"
	"chessanalysis/internal/core"
)

func (r *Registry) registerBoardCommands() {
	r.Register(&Command{
		Name:        "new",
		ShortName:   "n",
		Description: "Create a new analysis board",
		Usage:       "new [depth] [fen]",
		Handler:     newBoardHandler,
	})

	r.Register(&Command{
		Name:        "join",
		ShortName:   "j",
		Description: "Set the current board ID",
		Usage:       "join <boardId>",
		Handler:     joinBoardHandler,
	})

	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Play a move on the board",
		Usage:       "move <uci-move>",
		Handler:     moveHandler,
	})

	r.Register(&Command{
		Name:        "reset",
		ShortName:   "r",
		Description: "Return to the starting position",
		Usage:       "reset",
		Handler:     resetHandler,
	})

	r.Register(&Command{
		Name:        "pgn",
		ShortName:   "g",
		Description: "Load a game from PGN text or @file",
		Usage:       "pgn <movetext> | pgn @<file>",
		Handler:     pgnHandler,
	})

	r.Register(&Command{
		Name:        "show",
		ShortName:   "h",
		Description: "Show board and analysis",
		Usage:       "show",
		Handler:     showBoardHandler,
	})

	r.Register(&Command{
		Name:        "delete",
		ShortName:   "d",
		Description: "Delete a board",
		Usage:       "delete [boardId]",
		Handler:     deleteBoardHandler,
	})
}

// parseNewArgs reads an optional leading depth followed by an optional FEN
func parseNewArgs(args []string) (core.CreateBoardRequest, error) {
	var req core.CreateBoardRequest
	if len(args) > 0 {
		if depth, err := strconv.Atoi(args[0]); err == nil {
			if depth < 1 || depth > 40 {
				return req, fmt.Errorf("depth must be 1-40, got %d", depth)
			}
			req.Depth = depth
			args = args[1:]
		}
	}
	req.FEN = strings.Join(args, " ")
	return req, nil
}

func newBoardHandler(s Session, args []string) error {
	req, err := parseNewArgs(args)
	if err != nil {
		return err
	}

	resp, err := s.GetClient().CreateBoard(&req)
	if err != nil {
		return err
	}

	s.SetCurrentBoard(resp.BoardID)
	s.SetBoardState(resp)

	fmt.Printf("%sBoard created: %s%s\n", display.Green, resp.BoardID, display.Reset)
	fmt.Printf("%sCurrent board set to: %s%s\n", display.Cyan, resp.BoardID, display.Reset)
	fmt.Println(display.AnalysisLine(resp.Analysis))
	return nil
}

func joinBoardHandler(s Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: join <boardId>")
	}

	resp, err := s.GetClient().GetBoard(args[0])
	if err != nil {
		return err
	}

	s.SetCurrentBoard(resp.BoardID)
	s.SetBoardState(resp)
	fmt.Printf("%sJoined board: %s%s\n", display.Green, resp.BoardID, display.Reset)
	fmt.Printf("Turn: %s  %s\n", display.ColorForTurn(resp.Turn), resp.Status)
	return nil
}

func moveHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: move <uci-move>")
	}

	resp, err := s.GetClient().MakeMove(boardID, strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	s.SetBoardState(resp)

	last := ""
	if n := len(resp.Moves); n > 0 {
		last = resp.Moves[n-1]
	}
	fmt.Printf("%sPlayed %s%s  %s\n", display.Green, last, display.Reset, resp.Status)
	return nil
}

func resetHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}

	resp, err := s.GetClient().ResetBoard(boardID)
	if err != nil {
		return err
	}
	s.SetBoardState(resp)
	fmt.Printf("%sBoard reset%s\n", display.Green, display.Reset)
	return nil
}

func pgnHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: pgn <movetext> | pgn @<file>")
	}

	pgn := strings.Join(args, " ")
	if strings.HasPrefix(pgn, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(pgn, "@"))
		if err != nil {
			return fmt.Errorf("read PGN file: %w", err)
		}
		pgn = string(data)
	}

	resp, err := s.GetClient().LoadPGN(boardID, pgn)
	if err != nil {
		return err
	}
	s.SetBoardState(resp)
	fmt.Printf("%sLoaded %d moves%s  %s\n", display.Green, len(resp.Moves), display.Reset, resp.Status)
	return nil
}

func showBoardHandler(s Session, args []string) error {
	boardID, err := requireBoard(s)
	if err != nil {
		return err
	}
	c := s.GetClient()

	board, err := c.GetBoard(boardID)
	if err != nil {
		return err
	}
	s.SetBoardState(board)

	ascii, err := c.GetASCII(boardID)
	if err != nil {
		return err
	}

	fmt.Println()
	display.RenderBoard(os.Stdout, ascii.Board)
	fmt.Println()
	fmt.Printf("Turn: %s  %s\n", display.ColorForTurn(board.Turn), board.Status)
	fmt.Printf("FEN:  %s\n", board.FEN)
	if board.PGN != "" {
		fmt.Printf("PGN:  %s\n", board.PGN)
	}
	fmt.Printf("Eval: %s\n", display.EvalBar(board.Analysis.Evaluation, 30))
	fmt.Println(display.AnalysisLine(board.Analysis))
	return nil
}

func deleteBoardHandler(s Session, args []string) error {
	boardID := s.GetCurrentBoard()
	if len(args) > 0 {
		boardID = args[0]
	}
	if boardID == "" {
		return fmt.Errorf("no board specified")
	}

	if err := s.GetClient().DeleteBoard(boardID); err != nil {
		return err
	}

	if boardID == s.GetCurrentBoard() {
		s.SetCurrentBoard("")
	}
	fmt.Printf("%sBoard deleted: %s%s\n", display.Green, boardID, display.Reset)
	return nil
}
