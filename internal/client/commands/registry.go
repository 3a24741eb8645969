package commands

import (
	"fmt"
	"os"
	"strings"

	"chessanalysis/internal/client/api"
	"chessanalysis/internal/client/display"
	"chessanalysis/internal/core"
)

type Session interface {
	GetAPIBaseURL() string
	SetAPIBaseURL(string)
	GetStreamURL() string
	SetStreamURL(string)
	GetCurrentBoard() string
	SetCurrentBoard(string)
	GetBoardState() *core.BoardResponse
	SetBoardState(*core.BoardResponse)
	LastVersion() uint64
	GetClient() *api.Client
	IsVerbose() bool
}

// Command defines a client command with its handler
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(Session, []string) error
}

// Registry manages command registration and execution
type Registry struct {
	session  Session
	commands map[string]*Command
}

func NewRegistry(session Session) *Registry {
	r := &Registry{
		session:  session,
		commands: make(map[string]*Command),
	}

	r.registerBoardCommands()
	r.registerAnalysisCommands()
	r.registerDebugCommands()

	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     r.helpHandler,
	})

	r.Register(&Command{
		Name:        "exit",
		ShortName:   "x",
		Description: "Exit the client",
		Usage:       "exit",
		Handler:     exitHandler,
	})

	return r
}

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Lookup finds a command by name or short name
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

func (r *Registry) Execute(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmdName := parts[0]
	args := parts[1:]

	cmd, exists := r.commands[cmdName]
	if !exists {
		fmt.Printf("%sUnknown command: %s%s\n", display.Red, cmdName, display.Reset)
		fmt.Printf("Type 'help' for available commands\n")
		return
	}

	r.session.GetClient().SetVerbose(r.session.IsVerbose())

	if err := cmd.Handler(r.session, args); err != nil {
		fmt.Printf("%sError: %s%s\n", display.Red, err.Error(), display.Reset)
	}
}

func (r *Registry) helpHandler(s Session, args []string) error {
	if len(args) > 0 {
		cmd, exists := r.commands[args[0]]
		if !exists {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Printf("\n%s%s%s - %s\n", display.Cyan, cmd.Name, display.Reset, cmd.Description)
		if cmd.ShortName != "" {
			fmt.Printf("Short form: %s%s%s\n", display.Cyan, cmd.ShortName, display.Reset)
		}
		fmt.Printf("Usage: %s\n", cmd.Usage)
		return nil
	}

	fmt.Printf("\n%sAvailable Commands:%s\n\n", display.Cyan, display.Reset)

	printCommandGroup := func(title string, names []string) {
		fmt.Printf("%s%s:%s\n", display.Yellow, title, display.Reset)
		for _, name := range names {
			cmd, exists := r.commands[name]
			if !exists {
				continue
			}
			shortPart := "    "
			if cmd.ShortName != "" {
				shortPart = fmt.Sprintf("[%s%s%s] ", display.Cyan, cmd.ShortName, display.Reset)
			}
			fmt.Printf("  %s%-10s %s\n", shortPart, cmd.Name, cmd.Description)
		}
	}

	printCommandGroup("Board Commands", []string{"new", "join", "move", "reset", "pgn", "show", "delete"})
	fmt.Println()
	printCommandGroup("Analysis Commands", []string{"eval", "engine", "poll", "watch", "log"})
	fmt.Println()
	printCommandGroup("Utility Commands", []string{"health", "url", "raw", "clear", "help", "exit"})

	fmt.Printf("\nType 'help <command>' for detailed usage\n")
	fmt.Printf("Add '-v' to any command for verbose output\n")
	return nil
}

func exitHandler(s Session, args []string) error {
	fmt.Printf("%sGoodbye!%s\n", display.Cyan, display.Reset)
	os.Exit(0)
	return nil
}

// requireBoard returns the current board or an error when none is set
func requireBoard(s Session) (string, error) {
	id := s.GetCurrentBoard()
	if id == "" {
		return "", fmt.Errorf("no current board, use 'new' or 'join'")
	}
	return id, nil
}
