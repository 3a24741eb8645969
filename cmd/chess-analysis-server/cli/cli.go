// Package cli implements the server's "db" maintenance subcommands
package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"chessanalysis/internal/storage"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Run is the entry point for the CLI mini-app
func Run(args []string) error {
	return run(args, os.Stdin, os.Stdout)
}

func run(args []string, in *os.File, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "delete":
		return runDelete(args[1:], in, out)
	case "query":
		return runQuery(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func openStore(path string) (*storage.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	// Maintenance commands report errors themselves
	return storage.NewStore(path, false, zerolog.Nop())
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintf(out, "Database initialized at: %s\n", *path)
	return nil
}

func runDelete(args []string, in *os.File, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("database path required")
	}

	// Only an interactive terminal is asked; scripts must pass -yes
	if !*yes {
		if !term.IsTerminal(int(in.Fd())) {
			return fmt.Errorf("refusing to delete without -yes when stdin is not a terminal")
		}
		fmt.Fprintf(out, "Delete analysis log %s? [y/N]: ", *path)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	store, err := openStore(*path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Fprintf(out, "Database deleted: %s\n", *path)
	return nil
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	boardID := fs.String("boardId", "", "Board ID to filter (optional, * for all)")
	fen := fs.String("fen", "", "Exact FEN to filter (optional, * for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	records, err := store.QueryAnalyses(*boardID, *fen)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No analyses found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Board ID\tSide\tDepth\tScore\tBest\tRecorded\tFEN")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		score := "-"
		if r.ScoreKind != "" {
			score = fmt.Sprintf("%s %d", r.ScoreKind, r.ScoreValue)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
			shortID(r.BoardID),
			r.SideToMove,
			r.ReachedDepth, r.TargetDepth,
			score,
			r.BestMove,
			r.RecordedAt.Format("2006-01-02 15:04:05"),
			r.FEN,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d analysis record(s)\n", len(records))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
