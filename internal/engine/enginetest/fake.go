// Package enginetest provides an in-memory UCI engine for tests
package enginetest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"chessanalysis/internal/engine"
)

// Fake is a minimal UCI engine: it acknowledges uci and answers every go
// with one info line and a best move. The zero value is ready to use.
type Fake struct {
	// Name is reported in "id name", "Fakefish 1" when empty
	Name string
	// Info and BestMove answer each go, defaults give cp 25 and e2e4
	Info     string
	BestMove string

	mu        sync.Mutex
	launchErr error
	dieOnGo   bool
	launches  atomic.Int32
	commands  []string
}

// SetLaunchErr makes subsequent launches fail with err, nil restores them
func (f *Fake) SetLaunchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launchErr = err
}

// SetDieOnGo makes the engine exit instead of answering a go
func (f *Fake) SetDieOnGo(die bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dieOnGo = die
}

// Launches counts Launch calls, failed ones included
func (f *Fake) Launches() int {
	return int(f.launches.Load())
}

// Commands returns every line received so far, across all launches
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func (f *Fake) Launch(ctx context.Context) (engine.Conn, error) {
	f.launches.Add(1)
	f.mu.Lock()
	err := f.launchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	go f.run(cmdR, outW)
	return engine.NewStreamConn(outR, cmdW, cmdW.Close), nil
}

// run exits on quit or when told to die; closing both pipe ends makes
// later writes fail the way they would against an exited process
func (f *Fake) run(in *io.PipeReader, out *io.PipeWriter) {
	defer in.Close()
	defer out.Close()

	name := f.Name
	if name == "" {
		name = "Fakefish 1"
	}
	info := f.Info
	if info == "" {
		info = "info depth 1 seldepth 1 score cp 25 pv e2e4"
	}
	best := f.BestMove
	if best == "" {
		best = "e2e4"
	}

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		f.mu.Lock()
		f.commands = append(f.commands, line)
		die := f.dieOnGo
		f.mu.Unlock()

		switch {
		case line == "uci":
			fmt.Fprintln(out, "id name "+name)
			fmt.Fprintln(out, "uciok")
		case strings.HasPrefix(line, "go depth "):
			if die {
				return
			}
			fmt.Fprintln(out, info)
			fmt.Fprintln(out, "bestmove "+best)
		case line == "quit":
			return
		}
	}
}
