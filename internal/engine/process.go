package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultEnginePath  = "stockfish"
	defaultGracePeriod = time.Second
)

// ProcessLauncher runs the engine as a local subprocess speaking UCI over
// stdin/stdout
type ProcessLauncher struct {
	Path        string
	Args        []string
	Dir         string
	GracePeriod time.Duration // time allowed after quit before the process is killed
	Log         zerolog.Logger
}

func (l *ProcessLauncher) Launch(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := l.Path
	if name == "" {
		name = DefaultEnginePath
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("engine binary not found: %w", err)
	}

	cmd := exec.Command(path, l.Args...)
	cmd.Dir = l.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	l.Log.Debug().Str("path", path).Int("pid", cmd.Process.Pid).Msg("engine process started")

	grace := l.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	closer := func() error {
		_ = stdin.Close()

		// Try graceful shutdown first
		done := make(chan error, 1)
		go func() {
			done <- cmd.Wait()
		}()

		select {
		case err := <-done:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				// Non-zero exit after quit is not a close failure
				l.Log.Debug().Int("code", exitErr.ExitCode()).Msg("engine process exited")
				return nil
			}
			return err
		case <-time.After(grace):
			// Force kill if doesn't exit gracefully
			l.Log.Warn().Int("pid", cmd.Process.Pid).Msg("engine did not exit, killing")
			if err := cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill engine: %w", err)
			}
			<-done
			return nil
		}
	}

	return NewStreamConn(stdout, stdin, closer), nil
}
