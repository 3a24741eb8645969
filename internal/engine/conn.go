// Package engine owns the transport to an analysis engine: a line-oriented,
// ordered, bidirectional channel over a subprocess or any reader/writer pair.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"chessanalysis/internal/uci"
)

const (
	lineBuffer    = 256
	maxLineLength = 1 << 20
)

// ErrClosed is returned by Send after Close
var ErrClosed = errors.New("engine connection closed")

// Conn is an ordered connection to an engine. Commands are delivered in Send
// order and output lines arrive on Lines in emission order. Lines is closed
// when engine output ends; Err then reports the read error, if any.
type Conn interface {
	Send(cmd string) error
	Lines() <-chan string
	Err() error
	Close() error
}

// Launcher materializes an engine and returns a connection to it
type Launcher interface {
	Launch(ctx context.Context) (Conn, error)
}

type streamConn struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool

	lines  chan string
	done   chan struct{}
	err    error // written before lines is closed
	closer func() error
	once   sync.Once
}

// NewStreamConn wraps an engine's output reader and command writer. closer,
// if non-nil, runs once on Close after the quit command has been sent.
func NewStreamConn(r io.Reader, w io.Writer, closer func() error) Conn {
	c := &streamConn{
		w:      bufio.NewWriter(w),
		lines:  make(chan string, lineBuffer),
		done:   make(chan struct{}),
		closer: closer,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	go c.readLoop(scanner)

	return c
}

func (c *streamConn) readLoop(scanner *bufio.Scanner) {
	defer close(c.lines)

	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			return
		}
	}
	c.err = scanner.Err()
}

func (c *streamConn) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintln(c.w, cmd); err != nil {
		return fmt.Errorf("failed to write %q: %w", cmd, err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %q: %w", cmd, err)
	}
	return nil
}

func (c *streamConn) Lines() <-chan string {
	return c.lines
}

// Err is only meaningful once Lines has been closed
func (c *streamConn) Err() error {
	return c.err
}

func (c *streamConn) Close() error {
	var err error
	c.once.Do(func() {
		// Best effort, the engine may already be gone
		_ = c.Send(uci.CmdQuit)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
		if c.closer != nil {
			err = c.closer()
		}
	})
	return err
}
