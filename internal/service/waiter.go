package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// WaitTimeout is the maximum time a client can wait for notifications
	WaitTimeout = 25 * time.Second

	// WaitChannelBuffer size for notification channels
	WaitChannelBuffer = 1
)

// WaitRegistry manages long-polling clients waiting for analysis updates
type WaitRegistry struct {
	mu       sync.RWMutex
	waiters  map[string][]*WaitRequest // boardID → waiting clients
	timeout  time.Duration
	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WaitRequest represents a single client waiting for board updates
type WaitRequest struct {
	Version uint64          // Last analysis version the client saw
	Notify  chan struct{}   // Buffered channel for notifications
	Timer   *time.Timer     // Timeout timer
	Context context.Context // Client connection context
	BoardID string

	fired    chan struct{} // closed on the first signal
	fireOnce sync.Once
}

// NewWaitRegistry creates a new wait registry
func NewWaitRegistry(timeout time.Duration) *WaitRegistry {
	if timeout <= 0 {
		timeout = WaitTimeout
	}
	return &WaitRegistry{
		waiters:  make(map[string][]*WaitRequest),
		timeout:  timeout,
		shutdown: make(chan struct{}),
	}
}

// RegisterWait registers a client to wait for a version other than version.
// The returned channel receives once on change, timeout, board removal or
// shutdown.
func (w *WaitRegistry) RegisterWait(boardID string, version uint64, ctx context.Context) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	req := &WaitRequest{
		Version: version,
		Notify:  make(chan struct{}, WaitChannelBuffer),
		Context: ctx,
		BoardID: boardID,
		fired:   make(chan struct{}),
	}

	req.Timer = time.AfterFunc(w.timeout, func() {
		signal(req)
	})

	w.waiters[boardID] = append(w.waiters[boardID], req)

	// Cleanup on disconnect, notification or shutdown
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
			w.removeWaiter(boardID, req)
		case <-req.fired:
			w.removeWaiter(boardID, req)
		case <-w.shutdown:
			req.Timer.Stop()
			signal(req)
		}
	}()

	return req.Notify
}

// NotifyBoard wakes clients on boardID whose known version differs
func (w *WaitRegistry) NotifyBoard(boardID string, currentVersion uint64) {
	w.mu.RLock()
	waitList := w.waiters[boardID]
	w.mu.RUnlock()

	for _, req := range waitList {
		if req.Version != currentVersion {
			signal(req)
		}
	}
}

// RemoveBoard releases all waiters for a board (called before deletion)
func (w *WaitRegistry) RemoveBoard(boardID string) {
	w.mu.Lock()
	waitList := w.waiters[boardID]
	delete(w.waiters, boardID)
	w.mu.Unlock()

	for _, req := range waitList {
		signal(req)
	}
}

// Waiting returns the number of clients waiting on boardID
func (w *WaitRegistry) Waiting(boardID string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.waiters[boardID])
}

// Shutdown releases every waiter and waits for the cleanup goroutines
func (w *WaitRegistry) Shutdown(timeout time.Duration) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wait registry shutdown timed out")
	}
}

// signal is a non-blocking send; a full channel already holds a wakeup
func signal(req *WaitRequest) {
	select {
	case req.Notify <- struct{}{}:
	default:
	}
	req.fireOnce.Do(func() { close(req.fired) })
}

// removeWaiter removes a specific waiter from the registry
func (w *WaitRegistry) removeWaiter(boardID string, req *WaitRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waitList := w.waiters[boardID]
	for i, waiter := range waitList {
		if waiter == req {
			w.waiters[boardID] = append(waitList[:i:i], waitList[i+1:]...)
			break
		}
	}

	if len(w.waiters[boardID]) == 0 {
		delete(w.waiters, boardID)
	}

	req.Timer.Stop()
}
