package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// managePIDFile writes the process ID to path, optionally holding an
// exclusive flock so a second server refuses to start. The returned cleanup
// releases the lock and removes the file.
func managePIDFile(path string, lock bool) (func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		if lock {
			if err := describeExistingPID(path); err != nil {
				return nil, err
			}
		}
		// Truncated only once the lock is held
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open PID file: %w", err)
	}

	if lock {
		if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			file.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				return nil, errors.New("cannot acquire lock: another instance is running")
			}
			return nil, fmt.Errorf("lock failed: %w", err)
		}
	}

	fail := func(what string, err error) (func(), error) {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if err := file.Truncate(0); err != nil {
		return fail("cannot truncate PID file", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return fail("cannot write PID", err)
	}
	if err := file.Sync(); err != nil {
		return fail("cannot sync PID file", err)
	}

	return func() {
		if lock {
			_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		}
		file.Close()
		os.Remove(path)
	}, nil
}

// describeExistingPID inspects a leftover PID file. A file whose process is
// gone is stale and may be taken over; nil is returned for it.
func describeExistingPID(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read existing PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unreadable content cannot belong to a live server
		return nil
	}

	// FindProcess always succeeds on Unix; signal 0 probes for existence
	proc, _ := os.FindProcess(pid)
	err = proc.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		// The lock attempt decides whether it is still a server instance
		return nil
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return nil
	default:
		return fmt.Errorf("process %d exists but cannot verify ownership: %v", pid, err)
	}
}
