package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestManagePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")

	cleanup, err := managePIDFile(path, true)
	if err != nil {
		t.Fatalf("managePIDFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("PID file contains %q", got)
	}

	// flock is per open file description, so a second open conflicts
	if _, err := managePIDFile(path, true); err == nil {
		t.Error("second locked instance was allowed")
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("PID file not removed: %v", err)
	}
}

func TestManagePIDFileStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cleanup, err := managePIDFile(path, true)
	if err != nil {
		t.Fatalf("stale PID file not taken over: %v", err)
	}
	defer cleanup()
}
