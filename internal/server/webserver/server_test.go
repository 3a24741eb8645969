package webserver

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, path string) (int, string, string) {
	t.Helper()
	app, err := New("http://localhost:8080", "ws://localhost:8081/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestConfig(t *testing.T) {
	status, _, body := get(t, "/config")
	if status != 200 {
		t.Fatalf("status %d", status)
	}
	var cfg map[string]string
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg["apiUrl"] != "http://localhost:8080" || cfg["streamUrl"] != "ws://localhost:8081/ws" {
		t.Errorf("config = %v", cfg)
	}
}

func TestStaticFiles(t *testing.T) {
	tests := []struct {
		path, contentType, contains string
	}{
		{"/", "text/html", "<title>Analysis Board</title>"},
		{"/app.js", "application/javascript", "fetch("},
		{"/style.css", "text/css", ".bar"},
		{"/boards/anything", "text/html", "<title>Analysis Board</title>"},
	}
	for _, tt := range tests {
		status, ct, body := get(t, tt.path)
		if status != 200 || !strings.HasPrefix(ct, tt.contentType) || !strings.Contains(body, tt.contains) {
			t.Errorf("GET %s: status %d, type %q", tt.path, status, ct)
		}
	}
}
