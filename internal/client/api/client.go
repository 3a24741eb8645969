package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"chessanalysis/internal/client/display"
	"chessanalysis/internal/core"

	"golang.org/x/net/websocket"
)

// ErrWatchDone ends a Watch without error when returned by its callback
var ErrWatchDone = errors.New("watch done")

// Client talks to the analysis server and echoes each exchange to Out
type Client struct {
	BaseURL    string
	StreamURL  string
	HTTPClient *http.Client
	Verbose    bool
	Out        io.Writer
}

func New(baseURL, streamURL string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		StreamURL: streamURL,
		HTTPClient: &http.Client{
			Timeout: 40 * time.Second, // long-polls hold for up to 30s
		},
		Out: os.Stdout,
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// SetBaseURL updates the API base URL for the client
func (c *Client) SetBaseURL(url string) {
	c.BaseURL = strings.TrimRight(url, "/")
}

func (c *Client) SetStreamURL(url string) {
	c.StreamURL = url
}

func (c *Client) doRequest(method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonData)
		bodyStr = string(jsonData)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	fmt.Fprintf(c.Out, "\n%s[API] %s %s%s\n", display.Blue, method, path, display.Reset)
	if bodyStr != "" {
		if c.Verbose {
			var prettyBody interface{}
			_ = json.Unmarshal([]byte(bodyStr), &prettyBody)
			fmt.Fprintf(c.Out, "%sRequest Body:%s\n", display.Cyan, display.Reset)
			display.PrettyPrintJSON(c.Out, prettyBody)
		} else {
			fmt.Fprintf(c.Out, "%s%s%s\n", display.Blue, bodyStr, display.Reset)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		fmt.Fprintf(c.Out, "%s[ERROR] %s%s\n", display.Red, err.Error(), display.Reset)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := display.Green
	if resp.StatusCode >= 400 {
		statusColor = display.Red
	}
	fmt.Fprintf(c.Out, "%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), display.Reset)

	if c.Verbose && len(respBody) > 0 {
		var prettyResp interface{}
		if err := json.Unmarshal(respBody, &prettyResp); err == nil {
			fmt.Fprintf(c.Out, "%sResponse Body:%s\n", display.Cyan, display.Reset)
			display.PrettyPrintJSON(c.Out, prettyResp)
		} else {
			fmt.Fprintf(c.Out, "%sResponse:%s\n%s\n", display.Cyan, display.Reset, string(respBody))
		}
	}

	if resp.StatusCode >= 400 {
		var errResp core.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return &Error{Status: resp.StatusCode, Response: errResp}
		}
		return &Error{Status: resp.StatusCode, Response: core.ErrorResponse{Error: strings.TrimSpace(string(respBody))}}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			fmt.Fprintf(c.Out, "%sRaw response: %s%s\n", display.Green, string(respBody), display.Reset)
			return fmt.Errorf("response parse error: %w", err)
		}
	}

	return nil
}

// Error is a non-2xx API response
type Error struct {
	Status   int
	Response core.ErrorResponse
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%d %s", e.Status, e.Response.Error)
	if e.Response.Code != "" {
		msg += " [" + e.Response.Code + "]"
	}
	if e.Response.Details != "" {
		msg += ": " + e.Response.Details
	}
	return msg
}

// API Methods

func (c *Client) Health() (*core.HealthResponse, error) {
	var resp core.HealthResponse
	err := c.doRequest("GET", "/health", nil, &resp)
	return &resp, err
}

func (c *Client) CreateBoard(req *core.CreateBoardRequest) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("POST", "/api/v1/boards", req, &resp)
	return &resp, err
}

func (c *Client) GetBoard(boardID string) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("GET", "/api/v1/boards/"+boardID, nil, &resp)
	return &resp, err
}

// GetBoardWithPoll blocks until the analysis version differs from version
// or the server's wait limit passes
func (c *Client) GetBoardWithPoll(boardID string, version uint64) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	path := fmt.Sprintf("/api/v1/boards/%s?wait=true&version=%d", boardID, version)
	err := c.doRequest("GET", path, nil, &resp)
	return &resp, err
}

func (c *Client) DeleteBoard(boardID string) error {
	return c.doRequest("DELETE", "/api/v1/boards/"+boardID, nil, nil)
}

func (c *Client) MakeMove(boardID string, move string) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("POST", "/api/v1/boards/"+boardID+"/moves", &core.MoveRequest{Move: move}, &resp)
	return &resp, err
}

func (c *Client) ResetBoard(boardID string) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("POST", "/api/v1/boards/"+boardID+"/reset", nil, &resp)
	return &resp, err
}

func (c *Client) LoadPGN(boardID string, pgn string) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("POST", "/api/v1/boards/"+boardID+"/pgn", &core.LoadPGNRequest{PGN: pgn}, &resp)
	return &resp, err
}

func (c *Client) RestartEngine(boardID string) (*core.BoardResponse, error) {
	var resp core.BoardResponse
	err := c.doRequest("POST", "/api/v1/boards/"+boardID+"/engine", nil, &resp)
	return &resp, err
}

func (c *Client) GetASCII(boardID string) (*core.BoardASCIIResponse, error) {
	var resp core.BoardASCIIResponse
	err := c.doRequest("GET", "/api/v1/boards/"+boardID+"/ascii", nil, &resp)
	return &resp, err
}

func (c *Client) Analyses(boardID, fen string) (*core.AnalysesResponse, error) {
	q := url.Values{}
	if boardID != "" {
		q.Set("boardId", boardID)
	}
	if fen != "" {
		q.Set("fen", fen)
	}
	path := "/api/v1/analyses"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp core.AnalysesResponse
	err := c.doRequest("GET", path, nil, &resp)
	return &resp, err
}

// RawRequest performs a raw HTTP request for debugging purposes
func (c *Client) RawRequest(method, path string, body string) error {
	var bodyData interface{}
	if body != "" {
		if err := json.Unmarshal([]byte(body), &bodyData); err != nil {
			// Try as raw string
			bodyData = body
		}
	}

	var result interface{}
	if err := c.doRequest(method, path, bodyData, &result); err != nil {
		return err
	}
	if !c.Verbose && result != nil {
		display.PrettyPrintJSON(c.Out, result)
	}
	return nil
}

// Watch streams the board's analysis feed into fn until fn returns an
// error, ctx ends or the server closes the feed. ErrWatchDone from fn is a
// clean stop.
func (c *Client) Watch(ctx context.Context, boardID string, fn func(core.StreamMessage) error) error {
	if c.StreamURL == "" {
		return errors.New("stream URL not set")
	}
	target := c.StreamURL + "?board=" + url.QueryEscape(boardID)

	cfg, err := websocket.NewConfig(target, c.BaseURL+"/")
	if err != nil {
		return err
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	defer ws.Close()

	// Unblock Receive on cancellation
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	for {
		var msg core.StreamMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if msg.Type == "error" && msg.Error != nil {
			return &Error{Status: http.StatusBadRequest, Response: *msg.Error}
		}
		if err := fn(msg); err != nil {
			if errors.Is(err, ErrWatchDone) {
				return nil
			}
			return err
		}
	}
}
