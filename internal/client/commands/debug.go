package commands

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"chessanalysis/internal/client/display"
)

func (r *Registry) registerDebugCommands() {
	r.Register(&Command{
		Name:        "health",
		ShortName:   ".",
		Description: "Check server health",
		Usage:       "health",
		Handler:     healthHandler,
	})

	r.Register(&Command{
		Name:        "url",
		ShortName:   "/",
		Description: "Show or set API and stream URLs",
		Usage:       "url [apiUrl] [streamUrl]",
		Handler:     urlHandler,
	})

	r.Register(&Command{
		Name:        "raw",
		ShortName:   ":",
		Description: "Send raw API request",
		Usage:       "raw <method> <path> [json-body]",
		Handler:     rawRequestHandler,
	})

	r.Register(&Command{
		Name:        "clear",
		ShortName:   "-",
		Description: "Clear screen",
		Usage:       "clear",
		Handler:     clearHandler,
	})
}

func healthHandler(s Session, args []string) error {
	resp, err := s.GetClient().Health()
	if err != nil {
		return err
	}

	fmt.Printf("%sServer Health:%s\n", display.Cyan, display.Reset)
	fmt.Printf("  Status:  %s\n", resp.Status)
	t := time.Unix(resp.Time, 0)
	fmt.Printf("  Time:    %s\n", t.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Storage: %s\n", resp.Storage)
	fmt.Printf("  Boards:  %d\n", resp.Boards)
	return nil
}

// normalizeURL adds scheme when missing
func normalizeURL(url, scheme string) string {
	if strings.Contains(url, "://") {
		return url
	}
	return scheme + "://" + url
}

func urlHandler(s Session, args []string) error {
	if len(args) == 0 {
		fmt.Printf("Current API URL:    %s\n", s.GetAPIBaseURL())
		fmt.Printf("Current stream URL: %s\n", s.GetStreamURL())
		return nil
	}

	apiURL := normalizeURL(args[0], "http")
	s.SetAPIBaseURL(apiURL)
	fmt.Printf("%sAPI URL set to: %s%s\n", display.Cyan, apiURL, display.Reset)

	if len(args) > 1 {
		streamURL := normalizeURL(args[1], "ws")
		s.SetStreamURL(streamURL)
		fmt.Printf("%sStream URL set to: %s%s\n", display.Cyan, streamURL, display.Reset)
	}
	return nil
}

func rawRequestHandler(s Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: raw <method> <path> [json-body]")
	}

	method := strings.ToUpper(args[0])
	path := args[1]

	body := ""
	if len(args) > 2 {
		body = strings.Join(args[2:], " ")
	}

	return s.GetClient().RawRequest(method, path, body)
}

func clearHandler(s Session, args []string) error {
	cmd := exec.Command("clear")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}
