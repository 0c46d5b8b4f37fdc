package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// LogsOptions configures the logs command.
type LogsOptions struct {
	Level string
	Limit int
	Tail  bool
	JSON  bool
}

// LogEntry mirrors one entry of GET /api/logs.
type LogEntry struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func logsPath(opts LogsOptions) string {
	q := url.Values{}
	if opts.Level != "" {
		q.Set("level", opts.Level)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if len(q) == 0 {
		return "/api/logs"
	}
	return "/api/logs?" + q.Encode()
}

// Logs shows recent daemon log messages, or streams them live with --tail.
func Logs(baseURL string, opts LogsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if opts.Tail {
		return Watch(baseURL, WatchOptions{
			Filter: []string{"log"},
			JSON:   opts.JSON,
		})
	}

	var resp struct {
		Logs []LogEntry `json:"logs"`
	}
	if err := getJSON(baseURL, logsPath(opts), &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  DAEMON LOGS"))
	fmt.Println(rule(70))

	if len(resp.Logs) == 0 {
		fmt.Println("  No log entries found.")
	}
	for _, entry := range resp.Logs {
		fmt.Printf("  %s %s  %s\n", colorize(dimStyle, formatTS(entry.TS)), formatLogLevel(entry.Level), entry.Message)
	}

	fmt.Println()
	return nil
}
