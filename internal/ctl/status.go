package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	Addr            string `json:"addr"`
	SessionID       string `json:"session_id"`
	Attempts        int    `json:"attempts"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	Mode            string `json:"mode"`
	WSClients       int    `json:"ws_clients"`
	ApprovalPending bool   `json:"approval_pending"`
	LinesReceived   int    `json:"lines_received"`
	LinesRejected   int    `json:"lines_rejected"`
	Mirror          *struct {
		Broker  string `json:"broker"`
		Sent    int64  `json:"sent"`
		Dropped int64  `json:"dropped"`
	} `json:"mirror,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	approval := colorize(dimStyle, "none")
	if s.ApprovalPending {
		approval = colorize(yellowStyle, "PENDING (cybotctl approve | deny)")
	}

	fmt.Println()
	fmt.Println(header("  CYBOT STATUS"))
	fmt.Println(rule(38))
	field("Robot:", colorize(statusStyle(s.Status), s.Status))
	field("Address:", s.Addr)
	field("Mode:", s.Mode)
	if s.SessionID != "" {
		field("Session:", s.SessionID)
	}
	field("Attempts:", s.Attempts)
	field("Approval:", approval)
	field("Lines:", fmt.Sprintf("%d received, %d rejected", s.LinesReceived, s.LinesRejected))
	field("Uptime:", formatDuration(time.Duration(s.UptimeSeconds)*time.Second))
	field("Clients:", s.WSClients)
	if s.Mirror != nil {
		field("Mirror:", fmt.Sprintf("%s (%d sent, %d dropped)", s.Mirror.Broker, s.Mirror.Sent, s.Mirror.Dropped))
	}
	field("Host:", baseURL)
	fmt.Println()

	return nil
}
