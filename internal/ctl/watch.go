package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// wsURL turns the daemon's http(s) base URL into its WebSocket endpoint,
// carrying the type filter as a subscription.
func wsURL(baseURL string, filter []string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	if len(filter) > 0 {
		u.RawQuery = url.Values{"types": {strings.Join(filter, ",")}}.Encode()
	}
	return u.String(), nil
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	target, err := wsURL(baseURL, opts.Filter)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(greenStyle, "connected"), colorize(dimStyle, target))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s\n", colorize(dimStyle, "filter: "+strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(rule(50))
		fmt.Println()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				fmt.Println(formatEvent(msg))
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dimStyle, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// formatEvent renders one envelope as a terminal line. Unknown types fall
// back to indented JSON so nothing is lost.
func formatEvent(raw []byte) string {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		return "  " + string(raw)
	}

	evType, _ := ev["type"].(string)
	ts, _ := ev["ts"].(string)
	prefix := "  " + colorize(dimStyle, formatTS(ts)) + " "
	str := func(k string) string { s, _ := ev[k].(string); return s }
	num := func(k string) float64 { f, _ := ev[k].(float64); return f }

	switch evType {
	case "heartbeat":
		return prefix + colorize(dimStyle, "heartbeat") + "  " +
			colorize(statusStyle(str("status")), str("status")) + "  " +
			colorize(dimStyle, "up "+formatDuration(time.Duration(num("uptime_seconds"))*time.Second))

	case "status":
		return prefix + colorize(boldStyle, "LINK ") + "  " +
			colorize(statusStyle(str("status")), padRight(str("status"), 12)) + " " + colorize(dimStyle, str("addr"))

	case "log":
		return prefix + formatLogLevel(str("level")) + "  " + str("message")

	case "pose":
		return prefix + colorize(cyanStyle, "POSE ") + "  " +
			fmt.Sprintf("x=%.1f y=%.1f heading=%.1f°  (%d vertices)",
				num("x_cm"), num("y_cm"), num("heading_deg"), int(num("path_len")))

	case "obstacle":
		return prefix + colorize(blueStyle, "OBJ  ") + "  " +
			fmt.Sprintf("(%.1f, %.1f)  scan %.0f° at %.1f cm  [%d total]",
				num("x_cm"), num("y_cm"), num("scan_angle_deg"), num("distance_cm"), int(num("count")))

	case "approval":
		if pending, _ := ev["pending"].(bool); pending {
			return prefix + colorize(yellowStyle, "ASK  ") + "  " + str("message") +
				colorize(dimStyle, "  (cybotctl approve | deny)")
		}
		return prefix + colorize(dimStyle, "ASK  ") + "  " + colorize(dimStyle, "resolved")

	case "ping":
		return prefix + colorize(cyanStyle, "PING ") + "  " +
			fmt.Sprintf("%.1f cm  (%.0f ticks, %d overflows)", num("distance_cm"), num("pulse_width_ticks"), int(num("overflows")))

	case "raw":
		return prefix + colorize(dimStyle, "ROBOT") + "  " + str("text")

	default:
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			return "  " + string(raw)
		}
		return "  " + string(pretty)
	}
}
