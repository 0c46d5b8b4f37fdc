package ctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeDaemon records POST bodies and answers with canned responses.
type fakeDaemon struct {
	mu     sync.Mutex
	posted []string
}

func (f *fakeDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/command", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.record("command:" + body["command"] + body["char"])
		if body["command"] == "jump" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error":"unknown command: \"jump\""}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "command": body["command"], "char": "w"})
	})
	mux.HandleFunc("/api/approval", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"pending":true,"message":"go?"}`))
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.record("approval:" + body["answer"])
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"ok":false,"error":"no approval pending"}`))
	})
	mux.HandleFunc("/api/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "plain failure", http.StatusInternalServerError)
	})
	return mux
}

func (f *fakeDaemon) record(s string) {
	f.mu.Lock()
	f.posted = append(f.posted, s)
	f.mu.Unlock()
}

func (f *fakeDaemon) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posted...)
}

func TestSendCommand(t *testing.T) {
	fd := &fakeDaemon{}
	srv := httptest.NewServer(fd.handler())
	defer srv.Close()

	res, err := SendCommand(srv.URL+"/", "forward", false)
	if err != nil || !res.OK || res.Char != "w" {
		t.Fatalf("res = %+v, err = %v", res, err)
	}

	_, err = SendCommand(srv.URL, "jump", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || !strings.Contains(apiErr.Message, "unknown command") {
		t.Errorf("err = %#v", err)
	}

	if _, err := SendCommand(srv.URL, "x", true); err != nil {
		t.Errorf("raw send: %v", err)
	}
	got := strings.Join(fd.calls(), ",")
	if got != "command:forward,command:jump,command:x" {
		t.Errorf("calls = %s", got)
	}
}

func TestDecodeJSON_PlainTextError(t *testing.T) {
	srv := httptest.NewServer((&fakeDaemon{}).handler())
	defer srv.Close()

	err := getJSON(srv.URL, "/api/broken", &struct{}{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "plain failure" {
		t.Errorf("err = %#v", err)
	}
}

func TestDriveLoop(t *testing.T) {
	fd := &fakeDaemon{}
	srv := httptest.NewServer(fd.handler())
	defer srv.Close()

	var out bytes.Buffer
	if err := driveLoop(srv.URL, strings.NewReader("wzYq d"), &out); err != nil {
		t.Fatalf("driveLoop: %v", err)
	}

	got := strings.Join(fd.calls(), ",")
	if got != "command:forward,approval:yes" {
		t.Errorf("calls = %s (keys after q must be ignored)", got)
	}
	text := out.String()
	if !strings.Contains(text, "unbound key 'z'") {
		t.Errorf("output missing unbound key notice:\n%s", text)
	}
	if !strings.Contains(text, "no approval pending") {
		t.Errorf("output missing approval error:\n%s", text)
	}
	if !strings.Contains(text, "\r\n") {
		t.Error("raw-mode output must use CRLF")
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		key  byte
		want keyAction
		ok   bool
	}{
		{'w', keyAction{Command: "forward"}, true},
		{'D', keyAction{Command: "right"}, true},
		{' ', keyAction{Command: "stop"}, true},
		{'n', keyAction{Answer: "no"}, true},
		{0x03, keyAction{Quit: true}, true},
		{'x', keyAction{}, false},
	}
	for _, tt := range tests {
		got, ok := actionFor(tt.key)
		if ok != tt.ok || got != tt.want {
			t.Errorf("actionFor(%q) = %+v, %v", tt.key, got, ok)
		}
	}
}

func TestRenderMap(t *testing.T) {
	var m MapResponse
	m.Robot.X, m.Robot.Y, m.Robot.HeadingDeg = 5, 4, 90
	m.Path = []screenPoint{{X: 5, Y: 10}, {X: 5, Y: 4}}
	m.Obstacles = []screenPoint{{X: 8, Y: 2}, {X: 100, Y: 100}}
	m.Frame.Vertical = []gridline{{WorldCM: 0, Screen: 1}}
	m.Frame.Horizontal = []gridline{{WorldCM: 0, Screen: 0}}

	lines := renderMap(m, 10, 6)
	if len(lines) != 6 {
		t.Fatalf("got %d rows", len(lines))
	}
	for i, l := range lines {
		if len([]rune(l)) != 10 {
			t.Errorf("row %d has width %d", i, len([]rune(l)))
		}
	}
	cell := func(row, col int) rune { return []rune(lines[row])[col] }

	if cell(2, 5) != '^' {
		t.Errorf("robot cell = %q\n%s", cell(2, 5), strings.Join(lines, "\n"))
	}
	if cell(1, 8) != '#' {
		t.Errorf("obstacle cell = %q", cell(1, 8))
	}
	if cell(5, 5) != '.' || cell(4, 5) != '.' {
		t.Errorf("path cells = %q %q", cell(5, 5), cell(4, 5))
	}
	if cell(0, 1) != '+' {
		t.Errorf("grid cell = %q", cell(0, 1))
	}
}

func TestHeadingGlyph(t *testing.T) {
	for deg, want := range map[float64]rune{0: '>', 90: '^', 180: '<', 270: 'v', 359: '>', -90: 'v', 450: '^'} {
		if got := headingGlyph(deg); got != want {
			t.Errorf("headingGlyph(%v) = %q, want %q", deg, got, want)
		}
	}
}

func TestWSURL(t *testing.T) {
	got, err := wsURL("http://127.0.0.1:8088/", []string{"pose", "log"})
	if err != nil || got != "ws://127.0.0.1:8088/ws?types=pose%2Clog" {
		t.Errorf("wsURL = %q, %v", got, err)
	}
	if got, _ := wsURL("https://robot.lab", nil); got != "wss://robot.lab/ws" {
		t.Errorf("wsURL = %q", got)
	}
	if _, err := wsURL("ftp://x", nil); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestFormatEvent(t *testing.T) {
	tests := map[string]string{
		`{"type":"pose","ts":"2026-01-02T03:04:05Z","x_cm":1.5,"y_cm":2,"heading_deg":90,"path_len":3}`: "x=1.5 y=2.0 heading=90.0°",
		`{"type":"approval","pending":true,"message":"Proceed?"}`:                                       "Proceed?",
		`{"type":"raw","text":"Approved"}`:                                                              "Approved",
		`{"type":"status","status":"CONNECTED","addr":"10.0.0.1:288"}`:                                  "10.0.0.1:288",
		`{"type":"mystery","value":7}`:                                                                  `"value": 7`,
		`not json`:                                                                                      "not json",
	}
	for in, want := range tests {
		if got := formatEvent([]byte(in)); !strings.Contains(got, want) {
			t.Errorf("formatEvent(%s) = %q, want it to contain %q", in, got, want)
		}
	}
}

func TestLogsPath(t *testing.T) {
	if got := logsPath(LogsOptions{}); got != "/api/logs" {
		t.Errorf("got %q", got)
	}
	if got := logsPath(LogsOptions{Level: "warn", Limit: 20}); got != "/api/logs?level=warn&limit=20" {
		t.Errorf("got %q", got)
	}
}
