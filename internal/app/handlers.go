package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/geo/r2"

	"github.com/large-farva/cybot-control/internal/approval"
	"github.com/large-farva/cybot-control/internal/logx"
	"github.com/large-farva/cybot-control/internal/protocol"
	"github.com/large-farva/cybot-control/internal/session"
	"github.com/large-farva/cybot-control/internal/tracker"
	"github.com/large-farva/cybot-control/internal/viewport"
)

// Handler returns the daemon's HTTP routes.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealthz)
	r.Handle("/ws", a.hub.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Get("/version", a.handleVersion)
		r.Get("/config", a.handleConfig)
		r.Get("/pose", a.handlePose)
		r.Get("/path", a.handlePath)
		r.Get("/obstacles", a.handleObstacles)
		r.Get("/map", a.handleMap)
		r.Get("/approval", a.handleApprovalState)
		r.Post("/approval", a.handleApprovalAnswer)
		r.Post("/command", a.handleCommand)
		r.Post("/connect", a.handleConnect)
		r.Get("/logs", a.handleLogs)
	})
	return r
}

// ---------------------------------------------------------------------------
// Daemon
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") != "application/json" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
		return
	}

	checks := map[string]any{}
	healthy := true

	if err := a.inspect(r.Context(), func(*core) {}); err != nil {
		checks["consumer"] = map[string]any{"ok": false, "error": err.Error()}
		healthy = false
	} else {
		checks["consumer"] = map[string]any{"ok": true}
	}

	info := a.session.Info()
	checks["robot"] = map[string]any{
		"ok":     info.Status == session.Connected,
		"status": info.Status.String(),
		"addr":   info.Addr,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	var (
		gate               approval.State
		received, rejected int
	)
	if err := a.inspect(r.Context(), func(c *core) {
		gate = c.gate.State()
		received, rejected = c.received, c.dropped
	}); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	info := a.session.Info()
	resp := map[string]any{
		"name":             "cybot-control",
		"status":           info.Status.String(),
		"addr":             info.Addr,
		"session_id":       info.SessionID,
		"attempts":         info.Attempts,
		"uptime_seconds":   int64(time.Since(a.startedAt).Seconds()),
		"mode":             a.mode(),
		"ws_clients":       a.hub.Clients(r.Context()),
		"approval_pending": gate.Pending,
		"lines_received":   received,
		"lines_rejected":   rejected,
	}
	if a.mirror != nil {
		resp["mirror"] = map[string]any{
			"broker":  fmt.Sprintf("%s:%d", a.cfg.Mirror.Broker, a.cfg.Mirror.Port),
			"sent":    a.mirror.Sent(),
			"dropped": a.mirror.Dropped(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	goVersion := GoVersion
	if goVersion == "unknown" {
		goVersion = runtime.Version()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": goVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"config_path": a.configPath,
		"config":      a.cfg,
	})
}

// ---------------------------------------------------------------------------
// Pose and map
// ---------------------------------------------------------------------------

type pointJSON struct {
	X float64 `json:"x_cm"`
	Y float64 `json:"y_cm"`
}

type screenJSON struct {
	X float64 `json:"x_px"`
	Y float64 `json:"y_px"`
}

func worldPoints(pts []r2.Point) []pointJSON {
	out := make([]pointJSON, len(pts))
	for i, p := range pts {
		out[i] = pointJSON{X: p.X, Y: p.Y}
	}
	return out
}

func screenPoints(vp viewport.Viewport, pts []r2.Point) []screenJSON {
	out := make([]screenJSON, len(pts))
	for i, p := range pts {
		s := vp.ToScreen(p)
		out[i] = screenJSON{X: s.X, Y: s.Y}
	}
	return out
}

func (a *App) handlePose(w http.ResponseWriter, r *http.Request) {
	var (
		pose               tracker.Pose
		pathLen, obstacles int
		ping               *protocol.Ping
	)
	if err := a.inspect(r.Context(), func(c *core) {
		pose = c.tracker.Pose()
		pathLen = c.tracker.PathLen()
		obstacles = c.tracker.ObstacleCount()
		if c.lastPing != nil {
			p := *c.lastPing
			ping = &p
		}
	}); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{
		"pose":           pose,
		"path_len":       pathLen,
		"obstacle_count": obstacles,
	}
	if ping != nil {
		resp["last_ping"] = map[string]any{
			"distance_cm":       ping.DistanceCM,
			"pulse_width_ticks": ping.PulseWidthTicks,
			"overflows":         ping.Overflows,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handlePath(w http.ResponseWriter, r *http.Request) {
	var path []r2.Point
	if err := a.inspect(r.Context(), func(c *core) { path = c.tracker.Path() }); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": worldPoints(path)})
}

func (a *App) handleObstacles(w http.ResponseWriter, r *http.Request) {
	var obstacles []r2.Point
	if err := a.inspect(r.Context(), func(c *core) { obstacles = c.tracker.Obstacles() }); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"obstacles": worldPoints(obstacles)})
}

// handleMap projects everything the tracker knows onto a width x height
// surface, ready to draw.
func (a *App) handleMap(w http.ResponseWriter, r *http.Request) {
	width, err := intParam(r, "width", a.cfg.Viewport.DefaultWidth)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := intParam(r, "height", a.cfg.Viewport.DefaultHeight)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		extent          r2.Rect
		pose            tracker.Pose
		path, obstacles []r2.Point
	)
	if err := a.inspect(r.Context(), func(c *core) {
		extent = c.tracker.Extent()
		pose = c.tracker.Pose()
		path = c.tracker.Path()
		obstacles = c.tracker.Obstacles()
	}); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	surface := viewport.Surface{Width: float64(width), Height: float64(height)}
	frame, err := viewport.Compute(extent, surface, a.cfg.ViewportParams())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	robot := frame.Viewport.ToScreen(pose.Point())
	writeJSON(w, http.StatusOK, map[string]any{
		"frame": frame,
		"extent": map[string]float64{
			"min_x_cm": extent.X.Lo,
			"max_x_cm": extent.X.Hi,
			"min_y_cm": extent.Y.Lo,
			"max_y_cm": extent.Y.Hi,
		},
		"robot": map[string]float64{
			"x_px":        robot.X,
			"y_px":        robot.Y,
			"heading_deg": pose.HeadingDeg,
		},
		"path":      screenPoints(frame.Viewport, path),
		"obstacles": screenPoints(frame.Viewport, obstacles),
	})
}

// ---------------------------------------------------------------------------
// Control
// ---------------------------------------------------------------------------

func (a *App) handleApprovalState(w http.ResponseWriter, r *http.Request) {
	var st approval.State
	if err := a.inspect(r.Context(), func(c *core) { st = c.gate.State() }); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleApprovalAnswer resolves the pending question and sends the answer.
// The gate returns to idle even when the send fails.
func (a *App) handleApprovalAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	answer, ok := approval.ParseAnswer(req.Answer)
	if !ok {
		jsonError(w, fmt.Sprintf("answer must be yes or no, got %q", req.Answer), http.StatusBadRequest)
		return
	}

	var (
		command byte
		pending bool
		message string
	)
	if err := a.inspect(r.Context(), func(c *core) {
		message = c.gate.State().Message
		command, pending = c.gate.OnResponse(answer)
		if pending {
			a.publishApproval()
		}
	}); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !pending {
		jsonError(w, "no approval pending", http.StatusConflict)
		return
	}

	if err := a.session.Send(command); err != nil {
		a.note(slog.LevelWarn, fmt.Sprintf("answer %s to %q not delivered: %v", answer, message, err))
		sendError(w, err)
		return
	}
	a.note(slog.LevelInfo, fmt.Sprintf("answered %s to %q", answer, message))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"answer": answer.String(),
		"char":   string(command),
	})
}

func (a *App) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
		Char    string `json:"char"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		c      byte
		intent string
	)
	switch {
	case req.Command != "":
		b, err := a.commands.Lookup(req.Command)
		if err != nil {
			jsonError(w, fmt.Sprintf("%v (known: %v)", err, a.commands.Intents()), http.StatusBadRequest)
			return
		}
		c, intent = b, req.Command
	case len(req.Char) == 1 && req.Char[0] < 0x80:
		c = req.Char[0]
		intent, _ = a.commands.IntentFor(c)
	default:
		jsonError(w, `body must carry "command" or a single ASCII "char"`, http.StatusBadRequest)
		return
	}

	if err := a.session.Send(c); err != nil {
		a.note(slog.LevelWarn, fmt.Sprintf("command %q dropped: %v", c, err))
		sendError(w, err)
		return
	}
	a.log.Debug("command sent", "char", string(c), "intent", intent)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"command": intent,
		"char":    string(c),
	})
}

func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Addr string `json:"addr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, port, err := net.SplitHostPort(req.Addr); err != nil || port == "" {
		jsonError(w, fmt.Sprintf("addr must be host:port, got %q", req.Addr), http.StatusBadRequest)
		return
	}
	a.session.Retarget(req.Addr)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"message": "reconnecting to " + req.Addr,
	})
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	floor := slog.LevelDebug
	if lv := r.URL.Query().Get("level"); lv != "" {
		floor = logx.ParseLevel(lv)
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var entries []logEntry
	if err := a.inspect(r.Context(), func(c *core) { entries = c.logs.snapshot(floor, limit) }); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// sendError maps a session send failure onto a status code.
func sendError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	if errors.Is(err, session.ErrNotConnected) {
		code = http.StatusConflict
	}
	jsonError(w, err.Error(), code)
}
