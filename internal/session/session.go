// Package session owns the TCP link to the robot. It dials, optionally
// sends a bootstrap token, frames and decodes the inbound stream, and
// reconnects after a fixed backoff whenever the link fails. Everything it
// learns is pushed onto an event queue; it never touches the consumer's
// state.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/cybot-control/internal/eventq"
	"github.com/large-farva/cybot-control/internal/framer"
	"github.com/large-farva/cybot-control/internal/protocol"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrStreamEnded  = errors.New("stream ended by peer")
)

// SendError reports a command that could not be written. Dropped commands
// are not retried.
type SendError struct {
	Command byte
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %q: %v", e.Command, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Dialer opens connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config parameterizes a Manager.
type Config struct {
	Addr           string
	ConnectTimeout time.Duration
	Backoff        time.Duration
	WriteTimeout   time.Duration
	// Bootstrap is written once right after each successful connect.
	Bootstrap       string
	Encoder         protocol.Encoder
	ReadBufferBytes int
	MaxLineBytes    int
	Dialer          Dialer
	Logger          *slog.Logger
}

// Info is a point-in-time view of the manager.
type Info struct {
	Status    Status `json:"-"`
	Addr      string `json:"addr"`
	SessionID string `json:"session_id,omitempty"`
	Attempts  int    `json:"attempts"`
}

// Manager runs the connect / read / reconnect loop.
type Manager struct {
	cfg   Config
	queue *eventq.Queue[Event]
	log   *slog.Logger

	mu         sync.Mutex
	status     Status
	addr       string
	id         string
	conn       net.Conn
	attempts   int
	dialCancel context.CancelFunc

	writeMu sync.Mutex
	kick    chan struct{}
}

// New creates a manager that reports to q. Zero durations get defaults.
func New(cfg Config, q *eventq.Queue[Event]) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.ReadBufferBytes <= 0 {
		cfg.ReadBufferBytes = 1024
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:   cfg,
		queue: q,
		log:   cfg.Logger.With("component", "session"),
		addr:  cfg.Addr,
		kick:  make(chan struct{}, 1),
	}
}

// Run loops until ctx is cancelled: connect, read until failure, wait the
// backoff, repeat. There is no attempt limit. On return the socket is
// closed.
func (m *Manager) Run(ctx context.Context) {
	m.report(slog.LevelInfo, "", fmt.Sprintf("session manager started, robot at %s", m.Addr()))
	for {
		m.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		if !m.wait(ctx, m.cfg.Backoff) {
			return
		}
	}
}

func (m *Manager) connectAndRead(ctx context.Context) {
	id := uuid.NewString()
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)

	m.mu.Lock()
	addr := m.addr
	m.attempts++
	m.id = id
	m.dialCancel = cancel
	m.mu.Unlock()
	m.setStatus(Connecting, id, addr)

	conn, err := m.cfg.Dialer.DialContext(dialCtx, "tcp", addr)
	cancel()
	m.mu.Lock()
	m.dialCancel = nil
	retargeted := m.addr != addr
	if err == nil && !retargeted {
		// Published before the bootstrap so Retarget can close it.
		m.conn = conn
	}
	m.mu.Unlock()
	if err != nil {
		m.report(slog.LevelWarn, id, fmt.Sprintf("connect %s: %v", addr, err))
		m.setStatus(Disconnected, id, addr)
		return
	}
	if retargeted {
		_ = conn.Close()
		m.report(slog.LevelInfo, id, fmt.Sprintf("dropping %s, robot address changed", addr))
		m.setStatus(Disconnected, id, addr)
		return
	}

	// Cancelling ctx closes the socket, which unblocks the read below.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()
	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
	}()

	if m.cfg.Bootstrap != "" {
		if err := m.write(conn, []byte(m.cfg.Bootstrap)); err != nil {
			m.report(slog.LevelWarn, id, fmt.Sprintf("bootstrap to %s: %v", addr, err))
			m.setStatus(Disconnected, id, addr)
			return
		}
	}

	m.mu.Lock()
	retargeted = m.addr != addr
	if !retargeted {
		m.status = Connected
	}
	m.mu.Unlock()
	if retargeted {
		m.report(slog.LevelInfo, id, fmt.Sprintf("dropping %s, robot address changed", addr))
		m.setStatus(Disconnected, id, addr)
		return
	}
	m.pushStatus(Connected, id, addr)
	m.report(slog.LevelInfo, id, "connected to "+addr)

	err = m.readLoop(conn, id)

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
	if ctx.Err() == nil {
		m.report(slog.LevelWarn, id, fmt.Sprintf("connection to %s lost: %v", addr, err))
	}
	m.setStatus(Disconnected, id, addr)
}

func (m *Manager) readLoop(conn net.Conn, id string) error {
	fr := framer.New(m.cfg.MaxLineBytes)
	buf := make([]byte, m.cfg.ReadBufferBytes)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range fr.Feed(buf[:n]) {
				m.handleLine(id, line)
			}
		}
		if err != nil {
			if fr.Buffered() > 0 {
				m.log.Debug("discarding partial line", "session", id, "bytes", fr.Buffered())
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (m *Manager) handleLine(id, line string) {
	ev, err := protocol.Decode(line)
	if errors.Is(err, protocol.ErrEmpty) {
		return
	}
	if err != nil {
		m.report(slog.LevelWarn, id, "dropped line: "+err.Error())
		return
	}
	m.queue.Push(Event{
		Kind:      EventTelemetry,
		At:        time.Now(),
		SessionID: id,
		Telemetry: ev,
		Line:      line,
	})
}

// Send writes one command if the link is up. It does not retry; a failed
// write also tears the link down so the read loop reconnects.
func (m *Manager) Send(command byte) error {
	m.mu.Lock()
	conn, status := m.conn, m.status
	m.mu.Unlock()

	if status != Connected || conn == nil {
		return &SendError{Command: command, Err: ErrNotConnected}
	}
	if err := m.write(conn, m.cfg.Encoder.Encode(command)); err != nil {
		_ = conn.Close()
		return &SendError{Command: command, Err: err}
	}
	return nil
}

// write serializes writers so a command never interleaves with another.
func (m *Manager) write(conn net.Conn, b []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	_, err := conn.Write(b)
	return err
}

// Retarget switches the robot address. Any current connection or dial in
// progress is abandoned and the next attempt starts without waiting out the
// backoff.
func (m *Manager) Retarget(addr string) {
	m.mu.Lock()
	m.addr = addr
	conn, cancel := m.conn, m.dialCancel
	m.mu.Unlock()

	m.report(slog.LevelInfo, "", "retargeting robot link to "+addr)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Addr returns the address used for the next or current attempt.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Info returns a snapshot of status, address, session and attempt count.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Info{Status: m.status, Addr: m.addr, SessionID: m.id, Attempts: m.attempts}
}

func (m *Manager) setStatus(s Status, id, addr string) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	m.pushStatus(s, id, addr)
}

func (m *Manager) pushStatus(s Status, id, addr string) {
	m.log.Debug("status", "status", s.String(), "session", id, "addr", addr)
	m.queue.Push(Event{Kind: EventStatus, At: time.Now(), SessionID: id, Status: s, Addr: addr})
}

// report logs msg and forwards it to the operator log stream.
func (m *Manager) report(level slog.Level, id, msg string) {
	m.log.Log(context.Background(), level, msg, "session", id)
	m.queue.Push(Event{Kind: EventLog, At: time.Now(), SessionID: id, Level: level, Message: msg})
}

// wait sleeps for d, returning false if ctx ended first. A retarget cuts
// the wait short.
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-m.kick:
		return true
	}
}
