// Package demo runs a fake CyBot on a local TCP port so the daemon, the CLI
// and the dashboard can be exercised end-to-end without the robot. It speaks
// the same line protocol: drive keys produce MOV/TURN lines, a scan produces
// an OBJ sweep followed by a REQ, and y/n are acknowledged with a plain text
// line. In legacy mode it streams untagged distance readings instead.
package demo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/large-farva/cybot-control/internal/protocol"
)

// Options configures the simulator.
type Options struct {
	Bind       string
	Legacy     bool
	Autonomous bool
	Interval   time.Duration // autonomous step or legacy reading period
	Commands   protocol.CommandTable
	StepCM     float64
	TurnDeg    float64
	Logger     *slog.Logger
}

// Sim is a simulated robot.
type Sim struct {
	opts Options
	log  *slog.Logger

	mu sync.Mutex
	ln net.Listener
}

// New fills in defaults for zero-valued options.
func New(opts Options) *Sim {
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:2288"
	}
	if opts.Interval <= 0 {
		opts.Interval = 1500 * time.Millisecond
	}
	if opts.Commands == nil {
		opts.Commands = protocol.DefaultCommands()
	}
	if opts.StepCM == 0 {
		opts.StepCM = 10
	}
	if opts.TurnDeg == 0 {
		opts.TurnDeg = 15
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sim{opts: opts, log: opts.Logger.With("component", "demo")}
}

// Listen binds the simulator's socket and returns its address. Serve must
// be called to accept connections.
func (s *Sim) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return nil, fmt.Errorf("demo listen %s: %w", s.opts.Bind, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts robot connections until ctx is cancelled. It calls Listen
// first if that has not happened yet.
func (s *Sim) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.ln
		s.mu.Unlock()
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	mode := "tagged"
	if s.opts.Legacy {
		mode = "legacy"
	}
	s.log.Info("simulated robot listening", "addr", ln.Addr().String(), "mode", mode, "autonomous", s.opts.Autonomous)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("demo accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// robot is the per-connection state. rng belongs to the reading goroutine;
// tick has its own.
type robot struct {
	conn net.Conn
	mu   sync.Mutex
	rng  *rand.Rand
}

func (r *robot) send(lines ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	for _, l := range lines {
		if _, err := r.conn.Write([]byte(l + "\n")); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) handle(ctx context.Context, conn net.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(connCtx, func() { _ = conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	s.log.Info("controller connected", "remote", remote)
	defer s.log.Info("controller disconnected", "remote", remote)

	r := &robot{conn: conn, rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	if s.opts.Autonomous || s.opts.Legacy {
		go s.tick(connCtx, r)
	}

	br := bufio.NewReader(conn)
	for {
		c, err := br.ReadByte()
		if err != nil {
			return
		}
		if c == '\n' || c == '\r' {
			continue
		}
		if err := s.respond(r, c); err != nil {
			s.log.Debug("write failed", "remote", remote, "err", err)
			return
		}
	}
}

// respond turns one command character into the robot's reply lines.
func (s *Sim) respond(r *robot, c byte) error {
	intent, ok := s.opts.Commands.IntentFor(c)
	if !ok {
		return r.send(fmt.Sprintf("Unknown command '%c'", c))
	}
	if s.opts.Legacy {
		if intent == protocol.IntentScan {
			return r.send(ping(r.rng))
		}
		return nil
	}
	switch intent {
	case protocol.IntentForward:
		return r.send(fmt.Sprintf("%s,%g", protocol.TagMove, s.opts.StepCM))
	case protocol.IntentBack:
		return r.send(fmt.Sprintf("%s,%g", protocol.TagMove, -s.opts.StepCM))
	case protocol.IntentLeft:
		return r.send(fmt.Sprintf("%s,%g", protocol.TagTurn, s.opts.TurnDeg))
	case protocol.IntentRight:
		return r.send(fmt.Sprintf("%s,%g", protocol.TagTurn, -s.opts.TurnDeg))
	case protocol.IntentScan:
		return r.send(Sweep(r.rng)...)
	case protocol.IntentApprove:
		return r.send("Approved")
	case protocol.IntentDeny:
		return r.send("Denied")
	case protocol.IntentStop:
		return r.send("Stopped")
	}
	return nil
}

// Sweep returns the OBJ lines of one 0..180 degree scan followed by the
// approval request the firmware sends after scanning.
func Sweep(rng *rand.Rand) []string {
	lines := make([]string, 0, 8)
	for angle := 0; angle <= 180; angle += 30 {
		dist := 20 + rng.Float64()*80
		lines = append(lines, fmt.Sprintf("%s,%d,%.1f", protocol.TagObject, angle, dist))
	}
	return append(lines, protocol.TagRequest+",Proceed along scanned path?")
}

func ping(rng *rand.Rand) string {
	dist := 10 + rng.Float64()*190
	// 16 MHz timer ticks for the round trip at 343 m/s.
	ticks := dist * 2 / 34300 * 16e6
	return fmt.Sprintf("%.1f,%.0f,%d", dist, ticks, 0)
}

// tick emits unsolicited traffic: random drive steps in autonomous mode,
// periodic readings in legacy mode.
func (s *Sim) tick(ctx context.Context, r *robot) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		var line string
		switch {
		case s.opts.Legacy:
			line = ping(rng)
		case rng.IntN(3) == 0:
			line = fmt.Sprintf("%s,%g", protocol.TagTurn, float64(rng.IntN(7)-3)*s.opts.TurnDeg)
		default:
			line = fmt.Sprintf("%s,%g", protocol.TagMove, s.opts.StepCM)
		}
		if err := r.send(line); err != nil {
			return
		}
	}
}
