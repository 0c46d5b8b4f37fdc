// Package app wires together the robot session, the consumer that owns the
// pose and approval state, the HTTP API, the WebSocket hub, the optional
// MQTT mirror and the optional simulator. It owns the daemon's lifecycle.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/large-farva/cybot-control/internal/config"
	"github.com/large-farva/cybot-control/internal/demo"
	"github.com/large-farva/cybot-control/internal/eventq"
	"github.com/large-farva/cybot-control/internal/mirror"
	"github.com/large-farva/cybot-control/internal/protocol"
	"github.com/large-farva/cybot-control/internal/session"
	"github.com/large-farva/cybot-control/internal/telemetry"
	"github.com/large-farva/cybot-control/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *slog.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// Dialer and Publisher replace the real network and broker in tests.
	Dialer    session.Dialer
	Publisher mirror.Publisher
}

// App is the top-level daemon process.
type App struct {
	log        *slog.Logger
	base       *slog.Logger
	cfg        config.Config
	configPath string
	bind       string
	startedAt  time.Time

	commands protocol.CommandTable
	queue    *eventq.Queue[session.Event]
	session  *session.Manager
	hub      *ws.Hub
	mirror   *mirror.Mirror
	sim      *demo.Sim
	pub      mirror.Publisher
	dialer   session.Dialer

	requests     chan request
	consumerDone chan struct{}
	sessionDone  chan struct{}

	// core is only touched by the consumer goroutine.
	core *core
}

// New builds an App. Nothing runs until Run.
func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := opts.Cfg
	a := &App{
		log:          log.With("component", "cybotd"),
		base:         log,
		cfg:          cfg,
		configPath:   opts.ConfigPath,
		bind:         opts.Bind,
		startedAt:    time.Now(),
		commands:     cfg.CommandTable(),
		queue:        eventq.New[session.Event](),
		hub:          ws.NewHub(log),
		requests:     make(chan request),
		consumerDone: make(chan struct{}),
		sessionDone:  make(chan struct{}),
		pub:          opts.Publisher,
		dialer:       opts.Dialer,
	}
	a.core = newCore(cfg, a.commands)

	if cfg.Demo.Enabled {
		a.sim = demo.New(demo.Options{
			Bind:       cfg.Demo.Bind,
			Legacy:     cfg.Demo.Legacy,
			Autonomous: cfg.Demo.Autonomous,
			Interval:   time.Duration(cfg.Demo.IntervalMS) * time.Millisecond,
			Commands:   a.commands,
			Logger:     log,
		})
	}

	return a
}

// Run starts every component and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.cfg.Server.Bind
	}

	server := &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	if err := a.start(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	a.log.Info("listening", "url", "http://"+ln.Addr().String())

	go func() {
		<-ctx.Done()
		a.log.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// The robot socket is closed once the session goroutine returns.
	<-a.sessionDone
	return nil
}

// start launches the background goroutines: hub, simulator, session,
// consumer, heartbeat and mirror.
func (a *App) start(ctx context.Context) error {
	go a.hub.Run(ctx)

	robot := a.cfg.RobotAddr()
	if a.sim != nil {
		addr, err := a.sim.Listen()
		if err != nil {
			return err
		}
		// The simulator replaces the robot.
		robot = addr.String()
		go func() {
			if err := a.sim.Serve(ctx); err != nil {
				a.log.Error("simulator stopped", "err", err)
			}
		}()
	}

	if a.cfg.Mirror.Enabled {
		pub := a.pub
		if pub == nil {
			pub = mirror.DialMQTT(mirror.Options{
				Broker:   a.cfg.Mirror.Broker,
				Port:     a.cfg.Mirror.Port,
				ClientID: a.cfg.Mirror.ClientID,
			}, a.base)
		}
		a.mirror = mirror.New(pub, a.cfg.Mirror.TopicPrefix, 256, a.base)
		go a.mirror.Run(ctx)
	}

	a.session = a.newSession(robot)
	go a.consume(ctx)
	go func() {
		defer close(a.sessionDone)
		a.session.Run(ctx)
	}()
	go a.heartbeatLoop(ctx)
	return nil
}

func (a *App) newSession(addr string) *session.Manager {
	cfg := a.cfg
	return session.New(session.Config{
		Addr:            addr,
		ConnectTimeout:  cfg.ConnectTimeout(),
		Backoff:         cfg.ReconnectBackoff(),
		Bootstrap:       cfg.Robot.Bootstrap,
		Encoder:         protocol.Encoder{Terminator: cfg.Robot.Terminator},
		ReadBufferBytes: cfg.Robot.ReadBufferBytes,
		MaxLineBytes:    cfg.Robot.MaxLineBytes,
		Dialer:          a.dialer,
		Logger:          a.base,
	}, a.queue)
}

// publish fans an envelope out to WebSocket clients and the mirror.
func (a *App) publish(ev telemetry.Envelope) {
	a.hub.Broadcast(ev)
	if a.mirror != nil {
		a.mirror.Publish(ev)
	}
}

// note logs msg and routes it through the queue so it lands in the log ring
// and the event stream in order with everything else.
func (a *App) note(level slog.Level, msg string, args ...any) {
	a.log.Log(context.Background(), level, msg, args...)
	a.queue.Push(session.Event{Kind: session.EventLog, At: time.Now(), Level: level, Message: msg})
}

// heartbeatLoop sends a periodic heartbeat so clients can detect a stalled
// daemon without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.publish(telemetry.NewHeartbeat(a.session.Status().String(), time.Since(a.startedAt)))
		}
	}
}

func (a *App) mode() string {
	if a.sim != nil {
		return "demo"
	}
	return "live"
}
