package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/large-farva/cybot-control/internal/approval"
	"github.com/large-farva/cybot-control/internal/config"
	"github.com/large-farva/cybot-control/internal/logx"
	"github.com/large-farva/cybot-control/internal/protocol"
	"github.com/large-farva/cybot-control/internal/session"
	"github.com/large-farva/cybot-control/internal/telemetry"
	"github.com/large-farva/cybot-control/internal/tracker"
)

var errStopped = errors.New("daemon is shutting down")

// core is the state derived from the robot's event stream.
type core struct {
	tracker  *tracker.Tracker
	gate     *approval.Gate
	logs     *logRing
	lastPing *protocol.Ping
	received int
	dropped  int
}

func newCore(cfg config.Config, commands protocol.CommandTable) *core {
	yes, _ := commands.Lookup(protocol.IntentApprove)
	no, _ := commands.Lookup(protocol.IntentDeny)
	return &core{
		tracker: tracker.New(cfg.TrackerConfig()),
		gate:    approval.NewGate(yes, no),
		logs:    newLogRing(logRingSize),
	}
}

// request runs fn on the consumer goroutine.
type request struct {
	fn   func(*core)
	done chan struct{}
}

// inspect hands fn to the consumer and waits for it to run. Handlers use it
// for every read or write of core state.
func (a *App) inspect(ctx context.Context, fn func(*core)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case a.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.consumerDone:
		return errStopped
	}
	<-req.done
	return nil
}

// consume is the only goroutine that touches core. It blocks until the
// queue has events or a request arrives, and drains the queue fully each
// time it wakes.
func (a *App) consume(ctx context.Context) {
	defer close(a.consumerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.queue.Ready():
			for _, ev := range a.queue.Drain() {
				a.handleEvent(ev)
			}
		case req := <-a.requests:
			req.fn(a.core)
			close(req.done)
		}
	}
}

func (a *App) handleEvent(ev session.Event) {
	c := a.core
	switch ev.Kind {
	case session.EventStatus:
		a.publish(telemetry.NewStatus(ev.Status.String(), ev.Addr, ev.SessionID))

	case session.EventLog:
		c.logs.add(ev.At, ev.Level, ev.Message)
		a.publish(telemetry.NewLogLine(logx.LevelName(ev.Level), ev.Message))

	case session.EventTelemetry:
		c.received++
		a.applyTelemetry(ev)
	}
}

func (a *App) applyTelemetry(ev session.Event) {
	c := a.core
	switch t := ev.Telemetry.(type) {
	case protocol.Move, protocol.Turn:
		if _, err := c.tracker.Apply(t); err != nil {
			a.rejectTelemetry(ev, err)
			return
		}
		p := c.tracker.Pose()
		a.publish(telemetry.NewPose(p.X, p.Y, p.HeadingDeg, c.tracker.PathLen()))

	case protocol.Object:
		pt, err := c.tracker.ApplyObject(t.ScanAngleDeg, t.DistanceCM)
		if err != nil {
			a.rejectTelemetry(ev, err)
			return
		}
		a.publish(telemetry.NewObstacle(pt.X, pt.Y, t.ScanAngleDeg, t.DistanceCM, c.tracker.ObstacleCount()))

	case protocol.ApprovalRequest:
		c.gate.OnRequest(t.Message)
		a.publishApproval()
		a.logLocal(slog.LevelInfo, "robot asks: "+t.Message)

	case protocol.Ping:
		p := t
		c.lastPing = &p
		a.publish(telemetry.NewPing(t.DistanceCM, t.PulseWidthTicks, t.Overflows))

	case protocol.Raw:
		a.publish(telemetry.NewRaw(t.Text))
		a.logLocal(slog.LevelInfo, "robot: "+t.Text)
	}
}

func (a *App) rejectTelemetry(ev session.Event, err error) {
	a.core.dropped++
	a.logLocal(slog.LevelWarn, fmt.Sprintf("ignored %q: %v", ev.Line, err))
}

// logLocal records a message from inside the consumer, where pushing onto
// the queue would reorder it behind events still being drained.
func (a *App) logLocal(level slog.Level, msg string) {
	a.log.Log(context.Background(), level, msg)
	a.core.logs.add(nowUTC(), level, msg)
	a.publish(telemetry.NewLogLine(logx.LevelName(level), msg))
}

func (a *App) publishApproval() {
	st := a.core.gate.State()
	a.publish(telemetry.NewApproval(st.Pending, st.Message))
}
