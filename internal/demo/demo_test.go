package demo

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/cybot-control/internal/eventq"
	"github.com/large-farva/cybot-control/internal/protocol"
	"github.com/large-farva/cybot-control/internal/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startSim(t *testing.T, opts Options) net.Addr {
	t.Helper()
	opts.Bind = "127.0.0.1:0"
	opts.Logger = quietLogger()
	sim := New(opts)
	addr, err := sim.Listen()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sim.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return addr
}

func TestSweepDecodes(t *testing.T) {
	lines := Sweep(rand.New(rand.NewPCG(1, 2)))
	if len(lines) != 8 {
		t.Fatalf("sweep has %d lines, want 8", len(lines))
	}
	for i, l := range lines[:7] {
		ev, err := protocol.Decode(l)
		if err != nil {
			t.Fatalf("line %q: %v", l, err)
		}
		obj, ok := ev.(protocol.Object)
		if !ok || obj.ScanAngleDeg != float64(i*30) || obj.DistanceCM < 20 || obj.DistanceCM > 100 {
			t.Errorf("line %d = %#v", i, ev)
		}
	}
	if ev, err := protocol.Decode(lines[7]); err != nil || ev.Kind() != protocol.KindApproval {
		t.Errorf("last line = %#v, %v", ev, err)
	}
}

func TestSim_RespondsToCommands(t *testing.T) {
	addr := startSim(t, Options{})
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))
	r := bufio.NewReader(conn)

	tests := []struct {
		send string
		want string
	}{
		{"w", "MOV,10"},
		{"s\n", "MOV,-10"},
		{"a", "TURN,15"},
		{"d", "TURN,-15"},
		{"y", "Approved"},
		{"q", "Unknown command 'q'"},
	}
	for _, tt := range tests {
		if _, err := conn.Write([]byte(tt.send)); err != nil {
			t.Fatal(err)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("after %q: %v", tt.send, err)
		}
		if got := strings.TrimSpace(line); got != tt.want {
			t.Errorf("send %q: got %q, want %q", tt.send, got, tt.want)
		}
	}
}

func TestSim_LegacyReadings(t *testing.T) {
	addr := startSim(t, Options{Legacy: true, Interval: 20 * time.Millisecond})
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	ev, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if _, ok := ev.(protocol.Ping); !ok {
		t.Errorf("event = %#v, want Ping", ev)
	}
}

// The session manager drives the simulator the same way it drives the robot.
func TestSim_WithSessionManager(t *testing.T) {
	addr := startSim(t, Options{})
	q := eventq.New[session.Event]()
	m := session.New(session.Config{
		Addr:    addr.String(),
		Backoff: 50 * time.Millisecond,
		Logger:  quietLogger(),
	}, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	var objects, requests int
	sentScan := false
	deadline := time.After(3 * time.Second)
	for {
		for _, ev := range q.Drain() {
			switch {
			case ev.Kind == session.EventStatus && ev.Status == session.Connected && !sentScan:
				if err := m.Send('m'); err != nil {
					t.Fatalf("send: %v", err)
				}
				sentScan = true
			case ev.Kind == session.EventTelemetry:
				switch ev.Telemetry.(type) {
				case protocol.Object:
					objects++
				case protocol.ApprovalRequest:
					requests++
				}
			}
		}
		if requests > 0 {
			break
		}
		select {
		case <-q.Ready():
		case <-deadline:
			t.Fatalf("timed out: %d objects, %d requests", objects, requests)
		}
	}
	if objects != 7 {
		t.Errorf("objects = %d, want 7", objects)
	}
}
