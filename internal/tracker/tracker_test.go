package tracker

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/large-farva/cybot-control/internal/protocol"
)

const tol = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < tol }

func TestNew_InitialState(t *testing.T) {
	tr := New(DefaultConfig())

	p := tr.Pose()
	if p.X != 0 || p.Y != 0 || p.HeadingDeg != 90 {
		t.Errorf("initial pose = %+v", p)
	}
	if path := tr.Path(); len(path) != 1 || path[0] != (r2.Point{}) {
		t.Errorf("initial path = %v", path)
	}
	if tr.ObstacleCount() != 0 {
		t.Errorf("obstacles = %d", tr.ObstacleCount())
	}
	ext := tr.Extent()
	if ext.X.Lo != -50 || ext.X.Hi != 50 || ext.Y.Lo != -50 || ext.Y.Hi != 50 {
		t.Errorf("initial extent = %v", ext)
	}
}

func TestMoveThenZeroTurn(t *testing.T) {
	tr := New(DefaultConfig())
	if err := tr.ApplyMove(10); err != nil {
		t.Fatal(err)
	}
	if err := tr.ApplyTurn(0); err != nil {
		t.Fatal(err)
	}
	p := tr.Pose()
	if !near(p.X, 0) || !near(p.Y, 10) {
		t.Errorf("position = (%v, %v), want (0, 10)", p.X, p.Y)
	}
}

func TestTurnWraps(t *testing.T) {
	tests := []struct {
		start, delta, want float64
	}{
		{90, -90, 0},
		{90, -180, 270},
		{350, 20, 10},
		{0, 720, 0},
		{10, -370, 0},
		{0, -1e-14, 0},
	}
	for _, tt := range tests {
		tr := New(Config{InitialHeadingDeg: tt.start})
		if err := tr.ApplyTurn(tt.delta); err != nil {
			t.Fatal(err)
		}
		got := tr.Pose().HeadingDeg
		if !near(got, tt.want) || got < 0 || got >= 360 {
			t.Errorf("%v%+v: heading = %v, want %v", tt.start, tt.delta, got, tt.want)
		}
	}
}

func TestTurnVertexPolicy(t *testing.T) {
	with := New(Config{InitialHeadingDeg: 90, TurnAddsVertex: true})
	without := New(Config{InitialHeadingDeg: 90})

	for _, tr := range []*Tracker{with, without} {
		_ = tr.ApplyTurn(45)
		_ = tr.ApplyMove(5)
	}
	if with.PathLen() != 3 {
		t.Errorf("with vertex: path len = %d, want 3", with.PathLen())
	}
	if without.PathLen() != 2 {
		t.Errorf("without vertex: path len = %d, want 2", without.PathLen())
	}
	if with.Pose() != without.Pose() {
		t.Errorf("policy changed the pose: %+v vs %+v", with.Pose(), without.Pose())
	}
}

func TestObjectPlacement(t *testing.T) {
	tr := New(Config{InitialHeadingDeg: 0})
	p, err := tr.ApplyObject(90, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !near(p.X, 0) || !near(p.Y, 5) {
		t.Errorf("object at (%v, %v), want (0, 5)", p.X, p.Y)
	}
	obs := tr.Obstacles()
	if len(obs) != 1 || obs[0] != p {
		t.Errorf("obstacles = %v", obs)
	}
	if tr.PathLen() != 1 {
		t.Errorf("object changed path: len %d", tr.PathLen())
	}
}

func TestObjectAfterMotion(t *testing.T) {
	tr := New(DefaultConfig())
	_ = tr.ApplyMove(100) // (0, 100) facing +Y
	_ = tr.ApplyTurn(-90) // facing +X
	p, _ := tr.ApplyObject(0, 30)
	if !near(p.X, 30) || !near(p.Y, 100) {
		t.Errorf("object at (%v, %v), want (30, 100)", p.X, p.Y)
	}
	ext := tr.Extent()
	if !ext.ContainsPoint(p) || !ext.ContainsPoint(r2.Point{X: 0, Y: 100}) {
		t.Errorf("extent %v misses visited points", ext)
	}
}

func TestApply_DispatchAndIgnore(t *testing.T) {
	tr := New(DefaultConfig())
	events := []protocol.Event{
		protocol.Move{DistanceCM: 10},
		protocol.Turn{DeltaDeg: 90},
		protocol.Object{ScanAngleDeg: 0, DistanceCM: 20},
		protocol.ApprovalRequest{Message: "ok?"},
		protocol.Raw{Text: "hello"},
		protocol.Ping{DistanceCM: 3},
	}
	var applied int
	for _, ev := range events {
		ok, err := tr.Apply(ev)
		if err != nil {
			t.Fatalf("Apply(%#v): %v", ev, err)
		}
		if ok {
			applied++
		}
	}
	if applied != 3 {
		t.Errorf("applied = %d, want 3", applied)
	}
	p := tr.Pose()
	if !near(p.HeadingDeg, 180) || !near(p.X, 0) || !near(p.Y, 10) {
		t.Errorf("pose = %+v", p)
	}
}

func TestNonFiniteRejected(t *testing.T) {
	tr := New(DefaultConfig())
	before := tr.Pose()

	if err := tr.ApplyMove(math.NaN()); !errors.Is(err, ErrNonFinite) {
		t.Errorf("move NaN: %v", err)
	}
	if err := tr.ApplyTurn(math.Inf(1)); !errors.Is(err, ErrNonFinite) {
		t.Errorf("turn Inf: %v", err)
	}
	if _, err := tr.ApplyObject(0, math.Inf(-1)); !errors.Is(err, ErrNonFinite) {
		t.Errorf("object -Inf: %v", err)
	}
	if tr.Pose() != before || tr.PathLen() != 1 || tr.ObstacleCount() != 0 {
		t.Error("state changed after rejected input")
	}
}

func TestMalformedLineLeavesTrackerUnchanged(t *testing.T) {
	tr := New(DefaultConfig())
	before := tr.Pose()

	ev, err := protocol.Decode("MOV,abc")
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("decode error = %v", err)
	}
	if ev != nil {
		if _, err := tr.Apply(ev); err != nil {
			t.Fatal(err)
		}
	}
	if tr.Pose() != before || tr.PathLen() != 1 {
		t.Error("tracker changed after malformed line")
	}
}

func TestExtentMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tr := New(Config{InitialHeadingDeg: 90, TurnAddsVertex: true})

	prev := tr.Extent()
	for i := 0; i < 2000; i++ {
		switch rng.IntN(3) {
		case 0:
			_ = tr.ApplyMove(rng.Float64()*40 - 10)
		case 1:
			_ = tr.ApplyTurn(rng.Float64()*360 - 180)
		case 2:
			_, _ = tr.ApplyObject(rng.Float64()*180-90, rng.Float64()*200)
		}
		cur := tr.Extent()
		if !cur.Contains(prev) {
			t.Fatalf("step %d: extent shrank from %v to %v", i, prev, cur)
		}
		prev = cur
	}

	for _, p := range append(tr.Path(), tr.Obstacles()...) {
		if !prev.ContainsPoint(p) {
			t.Fatalf("extent %v misses %v", prev, p)
		}
	}
}

func TestCopiesAreIndependent(t *testing.T) {
	tr := New(DefaultConfig())
	_ = tr.ApplyMove(1)
	path := tr.Path()
	path[0] = r2.Point{X: 99, Y: 99}
	if tr.Path()[0] != (r2.Point{}) {
		t.Error("Path() exposed internal slice")
	}
}
