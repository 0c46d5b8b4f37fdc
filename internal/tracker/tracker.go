// Package tracker estimates the robot's pose by dead reckoning. It
// integrates relative MOV and TURN reports from a known start pose and
// places every scanner hit into world coordinates.
//
// The estimate is open loop: odometry error accumulates without bound over a
// session and nothing here corrects it. Callers that need a trustworthy
// absolute position must not rely on this package.
//
// World frame: centimetres, +X to the right, +Y up. Heading is in degrees,
// 0° along +X, counter-clockwise positive, always kept in [0, 360).
package tracker

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"github.com/large-farva/cybot-control/internal/protocol"
)

var ErrNonFinite = errors.New("non-finite telemetry value")

// Config controls the start pose and path policy.
type Config struct {
	// InitialHeadingDeg is the heading at session start. The firmware
	// convention is 90, i.e. the robot faces world +Y.
	InitialHeadingDeg float64
	// TurnAddsVertex appends the (unchanged) position to the path on every
	// turn, producing zero-length segments at turn points.
	TurnAddsVertex bool
	// InitialHalfSpanCM seeds the extent with a box of this half-size around
	// the origin so the first frames show a sensible area. Zero seeds the
	// extent with the origin only.
	InitialHalfSpanCM float64
}

// DefaultConfig matches the mission firmware dashboards.
func DefaultConfig() Config {
	return Config{
		InitialHeadingDeg: 90,
		TurnAddsVertex:    true,
		InitialHalfSpanCM: 50,
	}
}

// Pose is the robot's estimated position and heading.
type Pose struct {
	X          float64 `json:"x_cm"`
	Y          float64 `json:"y_cm"`
	HeadingDeg float64 `json:"heading_deg"`
}

// Point returns the pose position.
func (p Pose) Point() r2.Point { return r2.Point{X: p.X, Y: p.Y} }

// Tracker holds the pose, the path history, the obstacle cloud, and the
// running world extent. It is not safe for concurrent use; a single consumer
// goroutine owns it.
type Tracker struct {
	cfg       Config
	pose      Pose
	path      []r2.Point
	obstacles []r2.Point
	extent    r2.Rect
}

// New returns a tracker at the origin with the configured heading.
func New(cfg Config) *Tracker {
	origin := r2.Point{}
	extent := r2.RectFromPoints(origin)
	if h := math.Abs(cfg.InitialHalfSpanCM); h > 0 {
		extent = r2.RectFromCenterSize(origin, r2.Point{X: 2 * h, Y: 2 * h})
	}
	return &Tracker{
		cfg:    cfg,
		pose:   Pose{HeadingDeg: wrapDeg(cfg.InitialHeadingDeg)},
		path:   []r2.Point{origin},
		extent: extent,
	}
}

// Apply dispatches a decoded telemetry event. Events that carry no pose
// information are ignored and report applied=false.
func (t *Tracker) Apply(ev protocol.Event) (applied bool, err error) {
	switch e := ev.(type) {
	case protocol.Move:
		return true, t.ApplyMove(e.DistanceCM)
	case protocol.Turn:
		return true, t.ApplyTurn(e.DeltaDeg)
	case protocol.Object:
		_, err := t.ApplyObject(e.ScanAngleDeg, e.DistanceCM)
		return true, err
	default:
		return false, nil
	}
}

// ApplyMove advances the robot distanceCM along its current heading.
func (t *Tracker) ApplyMove(distanceCM float64) error {
	if !finite(distanceCM) {
		return fmt.Errorf("move %v: %w", distanceCM, ErrNonFinite)
	}
	rad := toRad(t.pose.HeadingDeg)
	t.pose.X += math.Cos(rad) * distanceCM
	t.pose.Y += math.Sin(rad) * distanceCM
	t.appendPath()
	return nil
}

// ApplyTurn rotates the robot in place by deltaDeg.
func (t *Tracker) ApplyTurn(deltaDeg float64) error {
	if !finite(deltaDeg) {
		return fmt.Errorf("turn %v: %w", deltaDeg, ErrNonFinite)
	}
	t.pose.HeadingDeg = wrapDeg(t.pose.HeadingDeg + deltaDeg)
	if t.cfg.TurnAddsVertex {
		t.appendPath()
	}
	return nil
}

// ApplyObject records a scanner hit at scanAngleDeg relative to the heading
// and distanceCM from the robot, returning its world position.
func (t *Tracker) ApplyObject(scanAngleDeg, distanceCM float64) (r2.Point, error) {
	if !finite(scanAngleDeg) || !finite(distanceCM) {
		return r2.Point{}, fmt.Errorf("object (%v, %v): %w", scanAngleDeg, distanceCM, ErrNonFinite)
	}
	rad := toRad(t.pose.HeadingDeg + scanAngleDeg)
	p := r2.Point{
		X: t.pose.X + math.Cos(rad)*distanceCM,
		Y: t.pose.Y + math.Sin(rad)*distanceCM,
	}
	t.obstacles = append(t.obstacles, p)
	t.extent = t.extent.AddPoint(p)
	return p, nil
}

func (t *Tracker) appendPath() {
	p := t.pose.Point()
	t.path = append(t.path, p)
	t.extent = t.extent.AddPoint(p)
}

// Pose returns the current pose.
func (t *Tracker) Pose() Pose { return t.pose }

// Extent returns the bounding box of every path point and obstacle seen so
// far. It never shrinks.
func (t *Tracker) Extent() r2.Rect { return t.extent }

// Path returns a copy of the path history, origin first.
func (t *Tracker) Path() []r2.Point {
	return append([]r2.Point(nil), t.path...)
}

// PathLen is the number of path vertices.
func (t *Tracker) PathLen() int { return len(t.path) }

// Obstacles returns a copy of the obstacle cloud in arrival order.
func (t *Tracker) Obstacles() []r2.Point {
	return append([]r2.Point(nil), t.obstacles...)
}

// ObstacleCount is the number of recorded obstacles.
func (t *Tracker) ObstacleCount() int { return len(t.obstacles) }

func wrapDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	// -tiny + 360 rounds to exactly 360.
	if d >= 360 {
		d = 0
	}
	return d
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
