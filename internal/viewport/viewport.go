// Package viewport maps the growing world extent onto a fixed-size display
// surface. Compute is a pure function of its inputs so a presentation layer
// can call it on every redraw or resize and get identical frames for
// identical state.
package viewport

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

var ErrInvalid = errors.New("invalid viewport parameters")

// Surface is the drawable area in pixels.
type Surface struct {
	Width  float64 `json:"width_px"`
	Height float64 `json:"height_px"`
}

// Params tune the mapping.
type Params struct {
	// PaddingFactor > 1 leaves a margin around the extent.
	PaddingFactor float64
	// GridSpacingCM is the world distance between gridlines.
	GridSpacingCM float64
	// MinSpanCM keeps the scale finite before the robot has moved.
	MinSpanCM float64
}

// DefaultParams matches the dashboards: 20% margin, 50 cm grid, 1 m minimum.
func DefaultParams() Params {
	return Params{PaddingFactor: 1.2, GridSpacingCM: 50, MinSpanCM: 100}
}

// Viewport is a uniform-scale world-to-screen transform with the Y axis
// inverted (screen Y grows downward).
type Viewport struct {
	Scale      float64 `json:"scale_px_per_cm"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// ToScreen maps a world point in centimetres to surface pixels.
func (v Viewport) ToScreen(p r2.Point) r2.Point {
	return r2.Point{
		X: v.TranslateX + p.X*v.Scale,
		Y: v.TranslateY - p.Y*v.Scale,
	}
}

// ToWorld is the inverse of ToScreen.
func (v Viewport) ToWorld(s r2.Point) r2.Point {
	return r2.Point{
		X: (s.X - v.TranslateX) / v.Scale,
		Y: (v.TranslateY - s.Y) / v.Scale,
	}
}

// Gridline is one grid line: its world coordinate on the axis it crosses and
// the matching screen coordinate.
type Gridline struct {
	WorldCM float64 `json:"world_cm"`
	Screen  float64 `json:"screen_px"`
}

// Frame is everything a renderer needs for one draw.
type Frame struct {
	Viewport Viewport `json:"viewport"`
	Surface  Surface  `json:"surface"`
	// GridSpacingCM is the step actually used, coarser than the configured
	// one when the extent is large.
	GridSpacingCM float64    `json:"grid_spacing_cm"`
	Vertical      []Gridline `json:"vertical"`   // constant world X
	Horizontal    []Gridline `json:"horizontal"` // constant world Y
}

// Compute derives the frame for extent on surface. Identical inputs always
// produce identical output.
func Compute(extent r2.Rect, surface Surface, p Params) (Frame, error) {
	if err := check(extent, surface, p); err != nil {
		return Frame{}, err
	}

	spanX := math.Max(extent.X.Length(), p.MinSpanCM)
	spanY := math.Max(extent.Y.Length(), p.MinSpanCM)
	scale := math.Min(
		surface.Width/(spanX*p.PaddingFactor),
		surface.Height/(spanY*p.PaddingFactor),
	)

	c := extent.Center()
	vp := Viewport{
		Scale:      scale,
		TranslateX: surface.Width/2 - c.X*scale,
		TranslateY: surface.Height/2 + c.Y*scale,
	}

	step := gridStep(extent, p.GridSpacingCM)
	f := Frame{Viewport: vp, Surface: surface, GridSpacingCM: step}
	for _, w := range gridValues(extent.X.Lo, extent.X.Hi, step) {
		f.Vertical = append(f.Vertical, Gridline{WorldCM: w, Screen: vp.TranslateX + w*scale})
	}
	for _, w := range gridValues(extent.Y.Lo, extent.Y.Hi, step) {
		f.Horizontal = append(f.Horizontal, Gridline{WorldCM: w, Screen: vp.TranslateY - w*scale})
	}
	return f, nil
}

// maxGridlines bounds the gridline count per axis.
const maxGridlines = 1000

// gridStep returns the configured spacing, multiplied by 10 as often as
// needed to keep both axes under maxGridlines.
func gridStep(extent r2.Rect, spacing float64) float64 {
	span := math.Max(extent.X.Length(), extent.Y.Length())
	for span/spacing+5 > maxGridlines {
		next := spacing * 10
		if math.IsInf(next, 0) {
			break
		}
		spacing = next
	}
	return spacing
}

// gridValues returns multiples of spacing covering [lo, hi] plus one spacing
// of margin on each side. Values are k*spacing rather than a running sum so
// they carry no accumulated rounding. It returns nil when even the coarsest
// step can't cover the range within maxGridlines.
func gridValues(lo, hi, spacing float64) []float64 {
	first := math.Floor(lo/spacing) - 1
	last := math.Ceil(hi/spacing) + 1
	if n := last - first + 1; math.IsNaN(n) || math.IsInf(n, 0) || n > maxGridlines {
		return nil
	}
	out := make([]float64, 0, int(last-first)+1)
	for k := first; k <= last; k++ {
		out = append(out, k*spacing)
	}
	return out
}

func check(extent r2.Rect, s Surface, p Params) error {
	switch {
	case extent.IsEmpty():
		return fmt.Errorf("%w: empty extent", ErrInvalid)
	case !(s.Width > 0) || !(s.Height > 0) || math.IsInf(s.Width, 0) || math.IsInf(s.Height, 0):
		return fmt.Errorf("%w: surface %vx%v", ErrInvalid, s.Width, s.Height)
	case !(p.PaddingFactor > 0):
		return fmt.Errorf("%w: padding factor %v", ErrInvalid, p.PaddingFactor)
	case !(p.GridSpacingCM > 0):
		return fmt.Errorf("%w: grid spacing %v", ErrInvalid, p.GridSpacingCM)
	case !(p.MinSpanCM > 0):
		return fmt.Errorf("%w: minimum span %v", ErrInvalid, p.MinSpanCM)
	}
	for _, iv := range []float64{extent.X.Lo, extent.X.Hi, extent.Y.Lo, extent.Y.Hi} {
		if math.IsNaN(iv) || math.IsInf(iv, 0) {
			return fmt.Errorf("%w: non-finite extent", ErrInvalid)
		}
	}
	return nil
}
