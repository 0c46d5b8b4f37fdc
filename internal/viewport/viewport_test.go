package viewport

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/golang/geo/r2"
)

func floatEquals(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func rect(x0, y0, x1, y1 float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: x0, Y: y0}, r2.Point{X: x1, Y: y1})
}

func TestCompute_MinimumSpanAtOrigin(t *testing.T) {
	f, err := Compute(r2.RectFromPoints(r2.Point{}), Surface{800, 600}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	// span clamps to 100 cm, padded to 120: min(800/120, 600/120) = 5.
	if !floatEquals(f.Viewport.Scale, 5) {
		t.Errorf("scale = %v, want 5", f.Viewport.Scale)
	}
	if !floatEquals(f.Viewport.TranslateX, 400) || !floatEquals(f.Viewport.TranslateY, 300) {
		t.Errorf("translate = (%v, %v), want (400, 300)", f.Viewport.TranslateX, f.Viewport.TranslateY)
	}
	want := []float64{-50, 0, 50}
	for _, lines := range [][]Gridline{f.Vertical, f.Horizontal} {
		var got []float64
		for _, g := range lines {
			got = append(got, g.WorldCM)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("gridlines = %v, want %v", got, want)
		}
	}
}

func TestCompute_UniformScaleAndCentering(t *testing.T) {
	ext := rect(0, 0, 400, 100)
	f, err := Compute(ext, Surface{1000, 1000}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	// X is the limiting axis: 1000 / (400*1.2).
	wantScale := 1000 / 480.0
	if !floatEquals(f.Viewport.Scale, wantScale) {
		t.Errorf("scale = %v, want %v", f.Viewport.Scale, wantScale)
	}

	center := f.Viewport.ToScreen(r2.Point{X: 200, Y: 50})
	if !floatEquals(center.X, 500) || !floatEquals(center.Y, 500) {
		t.Errorf("extent centre maps to %v, want (500, 500)", center)
	}
}

func TestCompute_YInverted(t *testing.T) {
	f, err := Compute(rect(-50, -50, 50, 50), Surface{600, 600}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	up := f.Viewport.ToScreen(r2.Point{X: 0, Y: 10})
	down := f.Viewport.ToScreen(r2.Point{X: 0, Y: -10})
	if !(up.Y < down.Y) {
		t.Errorf("world +Y should be higher on screen: up=%v down=%v", up, down)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	ext := rect(-123.4, -7.25, 310.9, 88.125)
	s := Surface{1024, 768}
	p := DefaultParams()

	a, err := Compute(ext, s, p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(ext, s, p)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Compute not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestCompute_GridCoversExtentWithMargin(t *testing.T) {
	ext := rect(-73, 12, 151, 260)
	f, err := Compute(ext, Surface{800, 600}, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	check := func(name string, lines []Gridline, lo, hi float64) {
		first, last := lines[0].WorldCM, lines[len(lines)-1].WorldCM
		if first > lo-50 || last < hi+50 {
			t.Errorf("%s grid [%v, %v] does not cover [%v, %v] with margin", name, first, last, lo, hi)
		}
		for i, g := range lines {
			if math.Mod(g.WorldCM, 50) != 0 {
				t.Errorf("%s gridline %d at %v is not a multiple of 50", name, i, g.WorldCM)
			}
		}
	}
	check("vertical", f.Vertical, ext.X.Lo, ext.X.Hi)
	check("horizontal", f.Horizontal, ext.Y.Lo, ext.Y.Hi)

	for _, g := range f.Vertical {
		s := f.Viewport.ToScreen(r2.Point{X: g.WorldCM})
		if !floatEquals(s.X, g.Screen) {
			t.Errorf("vertical %v screen %v, transform gives %v", g.WorldCM, g.Screen, s.X)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	vp := Viewport{Scale: 2.5, TranslateX: 13, TranslateY: 470}
	p := r2.Point{X: -31.5, Y: 77.25}
	got := vp.ToWorld(vp.ToScreen(p))
	if !floatEquals(got.X, p.X) || !floatEquals(got.Y, p.Y) {
		t.Errorf("round trip = %v, want %v", got, p)
	}
}

func TestCompute_Invalid(t *testing.T) {
	good := rect(0, 0, 10, 10)
	tests := []struct {
		name string
		ext  r2.Rect
		s    Surface
		p    Params
	}{
		{"zero width", good, Surface{0, 100}, DefaultParams()},
		{"negative height", good, Surface{100, -1}, DefaultParams()},
		{"NaN width", good, Surface{math.NaN(), 100}, DefaultParams()},
		{"no padding", good, Surface{100, 100}, Params{GridSpacingCM: 50, MinSpanCM: 100}},
		{"no spacing", good, Surface{100, 100}, Params{PaddingFactor: 1, MinSpanCM: 100}},
		{"no min span", good, Surface{100, 100}, Params{PaddingFactor: 1, GridSpacingCM: 50}},
		{"empty extent", r2.EmptyRect(), Surface{100, 100}, DefaultParams()},
	}
	for _, tt := range tests {
		if _, err := Compute(tt.ext, tt.s, tt.p); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", tt.name, err)
		}
	}
}

func TestCompute_HugeExtentCoarsensGrid(t *testing.T) {
	tests := []struct {
		name string
		ext  r2.Rect
		p    Params
	}{
		{"far obstacle", rect(-50, -50, 50, 600000), DefaultParams()},
		{"fine spacing", rect(0, 0, 1e9, 1), Params{PaddingFactor: 1, GridSpacingCM: 1, MinSpanCM: 1}},
		{"near float limit", rect(-1e300, -1, 1e300, 1), DefaultParams()},
	}
	for _, tt := range tests {
		f, err := Compute(tt.ext, Surface{800, 600}, tt.p)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !(f.Viewport.Scale > 0) {
			t.Errorf("%s: scale = %v", tt.name, f.Viewport.Scale)
		}
		if len(f.Vertical) > maxGridlines || len(f.Horizontal) > maxGridlines {
			t.Errorf("%s: %d x %d gridlines", tt.name, len(f.Vertical), len(f.Horizontal))
		}
		if f.GridSpacingCM < tt.p.GridSpacingCM {
			t.Errorf("%s: step %v finer than configured %v", tt.name, f.GridSpacingCM, tt.p.GridSpacingCM)
		}
	}

	f, _ := Compute(rect(-50, -50, 50, 600000), Surface{800, 600}, DefaultParams())
	if f.GridSpacingCM != 5000 {
		t.Errorf("step = %v, want 5000", f.GridSpacingCM)
	}
	last := f.Horizontal[len(f.Horizontal)-1].WorldCM
	if last < 600000 {
		t.Errorf("horizontal grid ends at %v, extent reaches 600000", last)
	}
}
