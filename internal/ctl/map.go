package ctl

import (
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// MapOptions configures the map command. Width and Height are in character
// cells; zero means fit the terminal.
type MapOptions struct {
	Width  int
	Height int
	JSON   bool
}

type screenPoint struct {
	X float64 `json:"x_px"`
	Y float64 `json:"y_px"`
}

type gridline struct {
	WorldCM float64 `json:"world_cm"`
	Screen  float64 `json:"screen_px"`
}

// MapResponse mirrors GET /api/map.
type MapResponse struct {
	Frame struct {
		Viewport struct {
			Scale      float64 `json:"scale_px_per_cm"`
			TranslateX float64 `json:"translate_x"`
			TranslateY float64 `json:"translate_y"`
		} `json:"viewport"`
		Vertical   []gridline `json:"vertical"`
		Horizontal []gridline `json:"horizontal"`
	} `json:"frame"`
	Extent struct {
		MinX float64 `json:"min_x_cm"`
		MaxX float64 `json:"max_x_cm"`
		MinY float64 `json:"min_y_cm"`
		MaxY float64 `json:"max_y_cm"`
	} `json:"extent"`
	Robot struct {
		X          float64 `json:"x_px"`
		Y          float64 `json:"y_px"`
		HeadingDeg float64 `json:"heading_deg"`
	} `json:"robot"`
	Path      []screenPoint `json:"path"`
	Obstacles []screenPoint `json:"obstacles"`
}

// cellAspect is how many times taller than wide a terminal cell is. The map
// is requested at double height and rows are sampled every second pixel.
const cellAspect = 2

// Map draws the explored area as text: '.' path, '#' obstacles, an arrow
// for the robot, '+' on grid intersections.
func Map(baseURL string, opts MapOptions) error {
	cols, rows := opts.Width, opts.Height
	if cols <= 0 || rows <= 0 {
		tw, th := 80, 24
		if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
			if w, h, err := term.GetSize(fd); err == nil {
				tw, th = w, h
			}
		}
		if cols <= 0 {
			cols = max(tw-4, 10)
		}
		if rows <= 0 {
			rows = max(th-6, 5)
		}
	}

	var m MapResponse
	path := fmt.Sprintf("/api/map?width=%d&height=%d", cols, rows*cellAspect)
	if err := getJSON(baseURL, path, &m); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(m)
	}

	fmt.Println()
	fmt.Println(header("  MAP") + colorize(dimStyle, fmt.Sprintf("  x %.0f..%.0f cm, y %.0f..%.0f cm, %.2f px/cm",
		m.Extent.MinX, m.Extent.MaxX, m.Extent.MinY, m.Extent.MaxY, m.Frame.Viewport.Scale)))
	for _, line := range renderMap(m, cols, rows) {
		fmt.Println("  " + colorizeMapLine(line))
	}
	fmt.Println()
	return nil
}

// renderMap rasterizes a map response onto a cols x rows character grid.
func renderMap(m MapResponse, cols, rows int) []string {
	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}
	set := func(x, y float64, r rune) {
		c, row := int(math.Floor(x)), int(math.Floor(y/cellAspect))
		if row >= 0 && row < rows && c >= 0 && c < cols {
			grid[row][c] = r
		}
	}

	for _, v := range m.Frame.Vertical {
		for _, h := range m.Frame.Horizontal {
			set(v.Screen, h.Screen, '+')
		}
	}

	for i := 1; i < len(m.Path); i++ {
		a, b := m.Path[i-1], m.Path[i]
		steps := int(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)/cellAspect)) + 1
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			set(a.X+(b.X-a.X)*t, a.Y+(b.Y-a.Y)*t, '.')
		}
	}
	if len(m.Path) == 1 {
		set(m.Path[0].X, m.Path[0].Y, '.')
	}

	for _, o := range m.Obstacles {
		set(o.X, o.Y, '#')
	}
	set(m.Robot.X, m.Robot.Y, headingGlyph(m.Robot.HeadingDeg))

	out := make([]string, rows)
	for i, r := range grid {
		out[i] = string(r)
	}
	return out
}

// headingGlyph picks the arrow closest to the heading. 90° is up.
func headingGlyph(deg float64) rune {
	d := math.Mod(math.Mod(deg, 360)+360, 360)
	switch {
	case d >= 45 && d < 135:
		return '^'
	case d >= 135 && d < 225:
		return '<'
	case d >= 225 && d < 315:
		return 'v'
	default:
		return '>'
	}
}

func colorizeMapLine(line string) string {
	var b strings.Builder
	for _, r := range line {
		s := string(r)
		switch r {
		case '#':
			b.WriteString(colorize(redStyle, s))
		case '.':
			b.WriteString(colorize(cyanStyle, s))
		case '+':
			b.WriteString(colorize(dimStyle, s))
		case '^', '<', 'v', '>':
			b.WriteString(colorize(greenStyle, s))
		default:
			b.WriteString(s)
		}
	}
	return b.String()
}
