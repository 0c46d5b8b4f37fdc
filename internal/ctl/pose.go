package ctl

import (
	"fmt"
	"strconv"
)

type worldPoint struct {
	X float64 `json:"x_cm"`
	Y float64 `json:"y_cm"`
}

// PoseResponse mirrors GET /api/pose.
type PoseResponse struct {
	Pose struct {
		X          float64 `json:"x_cm"`
		Y          float64 `json:"y_cm"`
		HeadingDeg float64 `json:"heading_deg"`
	} `json:"pose"`
	PathLen       int `json:"path_len"`
	ObstacleCount int `json:"obstacle_count"`
	LastPing      *struct {
		DistanceCM      float64 `json:"distance_cm"`
		PulseWidthTicks float64 `json:"pulse_width_ticks"`
		Overflows       int     `json:"overflows"`
	} `json:"last_ping,omitempty"`
}

// Pose prints the robot's estimated position and heading.
func Pose(baseURL string, jsonOutput bool) error {
	var p PoseResponse
	if err := getJSON(baseURL, "/api/pose", &p); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(p)
	}

	fmt.Println()
	fmt.Println(header("  ROBOT POSE"))
	fmt.Println(rule(38))
	field("Position:", fmt.Sprintf("(%.1f, %.1f) cm", p.Pose.X, p.Pose.Y))
	field("Heading:", fmt.Sprintf("%.1f°", p.Pose.HeadingDeg))
	field("Path:", fmt.Sprintf("%d vertices", p.PathLen))
	field("Obstacles:", p.ObstacleCount)
	if p.LastPing != nil {
		field("Last ping:", fmt.Sprintf("%.1f cm (%.0f ticks, %d overflows)",
			p.LastPing.DistanceCM, p.LastPing.PulseWidthTicks, p.LastPing.Overflows))
	}
	fmt.Println()
	return nil
}

// Path prints every recorded path vertex.
func Path(baseURL string, jsonOutput bool) error {
	var resp struct {
		Path []worldPoint `json:"path"`
	}
	if err := getJSON(baseURL, "/api/path", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	printPoints("PATH", resp.Path)
	return nil
}

// Obstacles prints every placed obstacle.
func Obstacles(baseURL string, jsonOutput bool) error {
	var resp struct {
		Obstacles []worldPoint `json:"obstacles"`
	}
	if err := getJSON(baseURL, "/api/obstacles", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	printPoints("OBSTACLES", resp.Obstacles)
	return nil
}

func printPoints(title string, pts []worldPoint) {
	fmt.Println()
	fmt.Println(header("  " + title))
	fmt.Println(rule(38))
	if len(pts) == 0 {
		fmt.Println("  None recorded.")
		fmt.Println()
		return
	}
	fmt.Println(colorize(dimStyle, "  #       x (cm)   y (cm)"))
	for i, p := range pts {
		fmt.Printf("  %s %8.1f %8.1f\n", colorize(dimStyle, padRight(strconv.Itoa(i), 5)), p.X, p.Y)
	}
	fmt.Println()
}
