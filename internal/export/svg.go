package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
)

var bodyColors = []string{"#00cc44", "#ff3333", "#3399ff", "#ffcc00"}

// OrbitsSVG draws the x-y projection of every body's path, one polyline per
// body with a dot at its last position. Both axes share one scale.
func OrbitsSVG(w io.Writer, frames dynamo.Frames, width, height int) error {
	n := frames.SampleCount()
	if n < 2 {
		return fmt.Errorf("need at least 2 frames, got %d", n)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", width, height)
	}

	bodies := len(frames.StateAt(0)) / 6
	xs := make([][]float64, bodies)
	ys := make([][]float64, bodies)
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		x := frames.StateAt(i)
		for b := 0; b < bodies; b++ {
			p := physics.Position(x, b)
			xs[b] = append(xs[b], p.X)
			ys[b] = append(ys[b], p.Y)
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}

	// 10% padding, then one scale for both axes
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	span *= 1.2
	scale := math.Min(float64(width), float64(height)) / span
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	project := func(x, y float64) (float64, float64) {
		return float64(width)/2 + (x-cx)*scale, float64(height)/2 - (y-cy)*scale
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for b := 0; b < bodies; b++ {
		color := bodyColors[b%len(bodyColors)]
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for i := range xs[b] {
			px, py := project(xs[b][i], ys[b][i])
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", px, py))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", px, py))
			}
		}
		sb.WriteString("\"/>\n")

		px, py := project(xs[b][n-1], ys[b][n-1])
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>
`, px, py, color))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
