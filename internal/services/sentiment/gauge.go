// Package sentiment turns raw index readings into presentation values:
// classification labels, palette colors, gauge needle angles and plot coordinates.
package sentiment

import (
	"fmt"
	"image/color"
	"math"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// band one classification range. Every band covers ~35 degrees of the gauge
// regardless of how many index points it spans.
type band struct {
	from, to int
	label    domain.Label
	hex      string
	angle    float64
	sweep    float64
	span     float64
}

var bands = []band{
	{from: 0, to: 24, label: domain.LabelExtremeFear, hex: "#FD5763", angle: 180, sweep: 35, span: 24},
	{from: 25, to: 44, label: domain.LabelFear, hex: "#FC854E", angle: 216, sweep: 35, span: 19},
	{from: 45, to: 55, label: domain.LabelNeutral, hex: "#FED236", angle: 252, sweep: 35, span: 10},
	{from: 56, to: 75, label: domain.LabelGreed, hex: "#A1D778", angle: 288, sweep: 35, span: 19},
	{from: 76, to: 100, label: domain.LabelExtremeGreed, hex: "#6BCA67", angle: 324, sweep: 36, span: 24},
}

// GaugeSpec derived visual description of a single value.
type GaugeSpec struct {
	Angle float64
	Color color.RGBA
	Label domain.Label
}

// Gauge computes angle, color and label for v.
func Gauge(v int) GaugeSpec {
	return GaugeSpec{
		Angle: NeedleAngle(v),
		Color: Color(v),
		Label: Classify(v),
	}
}

func bandFor(v int) band {
	v = clamp(v)
	for _, b := range bands {
		if v <= b.to {
			return b
		}
	}
	return bands[len(bands)-1]
}

// Classify maps a value onto one of the five sentiment labels.
func Classify(v int) domain.Label {
	return bandFor(v).label
}

// Hex returns the palette color of v as #RRGGBB.
func Hex(v int) string {
	return bandFor(v).hex
}

// Color returns the palette color of v.
func Color(v int) color.RGBA {
	c, err := ParseHex(Hex(v))
	if err != nil {
		// palette is constant, unreachable
		panic(err)
	}
	return c
}

// NeedleAngle maps [0,100] onto the upper half circle [180,360] degrees.
func NeedleAngle(v int) float64 {
	b := bandFor(v)
	return b.angle + float64(clamp(v)-b.from)/b.span*b.sweep
}

// NeedleTip returns the end point of a needle of length l drawn from (x0, y0).
func NeedleTip(x0, y0, l, angle float64) (float64, float64) {
	rad := angle * math.Pi / 180
	return x0 + l*math.Cos(rad), y0 + l*math.Sin(rad)
}

// DiffMarker formats the change from prev to now: (+3), (-3) or (±0).
func DiffMarker(now, prev int) string {
	d := now - prev
	switch {
	case d > 0:
		return fmt.Sprintf("(+%d)", d)
	case d < 0:
		return fmt.Sprintf("(%d)", d)
	default:
		return "(±0)"
	}
}

// ParseHex parses #RRGGBB into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	var r, g, b uint8
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func clamp(v int) int {
	if v < domain.MinValue {
		return domain.MinValue
	}
	if v > domain.MaxValue {
		return domain.MaxValue
	}
	return v
}
