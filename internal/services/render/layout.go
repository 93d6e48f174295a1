package render

import (
	"image/color"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/sentiment"
)

// Box axis-aligned rectangle in template coordinates.
type Box struct {
	X, Y, W, H float64
}

func (b Box) center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Point template coordinate.
type Point struct {
	X, Y float64
}

// Panel placement of one instrument on the template.
type Panel struct {
	Offsets   map[domain.OffsetKey]Box
	Current   Box
	Pivot     Point
	LineColor color.RGBA
	DotColor  color.RGBA
}

// Layout fixed geometry of the template.
type Layout struct {
	Panels        map[domain.Instrument]Panel
	Graph         sentiment.Rect
	DateBox       Box
	DateColor     color.RGBA
	NeedleColor   color.RGBA
	NeedleLength  float64
	NeedleWidth   float64
	LineWidth     float64
	DotRadius     float64
	MissingColor  color.RGBA
	OffsetSize    float64
	CurrentSize   float64
	LabelSize     float64
	DateSize      float64
	MissingMarker string
}

func rgb(hex string) color.RGBA {
	c, err := sentiment.ParseHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

func offsetBoxes(x float64) map[domain.OffsetKey]Box {
	return map[domain.OffsetKey]Box{
		domain.Offset1DayAgo:   {X: x, Y: 350, W: 40, H: 40},
		domain.Offset1WeekAgo:  {X: x, Y: 423, W: 40, H: 40},
		domain.Offset1MonthAgo: {X: x, Y: 496, W: 40, H: 40},
		domain.Offset1YearAgo:  {X: x, Y: 570, W: 40, H: 40},
	}
}

// DefaultLayout geometry of template/FearGreedTemplate.png.
func DefaultLayout() Layout {
	return Layout{
		Panels: map[domain.Instrument]Panel{
			domain.InstrumentStock: {
				Offsets:   offsetBoxes(220),
				Current:   Box{X: 211, Y: 160, W: 218, H: 218},
				Pivot:     Point{X: 320, Y: 324},
				LineColor: rgb("#f2f2f2"),
				DotColor:  rgb("#ffffff"),
			},
			domain.InstrumentCrypto: {
				Offsets:   offsetBoxes(1060),
				Current:   Box{X: 771, Y: 160, W: 218, H: 218},
				Pivot:     Point{X: 880, Y: 324},
				LineColor: rgb("#f7921a"),
				DotColor:  rgb("#f7921a"),
			},
		},
		Graph:         sentiment.Rect{X: 360, Y: 380, W: 480, H: 220},
		DateBox:       Box{X: 1020, Y: 15, W: 140, H: 20},
		DateColor:     rgb("#4D4D4D"),
		NeedleColor:   rgb("#444444"),
		NeedleLength:  200,
		NeedleWidth:   6,
		LineWidth:     3,
		DotRadius:     3,
		MissingColor:  rgb("#9E9E9E"),
		OffsetSize:    40,
		CurrentSize:   70,
		LabelSize:     16,
		DateSize:      20,
		MissingMarker: "-",
	}
}
