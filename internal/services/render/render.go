// Package render draws the sentiment snapshot onto the fixed template image.
package render

import (
	"bytes"
	"image/color"
	"strconv"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"golang.org/x/image/font"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/sentiment"
)

// Frame everything drawn on one image.
type Frame struct {
	Stock       domain.Snapshot
	Crypto      domain.Snapshot
	StockTrend  []int
	CryptoTrend []int
	Today       time.Time
}

func (f Frame) snapshot(i domain.Instrument) domain.Snapshot {
	if i == domain.InstrumentCrypto {
		return f.Crypto
	}
	return f.Stock
}

func (f Frame) trend(i domain.Instrument) []int {
	if i == domain.InstrumentCrypto {
		return f.CryptoTrend
	}
	return f.StockTrend
}

type faces struct {
	offset  font.Face
	current font.Face
	label   font.Face
	date    font.Face
}

// Renderer draws frames onto a copy of the template.
type Renderer struct {
	assets *Assets
	layout Layout
	locale domain.Locale
	faces  faces
}

// New prepares font faces for layout.
func New(assets *Assets, layout Layout, locale domain.Locale) (*Renderer, error) {
	if assets == nil {
		return nil, errors.Wrap(domain.ErrAsset, "assets are not loaded")
	}

	var (
		fs  faces
		err error
	)
	if fs.offset, err = newFace(assets.Bold, layout.OffsetSize); err != nil {
		return nil, err
	}
	if fs.current, err = newFace(assets.Bold, layout.CurrentSize); err != nil {
		return nil, err
	}
	if fs.label, err = newFace(assets.Regular, layout.LabelSize); err != nil {
		return nil, err
	}
	if fs.date, err = newFace(assets.Regular, layout.DateSize); err != nil {
		return nil, err
	}

	return &Renderer{
		assets: assets,
		layout: layout,
		locale: locale,
		faces:  fs,
	}, nil
}

// Render draws frame and returns the PNG encoding. The template is left untouched.
func (r *Renderer) Render(frame Frame) ([]byte, error) {
	for _, s := range []domain.Snapshot{frame.Stock, frame.Crypto} {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid snapshot")
		}
	}

	dc := gg.NewContextForImage(r.assets.Template)

	for _, instrument := range domain.Instruments() {
		panel, ok := r.layout.Panels[instrument]
		if !ok {
			continue
		}
		snapshot := frame.snapshot(instrument)

		for _, key := range domain.OffsetKeys() {
			box, ok := panel.Offsets[key]
			if !ok {
				continue
			}
			v, resolved := snapshot.Offset(key)
			if !resolved {
				r.drawCentered(dc, box, r.layout.MissingMarker, r.faces.offset, r.layout.MissingColor)
				continue
			}
			r.drawCentered(dc, box, strconv.Itoa(v), r.faces.offset, sentiment.Color(v))
			r.drawLabel(dc, box, v)
		}

		r.drawNeedle(dc, panel.Pivot, snapshot.Now)
		r.drawCentered(dc, panel.Current, strconv.Itoa(snapshot.Now), r.faces.current, sentiment.Color(snapshot.Now))
	}

	for _, instrument := range domain.Instruments() {
		panel, ok := r.layout.Panels[instrument]
		if !ok {
			continue
		}
		r.drawTrend(dc, frame.trend(instrument), panel.LineColor, panel.DotColor)
	}

	r.drawCentered(dc, r.layout.DateBox, domain.DisplayDate(frame.Today, r.locale), r.faces.date, r.layout.DateColor)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCentered(dc *gg.Context, box Box, text string, face font.Face, c color.Color) {
	dc.SetFontFace(face)
	dc.SetColor(c)
	cx, cy := box.center()
	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
}

// drawLabel writes the classification centered below box.
func (r *Renderer) drawLabel(dc *gg.Context, box Box, v int) {
	dc.SetFontFace(r.faces.label)
	dc.SetColor(sentiment.Color(v))
	dc.DrawStringAnchored(sentiment.Classify(v).String(), box.X+box.W/2, box.Y+box.H, 0.5, 1)
}

func (r *Renderer) drawNeedle(dc *gg.Context, pivot Point, v int) {
	x1, y1 := sentiment.NeedleTip(pivot.X, pivot.Y, r.layout.NeedleLength, sentiment.NeedleAngle(v))
	dc.SetColor(r.layout.NeedleColor)
	dc.SetLineWidth(r.layout.NeedleWidth)
	dc.DrawLine(pivot.X, pivot.Y, x1, y1)
	dc.Stroke()
}

func (r *Renderer) drawTrend(dc *gg.Context, values []int, line, dot color.RGBA) {
	n := len(values)
	if n == 0 {
		return
	}

	dc.SetColor(line)
	dc.SetLineWidth(r.layout.LineWidth)
	for i, v := range values {
		x, y := sentiment.PlotPoint(r.layout.Graph, i, n, v)
		if i == 0 {
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	if n > 1 {
		dc.Stroke()
	} else {
		dc.ClearPath()
	}

	dc.SetColor(dot)
	for i, v := range values {
		x, y := sentiment.PlotPoint(r.layout.Graph, i, n, v)
		dc.DrawCircle(x, y, r.layout.DotRadius)
		dc.Fill()
	}
}
