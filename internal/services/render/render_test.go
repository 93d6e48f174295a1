package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/sentiment"
)

var white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

func testTemplate() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1200, 630))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)
	return img
}

func testRenderer(t *testing.T, tmpl image.Image) *Renderer {
	assets, err := NewAssets(tmpl, gobold.TTF, goregular.TTF)
	require.NoError(t, err)
	r, err := New(assets, DefaultLayout(), domain.LocaleJA)
	require.NoError(t, err)
	return r
}

func testFrame() Frame {
	stock := domain.NewSnapshot(domain.InstrumentStock, 50)
	stock.Offsets[domain.Offset1DayAgo] = 45
	stock.Offsets[domain.Offset1WeekAgo] = 40
	stock.Offsets[domain.Offset1MonthAgo] = 60
	stock.Offsets[domain.Offset1YearAgo] = 70

	crypto := domain.NewSnapshot(domain.InstrumentCrypto, 20)
	crypto.Offsets[domain.Offset1DayAgo] = 18
	crypto.Offsets[domain.Offset1WeekAgo] = 30

	return Frame{
		Stock:       stock,
		Crypto:      crypto,
		StockTrend:  []int{48, 49, 47, 50},
		CryptoTrend: []int{25, 22, 18, 20},
		Today:       time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func decode(t *testing.T, b []byte) image.Image {
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func assertColorNear(t *testing.T, expected color.RGBA, actual color.Color, msg string) {
	r, g, b, _ := actual.RGBA()
	diff := math.Abs(float64(r>>8)-float64(expected.R)) +
		math.Abs(float64(g>>8)-float64(expected.G)) +
		math.Abs(float64(b>>8)-float64(expected.B))
	assert.LessOrEqual(t, diff, 12.0, "%s: expected %v, got %v", msg, expected, actual)
}

func TestRender(t *testing.T) {
	tmpl := testTemplate()
	r := testRenderer(t, tmpl)

	out, err := r.Render(testFrame())
	require.NoError(t, err)

	img := decode(t, out)
	assert.Equal(t, tmpl.Bounds(), img.Bounds())

	layout := DefaultLayout()

	// stock needle at 50 points almost straight up from (320,324)
	assertColorNear(t, layout.NeedleColor, img.At(319, 200), "stock needle")

	// crypto needle at 20: 180 + 20/24*35 degrees
	x, y := sentiment.NeedleTip(880, 324, 100, sentiment.NeedleAngle(20))
	assertColorNear(t, layout.NeedleColor, img.At(int(math.Round(x)), int(math.Round(y))), "crypto needle")

	// crypto trend is drawn last, its newest dot sits at the right edge of the graph
	px, py := sentiment.PlotPoint(layout.Graph, 3, 4, 20)
	assertColorNear(t, layout.Panels[domain.InstrumentCrypto].DotColor, img.At(int(px), int(py)), "crypto dot")

	// template is copied, never modified
	assert.Equal(t, white, tmpl.RGBAAt(319, 200))
}

func TestRender_ToleratesMissingValues(t *testing.T) {
	r := testRenderer(t, testTemplate())

	frame := testFrame()
	frame.Crypto = domain.NewSnapshot(domain.InstrumentCrypto, 20)
	frame.CryptoTrend = []int{20}
	frame.StockTrend = nil

	out, err := r.Render(frame)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRender_RejectsInvalidSnapshot(t *testing.T) {
	r := testRenderer(t, testTemplate())

	frame := testFrame()
	frame.Stock.Now = 120

	_, err := r.Render(frame)
	assert.Error(t, err)
}

func TestRender_IsDeterministic(t *testing.T) {
	r := testRenderer(t, testTemplate())

	first, err := r.Render(testFrame())
	require.NoError(t, err)
	second, err := r.Render(testFrame())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadAssets(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testTemplate()))
	tmplPath := filepath.Join(dir, "template.png")
	require.NoError(t, os.WriteFile(tmplPath, buf.Bytes(), 0o644))

	boldPath := filepath.Join(dir, "bold.ttf")
	require.NoError(t, os.WriteFile(boldPath, gobold.TTF, 0o644))
	regularPath := filepath.Join(dir, "regular.ttf")
	require.NoError(t, os.WriteFile(regularPath, goregular.TTF, 0o644))

	brokenPath := filepath.Join(dir, "broken.otf")
	require.NoError(t, os.WriteFile(brokenPath, []byte("not a font"), 0o644))

	tests := []struct {
		name    string
		paths   AssetPaths
		wantErr bool
	}{
		{name: "valid", paths: AssetPaths{Template: tmplPath, BoldFont: boldPath, RegularFont: regularPath}},
		{name: "missing template", paths: AssetPaths{Template: filepath.Join(dir, "nope.png"), BoldFont: boldPath, RegularFont: regularPath}, wantErr: true},
		{name: "template is not an image", paths: AssetPaths{Template: boldPath, BoldFont: boldPath, RegularFont: regularPath}, wantErr: true},
		{name: "missing font", paths: AssetPaths{Template: tmplPath, BoldFont: filepath.Join(dir, "nope.otf"), RegularFont: regularPath}, wantErr: true},
		{name: "broken font", paths: AssetPaths{Template: tmplPath, BoldFont: boldPath, RegularFont: brokenPath}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets, err := LoadAssets(tt.paths)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrAsset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 1200, 630), assets.Template.Bounds())
		})
	}
}
