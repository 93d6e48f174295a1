package render

import (
	"image"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const (
	DefaultTemplatePath = "template/FearGreedTemplate.png"
	DefaultBoldFont     = "noto-sans-jp/NotoSansJP-Bold.otf"
	DefaultRegularFont  = "noto-sans-jp/NotoSansJP-Regular.otf"
)

// AssetPaths locations of the template image and fonts.
type AssetPaths struct {
	Template    string
	BoldFont    string
	RegularFont string
}

// Assets decoded template and parsed fonts, validated before any network call.
type Assets struct {
	Template image.Image
	Bold     *opentype.Font
	Regular  *opentype.Font
}

// LoadAssets reads and validates the template and both fonts.
func LoadAssets(paths AssetPaths) (*Assets, error) {
	if paths.Template == "" {
		paths.Template = DefaultTemplatePath
	}
	if paths.BoldFont == "" {
		paths.BoldFont = DefaultBoldFont
	}
	if paths.RegularFont == "" {
		paths.RegularFont = DefaultRegularFont
	}

	f, err := os.Open(paths.Template)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "open template: %v", err)
	}
	defer f.Close()

	tmpl, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "decode template %s: %v", paths.Template, err)
	}

	bold, err := os.ReadFile(paths.BoldFont)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "read bold font: %v", err)
	}
	regular, err := os.ReadFile(paths.RegularFont)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "read regular font: %v", err)
	}

	return NewAssets(tmpl, bold, regular)
}

// NewAssets builds assets from in-memory data. TrueType and OpenType (CFF) fonts are accepted.
func NewAssets(template image.Image, bold, regular []byte) (*Assets, error) {
	if template == nil {
		return nil, errors.Wrap(domain.ErrAsset, "template is nil")
	}

	b, err := opentype.Parse(bold)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "parse bold font: %v", err)
	}
	r, err := opentype.Parse(regular)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "parse regular font: %v", err)
	}

	return &Assets{Template: template, Bold: b, Regular: r}, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrapf(domain.ErrAsset, "create %.0fpt face: %v", size, err)
	}
	return face, nil
}
