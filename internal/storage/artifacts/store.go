// Package artifacts persists the outputs of a run: image, post text and run report.
package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const (
	DefaultDir = "output"

	ImageFile  = "FearGreed_Output.png"
	TextFile   = "post_text.txt"
	ReportFile = "report.json"
)

// Store writes artifacts into a directory.
type Store struct {
	dir string
}

// NewStore creates the output directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}
	return &Store{dir: dir}, nil
}

// Path returns the location of an artifact file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// SaveImage writes the rendered PNG and returns its path.
func (s *Store) SaveImage(png []byte) (string, error) {
	return s.write(ImageFile, png)
}

// SaveText writes the post text and returns its path.
func (s *Store) SaveText(text string) (string, error) {
	return s.write(TextFile, []byte(text))
}

// SaveReport writes the run report as indented JSON.
func (s *Store) SaveReport(report domain.RunReport) (string, error) {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode run report")
	}
	return s.write(ReportFile, payload)
}

// LoadReport reads the report of the previous run. A missing file yields nil.
func (s *Store) LoadReport() (*domain.RunReport, error) {
	payload, err := os.ReadFile(s.Path(ReportFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read run report")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var report domain.RunReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, errors.Wrap(err, "decode run report")
	}
	return &report, nil
}

// write replaces name atomically via a temp file.
func (s *Store) write(name string, payload []byte) (string, error) {
	path := s.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s temp file", name)
	}

	if err := os.Rename(tmp, path); err != nil {
		return "", errors.Wrapf(err, "persist %s", name)
	}

	return path, nil
}
