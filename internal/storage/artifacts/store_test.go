package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/fgi/internal/domain"
)

func TestStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	s, err := NewStore(dir)
	require.NoError(t, err)

	report, err := s.LoadReport()
	require.NoError(t, err)
	assert.Nil(t, report, "no report before the first run")

	imagePath, err := s.SaveImage([]byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ImageFile), imagePath)

	textPath, err := s.SaveText("⬜Stock：45(-5)【Neutral】")
	require.NoError(t, err)

	data, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Equal(t, "⬜Stock：45(-5)【Neutral】", string(data))

	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	_, err = s.SaveReport(domain.RunReport{
		RunID:     "run-1",
		StartedAt: started,
		Date:      "2024/05/01",
		Snapshots: map[domain.Instrument]domain.Snapshot{
			domain.InstrumentStock: domain.NewSnapshot(domain.InstrumentStock, 45).WithOffset(domain.Offset1DayAgo, 50),
		},
		Appended: map[domain.Instrument]int{domain.InstrumentStock: 5},
		Publish:  []domain.PublishReport{{Channel: "misskey", OK: true, PostID: "n1"}},
	})
	require.NoError(t, err)

	report, err = s.LoadReport()
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "run-1", report.RunID)
	assert.True(t, started.Equal(report.StartedAt))
	assert.Equal(t, 50, report.Snapshots[domain.InstrumentStock].Offsets[domain.Offset1DayAgo])
	assert.Equal(t, "n1", report.Publish[0].PostID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()), "temp files are renamed away")
	}
}

func TestStore_CorruptReport(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(ReportFile), []byte("{"), 0o644))

	_, err = s.LoadReport()
	assert.Error(t, err)
}
