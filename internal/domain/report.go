package domain

import (
	"errors"
	"time"
)

// RunReport summary of a single pipeline run, persisted next to the artifacts.
type RunReport struct {
	RunID         string                  `json:"run_id"`
	StartedAt     time.Time               `json:"started_at"`
	FinishedAt    time.Time               `json:"finished_at"`
	Date          string                  `json:"date"`
	Snapshots     map[Instrument]Snapshot `json:"snapshots"`
	Trends        map[Instrument][]int    `json:"trends"`
	MovingAverage map[Instrument]float64  `json:"moving_average,omitempty"`
	Appended      map[Instrument]int      `json:"appended"`
	ImagePath     string                  `json:"image_path,omitempty"`
	TextPath      string                  `json:"text_path,omitempty"`
	Text          string                  `json:"text"`
	Publish       []PublishReport         `json:"publish,omitempty"`
	DryRun        bool                    `json:"dry_run,omitempty"`
}

// Results restores the publish results of a persisted report.
func (r RunReport) Results() []PublishResult {
	results := make([]PublishResult, 0, len(r.Publish))
	for _, p := range r.Publish {
		res := PublishResult{Channel: p.Channel, OK: p.OK, PostID: p.PostID}
		if p.Error != "" {
			res.Err = errors.New(p.Error)
		}
		results = append(results, res)
	}
	return results
}

// PublishReport serializable form of PublishResult.
type PublishReport struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	PostID  string `json:"post_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewPublishReports converts publish results for persistence.
func NewPublishReports(results []PublishResult) []PublishReport {
	reports := make([]PublishReport, 0, len(results))
	for _, r := range results {
		reports = append(reports, PublishReport{
			Channel: r.Channel,
			OK:      r.OK,
			PostID:  r.PostID,
			Error:   r.Error(),
		})
	}
	return reports
}
