package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFeedUnavailable network or HTTP failure of an index feed.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrSchema unexpected response shape.
	ErrSchema = errors.New("unexpected response schema")
	// ErrLedgerUnavailable history store unreachable or failing.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrAsset missing or unreadable template or font.
	ErrAsset = errors.New("asset error")
	// ErrPublish per-channel auth, upload or post failure.
	ErrPublish = errors.New("publish failed")
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageAssets  Stage = "assets"
	StageFeed    Stage = "feed"
	StageLedger  Stage = "ledger"
	StageRender  Stage = "render"
	StageOutput  Stage = "output"
	StagePublish Stage = "publish"
)

// StageError annotates a fatal error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with stage, nil stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
