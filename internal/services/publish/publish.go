// Package publish distributes the rendered image and post text to social channels.
package publish

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/fgi/internal/domain"
)

const DefaultChannelTimeout = 60 * time.Second

// Session credentials state returned by Authenticate, opaque to the orchestrator.
type Session any

// Artifact image attached to every post.
type Artifact struct {
	Data     []byte
	Filename string
	MimeType string
	AltText  string
}

// Channel one publishing destination. Each step receives the session of Authenticate.
type Channel interface {
	Name() string
	Authenticate(ctx context.Context) (Session, error)
	UploadMedia(ctx context.Context, session Session, artifact Artifact) (string, error)
	CreatePost(ctx context.Context, session Session, text, mediaRef string) (string, error)
}

// Step publishing phase that failed.
type Step string

const (
	StepAuthenticate Step = "authenticate"
	StepUpload       Step = "upload"
	StepPost         Step = "post"
)

// Error failure of one channel. It matches domain.ErrPublish.
type Error struct {
	Channel string
	Step    Step
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Channel, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == domain.ErrPublish
}

// Orchestrator runs every channel once and collects one result per channel.
type Orchestrator struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator with a per-channel timeout.
func NewOrchestrator(timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{timeout: timeout, logger: logger}
}

// Publish fans out to channels concurrently. A failing channel never affects its siblings.
// Results keep the order of channels.
func (o *Orchestrator) Publish(ctx context.Context, artifact Artifact, text string, channels []Channel) []domain.PublishResult {
	results := make([]domain.PublishResult, len(channels))

	var g errgroup.Group
	for i, ch := range channels {
		g.Go(func() error {
			results[i] = o.publishOne(ctx, ch, artifact, text)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) publishOne(ctx context.Context, ch Channel, artifact Artifact, text string) (res domain.PublishResult) {
	name := ch.Name()
	res.Channel = name
	logger := o.logger.With(zap.String("channel", name))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("channel panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res.OK = false
			res.PostID = ""
			res.Err = &Error{Channel: name, Step: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	fail := func(step Step, err error) domain.PublishResult {
		logger.Error("publish failed", zap.String("step", string(step)), zap.Error(err))
		return domain.PublishResult{Channel: name, Err: &Error{Channel: name, Step: step, Err: err}}
	}

	session, err := ch.Authenticate(ctx)
	if err != nil {
		return fail(StepAuthenticate, err)
	}

	mediaRef, err := ch.UploadMedia(ctx, session, artifact)
	if err != nil {
		return fail(StepUpload, err)
	}

	postID, err := ch.CreatePost(ctx, session, text, mediaRef)
	if err != nil {
		return fail(StepPost, err)
	}

	logger.Info("published", zap.String("post_id", postID))
	return domain.PublishResult{Channel: name, OK: true, PostID: postID}
}

// FailPolicy decides when publish failures fail the whole run.
type FailPolicy string

const (
	// FailAll run fails only when every channel failed.
	FailAll FailPolicy = "all"
	// FailAny run fails when at least one channel failed.
	FailAny FailPolicy = "any"
	// FailNever publish failures never fail the run.
	FailNever FailPolicy = "never"
)

// IsValid checks if the FailPolicy value is valid.
func (p FailPolicy) IsValid() bool {
	return p == FailAll || p == FailAny || p == FailNever
}

// Failed applies the policy to results. An empty result set never fails.
func (p FailPolicy) Failed(results []domain.PublishResult) bool {
	if len(results) == 0 {
		return false
	}

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	switch p {
	case FailAny:
		return failed > 0
	case FailNever:
		return false
	default:
		return failed == len(results)
	}
}
