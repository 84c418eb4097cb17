// Package trigger defines the boundary to the external job scheduler.
package trigger

import (
	"context"
	"time"

	"pr-build-watcher/internal/entities"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle identifies a requested build in the external scheduler's queue.
type Handle struct {
	ID       uuid.UUID
	QueuedAt time.Time
}

// Port hands a build cause to the external scheduler. The core does not
// serialize calls per pull request; implementations that cannot dedupe
// concurrent triggers for the same head SHA may run duplicate builds.
type Port interface {
	Trigger(ctx context.Context, cause entities.BuildCause) (Handle, error)
}

// LogPort is a scheduler stand-in that records the request and returns a
// handle. Used for wiring until a real scheduler is attached.
type LogPort struct {
	log *zap.SugaredLogger
}

// NewLogPort creates a logging trigger port.
func NewLogPort(log *zap.SugaredLogger) *LogPort {
	return &LogPort{log: log.Named("trigger")}
}

// Trigger logs the cause and returns a fresh handle.
func (p *LogPort) Trigger(_ context.Context, cause entities.BuildCause) (Handle, error) {
	h := Handle{ID: uuid.New(), QueuedAt: time.Now()}
	p.log.Infow("build requested",
		"build_id", h.ID,
		"pull_id", cause.PullID,
		"commit", cause.Commit,
		"mergeable", cause.Mergeable,
	)
	return h, nil
}
