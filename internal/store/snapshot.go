package store

import (
	"context"
	"fmt"

	"pr-build-watcher/config"
	"pr-build-watcher/internal/entities"
	"pr-build-watcher/internal/store/postgres"

	"go.uber.org/zap"
)

// Snapshotter persists the record map across process restarts. The live
// store stays in memory; a snapshot is loaded at job start and saved after
// mutating passes.
type Snapshotter interface {
	OnStart(_ context.Context) error
	OnStop(_ context.Context) error
	Load(ctx context.Context, repo string) ([]entities.PullRequestRecord, error)
	Save(ctx context.Context, repo string, recs []entities.PullRequestRecord) error
}

// NewSnapshotter constructs a snapshot backend by name.
func NewSnapshotter(ctx context.Context, name string, log *zap.SugaredLogger, cfg *config.Config) (Snapshotter, error) {
	switch name {
	case "postgres":
		return postgres.New(ctx, log, cfg), nil
	case "memory":
		return noopSnapshotter{}, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", name)
	}
}

// noopSnapshotter is the default in-memory-only backend: state not persisted
// externally is lost on shutdown.
type noopSnapshotter struct{}

func (noopSnapshotter) OnStart(_ context.Context) error { return nil }
func (noopSnapshotter) OnStop(_ context.Context) error  { return nil }

func (noopSnapshotter) Load(_ context.Context, _ string) ([]entities.PullRequestRecord, error) {
	return nil, nil
}

func (noopSnapshotter) Save(_ context.Context, _ string, _ []entities.PullRequestRecord) error {
	return nil
}
