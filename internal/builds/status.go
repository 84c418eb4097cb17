package builds

import (
	"context"
	"fmt"

	"pr-build-watcher/config"
	"pr-build-watcher/internal/entities"
	"pr-build-watcher/internal/gateway"

	"go.uber.org/zap"
)

// StatusPublisher reflects build lifecycle as commit statuses. Strategies
// form a closed set selected by configuration.
type StatusPublisher interface {
	OnTriggered(ctx context.Context, cause entities.BuildCause) error
	OnStarted(ctx context.Context, info entities.BuildInfo) error
	OnCompleted(ctx context.Context, info entities.BuildInfo, result entities.BuildResult) error
}

// NewStatusPublisher constructs the configured status strategy.
func NewStatusPublisher(log *zap.SugaredLogger, gw gateway.Gateway, cfg config.StatusConfig) (StatusPublisher, error) {
	switch cfg.Strategy {
	case "none":
		return nopStatus{}, nil
	case "simple", "":
		return &simpleStatus{log: log.Named("status"), gw: gw, cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown status strategy: %s", cfg.Strategy)
	}
}

// nopStatus posts nothing.
type nopStatus struct{}

func (nopStatus) OnTriggered(_ context.Context, _ entities.BuildCause) error { return nil }
func (nopStatus) OnStarted(_ context.Context, _ entities.BuildInfo) error    { return nil }
func (nopStatus) OnCompleted(_ context.Context, _ entities.BuildInfo, _ entities.BuildResult) error {
	return nil
}

// simpleStatus posts pending/terminal statuses with configurable messages.
type simpleStatus struct {
	log *zap.SugaredLogger
	gw  gateway.Gateway
	cfg config.StatusConfig
}

func (s *simpleStatus) OnTriggered(ctx context.Context, cause entities.BuildCause) error {
	msg := s.cfg.TriggeredMessage
	if msg == "" {
		msg = "Build triggered." + shaSuffix(cause.Mergeable)
	}
	return s.post(ctx, cause.Commit, entities.StatePending, "", msg)
}

func (s *simpleStatus) OnStarted(ctx context.Context, info entities.BuildInfo) error {
	msg := s.cfg.StartedMessage
	if msg == "" {
		msg = "Build started." + shaSuffix(info.Cause.Mergeable)
	}
	return s.post(ctx, info.Cause.Commit, entities.StatePending, info.URL, msg)
}

func (s *simpleStatus) OnCompleted(ctx context.Context, info entities.BuildInfo, result entities.BuildResult) error {
	msg := s.cfg.CompletedMessage
	if msg == "" {
		msg = "Build finished."
	}
	return s.post(ctx, info.Cause.Commit, MapResult(result, s.cfg.UnstableAs), info.URL, msg)
}

func (s *simpleStatus) post(ctx context.Context, sha string, state entities.CommitState, buildURL, msg string) error {
	url := buildURL
	if s.cfg.TargetURL != "" {
		url = s.cfg.TargetURL
	}
	s.log.Infow("setting commit status",
		"sha", sha, "state", state, "url", url, "message", msg, "context", s.cfg.Context)
	return s.gw.CreateCommitStatus(ctx, sha, entities.CommitStatus{
		State:       state,
		TargetURL:   url,
		Description: msg,
		Context:     s.cfg.Context,
	})
}

// MapResult converts a build result into a commit state. Unstable builds map
// to the configured state, failure by default.
func MapResult(result entities.BuildResult, unstableAs string) entities.CommitState {
	switch result {
	case entities.ResultSuccess:
		return entities.StateSuccess
	case entities.ResultUnstable:
		switch unstableAs {
		case "success":
			return entities.StateSuccess
		case "error":
			return entities.StateError
		default:
			return entities.StateFailure
		}
	default:
		return entities.StateFailure
	}
}

func shaSuffix(mergeable bool) string {
	if mergeable {
		return " sha1 is merged."
	}
	return " sha1 is original commit."
}
