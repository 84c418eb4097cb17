// Package builds drives the build lifecycle: trigger requests, status and
// comment publication, and post-build actions.
package builds

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"pr-build-watcher/config"
	"pr-build-watcher/internal/entities"
	"pr-build-watcher/internal/gateway"
	"pr-build-watcher/internal/trigger"

	"go.uber.org/zap"
)

// Builds ties the trigger port and the publishers together. Failures in
// status or comment posting are reported and never abort the lifecycle.
type Builds struct {
	log        *zap.SugaredLogger
	gw         gateway.Gateway
	port       trigger.Port
	status     StatusPublisher
	comments   *CommentUpserter
	cfg        config.TriggerConfig
	unstableAs string
}

// New constructs the build lifecycle driver.
func New(
	log *zap.SugaredLogger,
	gw gateway.Gateway,
	port trigger.Port,
	status StatusPublisher,
	comments *CommentUpserter,
	cfg config.TriggerConfig,
	unstableAs string,
) *Builds {
	return &Builds{
		log:        log.Named("builds"),
		gw:         gw,
		port:       port,
		status:     status,
		comments:   comments,
		cfg:        cfg,
		unstableAs: unstableAs,
	}
}

// Build posts the triggered status and hands the cause to the scheduler.
func (b *Builds) Build(ctx context.Context, cause entities.BuildCause) {
	if err := b.status.OnTriggered(ctx, cause); err != nil {
		b.reportPublishFailure(cause.PullID, err)
	}
	handle, err := b.port.Trigger(ctx, cause)
	if err != nil {
		b.log.Errorw("job did not start", "pull_id", cause.PullID, "error", err)
		return
	}
	b.log.Infow("build triggered", "pull_id", cause.PullID, "commit", cause.Commit, "build_id", handle.ID)
}

// OnStarted posts the started status and returns a human build description
// expanded from the configured template.
func (b *Builds) OnStarted(ctx context.Context, info entities.BuildInfo) string {
	if err := b.status.OnStarted(ctx, info); err != nil {
		b.reportPublishFailure(info.Cause.PullID, err)
	}
	return ExpandTemplate(b.cfg.DescriptionTemplate, info.Cause)
}

// OnCompleted posts the terminal status and comment and runs the configured
// post-build actions (auto-close on failure, auto-merge on success).
func (b *Builds) OnCompleted(ctx context.Context, info entities.BuildInfo, result entities.BuildResult) {
	if err := b.status.OnCompleted(ctx, info, result); err != nil {
		b.reportPublishFailure(info.Cause.PullID, err)
	}

	if b.cfg.CommentTemplate != "" {
		body := ExpandTemplate(b.cfg.CommentTemplate, info.Cause)
		if err := b.comments.Upsert(ctx, info.Cause.PullID, body); err != nil {
			b.reportPublishFailure(info.Cause.PullID, err)
		}
	}

	state := MapResult(result, b.unstableAs)
	if state == entities.StateFailure && b.cfg.AutoCloseFailed {
		b.closeFailed(ctx, info.Cause.PullID)
	}
	if result == entities.ResultSuccess && b.cfg.AutoMergeOnSuccess {
		b.mergeSucceeded(ctx, info.Cause)
	}
}

func (b *Builds) closeFailed(ctx context.Context, number int) {
	pr, err := b.gw.GetPullRequest(ctx, number)
	if err != nil {
		b.log.Errorw("cannot close pull request", "pull_id", number, "error", err)
		return
	}
	if pr.State != "open" {
		return
	}
	if err := b.gw.ClosePullRequest(ctx, number); err != nil {
		b.log.Errorw("cannot close pull request", "pull_id", number, "error", err)
		return
	}
	b.log.Infow("closed failed pull request", "pull_id", number)
}

func (b *Builds) mergeSucceeded(ctx context.Context, cause entities.BuildCause) {
	if !cause.Mergeable {
		b.log.Infow("pull request cannot be automerged", "pull_id", cause.PullID)
		return
	}
	if err := b.gw.MergePullRequest(ctx, cause.PullID, b.cfg.MergeComment); err != nil {
		b.log.Errorw("merge failed", "pull_id", cause.PullID, "error", err)
		return
	}
	b.log.Infow("pull request merged", "pull_id", cause.PullID)
}

// reportPublishFailure logs a non-fatal status/comment failure. A not-found
// response on a write path usually means the credentials are wrong or the
// account has no write access to the repository.
func (b *Builds) reportPublishFailure(number int, err error) {
	if errors.Is(err, entities.ErrNotFound) {
		b.log.Errorw("could not update pull request on GitHub; "+
			"the credentials in use are probably wrong or the account has no write access",
			"pull_id", number, "error", err)
		return
	}
	b.log.Errorw("could not update pull request on GitHub", "pull_id", number, "error", err)
}

// ExpandTemplate substitutes $abbrTitle, $title, $url and $pullId macros.
func ExpandTemplate(tmpl string, cause entities.BuildCause) string {
	if tmpl == "" {
		return ""
	}
	r := strings.NewReplacer(
		"$abbrTitle", cause.AbbreviatedTitle(),
		"$title", cause.Title,
		"$url", cause.URL,
		"$pullId", strconv.Itoa(cause.PullID),
	)
	return r.Replace(tmpl)
}
