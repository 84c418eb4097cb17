// Package reconciler keeps the tracked pull request state consistent with
// upstream truth and decides when builds fire.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pr-build-watcher/internal/builds"
	"pr-build-watcher/internal/entities"
	"pr-build-watcher/internal/gateway"
	"pr-build-watcher/internal/store"

	"go.uber.org/zap"
)

// RetryPolicy bounds the mergeable-resolution loop. The wait is a pure
// function of the attempt number, independent of the sleep primitive.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff multiplies the delay per attempt; values below 1 mean a fixed
	// delay.
	Backoff float64
}

// WaitFor returns the pause before the given 1-based attempt.
func (p RetryPolicy) WaitFor(attempt int) time.Duration {
	if p.Backoff <= 1 || attempt <= 1 {
		return p.Delay
	}
	d := p.Delay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Backoff)
	}
	return d
}

// Repository is the handle for one monitored upstream repository. It owns
// the gateway session, the record store and the snapshot backend, and is
// shared by the polling and webhook paths.
type Repository struct {
	log    *zap.SugaredLogger
	name   string
	gw     gateway.Gateway
	store  *store.Store
	snap   store.Snapshotter
	builds *builds.Builds
	retry  RetryPolicy

	// buildOnAnyPass keeps the historical always-attempt contract: tryBuild
	// runs for every tracked open PR on every pass, not only on changes.
	buildOnAnyPass bool
	disabled       atomic.Bool
}

// NewRepository constructs the handle. Call Start to load persisted state.
func NewRepository(
	log *zap.SugaredLogger,
	name string,
	gw gateway.Gateway,
	st *store.Store,
	snap store.Snapshotter,
	b *builds.Builds,
	retry RetryPolicy,
	buildOnAnyPass bool,
) *Repository {
	return &Repository{
		log:            log.Named("reconciler"),
		name:           name,
		gw:             gw,
		store:          st,
		snap:           snap,
		builds:         b,
		retry:          retry,
		buildOnAnyPass: buildOnAnyPass,
	}
}

// Name returns owner/repo.
func (r *Repository) Name() string {
	return r.name
}

// SetDisabled toggles the monitored project. A disabled project is never
// reconciled and never triggers builds.
func (r *Repository) SetDisabled(disabled bool) {
	r.disabled.Store(disabled)
}

// Start loads the persisted record snapshot into the live store.
func (r *Repository) Start(ctx context.Context) error {
	recs, err := r.snap.Load(ctx, r.name)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if len(recs) > 0 {
		r.store.Replace(recs)
		r.log.Infow("restored tracked pull requests", "repo", r.name, "count", len(recs))
	}
	return nil
}

// ReconcileAll runs one full reconciliation pass: list open pull requests,
// reconcile each, and drop records whose PR is no longer open. A listing
// failure aborts the pass before any record is removed.
func (r *Repository) ReconcileAll(ctx context.Context) error {
	if r.disabled.Load() {
		r.log.Debugw("project is disabled, not checking upstream state", "repo", r.name)
		return nil
	}

	open, err := r.gw.ListOpenPullRequests(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrRateLimited) {
			r.log.Warnw("quota exhausted, skipping pass", "repo", r.name)
			return err
		}
		r.log.Errorw("could not retrieve open pull requests", "repo", r.name, "error", err)
		return err
	}

	closed := make(map[int]struct{}, r.store.Len())
	for _, id := range r.store.Keys() {
		closed[id] = struct{}{}
	}

	for i := range open {
		pr := open[i]
		delete(closed, pr.Number)
		r.ReconcileOne(ctx, pr, false)
	}

	// remove closed pulls so we don't check them again
	for id := range closed {
		if r.store.Remove(id) {
			r.log.Infow("pull request no longer open, dropped", "repo", r.name, "pull_id", id)
		}
	}

	r.saveSnapshot(ctx)
	return nil
}

// ReconcileOne checks one upstream pull request against its tracked record,
// refreshing the record on change and attempting a build. With force set
// the build attempt bypasses the change predicate and the always-attempt
// setting, used by the comment trigger phrase.
func (r *Repository) ReconcileOne(ctx context.Context, up entities.RemotePull, force bool) {
	if r.disabled.Load() {
		r.log.Debugw("project is disabled, ignoring pull request", "pull_id", up.Number)
		return
	}

	_, created := r.store.GetOrCreate(up.Number, func() *entities.PullRequestRecord {
		rec := entities.NewRecord(up)
		r.log.Infow("tracking pull request",
			"repo", r.name, "pull_id", rec.ID, "author", rec.AuthorLogin,
			"updated_at", rec.UpdatedAt, "sha", rec.HeadSHA)
		return rec
	})

	updated := false
	r.store.Update(up.Number, func(rec *entities.PullRequestRecord) {
		updated = rec.UpdatedAt.Before(up.UpdatedAt) || rec.HeadSHA != up.HeadSHA
		if !updated {
			return
		}
		if rec.HeadSHA != up.HeadSHA {
			r.log.Infow("new commit", "pull_id", rec.ID, "old_sha", rec.HeadSHA, "new_sha", up.HeadSHA)
		} else {
			// Updated timestamp advanced with no new commit: likely a title
			// edit or a commit status change upstream.
			r.log.Infow("pull request updated without new commits", "pull_id", rec.ID)
		}
		rec.Title = up.Title
		rec.HeadSHA = up.HeadSHA
		if up.UpdatedAt.After(rec.UpdatedAt) {
			rec.UpdatedAt = up.UpdatedAt
		}
	})

	if force || r.buildOnAnyPass || created || updated {
		r.tryBuild(ctx, up)
	}
}

// Remove drops the record for a pull request, used on closed webhook events.
func (r *Repository) Remove(number int) bool {
	removed := r.store.Remove(number)
	if removed {
		r.log.Infow("pull request closed, dropped", "repo", r.name, "pull_id", number)
	}
	return removed
}

// ForceBuild fetches the pull request and reconciles it bypassing the
// change predicate, so a comment alone can force a rebuild.
func (r *Repository) ForceBuild(ctx context.Context, number int) error {
	up, err := r.gw.GetPullRequest(ctx, number)
	if err != nil {
		return fmt.Errorf("fetch pull request #%d: %w", number, err)
	}
	r.ReconcileOne(ctx, *up, true)
	r.saveSnapshot(ctx)
	return nil
}

// SaveSnapshot persists the current record map, used by the webhook path
// after mutating events.
func (r *Repository) SaveSnapshot(ctx context.Context) {
	r.saveSnapshot(ctx)
}

// tryBuild resolves mergeability and the head commit author, then hands the
// cause to the build lifecycle. Helper failures degrade gracefully and never
// abort the trigger decision.
func (r *Repository) tryBuild(ctx context.Context, up entities.RemotePull) {
	mergeable := r.checkMergeable(ctx, up)

	var commitAuthor entities.CommitInfo
	commits, err := r.gw.ListCommits(ctx, up.Number)
	if err != nil {
		r.log.Warnw("unable to get pull request commits", "pull_id", up.Number, "error", err)
	} else {
		for _, cm := range commits {
			if cm.SHA == up.HeadSHA {
				commitAuthor = cm
				break
			}
		}
	}

	r.store.Update(up.Number, func(rec *entities.PullRequestRecord) {
		if mergeable {
			rec.Mergeable = entities.MergeableYes
		} else {
			rec.Mergeable = entities.MergeableNo
		}
		rec.CommitAuthorName = commitAuthor.AuthorName
		rec.CommitAuthorEmail = commitAuthor.AuthorEmail
	})

	cause := entities.BuildCause{
		PullID:            up.Number,
		Commit:            up.HeadSHA,
		Mergeable:         mergeable,
		TargetBranch:      up.TargetBranch,
		SourceBranch:      up.SourceBranch,
		AuthorEmail:       up.AuthorEmail,
		Title:             up.Title,
		URL:               up.URL,
		CommitAuthorName:  commitAuthor.AuthorName,
		CommitAuthorEmail: commitAuthor.AuthorEmail,
		TriggeredAt:       time.Now(),
	}
	r.builds.Build(ctx, cause)
}

// checkMergeable resolves the tri-state mergeable flag with a bounded
// refetch loop. Unknown after the bound, any I/O failure and cancellation
// all resolve to false: a build never runs with unresolved merge status
// silently treated as mergeable.
func (r *Repository) checkMergeable(ctx context.Context, up entities.RemotePull) bool {
	m := up.Mergeable
	for attempt := 1; m == entities.MergeableUnknown && attempt <= r.retry.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(r.retry.WaitFor(attempt)):
		}
		fresh, err := r.gw.GetPullRequest(ctx, up.Number)
		if err != nil {
			r.log.Errorw("couldn't obtain mergeable status", "pull_id", up.Number, "error", err)
			return false
		}
		m = fresh.Mergeable
	}
	if m == entities.MergeableUnknown {
		r.log.Warnw("mergeable status unresolved, treating as not mergeable", "pull_id", up.Number)
	}
	return m == entities.MergeableYes
}

func (r *Repository) saveSnapshot(ctx context.Context) {
	if err := r.snap.Save(ctx, r.name, r.store.Records()); err != nil {
		r.log.Errorw("could not persist record snapshot", "repo", r.name, "error", err)
	}
}
