package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"pr-build-watcher/config"
	"pr-build-watcher/internal/builds"
	"pr-build-watcher/internal/entities"
	"pr-build-watcher/internal/gateway/gatewaytest"
	"pr-build-watcher/internal/store"
	"pr-build-watcher/internal/trigger"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type portMock struct{ mock.Mock }

var _ trigger.Port = (*portMock)(nil)

func (m *portMock) Trigger(ctx context.Context, cause entities.BuildCause) (trigger.Handle, error) {
	args := m.Called(ctx, cause)
	return args.Get(0).(trigger.Handle), args.Error(1)
}

type fixture struct {
	repo  *Repository
	store *store.Store
	gw    *gatewaytest.Mock
	port  *portMock
}

func newFixture(t *testing.T, buildOnAnyPass bool) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()

	gw := &gatewaytest.Mock{}
	port := &portMock{}

	status, err := builds.NewStatusPublisher(log, gw, config.StatusConfig{Strategy: "none", UnstableAs: "failure"})
	require.NoError(t, err)
	lifecycle := builds.New(log, gw, port, status, builds.NewCommentUpserter(log, gw), config.TriggerConfig{}, "failure")

	snap, err := store.NewSnapshotter(context.Background(), "memory", log, &config.Config{})
	require.NoError(t, err)

	st := store.New()
	repo := NewRepository(log, "octo/widgets", gw, st, snap, lifecycle,
		RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}, buildOnAnyPass)

	return &fixture{repo: repo, store: st, gw: gw, port: port}
}

func (f *fixture) expectTrigger() *mock.Call {
	return f.port.On("Trigger", mock.Anything, mock.Anything).Return(trigger.Handle{}, nil)
}

func remotePull(number int, sha string, updatedAt time.Time) entities.RemotePull {
	return entities.RemotePull{
		Number:       number,
		HeadSHA:      sha,
		Title:        "Add widget support",
		TargetBranch: "main",
		SourceBranch: "feature/widgets",
		AuthorLogin:  "octocat",
		AuthorEmail:  "octocat@example.com",
		URL:          "https://github.com/octo/widgets/pull/42",
		UpdatedAt:    updatedAt,
		Mergeable:    entities.MergeableYes,
		State:        "open",
	}
}

func TestReconcileAllTracksNewPullRequest(t *testing.T) {
	f := newFixture(t, true)
	t0 := time.Now()

	f.gw.On("ListOpenPullRequests", mock.Anything).
		Return([]entities.RemotePull{remotePull(42, "abc", t0)}, nil)
	f.gw.On("ListCommits", mock.Anything, 42).
		Return([]entities.CommitInfo{{SHA: "abc", AuthorName: "Ann", AuthorEmail: "ann@example.com"}}, nil)
	f.expectTrigger()

	require.NoError(t, f.repo.ReconcileAll(context.Background()))

	rec, ok := f.store.Get(42)
	require.True(t, ok)
	require.Equal(t, "abc", rec.HeadSHA)
	require.True(t, rec.UpdatedAt.Equal(t0))
	require.Equal(t, entities.MergeableYes, rec.Mergeable)
	require.Equal(t, "Ann", rec.CommitAuthorName)

	f.port.AssertNumberOfCalls(t, "Trigger", 1)
	cause := f.port.Calls[0].Arguments.Get(1).(entities.BuildCause)
	require.Equal(t, 42, cause.PullID)
	require.Equal(t, "abc", cause.Commit)
	require.True(t, cause.Mergeable)
	require.Equal(t, "ann@example.com", cause.CommitAuthorEmail)
}

func TestReconcileOneRefreshesOnNewCommit(t *testing.T) {
	f := newFixture(t, true)
	t0 := time.Now()
	t1 := t0.Add(time.Minute)

	f.store.GetOrCreate(42, func() *entities.PullRequestRecord {
		rec := entities.NewRecord(remotePull(42, "abc", t0))
		return rec
	})

	f.gw.On("ListCommits", mock.Anything, 42).
		Return([]entities.CommitInfo{{SHA: "def", AuthorName: "Ann"}}, nil)
	f.expectTrigger()

	f.repo.ReconcileOne(context.Background(), remotePull(42, "def", t1), false)

	rec, _ := f.store.Get(42)
	require.Equal(t, "def", rec.HeadSHA)
	require.True(t, rec.UpdatedAt.Equal(t1))

	f.port.AssertNumberOfCalls(t, "Trigger", 1)
	cause := f.port.Calls[0].Arguments.Get(1).(entities.BuildCause)
	require.Equal(t, "def", cause.Commit)
}

func TestReconcileOneUnchangedStillAttemptsBuild(t *testing.T) {
	f := newFixture(t, true)
	t0 := time.Now()
	up := remotePull(42, "abc", t0)

	f.store.GetOrCreate(42, func() *entities.PullRequestRecord { return entities.NewRecord(up) })

	f.gw.On("ListCommits", mock.Anything, 42).Return([]entities.CommitInfo{}, nil)
	f.expectTrigger()

	f.repo.ReconcileOne(context.Background(), up, false)

	rec, _ := f.store.Get(42)
	require.Equal(t, "abc", rec.HeadSHA)
	require.True(t, rec.UpdatedAt.Equal(t0))
	f.port.AssertNumberOfCalls(t, "Trigger", 1)
}

func TestChangeGatedModeSkipsUnchanged(t *testing.T) {
	f := newFixture(t, false)
	t0 := time.Now()
	up := remotePull(42, "abc", t0)

	f.store.GetOrCreate(42, func() *entities.PullRequestRecord { return entities.NewRecord(up) })

	f.repo.ReconcileOne(context.Background(), up, false)
	f.port.AssertNumberOfCalls(t, "Trigger", 0)

	// a new head SHA flips the predicate
	f.gw.On("ListCommits", mock.Anything, 42).Return([]entities.CommitInfo{}, nil)
	f.expectTrigger()
	f.repo.ReconcileOne(context.Background(), remotePull(42, "def", t0.Add(time.Second)), false)
	f.port.AssertNumberOfCalls(t, "Trigger", 1)
}

func TestReconcileAllRemovesClosed(t *testing.T) {
	f := newFixture(t, true)
	t0 := time.Now()

	f.store.GetOrCreate(7, func() *entities.PullRequestRecord {
		return entities.NewRecord(remotePull(7, "abc", t0))
	})

	f.gw.On("ListOpenPullRequests", mock.Anything).Return([]entities.RemotePull{}, nil)

	require.NoError(t, f.repo.ReconcileAll(context.Background()))

	require.Equal(t, 0, f.store.Len())
	f.port.AssertNumberOfCalls(t, "Trigger", 0)
	f.gw.AssertNotCalled(t, "ListCommits", mock.Anything, 7)
}

func TestReconcileAllAbortsOnListFailure(t *testing.T) {
	f := newFixture(t, true)
	t0 := time.Now()

	f.store.GetOrCreate(7, func() *entities.PullRequestRecord {
		return entities.NewRecord(remotePull(7, "abc", t0))
	})

	f.gw.On("ListOpenPullRequests", mock.Anything).Return(nil, errors.New("connection reset"))

	require.Error(t, f.repo.ReconcileAll(context.Background()))

	// transient listing failure must not delete tracked records
	require.Equal(t, 1, f.store.Len())
	f.port.AssertNumberOfCalls(t, "Trigger", 0)
}

func TestReconcileAllSkipsWhenRateLimited(t *testing.T) {
	f := newFixture(t, true)

	f.gw.On("ListOpenPullRequests", mock.Anything).
		Return(nil, entities.ErrRateLimited)

	err := f.repo.ReconcileAll(context.Background())
	require.ErrorIs(t, err, entities.ErrRateLimited)
	f.port.AssertNumberOfCalls(t, "Trigger", 0)
}

func TestDisabledProjectIsNeverReconciled(t *testing.T) {
	f := newFixture(t, true)
	f.repo.SetDisabled(true)

	require.NoError(t, f.repo.ReconcileAll(context.Background()))
	f.gw.AssertNotCalled(t, "ListOpenPullRequests", mock.Anything)

	f.repo.ReconcileOne(context.Background(), remotePull(42, "abc", time.Now()), false)
	require.Equal(t, 0, f.store.Len())
	f.port.AssertNumberOfCalls(t, "Trigger", 0)
}

func TestCheckMergeableTerminatesAndDefaultsToFalse(t *testing.T) {
	f := newFixture(t, true)
	up := remotePull(42, "abc", time.Now())
	up.Mergeable = entities.MergeableUnknown

	unresolved := up
	f.gw.On("GetPullRequest", mock.Anything, 42).Return(&unresolved, nil)
	f.gw.On("ListCommits", mock.Anything, 42).Return([]entities.CommitInfo{}, nil)
	f.expectTrigger()

	f.repo.ReconcileOne(context.Background(), up, false)

	f.gw.AssertNumberOfCalls(t, "GetPullRequest", 5)
	cause := f.port.Calls[0].Arguments.Get(1).(entities.BuildCause)
	require.False(t, cause.Mergeable)

	rec, _ := f.store.Get(42)
	require.Equal(t, entities.MergeableNo, rec.Mergeable)
}

func TestCheckMergeableResolvesMidLoop(t *testing.T) {
	f := newFixture(t, true)
	up := remotePull(42, "abc", time.Now())
	up.Mergeable = entities.MergeableUnknown

	resolved := remotePull(42, "abc", up.UpdatedAt)
	f.gw.On("GetPullRequest", mock.Anything, 42).Return(&resolved, nil).Once()
	f.gw.On("ListCommits", mock.Anything, 42).Return([]entities.CommitInfo{}, nil)
	f.expectTrigger()

	f.repo.ReconcileOne(context.Background(), up, false)

	f.gw.AssertNumberOfCalls(t, "GetPullRequest", 1)
	cause := f.port.Calls[0].Arguments.Get(1).(entities.BuildCause)
	require.True(t, cause.Mergeable)
}

func TestCommitAuthorLookupFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, true)
	up := remotePull(42, "abc", time.Now())

	f.gw.On("ListCommits", mock.Anything, 42).Return(nil, errors.New("timeout"))
	f.expectTrigger()

	f.repo.ReconcileOne(context.Background(), up, false)

	f.port.AssertNumberOfCalls(t, "Trigger", 1)
	cause := f.port.Calls[0].Arguments.Get(1).(entities.BuildCause)
	require.Empty(t, cause.CommitAuthorName)
}

func TestForceBuildBypassesChangePredicate(t *testing.T) {
	f := newFixture(t, false)
	up := remotePull(42, "abc", time.Now())

	f.store.GetOrCreate(42, func() *entities.PullRequestRecord { return entities.NewRecord(up) })

	fetched := up
	f.gw.On("GetPullRequest", mock.Anything, 42).Return(&fetched, nil)
	f.gw.On("ListCommits", mock.Anything, 42).Return([]entities.CommitInfo{}, nil)
	f.expectTrigger()

	require.NoError(t, f.repo.ForceBuild(context.Background(), 42))
	f.port.AssertNumberOfCalls(t, "Trigger", 1)
}

func TestRetryPolicyWaitFor(t *testing.T) {
	fixed := RetryPolicy{MaxAttempts: 5, Delay: time.Second}
	require.Equal(t, time.Second, fixed.WaitFor(1))
	require.Equal(t, time.Second, fixed.WaitFor(5))

	backoff := RetryPolicy{MaxAttempts: 3, Delay: time.Second, Backoff: 2}
	require.Equal(t, time.Second, backoff.WaitFor(1))
	require.Equal(t, 2*time.Second, backoff.WaitFor(2))
	require.Equal(t, 4*time.Second, backoff.WaitFor(3))
}
