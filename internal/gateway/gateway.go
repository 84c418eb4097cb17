// Package gateway abstracts all outbound calls to the upstream code-hosting API.
package gateway

import (
	"context"

	"pr-build-watcher/internal/entities"
)

// Gateway is the narrow interface the reconciler and publisher depend on.
// Implementations check remaining rate-limit quota before listing and fetch
// operations and fail fast with entities.ErrRateLimited when exhausted.
type Gateway interface {
	ListOpenPullRequests(ctx context.Context) ([]entities.RemotePull, error)
	GetPullRequest(ctx context.Context, number int) (*entities.RemotePull, error)
	ListCommits(ctx context.Context, number int) ([]entities.CommitInfo, error)
	ListComments(ctx context.Context, number int) ([]entities.Comment, error)
	CreateComment(ctx context.Context, number int, body string) error
	UpdateComment(ctx context.Context, commentID int64, body string) error
	CreateCommitStatus(ctx context.Context, sha string, status entities.CommitStatus) error
	ClosePullRequest(ctx context.Context, number int) error
	MergePullRequest(ctx context.Context, number int, message string) error
	BotLogin(ctx context.Context) (string, error)
	RateLimitRemaining(ctx context.Context) (int, error)
	CreateWebhook(ctx context.Context, url string, events []string) error
}
