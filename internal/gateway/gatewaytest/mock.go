// Package gatewaytest provides a shared gateway test double.
package gatewaytest

import (
	"context"

	"pr-build-watcher/internal/entities"
	"pr-build-watcher/internal/gateway"

	"github.com/stretchr/testify/mock"
)

// Mock is a testify-backed gateway.Gateway implementation.
type Mock struct{ mock.Mock }

var _ gateway.Gateway = (*Mock)(nil)

func (m *Mock) ListOpenPullRequests(ctx context.Context) ([]entities.RemotePull, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RemotePull), args.Error(1)
}

func (m *Mock) GetPullRequest(ctx context.Context, number int) (*entities.RemotePull, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RemotePull), args.Error(1)
}

func (m *Mock) ListCommits(ctx context.Context, number int) ([]entities.CommitInfo, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.CommitInfo), args.Error(1)
}

func (m *Mock) ListComments(ctx context.Context, number int) ([]entities.Comment, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Comment), args.Error(1)
}

func (m *Mock) CreateComment(ctx context.Context, number int, body string) error {
	args := m.Called(ctx, number, body)
	return args.Error(0)
}

func (m *Mock) UpdateComment(ctx context.Context, commentID int64, body string) error {
	args := m.Called(ctx, commentID, body)
	return args.Error(0)
}

func (m *Mock) CreateCommitStatus(ctx context.Context, sha string, status entities.CommitStatus) error {
	args := m.Called(ctx, sha, status)
	return args.Error(0)
}

func (m *Mock) ClosePullRequest(ctx context.Context, number int) error {
	args := m.Called(ctx, number)
	return args.Error(0)
}

func (m *Mock) MergePullRequest(ctx context.Context, number int, message string) error {
	args := m.Called(ctx, number, message)
	return args.Error(0)
}

func (m *Mock) BotLogin(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Mock) RateLimitRemaining(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *Mock) CreateWebhook(ctx context.Context, url string, events []string) error {
	args := m.Called(ctx, url, events)
	return args.Error(0)
}
