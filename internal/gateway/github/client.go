// Package github implements the gateway against the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pr-build-watcher/config"
	"pr-build-watcher/internal/entities"

	"github.com/google/go-github/v71/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const pageSize = 100

// Client wraps an authenticated GitHub API client for one repository.
type Client struct {
	log          *zap.SugaredLogger
	gh           *github.Client
	owner        string
	repo         string
	minRemaining int

	// cached bot login, resolved lazily
	botLogin string
}

// New creates a gateway client from configuration.
func New(ctx context.Context, log *zap.SugaredLogger, cfg config.GitHubConfig) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if cfg.APIBaseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.APIBaseURL, cfg.APIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("enterprise base url: %w", err)
		}
	}

	return &Client{
		log:          log.Named("gateway.github"),
		gh:           gh,
		owner:        cfg.Owner,
		repo:         cfg.Repo,
		minRemaining: cfg.MinRateRemaining,
	}, nil
}

// ListOpenPullRequests returns every open pull request on the repository.
func (c *Client) ListOpenPullRequests(ctx context.Context) ([]entities.RemotePull, error) {
	if err := c.checkQuota(ctx); err != nil {
		return nil, err
	}

	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var out []entities.RemotePull
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, c.wrapErr("list open pull requests", err)
		}
		for _, pr := range prs {
			out = append(out, toRemotePull(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetPullRequest fetches a single pull request.
func (c *Client) GetPullRequest(ctx context.Context, number int) (*entities.RemotePull, error) {
	if err := c.checkQuota(ctx); err != nil {
		return nil, err
	}
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, c.wrapErr(fmt.Sprintf("get pull request #%d", number), err)
	}
	remote := toRemotePull(pr)
	return &remote, nil
}

// ListCommits returns the commits on a pull request branch.
func (c *Client) ListCommits(ctx context.Context, number int) ([]entities.CommitInfo, error) {
	opts := &github.ListOptions{PerPage: pageSize}
	var out []entities.CommitInfo
	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, c.wrapErr(fmt.Sprintf("list commits #%d", number), err)
		}
		for _, cm := range commits {
			out = append(out, entities.CommitInfo{
				SHA:         cm.GetSHA(),
				AuthorName:  cm.GetCommit().GetCommitter().GetName(),
				AuthorEmail: cm.GetCommit().GetCommitter().GetEmail(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListComments returns all issue comments of a pull request.
func (c *Client) ListComments(ctx context.Context, number int) ([]entities.Comment, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	var out []entities.Comment
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, c.wrapErr(fmt.Sprintf("list comments #%d", number), err)
		}
		for _, cm := range comments {
			out = append(out, entities.Comment{
				ID:          cm.GetID(),
				AuthorLogin: cm.GetUser().GetLogin(),
				Body:        cm.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// CreateComment posts a new comment on a pull request.
func (c *Client) CreateComment(ctx context.Context, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return c.wrapErr(fmt.Sprintf("create comment #%d", number), err)
	}
	return nil
}

// UpdateComment replaces the body of an existing comment.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, body string) error {
	_, _, err := c.gh.Issues.EditComment(ctx, c.owner, c.repo, commentID, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return c.wrapErr(fmt.Sprintf("update comment %d", commentID), err)
	}
	return nil
}

// CreateCommitStatus posts a status against a commit SHA.
func (c *Client) CreateCommitStatus(ctx context.Context, sha string, status entities.CommitStatus) error {
	repoStatus := &github.RepoStatus{
		State:       github.Ptr(string(status.State)),
		Description: github.Ptr(status.Description),
	}
	if status.TargetURL != "" {
		repoStatus.TargetURL = github.Ptr(status.TargetURL)
	}
	if status.Context != "" {
		repoStatus.Context = github.Ptr(status.Context)
	}
	_, _, err := c.gh.Repositories.CreateStatus(ctx, c.owner, c.repo, sha, repoStatus)
	if err != nil {
		return c.wrapErr(fmt.Sprintf("create status for %s", sha), err)
	}
	return nil
}

// ClosePullRequest closes a pull request without merging.
func (c *Client) ClosePullRequest(ctx context.Context, number int) error {
	_, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		State: github.Ptr("closed"),
	})
	if err != nil {
		return c.wrapErr(fmt.Sprintf("close pull request #%d", number), err)
	}
	return nil
}

// MergePullRequest merges a pull request with the given commit message.
func (c *Client) MergePullRequest(ctx context.Context, number int, message string) error {
	_, _, err := c.gh.PullRequests.Merge(ctx, c.owner, c.repo, number, message, nil)
	if err != nil {
		return c.wrapErr(fmt.Sprintf("merge pull request #%d", number), err)
	}
	return nil
}

// BotLogin returns the login of the authenticated account. The value is
// cached after the first successful call.
func (c *Client) BotLogin(ctx context.Context) (string, error) {
	if c.botLogin != "" {
		return c.botLogin, nil
	}
	me, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", c.wrapErr("get authenticated user", err)
	}
	c.botLogin = me.GetLogin()
	return c.botLogin, nil
}

// RateLimitRemaining returns the remaining core API quota.
func (c *Client) RateLimitRemaining(ctx context.Context) (int, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return 0, c.wrapErr("get rate limit", err)
	}
	return limits.GetCore().Remaining, nil
}

// CreateWebhook idempotently registers a web hook for the given events.
func (c *Client) CreateWebhook(ctx context.Context, url string, events []string) error {
	exists, err := c.hookExists(ctx, url)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	hook := &github.Hook{
		Name:   github.Ptr("web"),
		Active: github.Ptr(true),
		Events: events,
		Config: &github.HookConfig{
			URL:         github.Ptr(url),
			ContentType: github.Ptr("json"),
		},
	}
	if _, _, err := c.gh.Repositories.CreateHook(ctx, c.owner, c.repo, hook); err != nil {
		return c.wrapErr("create hook", err)
	}
	c.log.Infow("webhook registered", "url", url, "events", events)
	return nil
}

func (c *Client) hookExists(ctx context.Context, url string) (bool, error) {
	opts := &github.ListOptions{PerPage: pageSize}
	for {
		hooks, resp, err := c.gh.Repositories.ListHooks(ctx, c.owner, c.repo, opts)
		if err != nil {
			return false, c.wrapErr("list hooks", err)
		}
		for _, h := range hooks {
			if h.GetName() != "web" {
				continue
			}
			if h.GetConfig().GetURL() == url {
				return true, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return false, nil
}

// checkQuota fails fast when the remaining quota is below the configured
// floor, so the reconciler can skip a cycle without issuing listing calls.
// A missing rate limit API is tolerated.
func (c *Client) checkQuota(ctx context.Context) error {
	remaining, err := c.RateLimitRemaining(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			c.log.Debugw("rate limit API not found, proceeding")
			return nil
		}
		return err
	}
	if remaining < c.minRemaining {
		c.log.Warnw("rate limit exhausted", "remaining", remaining, "floor", c.minRemaining)
		return fmt.Errorf("remaining quota %d: %w", remaining, entities.ErrRateLimited)
	}
	return nil
}

func (c *Client) wrapErr(op string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: %w", op, entities.ErrRateLimited)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %w", op, entities.ErrRateLimited)
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, entities.ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, entities.ErrUnauthorized)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toRemotePull(pr *github.PullRequest) entities.RemotePull {
	mergeable := entities.MergeableUnknown
	if pr.Mergeable != nil {
		if pr.GetMergeable() {
			mergeable = entities.MergeableYes
		} else {
			mergeable = entities.MergeableNo
		}
	}
	return entities.RemotePull{
		Number:       pr.GetNumber(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Title:        pr.GetTitle(),
		TargetBranch: pr.GetBase().GetRef(),
		SourceBranch: pr.GetHead().GetRef(),
		AuthorLogin:  pr.GetUser().GetLogin(),
		AuthorEmail:  pr.GetUser().GetEmail(),
		URL:          pr.GetHTMLURL(),
		UpdatedAt:    pr.GetUpdatedAt().Time,
		Mergeable:    mergeable,
		Merged:       pr.GetMerged(),
		State:        pr.GetState(),
	}
}
