// Package entities contains core business entities.
package entities

import "time"

// Mergeable is the platform-computed merge-conflict state of a pull request.
// GitHub resolves it asynchronously, so a fresh pull request may report
// MergeableUnknown for several seconds.
type Mergeable int

const (
	// MergeableUnknown means the platform has not resolved mergeability yet.
	MergeableUnknown Mergeable = iota
	// MergeableYes means the branch merges cleanly into its target.
	MergeableYes
	// MergeableNo means the branch has merge conflicts.
	MergeableNo
)

// PullRequestRecord is the tracked state of one open pull request for a
// monitored repository. At most one record exists per pull request number.
type PullRequestRecord struct {
	ID           int
	HeadSHA      string
	Title        string
	TargetBranch string
	SourceBranch string
	AuthorLogin  string
	AuthorEmail  string
	URL          string
	// UpdatedAt is the last-seen upstream modification time. It never moves
	// backwards for a given record.
	UpdatedAt time.Time
	Mergeable Mergeable

	// Author of the head commit, distinct from the PR author. Left empty when
	// the lookup fails.
	CommitAuthorName  string
	CommitAuthorEmail string
}

// RemotePull is a snapshot of a pull request as reported by the upstream API.
type RemotePull struct {
	Number       int
	HeadSHA      string
	Title        string
	TargetBranch string
	SourceBranch string
	AuthorLogin  string
	AuthorEmail  string
	URL          string
	UpdatedAt    time.Time
	Mergeable    Mergeable
	Merged       bool
	State        string
}

// NewRecord builds a fresh record from an upstream snapshot.
func NewRecord(up RemotePull) *PullRequestRecord {
	return &PullRequestRecord{
		ID:           up.Number,
		HeadSHA:      up.HeadSHA,
		Title:        up.Title,
		TargetBranch: up.TargetBranch,
		SourceBranch: up.SourceBranch,
		AuthorLogin:  up.AuthorLogin,
		AuthorEmail:  up.AuthorEmail,
		URL:          up.URL,
		UpdatedAt:    up.UpdatedAt,
		Mergeable:    up.Mergeable,
	}
}

// CommitInfo identifies one commit on a pull request branch.
type CommitInfo struct {
	SHA         string
	AuthorName  string
	AuthorEmail string
}

// Comment is an issue comment on a pull request.
type Comment struct {
	ID          int64
	AuthorLogin string
	Body        string
}
