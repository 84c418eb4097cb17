package entities

import "time"

const abbrTitleLen = 30

// BuildCause is an immutable snapshot handed to the build trigger port at the
// moment a build is requested. It is never mutated after creation.
type BuildCause struct {
	PullID            int
	Commit            string
	Mergeable         bool
	TargetBranch      string
	SourceBranch      string
	AuthorEmail       string
	Title             string
	URL               string
	CommitAuthorName  string
	CommitAuthorEmail string
	TriggeredAt       time.Time
}

// AbbreviatedTitle returns the title shortened for build descriptions.
func (c BuildCause) AbbreviatedTitle() string {
	if len(c.Title) <= abbrTitleLen {
		return c.Title
	}
	return c.Title[:abbrTitleLen] + "..."
}

// CommitState is a commit status state understood by the upstream API.
type CommitState string

const (
	// StatePending marks a build as triggered or running.
	StatePending CommitState = "pending"
	// StateSuccess marks a successful build.
	StateSuccess CommitState = "success"
	// StateFailure marks a failed build.
	StateFailure CommitState = "failure"
	// StateError marks an errored build.
	StateError CommitState = "error"
)

// CommitStatus is one status post against a commit SHA.
type CommitStatus struct {
	State       CommitState
	TargetURL   string
	Description string
	Context     string
}

// BuildResult is the outcome reported by the external job scheduler.
type BuildResult int

const (
	// ResultSuccess means the build passed.
	ResultSuccess BuildResult = iota
	// ResultUnstable means the build passed with test failures.
	ResultUnstable
	// ResultFailure means the build failed.
	ResultFailure
	// ResultAborted means the build was cancelled before completion.
	ResultAborted
)

// BuildInfo carries build identity through lifecycle callbacks.
type BuildInfo struct {
	Cause BuildCause
	// URL of the running build, used as the default status target.
	URL string
}
