package store

import (
	"context"
	"time"

	"github.com/joescharf/prdash/internal/models"
)

// PRFilter specifies filters for listing cached pull requests.
type PRFilter struct {
	Owner string
	Repo  string
	State models.PRState
}

// IssueFilter specifies filters for listing cached issues.
type IssueFilter struct {
	Owner string
	Repo  string
	State models.IssueState
}

// FetchRun records one fetch from the GitHub API into the cache.
type FetchRun struct {
	ID          string
	Owner       string
	Repo        string
	Kind        string // "prs" or "issues"
	RecordCount int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// RepoCacheInfo summarizes the cached records for one repository.
type RepoCacheInfo struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	PRCount     int    `json:"pr_count"`
	IssueCount  int    `json:"issue_count"`
	LastFetched string `json:"last_fetched,omitempty"`
}

// CacheInfo summarizes the whole cache.
type CacheInfo struct {
	Repos       []RepoCacheInfo `json:"repos"`
	TotalPRs    int             `json:"total_prs"`
	TotalIssues int             `json:"total_issues"`
}

// Store defines the persistence interface for the PR cache.
type Store interface {
	// Pull requests
	SavePullRequests(ctx context.Context, prs []*models.PullRequest) error
	ListPullRequests(ctx context.Context, filter PRFilter) ([]*models.PullRequest, error)

	// Issues
	SaveIssues(ctx context.Context, issues []*models.Issue) error
	ListIssues(ctx context.Context, filter IssueFilter) ([]*models.Issue, error)

	// Fetch bookkeeping
	RecordFetchRun(ctx context.Context, run *FetchRun) error
	ListFetchRuns(ctx context.Context, limit int) ([]*FetchRun, error)
	CacheInfo(ctx context.Context) (*CacheInfo, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
