package models

import "time"

// PRState represents the lifecycle state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "OPEN"
	PRStateClosed PRState = "CLOSED"
	PRStateMerged PRState = "MERGED"
)

// ReviewState is the outcome of a single review event.
type ReviewState string

const (
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented        ReviewState = "COMMENTED"
)

// Review is one review event on a pull request.
type Review struct {
	Author    string      `json:"author"`
	State     ReviewState `json:"state"`
	CreatedAt string      `json:"createdAt"`
}

// PullRequest is one pull-request record as loaded from the data files.
// Timestamps stay as the raw ISO 8601 strings they arrive in: a malformed
// date must degrade the individual computation, not fail the whole load.
type PullRequest struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`

	State     PRState `json:"state"`
	IsDraft   bool    `json:"isDraft"`
	CreatedAt string  `json:"createdAt"`
	MergedAt  string  `json:"mergedAt,omitempty"`
	ClosedAt  string  `json:"closedAt,omitempty"`

	Author string `json:"author,omitempty"`

	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	ChangedFiles int `json:"changedFiles"`

	ReviewDetails      []Review `json:"review_details,omitempty"`
	RequestedReviewers []string `json:"requested_reviewers_list,omitempty"`
	ChangesRequested   int      `json:"changes_requested"`
	UnresolvedThreads  int      `json:"unresolved_threads"`
	ReviewThreads      int      `json:"review_threads"`
	ReviewsCount       int      `json:"reviews_count"`
	CommentsCount      int      `json:"comments_count"`
	CommitsAfterReview int      `json:"commits_after_review"`

	Labels []string `json:"labels,omitempty"`

	// Derived fields attached by analytics.Enrich.
	Reviews       []Review `json:"reviews,omitempty"`
	AgeHours      float64  `json:"age_hours,omitempty"`
	BusinessHours float64  `json:"business_hours,omitempty"`
	BusinessDays  float64  `json:"business_days,omitempty"`
}

// TotalChanges returns additions plus deletions.
func (pr *PullRequest) TotalChanges() int {
	return pr.Additions + pr.Deletions
}

// IsTerminal reports whether the PR has reached a final state.
func (pr *PullRequest) IsTerminal() bool {
	return pr.State == PRStateClosed || pr.State == PRStateMerged
}

// ParseTime parses an ISO 8601 timestamp from a record field. The second
// return value is false for empty or malformed input.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
