package models

// IssueState represents the lifecycle state of an issue.
type IssueState string

const (
	IssueStateOpen   IssueState = "OPEN"
	IssueStateClosed IssueState = "CLOSED"
)

// Milestone is the milestone an issue is assigned to, if any.
type Milestone struct {
	Title string `json:"title"`
	DueOn string `json:"dueOn,omitempty"`
}

// LinkedPR is a pull request referenced from an issue.
type LinkedPR struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"url"`
}

// Issue is one issue record as loaded from the data files.
type Issue struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`

	State     IssueState `json:"state"`
	CreatedAt string     `json:"createdAt"`
	ClosedAt  string     `json:"closedAt,omitempty"`

	Author    string     `json:"author,omitempty"`
	Milestone *Milestone `json:"milestone,omitempty"`
	LinkedPRs []LinkedPR `json:"linked_prs,omitempty"`

	// Hours from creation to close, nil while the issue is open.
	CycleTimeHours *float64 `json:"cycle_time_hours,omitempty"`
}
