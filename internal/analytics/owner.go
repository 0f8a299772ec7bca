package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joescharf/prdash/internal/models"
)

// ActionKind identifies whose turn it is to act on a pull request.
type ActionKind string

const (
	ActionNone         ActionKind = "none"
	ActionAuthor       ActionKind = "author"
	ActionReviewers    ActionKind = "reviewers"
	ActionReadyToMerge ActionKind = "ready_to_merge"
	ActionUnknown      ActionKind = "unknown"
)

// ActionInfo is the resolved ownership of the next action on a PR.
type ActionInfo struct {
	Action     ActionKind `json:"action"`
	WaitingFor []string   `json:"waitingFor"`
	Reason     string     `json:"reason"`
}

// DetermineActionOwner resolves who owes the next action on a PR.
// The rules are evaluated in strict order; the first match wins:
//
//  1. terminal PRs need no action
//  2. outstanding change requests put the author on the hook
//  3. so do unresolved threads
//  4. pending or comment-only reviewers are waited on
//  5. an approval with nobody left to wait on means ready to merge
//  6. no requested reviewers and no reviews at all is the author's to fix
//  7. anything else is unknown
func DetermineActionOwner(pr *models.PullRequest) ActionInfo {
	if pr.IsTerminal() {
		return ActionInfo{
			Action:     ActionNone,
			WaitingFor: []string{},
			Reason:     fmt.Sprintf("PR is %s", pr.State),
		}
	}

	latest := latestReviewStates(pr.ReviewDetails)

	if pr.ChangesRequested > 0 {
		var changesBy []string
		for _, reviewer := range sortedReviewers(latest) {
			if latest[reviewer] == models.ReviewChangesRequested {
				changesBy = append(changesBy, reviewer)
			}
		}
		return ActionInfo{
			Action:     ActionAuthor,
			WaitingFor: authorList(pr),
			Reason:     fmt.Sprintf("changes requested (by: %s)", strings.Join(changesBy, ", ")),
		}
	}

	if pr.UnresolvedThreads > 0 {
		return ActionInfo{
			Action:     ActionAuthor,
			WaitingFor: authorList(pr),
			Reason:     fmt.Sprintf("unresolved conversations (%d)", pr.UnresolvedThreads),
		}
	}

	var waiting []string
	seen := map[string]bool{}
	for _, reviewer := range pr.RequestedReviewers {
		if _, reviewed := latest[reviewer]; !reviewed && !seen[reviewer] {
			waiting = append(waiting, reviewer)
			seen[reviewer] = true
		}
	}
	for _, reviewer := range sortedReviewers(latest) {
		if latest[reviewer] == models.ReviewCommented && !seen[reviewer] {
			waiting = append(waiting, reviewer)
			seen[reviewer] = true
		}
	}
	if len(waiting) > 0 {
		return ActionInfo{
			Action:     ActionReviewers,
			WaitingFor: waiting,
			Reason:     fmt.Sprintf("waiting for review (%d reviewers)", len(waiting)),
		}
	}

	approvals := 0
	for _, state := range latest {
		if state == models.ReviewApproved {
			approvals++
		}
	}
	if approvals > 0 {
		return ActionInfo{
			Action:     ActionReadyToMerge,
			WaitingFor: authorList(pr),
			Reason:     fmt.Sprintf("ready to merge (%d approved)", approvals),
		}
	}

	if len(pr.RequestedReviewers) == 0 && len(latest) == 0 {
		return ActionInfo{
			Action:     ActionAuthor,
			WaitingFor: authorList(pr),
			Reason:     "no review requested",
		}
	}

	return ActionInfo{
		Action:     ActionUnknown,
		WaitingFor: []string{},
		Reason:     "unknown state",
	}
}

// latestReviewStates reduces the review events to each reviewer's most
// recent state. Events are sorted by parsed timestamp, newest first, with a
// stable sort so same-instant events keep their input order.
func latestReviewStates(reviews []models.Review) map[string]models.ReviewState {
	sorted := make([]models.Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := models.ParseTime(sorted[i].CreatedAt)
		tj, _ := models.ParseTime(sorted[j].CreatedAt)
		return ti.After(tj)
	})

	latest := make(map[string]models.ReviewState)
	for _, rv := range sorted {
		if rv.Author == "" {
			continue
		}
		if _, ok := latest[rv.Author]; !ok {
			latest[rv.Author] = rv.State
		}
	}
	return latest
}

func sortedReviewers(latest map[string]models.ReviewState) []string {
	reviewers := make([]string, 0, len(latest))
	for reviewer := range latest {
		reviewers = append(reviewers, reviewer)
	}
	sort.Strings(reviewers)
	return reviewers
}

func authorList(pr *models.PullRequest) []string {
	if pr.Author == "" {
		return []string{}
	}
	return []string{pr.Author}
}

// Role tags why a user appears in an action summary entry.
type Role string

const (
	RoleAuthor   Role = "author"
	RoleReviewer Role = "reviewer"
)

// UserAction is one PR a user owes action on.
type UserAction struct {
	PR   *models.PullRequest `json:"pr"`
	Info ActionInfo          `json:"action_info"`
	Role Role                `json:"role"`
}

// BuildActionSummary groups open PRs by each user owing action on them.
func BuildActionSummary(prs []*models.PullRequest) map[string][]UserAction {
	summary := make(map[string][]UserAction)
	for _, pr := range prs {
		if pr.State != models.PRStateOpen {
			continue
		}
		info := DetermineActionOwner(pr)
		for _, user := range info.WaitingFor {
			role := RoleReviewer
			if user == pr.Author {
				role = RoleAuthor
			}
			summary[user] = append(summary[user], UserAction{PR: pr, Info: info, Role: role})
		}
	}
	return summary
}
