// Package analytics holds the derived-metric engines: record enrichment,
// action ownership, danger scoring, Four Keys, and period statistics.
// Every function here is a pure computation over in-memory records; no
// engine mutates its input slice and none performs I/O.
package analytics

import (
	"time"

	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/timeutil"
)

// Enrich attaches derived fields to each record in place: the normalized
// reviews slice, age in hours, and business time. The reference instant for
// still-open PRs is now. Enrichment is idempotent; re-running it only moves
// the "now"-dependent fields of open PRs.
func Enrich(prs []*models.PullRequest, now time.Time) {
	for _, pr := range prs {
		EnrichPR(pr, now)
	}
}

// EnrichPR enriches a single record. See Enrich.
func EnrichPR(pr *models.PullRequest, now time.Time) {
	if pr.Reviews == nil && pr.ReviewDetails != nil {
		pr.Reviews = make([]models.Review, len(pr.ReviewDetails))
		copy(pr.Reviews, pr.ReviewDetails)
	}
	if pr.ReviewsCount == 0 {
		pr.ReviewsCount = len(pr.ReviewDetails)
	}
	if pr.Labels == nil {
		pr.Labels = []string{}
	}

	created, ok := models.ParseTime(pr.CreatedAt)
	if !ok {
		pr.AgeHours, pr.BusinessHours, pr.BusinessDays = 0, 0, 0
		return
	}

	end := endOfLife(pr, now)
	if end.Before(created) {
		pr.AgeHours, pr.BusinessHours, pr.BusinessDays = 0, 0, 0
		return
	}

	pr.AgeHours = end.Sub(created).Hours()
	bt := timeutil.Business(created, end)
	pr.BusinessHours = bt.BusinessHours
	pr.BusinessDays = bt.BusinessDays
}

// endOfLife returns the instant a PR stopped (or has so far) accumulated
// age: merge time, close time, or now for open PRs.
func endOfLife(pr *models.PullRequest, now time.Time) time.Time {
	if t, ok := models.ParseTime(pr.MergedAt); ok {
		return t
	}
	if t, ok := models.ParseTime(pr.ClosedAt); ok {
		return t
	}
	return now
}
