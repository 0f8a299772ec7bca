package analytics

import (
	"fmt"
	"time"

	"github.com/joescharf/prdash/internal/models"
)

// DangerLevel classifies a PR risk score.
type DangerLevel string

const (
	DangerSafe     DangerLevel = "safe"
	DangerCaution  DangerLevel = "caution"
	DangerWarning  DangerLevel = "warning"
	DangerCritical DangerLevel = "critical"
)

// Danger is the risk assessment of one open pull request.
type Danger struct {
	Score    int         `json:"score"`
	Level    DangerLevel `json:"level"`
	Warnings []string    `json:"warnings"`
}

// ComputeDangerScore scores the risk factors of an open PR. Each rule
// contributes points independently and appends one warning when triggered;
// the warnings keep rule order. Only meaningful for OPEN records.
func ComputeDangerScore(pr *models.PullRequest, now time.Time) Danger {
	score := 0
	warnings := []string{}

	// Stale PRs accrue 5 points per day past three, capped at 30.
	ageDays := 0
	if created, ok := models.ParseTime(pr.CreatedAt); ok && now.After(created) {
		ageDays = int(now.Sub(created).Hours() / 24)
	}
	if ageDays > 3 {
		score += min((ageDays-3)*5, 30)
		if ageDays > 7 {
			warnings = append(warnings, fmt.Sprintf("stale for %d days", ageDays))
		}
	}

	totalChanges := pr.TotalChanges()
	if totalChanges > 1000 {
		score += 20
		warnings = append(warnings, "change set is too large")
	} else if totalChanges > 500 {
		score += 10
		warnings = append(warnings, "change set is large")
	}

	reviewCount := len(pr.Reviews)
	if reviewCount == 0 {
		reviewCount = len(pr.ReviewDetails)
	}
	if reviewCount == 0 && ageDays > 2 {
		score += 15
		warnings = append(warnings, "no review yet")
	}

	if reviewCount > 0 && float64(pr.CommentsCount)/float64(reviewCount) > 10 {
		score += 15
		warnings = append(warnings, "heavy discussion, opinions may be split")
	}

	if pr.ChangesRequested > 0 {
		score += pr.ChangesRequested * 8
		warnings = append(warnings, fmt.Sprintf("changes requested (%d)", pr.ChangesRequested))
	}

	if pr.UnresolvedThreads > 0 {
		score += pr.UnresolvedThreads * 5
		warnings = append(warnings, fmt.Sprintf("unresolved conversations (%d)", pr.UnresolvedThreads))
	}

	if pr.CommitsAfterReview > 3 {
		score += min(pr.CommitsAfterReview*3, 20)
		warnings = append(warnings, fmt.Sprintf("many commits after review (%d)", pr.CommitsAfterReview))
	}

	if pr.ChangedFiles > 20 {
		score += 10
		warnings = append(warnings, "touches many files")
	}

	level := DangerSafe
	switch {
	case score >= 50:
		level = DangerCritical
	case score >= 30:
		level = DangerWarning
	case score >= 15:
		level = DangerCaution
	}

	return Danger{Score: score, Level: level, Warnings: warnings}
}
