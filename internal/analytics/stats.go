package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/joescharf/prdash/internal/models"
)

// ReviewDecisionStats counts review outcomes across every review event in a
// period. Unlike the action-owner reduction this does not deduplicate by
// reviewer: each event counts.
type ReviewDecisionStats struct {
	Approved         int `json:"approved"`
	ChangesRequested int `json:"changesRequested"`
	Commented        int `json:"commented"`
}

// Total is the number of counted review events.
func (r ReviewDecisionStats) Total() int {
	return r.Approved + r.ChangesRequested + r.Commented
}

// Stats summarizes one period of PR activity against the previous period.
type Stats struct {
	TotalPRs  int `json:"totalPRs"`
	OpenPRs   int `json:"openPRs"`
	MergedPRs int `json:"mergedPRs"`
	ClosedPRs int `json:"closedPRs"`

	TotalChange    int     `json:"totalChange"`
	TotalChangePct float64 `json:"totalChangePct"`

	// Median days from creation to merge for the period's merged PRs, and
	// the delta against the previous period's median.
	AvgLeadTime    float64 `json:"avgLeadTime"`
	LeadTimeChange float64 `json:"leadTimeChange"`

	ActiveAuthors int     `json:"activeAuthors"`
	MergeRate     float64 `json:"mergeRate"`

	TotalReviews     int     `json:"totalReviews"`
	TotalComments    int     `json:"totalComments"`
	AvgReviewsPerPR  float64 `json:"avgReviewsPerPR"`
	AvgCommentsPerPR float64 `json:"avgCommentsPerPR"`

	// Quality metrics reused by insight and recommendation generation.
	ReviewedPRs        int                 `json:"reviewedPRs"`
	AvgReviewTimeHours float64             `json:"avgReviewTimeHours"`
	AvgReviewDepth     float64             `json:"avgReviewDepth"`
	AvgPRSize          float64             `json:"avgPRSize"`
	AvgChangedFiles    float64             `json:"avgChangedFiles"`
	ReviewDecisions    ReviewDecisionStats `json:"reviewDecisionStats"`
}

// ComputeStatistics summarizes the current period against the previous one.
// Both slices may be empty or nil; the result is always well formed and all
// percent changes guard against empty previous periods.
func ComputeStatistics(current, previous []*models.PullRequest) Stats {
	var stats Stats

	stats.TotalPRs = len(current)
	for _, pr := range current {
		switch pr.State {
		case models.PRStateOpen:
			stats.OpenPRs++
		case models.PRStateMerged:
			stats.MergedPRs++
		case models.PRStateClosed:
			stats.ClosedPRs++
		}
	}

	prevTotal := len(previous)
	stats.TotalChange = stats.TotalPRs - prevTotal
	if prevTotal > 0 {
		stats.TotalChangePct = float64(stats.TotalChange) / float64(prevTotal) * 100
	}

	stats.AvgLeadTime = medianLeadTimeDays(current)
	if prevMerged := countMerged(previous); prevMerged > 0 {
		stats.LeadTimeChange = stats.AvgLeadTime - medianLeadTimeDays(previous)
	}

	authors := map[string]bool{}
	for _, pr := range current {
		if pr.Author != "" {
			authors[pr.Author] = true
		}
	}
	stats.ActiveAuthors = len(authors)

	if stats.TotalPRs > 0 {
		stats.MergeRate = float64(stats.MergedPRs) / float64(stats.TotalPRs) * 100
	}

	var sizeSum, fileSum, depthSum float64
	var reviewTimeSum float64
	for _, pr := range current {
		stats.TotalReviews += reviewCount(pr)
		stats.TotalComments += pr.CommentsCount

		sizeSum += float64(pr.TotalChanges())
		fileSum += float64(pr.ChangedFiles)
		depthSum += float64(pr.ReviewThreads + pr.CommentsCount)

		for _, rv := range pr.ReviewDetails {
			switch rv.State {
			case models.ReviewApproved:
				stats.ReviewDecisions.Approved++
			case models.ReviewChangesRequested:
				stats.ReviewDecisions.ChangesRequested++
			case models.ReviewCommented:
				stats.ReviewDecisions.Commented++
			}
		}

		if hours, ok := hoursToFirstReview(pr); ok {
			reviewTimeSum += hours
			stats.ReviewedPRs++
		}
	}

	if stats.TotalPRs > 0 {
		stats.AvgReviewsPerPR = float64(stats.TotalReviews) / float64(stats.TotalPRs)
		stats.AvgCommentsPerPR = float64(stats.TotalComments) / float64(stats.TotalPRs)
		stats.AvgPRSize = sizeSum / float64(stats.TotalPRs)
		stats.AvgChangedFiles = fileSum / float64(stats.TotalPRs)
		stats.AvgReviewDepth = depthSum / float64(stats.TotalPRs)
	}
	if stats.ReviewedPRs > 0 {
		stats.AvgReviewTimeHours = reviewTimeSum / float64(stats.ReviewedPRs)
	}

	return stats
}

func reviewCount(pr *models.PullRequest) int {
	if pr.ReviewsCount > 0 {
		return pr.ReviewsCount
	}
	return len(pr.ReviewDetails)
}

func countMerged(prs []*models.PullRequest) int {
	n := 0
	for _, pr := range prs {
		if pr.State == models.PRStateMerged {
			n++
		}
	}
	return n
}

// medianLeadTimeDays is the averaged median of days to merge across the
// period's merged PRs with both timestamps.
func medianLeadTimeDays(prs []*models.PullRequest) float64 {
	var leadTimes []float64
	for _, pr := range prs {
		if pr.State != models.PRStateMerged {
			continue
		}
		created, okC := models.ParseTime(pr.CreatedAt)
		merged, okM := models.ParseTime(pr.MergedAt)
		if !okC || !okM {
			continue
		}
		leadTimes = append(leadTimes, merged.Sub(created).Hours()/24)
	}
	return median(leadTimes)
}

// hoursToFirstReview is the gap from PR creation to its earliest review.
func hoursToFirstReview(pr *models.PullRequest) (float64, bool) {
	created, ok := models.ParseTime(pr.CreatedAt)
	if !ok {
		return 0, false
	}
	var earliest time.Time
	for _, rv := range pr.ReviewDetails {
		t, ok := models.ParseTime(rv.CreatedAt)
		if !ok {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	return earliest.Sub(created).Hours(), true
}

// median averages the two middle elements for even-length input, unlike the
// Four Keys upperMedian.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// InsightType tags the tone of an insight.
type InsightType string

const (
	InsightSuccess InsightType = "success"
	InsightWarning InsightType = "warning"
	InsightInfo    InsightType = "info"
)

// Insight is one qualitative observation about a period.
type Insight struct {
	Type    InsightType `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// GenerateInsights evaluates the fixed insight rule list against the
// computed stats. Rules are independent; any number may fire. The stale-PR
// rule looks at every open record, not just the period, so allPRs is the
// full record set and now the evaluation instant.
func GenerateInsights(stats Stats, allPRs []*models.PullRequest, now time.Time) []Insight {
	insights := []Insight{}

	if stats.TotalChangePct > 20 {
		insights = append(insights, Insight{
			Type:    InsightSuccess,
			Title:   "Development activity rising",
			Message: fmt.Sprintf("PR creation is up %.0f%% on the previous period. Team velocity is improving.", stats.TotalChangePct),
		})
	} else if stats.TotalChangePct < -20 {
		insights = append(insights, Insight{
			Type:    InsightWarning,
			Title:   "Development activity dropping",
			Message: fmt.Sprintf("PR creation is down %.0f%% on the previous period. Worth checking why.", -stats.TotalChangePct),
		})
	}

	if stats.LeadTimeChange < -1 {
		insights = append(insights, Insight{
			Type:    InsightSuccess,
			Title:   "Review speed improving",
			Message: fmt.Sprintf("Time to merge dropped by %.1f days. The review process is getting more efficient.", -stats.LeadTimeChange),
		})
	} else if stats.LeadTimeChange > 2 {
		insights = append(insights, Insight{
			Type:    InsightWarning,
			Title:   "Review delays growing",
			Message: fmt.Sprintf("Time to merge grew by %.1f days. Check for review bottlenecks.", stats.LeadTimeChange),
		})
	}

	if stats.TotalPRs > 0 && stats.MergeRate < 30 {
		insights = append(insights, Insight{
			Type:    InsightWarning,
			Title:   "Low merge rate",
			Message: fmt.Sprintf("Only %.0f%% of this period's PRs were merged. Open or abandoned PRs may be piling up.", stats.MergeRate),
		})
	}

	if stats.TotalPRs > 0 {
		if stats.AvgReviewsPerPR < 1 {
			insights = append(insights, Insight{
				Type:    InsightWarning,
				Title:   "Not enough review activity",
				Message: fmt.Sprintf("PRs average %.1f reviews each. More reviews would raise quality.", stats.AvgReviewsPerPR),
			})
		} else if stats.AvgReviewsPerPR > 3 {
			insights = append(insights, Insight{
				Type:    InsightInfo,
				Title:   "Very active reviewing",
				Message: fmt.Sprintf("PRs average %.1f reviews each. The whole team is engaged in review.", stats.AvgReviewsPerPR),
			})
		}
	}

	if stats.ReviewedPRs > 0 {
		if stats.AvgReviewTimeHours < 2 {
			insights = append(insights, Insight{
				Type:    InsightSuccess,
				Title:   "Reviews start quickly",
				Message: fmt.Sprintf("First reviews arrive within %.1f hours on average.", stats.AvgReviewTimeHours),
			})
		} else if stats.AvgReviewTimeHours > 24 {
			insights = append(insights, Insight{
				Type:    InsightWarning,
				Title:   "Reviews start slowly",
				Message: fmt.Sprintf("First reviews take %.1f hours on average. PRs are waiting too long for attention.", stats.AvgReviewTimeHours),
			})
		}
	}

	if stats.TotalPRs > 0 {
		if stats.AvgReviewDepth < 2 {
			insights = append(insights, Insight{
				Type:    InsightWarning,
				Title:   "Shallow reviews",
				Message: fmt.Sprintf("PRs average %.1f review threads and comments. Discussions may be too thin to catch problems.", stats.AvgReviewDepth),
			})
		} else if stats.AvgReviewDepth > 10 {
			insights = append(insights, Insight{
				Type:    InsightInfo,
				Title:   "Deep review discussions",
				Message: fmt.Sprintf("PRs average %.1f review threads and comments. Reviews are thorough; watch that they stay focused.", stats.AvgReviewDepth),
			})
		}

		if stats.AvgPRSize < 50 {
			insights = append(insights, Insight{
				Type:    InsightSuccess,
				Title:   "Small, focused PRs",
				Message: fmt.Sprintf("PRs average %.0f changed lines. Small changes review faster and merge sooner.", stats.AvgPRSize),
			})
		} else if stats.AvgPRSize > 500 {
			insights = append(insights, Insight{
				Type:    InsightWarning,
				Title:   "PRs are getting large",
				Message: fmt.Sprintf("PRs average %.0f changed lines. Large changes slow reviews and hide defects.", stats.AvgPRSize),
			})
		}
	}

	if total := stats.ReviewDecisions.Total(); total > 0 {
		crRate := float64(stats.ReviewDecisions.ChangesRequested) / float64(total) * 100
		approvalRate := float64(stats.ReviewDecisions.Approved) / float64(total) * 100
		if crRate > 30 {
			insights = append(insights, Insight{
				Type:    InsightWarning,
				Title:   "High change-request rate",
				Message: fmt.Sprintf("%.0f%% of reviews request changes. PRs may need more preparation before review.", crRate),
			})
		}
		if approvalRate > 80 {
			insights = append(insights, Insight{
				Type:    InsightSuccess,
				Title:   "High approval rate",
				Message: fmt.Sprintf("%.0f%% of reviews approve on the spot. Submissions are in good shape.", approvalRate),
			})
		}
	}

	stale := 0
	for _, pr := range allPRs {
		if pr.State != models.PRStateOpen {
			continue
		}
		if created, ok := models.ParseTime(pr.CreatedAt); ok && now.Sub(created).Hours()/24 > 7 {
			stale++
		}
	}
	if stale > 5 {
		insights = append(insights, Insight{
			Type:    InsightWarning,
			Title:   "Stale PRs accumulating",
			Message: fmt.Sprintf("%d open PRs are older than 7 days. Regular review sweeps would help.", stale),
		})
	}

	return insights
}

// Recommendation is a titled block of concrete follow-up actions.
type Recommendation struct {
	Title   string   `json:"title"`
	Actions []string `json:"actions"`
}

// GenerateRecommendations evaluates the fixed recommendation rule list.
func GenerateRecommendations(stats Stats) []Recommendation {
	recs := []Recommendation{}

	if stats.AvgLeadTime > 5 {
		recs = append(recs, Recommendation{
			Title: "Shorten review turnaround",
			Actions: []string{
				"Keep PRs small (one PR, one concern)",
				"Assign reviewers explicitly instead of waiting for volunteers",
				"Block out a daily review slot (e.g. every morning)",
				"Open draft PRs early to get feedback sooner",
			},
		})
	}

	if stats.TotalPRs > 0 && stats.AvgReviewsPerPR < 1 {
		recs = append(recs, Recommendation{
			Title: "Build a review culture",
			Actions: []string{
				"Try pair or mob programming sessions",
				"Rotate review duty across the team",
				"Write down review guidelines",
				"Make review activity visible and recognized",
			},
		})
	}

	if stats.TotalPRs > 0 && stats.MergeRate < 40 {
		recs = append(recs, Recommendation{
			Title: "Raise PR completion rate",
			Actions: []string{
				"Triage open PRs on a regular schedule",
				"Close PRs that are no longer needed",
				"Make work in progress visible",
				"Set lifecycle rules for how long a PR may stay open",
			},
		})
	}

	if stats.TotalPRs > 0 && stats.ActiveAuthors < 3 {
		recs = append(recs, Recommendation{
			Title: "Spread contributions across the team",
			Actions: []string{
				"Build cross-functional ownership of components",
				"Create more knowledge-sharing opportunities",
				"Distribute code ownership instead of concentrating it",
				"Improve onboarding so new contributors land changes sooner",
			},
		})
	}

	if stats.ReviewedPRs > 0 && stats.AvgReviewTimeHours > 24 {
		recs = append(recs, Recommendation{
			Title: "Start reviews sooner",
			Actions: []string{
				"Notify reviewers the moment a PR is ready",
				"Agree on a first-response target (e.g. within one business day)",
				"Surface waiting PRs in the team's daily standup",
			},
		})
	}

	if stats.TotalPRs > 0 && stats.AvgReviewDepth < 2 {
		recs = append(recs, Recommendation{
			Title: "Deepen review feedback",
			Actions: []string{
				"Ask reviewers to comment on design, not just style",
				"Use a shared review checklist",
				"Require at least one substantive comment or an explicit LGTM rationale",
			},
		})
	}

	if stats.TotalPRs > 0 && stats.AvgPRSize > 500 {
		recs = append(recs, Recommendation{
			Title: "Shrink change sets",
			Actions: []string{
				"Split features into stacked, reviewable steps",
				"Separate refactors from behavior changes",
				"Land mechanical changes (renames, formatting) on their own",
			},
		})
	}

	if total := stats.ReviewDecisions.Total(); total > 0 {
		crRate := float64(stats.ReviewDecisions.ChangesRequested) / float64(total) * 100
		if crRate > 30 {
			recs = append(recs, Recommendation{
				Title: "Reduce review churn",
				Actions: []string{
					"Self-review the diff before requesting review",
					"Share design intent up front in the PR description",
					"Run linters and tests locally before pushing",
				},
			})
		}
	}

	return recs
}
