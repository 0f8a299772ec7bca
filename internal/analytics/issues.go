package analytics

import (
	"sort"

	"github.com/joescharf/prdash/internal/models"
)

// IssueStats summarizes a set of issues.
type IssueStats struct {
	TotalIssues  int `json:"totalIssues"`
	OpenIssues   int `json:"openIssues"`
	ClosedIssues int `json:"closedIssues"`

	// Cycle time in hours over closed issues with both timestamps.
	AvgCycleTimeHours    float64 `json:"avgCycleTimeHours"`
	MedianCycleTimeHours float64 `json:"medianCycleTimeHours"`

	Milestones []MilestoneProgress `json:"milestones"`
}

// MilestoneProgress tracks completion of one milestone.
type MilestoneProgress struct {
	Title       string  `json:"title"`
	DueOn       string  `json:"dueOn,omitempty"`
	Total       int     `json:"total"`
	Closed      int     `json:"closed"`
	CompletePct float64 `json:"completePct"`
}

// EnrichIssues fills in cycle_time_hours for closed issues with parseable
// timestamps. Already-set values are left alone so the pass is idempotent.
func EnrichIssues(issues []*models.Issue) {
	for _, issue := range issues {
		if issue.CycleTimeHours != nil || issue.State != models.IssueStateClosed {
			continue
		}
		created, okC := models.ParseTime(issue.CreatedAt)
		closed, okX := models.ParseTime(issue.ClosedAt)
		if !okC || !okX {
			continue
		}
		hours := closed.Sub(created).Hours()
		issue.CycleTimeHours = &hours
	}
}

// ComputeIssueStats summarizes issue counts, cycle times, and milestone
// progress. Milestones ordered by title for stable output.
func ComputeIssueStats(issues []*models.Issue) IssueStats {
	stats := IssueStats{
		TotalIssues: len(issues),
		Milestones:  []MilestoneProgress{},
	}

	var cycleTimes []float64
	byMilestone := map[string]*MilestoneProgress{}

	for _, issue := range issues {
		switch issue.State {
		case models.IssueStateOpen:
			stats.OpenIssues++
		case models.IssueStateClosed:
			stats.ClosedIssues++
		}

		if issue.CycleTimeHours != nil {
			cycleTimes = append(cycleTimes, *issue.CycleTimeHours)
		}

		if issue.Milestone != nil && issue.Milestone.Title != "" {
			mp, ok := byMilestone[issue.Milestone.Title]
			if !ok {
				mp = &MilestoneProgress{Title: issue.Milestone.Title, DueOn: issue.Milestone.DueOn}
				byMilestone[issue.Milestone.Title] = mp
			}
			mp.Total++
			if issue.State == models.IssueStateClosed {
				mp.Closed++
			}
		}
	}

	if len(cycleTimes) > 0 {
		stats.AvgCycleTimeHours = mean(cycleTimes)
		stats.MedianCycleTimeHours = median(cycleTimes)
	}

	for _, mp := range byMilestone {
		if mp.Total > 0 {
			mp.CompletePct = float64(mp.Closed) / float64(mp.Total) * 100
		}
		stats.Milestones = append(stats.Milestones, *mp)
	}
	sort.Slice(stats.Milestones, func(i, j int) bool {
		return stats.Milestones[i].Title < stats.Milestones[j].Title
	})

	return stats
}
