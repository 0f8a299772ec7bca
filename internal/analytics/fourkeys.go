package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/prdash/internal/models"
)

// DORA performance tiers.
const (
	TierElite  = "Elite"
	TierHigh   = "High"
	TierMedium = "Medium"
	TierLow    = "Low"
)

// Classification is a DORA tier with its display color.
type Classification struct {
	Level string `json:"level"`
	Color string `json:"color"`
}

var tierColors = map[string]string{
	TierElite:  "#10b981",
	TierHigh:   "#3b82f6",
	TierMedium: "#f59e0b",
	TierLow:    "#ef4444",
}

func classify(level string) Classification {
	return Classification{Level: level, Color: tierColors[level]}
}

// Metric is the canonical result shape shared by all Four Keys metrics:
// a value, its unit, and the DORA classification.
type Metric struct {
	Value            float64        `json:"value"`
	Unit             string         `json:"unit"`
	Classification   Classification `json:"classification"`
	TotalDeployments int            `json:"totalDeployments,omitempty"`
	Weeks            float64        `json:"weeks,omitempty"`
	Median           float64        `json:"median,omitempty"`
	Average          float64        `json:"average,omitempty"`
	Failures         int            `json:"failures,omitempty"`
	Total            int            `json:"total,omitempty"`
}

// WeeklyDeployments is the per-week deployment count for charting.
type WeeklyDeployments struct {
	Week  string             `json:"week"`
	Count int                `json:"count"`
	PRs   []DeploymentDetail `json:"prs"`
}

// DeploymentDetail identifies one deployment (merged PR).
type DeploymentDetail struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	MergedAt string `json:"mergedAt"`
}

// LeadTimeDetail is the lead time of one deployment.
type LeadTimeDetail struct {
	Number        int     `json:"number"`
	Title         string  `json:"title"`
	LeadTimeDays  float64 `json:"leadTimeDays"`
	LeadTimeHours float64 `json:"leadTimeHours"`
	CreatedAt     string  `json:"createdAt"`
	MergedAt      string  `json:"mergedAt"`
}

// FailureDetail is one change-failure deployment.
type FailureDetail struct {
	Number           int      `json:"number"`
	Title            string   `json:"title"`
	Labels           []string `json:"labels"`
	CreatedAt        string   `json:"createdAt"`
	MergedAt         string   `json:"mergedAt"`
	RestoreTimeHours float64  `json:"restoreTimeHours"`
}

// FourKeysMetrics holds the four headline metrics.
type FourKeysMetrics struct {
	DeploymentFrequency Metric `json:"deploymentFrequency"`
	LeadTime            Metric `json:"leadTime"`
	ChangeFailureRate   Metric `json:"changeFailureRate"`
	MTTR                Metric `json:"mttr"`
}

// FourKeysDetails carries the per-deployment lists for downstream charting.
type FourKeysDetails struct {
	Deployments  []WeeklyDeployments `json:"deployments"`
	LeadTimes    []LeadTimeDetail    `json:"leadTimes"`
	Failures     []FailureDetail     `json:"failures"`
	RestoreTimes []FailureDetail     `json:"restoreTimes"`
}

// FourKeysResult is the full Four Keys computation output.
type FourKeysResult struct {
	Metrics FourKeysMetrics `json:"metrics"`
	Details FourKeysDetails `json:"detailedData"`
}

// failureKeywords mark a merged PR as a change failure when found in its
// title or labels, case-insensitively.
var failureKeywords = []string{"revert", "hotfix", "urgent", "fix", "rollback", "emergency", "critical"}

// ComputeFourKeys reduces the record set to DORA Four Keys metrics, taking
// merged PRs as the deployment proxy. With no deployments at all the result
// is deliberately asymmetric: deployment frequency and lead time sit at the
// lowest tier, while change failure rate and MTTR are vacuously Elite.
func ComputeFourKeys(prs []*models.PullRequest) FourKeysResult {
	var deployments []*models.PullRequest
	for _, pr := range prs {
		if pr.State == models.PRStateMerged {
			if _, ok := models.ParseTime(pr.MergedAt); ok {
				deployments = append(deployments, pr)
			}
		}
	}

	if len(deployments) == 0 {
		return FourKeysResult{
			Metrics: FourKeysMetrics{
				DeploymentFrequency: Metric{Unit: "per week", Classification: classify(TierLow)},
				LeadTime:            Metric{Unit: "days", Classification: classify(TierLow)},
				ChangeFailureRate:   Metric{Unit: "percent", Classification: classify(TierElite)},
				MTTR:                Metric{Unit: "hours", Classification: classify(TierElite)},
			},
			Details: FourKeysDetails{
				Deployments:  []WeeklyDeployments{},
				LeadTimes:    []LeadTimeDetail{},
				Failures:     []FailureDetail{},
				RestoreTimes: []FailureDetail{},
			},
		}
	}

	frequency, weeks := deploymentFrequency(deployments)
	leadTimes := leadTimeDetails(deployments)
	failures := failureDetails(deployments)

	leadDays := make([]float64, len(leadTimes))
	for i, lt := range leadTimes {
		leadDays[i] = lt.LeadTimeDays
	}
	medianLead := upperMedian(leadDays)

	restoreHours := make([]float64, len(failures))
	for i, f := range failures {
		restoreHours[i] = f.RestoreTimeHours
	}
	medianMTTR := upperMedian(restoreHours)

	cfr := float64(len(failures)) / float64(len(deployments)) * 100

	return FourKeysResult{
		Metrics: FourKeysMetrics{
			DeploymentFrequency: Metric{
				Value:            frequency,
				Unit:             "per week",
				TotalDeployments: len(deployments),
				Weeks:            weeks,
				Classification:   classifyDeploymentFrequency(frequency),
			},
			LeadTime: Metric{
				Value:          medianLead,
				Unit:           "days",
				Median:         medianLead,
				Average:        mean(leadDays),
				Classification: classifyLeadTime(medianLead),
			},
			ChangeFailureRate: Metric{
				Value:          cfr,
				Unit:           "percent",
				Failures:       len(failures),
				Total:          len(deployments),
				Classification: classifyChangeFailureRate(cfr),
			},
			MTTR: Metric{
				Value:          medianMTTR,
				Unit:           "hours",
				Median:         medianMTTR,
				Classification: classifyMTTR(medianMTTR),
			},
		},
		Details: FourKeysDetails{
			Deployments:  weeklyDeployments(deployments),
			LeadTimes:    leadTimes,
			Failures:     failures,
			RestoreTimes: failures,
		},
	}
}

// deploymentFrequency is merges per week over the observed merge-date span,
// with the span floored at one week.
func deploymentFrequency(deployments []*models.PullRequest) (frequency, weeks float64) {
	earliest, latest := deployments[0], deployments[0]
	for _, pr := range deployments[1:] {
		if t, _ := models.ParseTime(pr.MergedAt); t.Before(mustTime(earliest.MergedAt)) {
			earliest = pr
		} else if t.After(mustTime(latest.MergedAt)) {
			latest = pr
		}
	}
	spanDays := int(mustTime(latest.MergedAt).Sub(mustTime(earliest.MergedAt)).Hours() / 24)
	weeks = float64(spanDays) / 7
	if weeks < 1 {
		weeks = 1
	}
	return float64(len(deployments)) / weeks, weeks
}

func mustTime(s string) time.Time {
	t, _ := models.ParseTime(s)
	return t
}

func weeklyDeployments(deployments []*models.PullRequest) []WeeklyDeployments {
	byWeek := make(map[string][]DeploymentDetail)
	for _, pr := range deployments {
		merged := mustTime(pr.MergedAt)
		year, week := merged.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		byWeek[key] = append(byWeek[key], DeploymentDetail{
			Number:   pr.Number,
			Title:    pr.Title,
			MergedAt: pr.MergedAt,
		})
	}

	weeks := make([]string, 0, len(byWeek))
	for week := range byWeek {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)

	out := make([]WeeklyDeployments, 0, len(weeks))
	for _, week := range weeks {
		out = append(out, WeeklyDeployments{Week: week, Count: len(byWeek[week]), PRs: byWeek[week]})
	}
	return out
}

func leadTimeDetails(deployments []*models.PullRequest) []LeadTimeDetail {
	out := make([]LeadTimeDetail, 0, len(deployments))
	for _, pr := range deployments {
		created, okC := models.ParseTime(pr.CreatedAt)
		merged, okM := models.ParseTime(pr.MergedAt)
		if !okC || !okM {
			continue
		}
		days := merged.Sub(created).Hours() / 24
		out = append(out, LeadTimeDetail{
			Number:        pr.Number,
			Title:         pr.Title,
			LeadTimeDays:  days,
			LeadTimeHours: days * 24,
			CreatedAt:     pr.CreatedAt,
			MergedAt:      pr.MergedAt,
		})
	}
	return out
}

// IsChangeFailure reports whether a PR's title or labels match the failure
// keyword heuristic.
func IsChangeFailure(pr *models.PullRequest) bool {
	title := strings.ToLower(pr.Title)
	for _, keyword := range failureKeywords {
		if strings.Contains(title, keyword) {
			return true
		}
		for _, label := range pr.Labels {
			if strings.Contains(strings.ToLower(label), keyword) {
				return true
			}
		}
	}
	return false
}

func failureDetails(deployments []*models.PullRequest) []FailureDetail {
	out := []FailureDetail{}
	for _, pr := range deployments {
		if !IsChangeFailure(pr) {
			continue
		}
		created, okC := models.ParseTime(pr.CreatedAt)
		merged, okM := models.ParseTime(pr.MergedAt)
		if !okC || !okM {
			continue
		}
		labels := pr.Labels
		if labels == nil {
			labels = []string{}
		}
		out = append(out, FailureDetail{
			Number:           pr.Number,
			Title:            pr.Title,
			Labels:           labels,
			CreatedAt:        pr.CreatedAt,
			MergedAt:         pr.MergedAt,
			RestoreTimeHours: merged.Sub(created).Hours(),
		})
	}
	return out
}

// DORA tier breakpoints. The dashboard historically carried two tables for
// the same tiers; these are the canonical ones, applied everywhere.

func classifyDeploymentFrequency(perWeek float64) Classification {
	switch {
	case perWeek >= 30:
		return classify(TierElite)
	case perWeek >= 7:
		return classify(TierHigh)
	case perWeek >= 1:
		return classify(TierMedium)
	default:
		return classify(TierLow)
	}
}

func classifyLeadTime(days float64) Classification {
	switch {
	case days <= 1:
		return classify(TierElite)
	case days <= 7:
		return classify(TierHigh)
	case days <= 30:
		return classify(TierMedium)
	default:
		return classify(TierLow)
	}
}

func classifyChangeFailureRate(percent float64) Classification {
	switch {
	case percent <= 5:
		return classify(TierElite)
	case percent <= 10:
		return classify(TierHigh)
	case percent <= 15:
		return classify(TierMedium)
	default:
		return classify(TierLow)
	}
}

func classifyMTTR(hours float64) Classification {
	switch {
	case hours <= 1:
		return classify(TierElite)
	case hours <= 24:
		return classify(TierHigh)
	case hours <= 168:
		return classify(TierMedium)
	default:
		return classify(TierLow)
	}
}

// upperMedian is the element at index n/2 of the ascending sort: for even n
// the upper of the two middle values, not their average. This matches the
// Four Keys reporting convention; the statistics engine uses the averaged
// median instead.
func upperMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
