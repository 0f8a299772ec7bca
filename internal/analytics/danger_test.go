package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/prdash/internal/models"
)

func TestComputeDangerScore(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		pr           *models.PullRequest
		wantScore    int
		wantLevel    DangerLevel
		wantWarnings []string
	}{
		{
			name: "fresh small PR is safe",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "2026-08-20T09:00:00Z",
				Additions: 10,
				Deletions: 2,
				Reviews:   []models.Review{{Author: "bob", State: models.ReviewApproved, CreatedAt: "2026-08-20T10:00:00Z"}},
			},
			wantScore:    0,
			wantLevel:    DangerSafe,
			wantWarnings: []string{},
		},
		{
			name: "ten day old reviewed PR scores warning with staleness",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "2026-08-10T12:00:00Z",
				Reviews:   []models.Review{{Author: "bob", State: models.ReviewCommented, CreatedAt: "2026-08-11T12:00:00Z"}},
			},
			wantScore:    30,
			wantLevel:    DangerWarning,
			wantWarnings: []string{"stale for 10 days"},
		},
		{
			name: "age contribution caps at 30",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "2026-05-01T12:00:00Z",
				Reviews:   []models.Review{{Author: "bob", State: models.ReviewCommented, CreatedAt: "2026-05-02T12:00:00Z"}},
			},
			wantScore:    30,
			wantLevel:    DangerWarning,
			wantWarnings: []string{"stale for 111 days"},
		},
		{
			name: "oversized change set",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "2026-08-20T09:00:00Z",
				Additions: 900,
				Deletions: 200,
				Reviews:   []models.Review{{Author: "bob", State: models.ReviewApproved, CreatedAt: "2026-08-20T10:00:00Z"}},
			},
			wantScore:    20,
			wantLevel:    DangerCaution,
			wantWarnings: []string{"change set is too large"},
		},
		{
			name: "large but not oversized change set",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "2026-08-20T09:00:00Z",
				Additions: 400,
				Deletions: 200,
				Reviews:   []models.Review{{Author: "bob", State: models.ReviewApproved, CreatedAt: "2026-08-20T10:00:00Z"}},
			},
			wantScore:    10,
			wantLevel:    DangerSafe,
			wantWarnings: []string{"change set is large"},
		},
		{
			name: "unreviewed after three days",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "2026-08-17T12:00:00Z",
			},
			wantScore:    15,
			wantLevel:    DangerCaution,
			wantWarnings: []string{"no review yet"},
		},
		{
			name: "changes requested stack at eight points each",
			pr: &models.PullRequest{
				State:            models.PRStateOpen,
				CreatedAt:        "2026-08-20T09:00:00Z",
				ChangesRequested: 3,
				Reviews:          []models.Review{{Author: "bob", State: models.ReviewChangesRequested, CreatedAt: "2026-08-20T10:00:00Z"}},
			},
			wantScore:    24,
			wantLevel:    DangerCaution,
			wantWarnings: []string{"changes requested (3)"},
		},
		{
			name: "commits after review cap at 20",
			pr: &models.PullRequest{
				State:              models.PRStateOpen,
				CreatedAt:          "2026-08-20T09:00:00Z",
				CommitsAfterReview: 9,
				Reviews:            []models.Review{{Author: "bob", State: models.ReviewApproved, CreatedAt: "2026-08-20T10:00:00Z"}},
			},
			wantScore:    20,
			wantLevel:    DangerCaution,
			wantWarnings: []string{"many commits after review (9)"},
		},
		{
			name: "everything at once goes critical",
			pr: &models.PullRequest{
				State:             models.PRStateOpen,
				CreatedAt:         "2026-08-05T12:00:00Z",
				Additions:         1500,
				Deletions:         100,
				ChangedFiles:      35,
				UnresolvedThreads: 2,
				Reviews:           []models.Review{{Author: "bob", State: models.ReviewCommented, CreatedAt: "2026-08-06T12:00:00Z"}},
			},
			// age 15d -> 30, size -> 20, threads -> 10, files -> 10
			wantScore: 70,
			wantLevel: DangerCritical,
			wantWarnings: []string{
				"stale for 15 days",
				"change set is too large",
				"unresolved conversations (2)",
				"touches many files",
			},
		},
		{
			name: "malformed createdAt contributes no age",
			pr: &models.PullRequest{
				State:     models.PRStateOpen,
				CreatedAt: "not-a-date",
				Reviews:   []models.Review{{Author: "bob", State: models.ReviewApproved, CreatedAt: "2026-08-20T10:00:00Z"}},
			},
			wantScore:    0,
			wantLevel:    DangerSafe,
			wantWarnings: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDangerScore(tt.pr, now)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantWarnings, got.Warnings)
		})
	}
}

func TestComputeDangerScore_HeavyDiscussion(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	pr := &models.PullRequest{
		State:         models.PRStateOpen,
		CreatedAt:     "2026-08-20T09:00:00Z",
		CommentsCount: 25,
		Reviews: []models.Review{
			{Author: "bob", State: models.ReviewCommented, CreatedAt: "2026-08-20T10:00:00Z"},
			{Author: "carol", State: models.ReviewCommented, CreatedAt: "2026-08-20T11:00:00Z"},
		},
	}

	got := ComputeDangerScore(pr, now)
	assert.Equal(t, 15, got.Score)
	assert.Contains(t, got.Warnings, "heavy discussion, opinions may be split")
}

func TestComputeDangerScore_FallsBackToReviewDetails(t *testing.T) {
	// Unenriched record: Reviews is nil but ReviewDetails has an entry, so
	// the no-review rule must not fire.
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	pr := &models.PullRequest{
		State:     models.PRStateOpen,
		CreatedAt: "2026-08-14T12:00:00Z",
		ReviewDetails: []models.Review{
			{Author: "bob", State: models.ReviewApproved, CreatedAt: "2026-08-15T12:00:00Z"},
		},
	}

	got := ComputeDangerScore(pr, now)
	assert.NotContains(t, got.Warnings, "no review yet")
}
