// Package github fetches pull-request and issue data through the gh CLI.
// Using gh instead of a token-bearing HTTP client delegates authentication
// to the user's existing gh login.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/joescharf/prdash/internal/models"
)

// Client fetches repository data.
type Client interface {
	FetchPullRequests(ctx context.Context, owner, repo string, limit int) ([]*models.PullRequest, error)
	FetchIssues(ctx context.Context, owner, repo string, limit int) ([]*models.Issue, error)
}

// CLIClient implements Client using the gh CLI's GraphQL endpoint.
type CLIClient struct{}

// NewClient returns a new CLIClient.
func NewClient() *CLIClient {
	return &CLIClient{}
}

const pageSize = 50

func ghCmd(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "gh", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

const prQuery = `
query($owner: String!, $name: String!, $limit: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequests(first: $limit, after: $cursor, orderBy: {field: UPDATED_AT, direction: DESC}) {
      pageInfo { hasNextPage endCursor }
      nodes {
        number title url state isDraft createdAt mergedAt closedAt
        author { login }
        additions deletions changedFiles
        reviews(first: 50) { totalCount nodes { author { login } state createdAt } }
        reviewRequests(first: 20) { nodes { requestedReviewer { ... on User { login } ... on Team { name } } } }
        reviewThreads(first: 50) { totalCount nodes { isResolved } }
        comments { totalCount }
        labels(first: 20) { nodes { name } }
        commits(last: 30) { nodes { commit { committedDate } } }
      }
    }
  }
}`

const issueQuery = `
query($owner: String!, $name: String!, $limit: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    issues(first: $limit, after: $cursor, orderBy: {field: UPDATED_AT, direction: DESC}) {
      pageInfo { hasNextPage endCursor }
      nodes {
        number title url state createdAt closedAt
        author { login }
        milestone { title dueOn }
        closedByPullRequestsReferences(first: 10) { nodes { number title state url } }
      }
    }
  }
}`

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type actor struct {
	Login string `json:"login"`
}

type prResponse struct {
	Data struct {
		Repository struct {
			PullRequests struct {
				PageInfo pageInfo `json:"pageInfo"`
				Nodes    []prNode `json:"nodes"`
			} `json:"pullRequests"`
		} `json:"repository"`
	} `json:"data"`
}

type prNode struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	State        string `json:"state"`
	IsDraft      bool   `json:"isDraft"`
	CreatedAt    string `json:"createdAt"`
	MergedAt     string `json:"mergedAt"`
	ClosedAt     string `json:"closedAt"`
	Author       actor  `json:"author"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changedFiles"`

	Reviews struct {
		TotalCount int `json:"totalCount"`
		Nodes      []struct {
			Author    actor  `json:"author"`
			State     string `json:"state"`
			CreatedAt string `json:"createdAt"`
		} `json:"nodes"`
	} `json:"reviews"`

	ReviewRequests struct {
		Nodes []struct {
			RequestedReviewer struct {
				Login string `json:"login"`
				Name  string `json:"name"`
			} `json:"requestedReviewer"`
		} `json:"nodes"`
	} `json:"reviewRequests"`

	ReviewThreads struct {
		TotalCount int `json:"totalCount"`
		Nodes      []struct {
			IsResolved bool `json:"isResolved"`
		} `json:"nodes"`
	} `json:"reviewThreads"`

	Comments struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`

	Labels struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`

	Commits struct {
		Nodes []struct {
			Commit struct {
				CommittedDate string `json:"committedDate"`
			} `json:"commit"`
		} `json:"nodes"`
	} `json:"commits"`
}

type issueResponse struct {
	Data struct {
		Repository struct {
			Issues struct {
				PageInfo pageInfo    `json:"pageInfo"`
				Nodes    []issueNode `json:"nodes"`
			} `json:"issues"`
		} `json:"repository"`
	} `json:"data"`
}

type issueNode struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	State     string `json:"state"`
	CreatedAt string `json:"createdAt"`
	ClosedAt  string `json:"closedAt"`
	Author    actor  `json:"author"`
	Milestone *struct {
		Title string `json:"title"`
		DueOn string `json:"dueOn"`
	} `json:"milestone"`
	ClosedByPullRequestsReferences struct {
		Nodes []struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
			State  string `json:"state"`
			URL    string `json:"url"`
		} `json:"nodes"`
	} `json:"closedByPullRequestsReferences"`
}

// FetchPullRequests pages through the repository's PRs, newest update
// first, until limit records are collected or the pages run out.
func (c *CLIClient) FetchPullRequests(ctx context.Context, owner, repo string, limit int) ([]*models.PullRequest, error) {
	var prs []*models.PullRequest
	cursor := ""

	for len(prs) < limit {
		args := graphqlArgs(prQuery, owner, repo, min(pageSize, limit-len(prs)), cursor)
		out, err := ghCmd(ctx, args...)
		if err != nil {
			return nil, err
		}

		var resp prResponse
		if err := json.Unmarshal([]byte(out), &resp); err != nil {
			return nil, fmt.Errorf("parse pull requests: %w", err)
		}

		page := resp.Data.Repository.PullRequests
		for _, node := range page.Nodes {
			prs = append(prs, convertPR(owner, repo, node))
		}

		if !page.PageInfo.HasNextPage {
			break
		}
		cursor = page.PageInfo.EndCursor
	}

	return prs, nil
}

// FetchIssues pages through the repository's issues like FetchPullRequests.
func (c *CLIClient) FetchIssues(ctx context.Context, owner, repo string, limit int) ([]*models.Issue, error) {
	var issues []*models.Issue
	cursor := ""

	for len(issues) < limit {
		args := graphqlArgs(issueQuery, owner, repo, min(pageSize, limit-len(issues)), cursor)
		out, err := ghCmd(ctx, args...)
		if err != nil {
			return nil, err
		}

		var resp issueResponse
		if err := json.Unmarshal([]byte(out), &resp); err != nil {
			return nil, fmt.Errorf("parse issues: %w", err)
		}

		page := resp.Data.Repository.Issues
		for _, node := range page.Nodes {
			issues = append(issues, convertIssue(owner, repo, node))
		}

		if !page.PageInfo.HasNextPage {
			break
		}
		cursor = page.PageInfo.EndCursor
	}

	return issues, nil
}

func graphqlArgs(query, owner, repo string, limit int, cursor string) []string {
	args := []string{"api", "graphql",
		"-f", "query=" + query,
		"-F", "owner=" + owner,
		"-F", "name=" + repo,
		"-F", fmt.Sprintf("limit=%d", limit),
	}
	if cursor != "" {
		args = append(args, "-F", "cursor="+cursor)
	}
	return args
}

// convertPR flattens one GraphQL node into the record shape the analytics
// engines consume.
func convertPR(owner, repo string, node prNode) *models.PullRequest {
	pr := &models.PullRequest{
		Owner:         owner,
		Repo:          repo,
		Number:        node.Number,
		URL:           node.URL,
		Title:         node.Title,
		State:         models.PRState(node.State),
		IsDraft:       node.IsDraft,
		CreatedAt:     node.CreatedAt,
		MergedAt:      node.MergedAt,
		ClosedAt:      node.ClosedAt,
		Author:        node.Author.Login,
		Additions:     node.Additions,
		Deletions:     node.Deletions,
		ChangedFiles:  node.ChangedFiles,
		ReviewsCount:  node.Reviews.TotalCount,
		ReviewThreads: node.ReviewThreads.TotalCount,
		CommentsCount: node.Comments.TotalCount,
		Labels:        []string{},
	}

	for _, rv := range node.Reviews.Nodes {
		pr.ReviewDetails = append(pr.ReviewDetails, models.Review{
			Author:    rv.Author.Login,
			State:     models.ReviewState(rv.State),
			CreatedAt: rv.CreatedAt,
		})
	}

	for _, rr := range node.ReviewRequests.Nodes {
		name := rr.RequestedReviewer.Login
		if name == "" {
			name = rr.RequestedReviewer.Name
		}
		if name != "" {
			pr.RequestedReviewers = append(pr.RequestedReviewers, name)
		}
	}

	for _, thread := range node.ReviewThreads.Nodes {
		if !thread.IsResolved {
			pr.UnresolvedThreads++
		}
	}

	for _, label := range node.Labels.Nodes {
		pr.Labels = append(pr.Labels, label.Name)
	}

	pr.ChangesRequested = countChangesRequested(pr.ReviewDetails)
	pr.CommitsAfterReview = countCommitsAfterReview(node, pr.ReviewDetails)

	return pr
}

// countChangesRequested counts reviewers whose most recent review still
// requests changes.
func countChangesRequested(reviews []models.Review) int {
	type last struct {
		state models.ReviewState
		at    string
	}
	latest := map[string]last{}
	for _, rv := range reviews {
		if rv.Author == "" {
			continue
		}
		if prev, ok := latest[rv.Author]; !ok || rv.CreatedAt >= prev.at {
			latest[rv.Author] = last{state: rv.State, at: rv.CreatedAt}
		}
	}

	n := 0
	for _, l := range latest {
		if l.state == models.ReviewChangesRequested {
			n++
		}
	}
	return n
}

// countCommitsAfterReview counts commits pushed after the newest review.
func countCommitsAfterReview(node prNode, reviews []models.Review) int {
	var lastReview string
	for _, rv := range reviews {
		if rv.CreatedAt > lastReview {
			lastReview = rv.CreatedAt
		}
	}
	if lastReview == "" {
		return 0
	}

	lastReviewAt, ok := models.ParseTime(lastReview)
	if !ok {
		return 0
	}

	n := 0
	for _, c := range node.Commits.Nodes {
		if committed, ok := models.ParseTime(c.Commit.CommittedDate); ok && committed.After(lastReviewAt) {
			n++
		}
	}
	return n
}

func convertIssue(owner, repo string, node issueNode) *models.Issue {
	issue := &models.Issue{
		Owner:     owner,
		Repo:      repo,
		Number:    node.Number,
		URL:       node.URL,
		Title:     node.Title,
		State:     models.IssueState(node.State),
		CreatedAt: node.CreatedAt,
		ClosedAt:  node.ClosedAt,
		Author:    node.Author.Login,
	}

	if node.Milestone != nil {
		issue.Milestone = &models.Milestone{Title: node.Milestone.Title, DueOn: node.Milestone.DueOn}
	}

	for _, pr := range node.ClosedByPullRequestsReferences.Nodes {
		issue.LinkedPRs = append(issue.LinkedPRs, models.LinkedPR{
			Number: pr.Number,
			Title:  pr.Title,
			State:  pr.State,
			URL:    pr.URL,
		})
	}

	return issue
}
