// Package api exposes the cached PR data and the analytics engines over a
// small REST API. All computation happens at request time against the
// store, so the endpoints always reflect the latest fetched data.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/joescharf/prdash/internal/analytics"
	"github.com/joescharf/prdash/internal/dashboard"
	"github.com/joescharf/prdash/internal/github"
	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store store.Store
	gh    github.Client
	log   *slog.Logger
	now   func() time.Time
}

// NewServer creates a new API server. The GitHub client may be nil, in
// which case the refresh endpoint reports the API as unavailable.
func NewServer(s store.Store, gh github.Client) *Server {
	return &Server{
		store: s,
		gh:    gh,
		log:   slog.Default(),
		now:   time.Now,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/prs", s.listPRs)
	mux.HandleFunc("GET /api/v1/prs/{owner}/{repo}/{number}", s.getPR)

	mux.HandleFunc("GET /api/v1/actions", s.actionSummary)
	mux.HandleFunc("GET /api/v1/risk", s.riskyPRs)
	mux.HandleFunc("GET /api/v1/fourkeys", s.fourKeys)
	mux.HandleFunc("GET /api/v1/stats", s.statistics)

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)

	mux.HandleFunc("GET /api/v1/cache", s.cacheInfo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", s.refreshRepo)

	return corsMiddleware(s.logMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// prFilterFromQuery reads the optional owner, repo, and state query params.
func prFilterFromQuery(r *http.Request) store.PRFilter {
	return store.PRFilter{
		Owner: r.URL.Query().Get("owner"),
		Repo:  r.URL.Query().Get("repo"),
		State: models.PRState(r.URL.Query().Get("state")),
	}
}

// --- Pull requests ---

func (s *Server) listPRs(w http.ResponseWriter, r *http.Request) {
	prs, err := s.store.ListPullRequests(r.Context(), prFilterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := s.now()
	analytics.Enrich(prs, now)

	enriched := make([]*dashboard.EnrichedPR, 0, len(prs))
	for _, pr := range prs {
		e := &dashboard.EnrichedPR{PullRequest: pr, ActionInfo: analytics.DetermineActionOwner(pr)}
		if pr.State == models.PRStateOpen {
			danger := analytics.ComputeDangerScore(pr, now)
			e.Danger = &danger
		}
		enriched = append(enriched, e)
	}
	writeJSON(w, http.StatusOK, enriched)
}

func (s *Server) getPR(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}
	filter := store.PRFilter{Owner: r.PathValue("owner"), Repo: r.PathValue("repo")}
	prs, err := s.store.ListPullRequests(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, pr := range prs {
		if pr.Number != number {
			continue
		}
		now := s.now()
		analytics.EnrichPR(pr, now)
		e := &dashboard.EnrichedPR{PullRequest: pr, ActionInfo: analytics.DetermineActionOwner(pr)}
		if pr.State == models.PRStateOpen {
			danger := analytics.ComputeDangerScore(pr, now)
			e.Danger = &danger
		}
		writeJSON(w, http.StatusOK, e)
		return
	}
	writeError(w, http.StatusNotFound, "pull request not found")
}

// --- Analytics ---

func (s *Server) actionSummary(w http.ResponseWriter, r *http.Request) {
	prs, err := s.store.ListPullRequests(r.Context(), store.PRFilter{State: models.PRStateOpen})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	analytics.Enrich(prs, s.now())
	writeJSON(w, http.StatusOK, analytics.BuildActionSummary(prs))
}

func (s *Server) riskyPRs(w http.ResponseWriter, r *http.Request) {
	minScore := 15
	if v := r.URL.Query().Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		minScore = n
	}

	prs, err := s.store.ListPullRequests(r.Context(), store.PRFilter{State: models.PRStateOpen})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := s.now()
	analytics.Enrich(prs, now)

	type riskEntry struct {
		*models.PullRequest
		Danger analytics.Danger `json:"danger"`
	}
	risky := []riskEntry{}
	for _, pr := range prs {
		danger := analytics.ComputeDangerScore(pr, now)
		if danger.Score >= minScore {
			risky = append(risky, riskEntry{PullRequest: pr, Danger: danger})
		}
	}
	sort.SliceStable(risky, func(i, j int) bool {
		return risky[i].Danger.Score > risky[j].Danger.Score
	})
	writeJSON(w, http.StatusOK, risky)
}

func (s *Server) fourKeys(w http.ResponseWriter, r *http.Request) {
	prs, err := s.store.ListPullRequests(r.Context(), prFilterFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analytics.ComputeFourKeys(prs))
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	prs, err := s.store.ListPullRequests(r.Context(), store.PRFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	issues, err := s.store.ListIssues(r.Context(), store.IssueFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snap := dashboard.BuildSnapshot(prs, issues, s.now())
	writeJSON(w, http.StatusOK, snap.Analytics)
}

// --- Issues ---

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueFilter{
		Owner: r.URL.Query().Get("owner"),
		Repo:  r.URL.Query().Get("repo"),
		State: models.IssueState(r.URL.Query().Get("state")),
	}
	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	analytics.EnrichIssues(issues)
	writeJSON(w, http.StatusOK, issues)
}

// --- Cache ---

func (s *Server) cacheInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.CacheInfo(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) refreshRepo(w http.ResponseWriter, r *http.Request) {
	if s.gh == nil {
		writeError(w, http.StatusServiceUnavailable, "GitHub client not configured")
		return
	}
	owner, repo := r.PathValue("owner"), r.PathValue("repo")

	prs, err := s.gh.FetchPullRequests(r.Context(), owner, repo, 200)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.store.SavePullRequests(r.Context(), prs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.RecordFetchRun(r.Context(), &store.FetchRun{
		Owner:       owner,
		Repo:        repo,
		Kind:        "prs",
		RecordCount: len(prs),
		StartedAt:   s.now(),
		FinishedAt:  s.now(),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("refreshed repository", "owner", owner, "repo", repo, "prs", len(prs))
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "repo": repo, "prs": len(prs)})
}
