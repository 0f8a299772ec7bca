package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/prdash/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent fetches.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Pull requests ---

// SavePullRequests upserts the given records, keyed by (owner, repo,
// number). The full record is stored as JSON so schema changes in the
// upstream payload never require a migration.
func (s *SQLiteStore) SavePullRequests(ctx context.Context, prs []*models.PullRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, pr := range prs {
		data, err := json.Marshal(pr)
		if err != nil {
			return fmt.Errorf("marshal pr %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pull_requests (owner, repo, number, state, data, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(owner, repo, number) DO UPDATE SET
				state = excluded.state,
				data = excluded.data,
				updated_at = excluded.updated_at`,
			pr.Owner, pr.Repo, pr.Number, string(pr.State), string(data), now,
		)
		if err != nil {
			return fmt.Errorf("save pr %s/%s#%d: %w", pr.Owner, pr.Repo, pr.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListPullRequests returns cached records matching the filter, ordered by
// owner, repo, then descending number.
func (s *SQLiteStore) ListPullRequests(ctx context.Context, filter PRFilter) ([]*models.PullRequest, error) {
	query := "SELECT data FROM pull_requests"
	where, args := prFilterClauses(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY owner, repo, number DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prs []*models.PullRequest
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		pr := &models.PullRequest{}
		if err := json.Unmarshal([]byte(data), pr); err != nil {
			return nil, fmt.Errorf("unmarshal pull request: %w", err)
		}
		prs = append(prs, pr)
	}
	return prs, rows.Err()
}

func prFilterClauses(filter PRFilter) (where []string, args []any) {
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Repo != "" {
		where = append(where, "repo = ?")
		args = append(args, filter.Repo)
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	return where, args
}

// --- Issues ---

// SaveIssues upserts the given issue records, keyed like pull requests.
func (s *SQLiteStore) SaveIssues(ctx context.Context, issues []*models.Issue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, issue := range issues {
		data, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("marshal issue %s/%s#%d: %w", issue.Owner, issue.Repo, issue.Number, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO issues (owner, repo, number, state, data, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(owner, repo, number) DO UPDATE SET
				state = excluded.state,
				data = excluded.data,
				updated_at = excluded.updated_at`,
			issue.Owner, issue.Repo, issue.Number, string(issue.State), string(data), now,
		)
		if err != nil {
			return fmt.Errorf("save issue %s/%s#%d: %w", issue.Owner, issue.Repo, issue.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListIssues returns cached issues matching the filter.
func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueFilter) ([]*models.Issue, error) {
	query := "SELECT data FROM issues"
	var where []string
	var args []any
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Repo != "" {
		where = append(where, "repo = ?")
		args = append(args, filter.Repo)
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY owner, repo, number DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue := &models.Issue{}
		if err := json.Unmarshal([]byte(data), issue); err != nil {
			return nil, fmt.Errorf("unmarshal issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// --- Fetch runs ---

// RecordFetchRun stores one fetch record, assigning an ID if missing.
func (s *SQLiteStore) RecordFetchRun(ctx context.Context, run *FetchRun) error {
	if run.ID == "" {
		run.ID = newULID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_runs (id, owner, repo, kind, record_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Owner, run.Repo, run.Kind, run.RecordCount, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record fetch run: %w", err)
	}
	return nil
}

// ListFetchRuns returns the most recent fetch runs, newest first.
func (s *SQLiteStore) ListFetchRuns(ctx context.Context, limit int) ([]*FetchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, repo, kind, record_count, started_at, finished_at
		FROM fetch_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fetch runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*FetchRun
	for rows.Next() {
		run := &FetchRun{}
		if err := rows.Scan(&run.ID, &run.Owner, &run.Repo, &run.Kind, &run.RecordCount, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan fetch run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CacheInfo aggregates per-repo record counts and the last fetch time.
func (s *SQLiteStore) CacheInfo(ctx context.Context) (*CacheInfo, error) {
	info := &CacheInfo{Repos: []RepoCacheInfo{}}
	byRepo := map[string]*RepoCacheInfo{}

	get := func(owner, repo string) *RepoCacheInfo {
		key := owner + "/" + repo
		rc, ok := byRepo[key]
		if !ok {
			rc = &RepoCacheInfo{Owner: owner, Repo: repo}
			byRepo[key] = rc
		}
		return rc
	}

	rows, err := s.db.QueryContext(ctx, "SELECT owner, repo, COUNT(*) FROM pull_requests GROUP BY owner, repo")
	if err != nil {
		return nil, fmt.Errorf("count pull requests: %w", err)
	}
	for rows.Next() {
		var owner, repo string
		var n int
		if err := rows.Scan(&owner, &repo, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan pr count: %w", err)
		}
		get(owner, repo).PRCount = n
		info.TotalPRs += n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT owner, repo, COUNT(*) FROM issues GROUP BY owner, repo")
	if err != nil {
		return nil, fmt.Errorf("count issues: %w", err)
	}
	for rows.Next() {
		var owner, repo string
		var n int
		if err := rows.Scan(&owner, &repo, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan issue count: %w", err)
		}
		get(owner, repo).IssueCount = n
		info.TotalIssues += n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT owner, repo, MAX(finished_at) FROM fetch_runs GROUP BY owner, repo")
	if err != nil {
		return nil, fmt.Errorf("last fetch times: %w", err)
	}
	for rows.Next() {
		var owner, repo string
		var finished sql.NullString
		if err := rows.Scan(&owner, &repo, &finished); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan fetch time: %w", err)
		}
		if finished.Valid {
			get(owner, repo).LastFetched = finished.String
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, rc := range byRepo {
		info.Repos = append(info.Repos, *rc)
	}
	sort.Slice(info.Repos, func(i, j int) bool {
		if info.Repos[i].Owner != info.Repos[j].Owner {
			return info.Repos[i].Owner < info.Repos[j].Owner
		}
		return info.Repos[i].Repo < info.Repos[j].Repo
	})

	return info, nil
}
