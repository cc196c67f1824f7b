package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS generation_runs (
    id             INTEGER PRIMARY KEY,
    created_at     TEXT NOT NULL,
    source         TEXT NOT NULL,
    n_gram         INTEGER NOT NULL,
    corpus_tokens  INTEGER NOT NULL,
    chain_keys     INTEGER NOT NULL,
    output_tokens  INTEGER NOT NULL,
    reason         TEXT NOT NULL,
    seed           INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_generation_runs_created_at ON generation_runs (created_at);
`

const defaultHistoryLimit = 20

// Run is the metadata of one generation. Chain contents are never stored.
type Run struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Source       string    `json:"source"`
	NGram        int       `json:"n_gram"`
	CorpusTokens int       `json:"corpus_tokens"`
	ChainKeys    int       `json:"chain_keys"`
	OutputTokens int       `json:"output_tokens"`
	Reason       string    `json:"reason"`
	Seed         uint64    `json:"seed"`
}

// HistorySummary provides a high-level overview of all recorded runs.
type HistorySummary struct {
	TotalRuns         int64   `json:"total_runs"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	MeanOutputTokens  float64 `json:"mean_output_tokens"`
	DeadEnds          int64   `json:"dead_ends"`
}

// HistoryStore records generation runs in SQLite and serves them over HTTP.
type HistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupHistorySchema(db *sql.DB) error {
	_, err := db.Exec(historySchema)
	return err
}

// OpenHistoryStore opens or creates the history database at dataSource.
func OpenHistoryStore(dataSource string, logger *slog.Logger) (*HistoryStore, error) {
	path, _, _ := strings.Cut(dataSource, "?")
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := openDB(dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err = setupHistorySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup history schema: %w", err)
	}
	return &HistoryStore{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Record inserts run and sets its ID. A zero CreatedAt is set to now.
func (s *HistoryStore) Record(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO generation_runs (created_at, source, n_gram, corpus_tokens, chain_keys, output_tokens, reason, seed)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Source, run.NGram, run.CorpusTokens,
		run.ChainKeys, run.OutputTokens, run.Reason, int64(run.Seed))
	if err != nil {
		return fmt.Errorf("failed to insert generation run: %w", err)
	}
	if run.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read generation run id: %w", err)
	}
	s.logger.DebugContext(ctx, "Generation run recorded", slog.Int64("run_id", run.ID))
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, created_at, source, n_gram, corpus_tokens, chain_keys, output_tokens, reason, seed
        FROM generation_runs ORDER BY id DESC LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation runs: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var createdAt string
		var seed int64
		if err = rows.Scan(&run.ID, &createdAt, &run.Source, &run.NGram, &run.CorpusTokens,
			&run.ChainKeys, &run.OutputTokens, &run.Reason, &seed); err != nil {
			return nil, fmt.Errorf("failed to scan generation run: %w", err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("run %d has a malformed timestamp %q: %w", run.ID, createdAt, err)
		}
		run.Seed = uint64(seed)
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Summary aggregates every recorded run.
func (s *HistoryStore) Summary(ctx context.Context) (HistorySummary, error) {
	var summary HistorySummary
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(CASE WHEN reason = 'dead_end' THEN 1 ELSE 0 END), 0)
        FROM generation_runs
    `).Scan(&summary.TotalRuns, &summary.TotalOutputTokens, &summary.DeadEnds)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("failed to summarize generation runs: %w", err)
	}
	if summary.TotalRuns > 0 {
		summary.MeanOutputTokens = float64(summary.TotalOutputTokens) / float64(summary.TotalRuns)
	}
	return summary, nil
}

// RegisterRoutes sets up the routing for all /api/history endpoints.
func (s *HistoryStore) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/history", s.handleRecent)
	mux.HandleFunc("/api/history/summary", s.handleSummary)
}

func (s *HistoryStore) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			respondWithError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}
	runs, err := s.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to query history", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, runs)
}

func (s *HistoryStore) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	summary, err := s.Summary(r.Context())
	if err != nil {
		s.logger.Error("Failed to summarize history", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
