package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/storage/models"
	"github.com/service-agreement/backend/pkg/logger"
)

var ErrRunNotFound = errors.New("run not found")

// Client is the audit log of pipeline runs.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_runs (
		trace_id TEXT PRIMARY KEY,
		flow TEXT NOT NULL,
		model TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error_message TEXT,
		raw_content TEXT,
		kb_item_ids TEXT,
		prompt_tokens INTEGER DEFAULT 0,
		completion_tokens INTEGER DEFAULT 0,
		cached INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_flow ON generation_runs(flow);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON generation_runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON generation_runs(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) InsertRun(ctx context.Context, run *models.GenerationRun) error {
	query := `
		INSERT INTO generation_runs (trace_id, flow, model, status, error_kind, error_message, raw_content,
			kb_item_ids, prompt_tokens, completion_tokens, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	kbIDs := run.KbItemIDs
	if kbIDs == nil {
		kbIDs = []string{}
	}
	kbJSON, err := json.Marshal(kbIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal kb item ids: %w", err)
	}

	cached := 0
	if run.Cached {
		cached = 1
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(
		ctx,
		query,
		run.TraceID,
		run.Flow,
		run.Model,
		run.Status,
		run.ErrorKind,
		run.ErrorMessage,
		run.RawContent,
		string(kbJSON),
		run.PromptTokens,
		run.CompletionTokens,
		cached,
		run.LatencyMS,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	logger.Debug("Run recorded",
		zap.String("trace_id", run.TraceID),
		zap.String("flow", run.Flow),
		zap.String("status", run.Status),
	)
	return nil
}

const runColumns = `trace_id, flow, model, status, error_kind, error_message, raw_content,
	kb_item_ids, prompt_tokens, completion_tokens, cached, latency_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.GenerationRun, error) {
	var (
		r                               models.GenerationRun
		model, errKind, errMsg, rawText sql.NullString
		kbJSON                          sql.NullString
		cached                          int
		createdAt                       int64
	)

	err := s.Scan(
		&r.TraceID,
		&r.Flow,
		&model,
		&r.Status,
		&errKind,
		&errMsg,
		&rawText,
		&kbJSON,
		&r.PromptTokens,
		&r.CompletionTokens,
		&cached,
		&r.LatencyMS,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.Model = model.String
	r.ErrorKind = errKind.String
	r.ErrorMessage = errMsg.String
	r.RawContent = rawText.String
	r.Cached = cached == 1
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.KbItemIDs = []string{}
	if kbJSON.String != "" {
		if err := json.Unmarshal([]byte(kbJSON.String), &r.KbItemIDs); err != nil {
			return nil, fmt.Errorf("failed to decode kb item ids: %w", err)
		}
	}
	return &r, nil
}

func (c *Client) GetRun(ctx context.Context, traceID string) (*models.GenerationRun, error) {
	query := `SELECT ` + runColumns + ` FROM generation_runs WHERE trace_id = ?`

	run, err := scanRun(c.db.QueryRowContext(ctx, query, traceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the newest runs first. An empty flow matches every flow.
func (c *Client) ListRuns(ctx context.Context, flow string, limit int) ([]models.GenerationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + runColumns + `
		FROM generation_runs
		WHERE (? = '' OR flow = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, flow, flow, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.GenerationRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Stats aggregates run counts and latency per flow.
func (c *Client) Stats(ctx context.Context) ([]models.RunStats, error) {
	query := `
		SELECT flow,
			COUNT(*),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			AVG(latency_ms)
		FROM generation_runs
		GROUP BY flow
		ORDER BY flow
	`

	rows, err := c.db.QueryContext(ctx, query, models.RunStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute run stats: %w", err)
	}
	defer rows.Close()

	stats := []models.RunStats{}
	for rows.Next() {
		var s models.RunStats
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Flow, &s.Total, &s.Failed, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.AvgLatency = avg.Float64
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}

	return stats, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
