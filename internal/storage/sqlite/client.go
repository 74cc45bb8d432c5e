package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/storage/models"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		raw_content TEXT,
		chunk_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_updated ON articles(updated_at);

	CREATE TABLE IF NOT EXISTS article_chunks (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_article ON article_chunks(article_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT,
		agent_iterations INTEGER DEFAULT 0,
		total_tokens INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS eval_runs (
		run_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_eval_runs_status ON eval_runs(status);
	CREATE INDEX IF NOT EXISTS idx_eval_runs_created ON eval_runs(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveEvalRun upserts the full run record as a JSON payload. The status
// column is denormalized for cheap listing queries.
func (c *Client) SaveEvalRun(run *models.EvalRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize eval run: %w", err)
	}

	query := `
		INSERT INTO eval_runs (run_id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	now := time.Now().Unix()
	_, err = c.db.Exec(query, run.RunID, run.Status, string(payload), run.StartedAt.Unix(), now)
	if err != nil {
		return fmt.Errorf("failed to save eval run: %w", err)
	}

	logger.Debug("Eval run saved",
		zap.String("run_id", run.RunID),
		zap.String("status", run.Status),
	)
	return nil
}

func (c *Client) GetEvalRun(runID string) (*models.EvalRun, error) {
	var payload string
	err := c.db.QueryRow(`SELECT payload FROM eval_runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get eval run: %w", err)
	}

	var run models.EvalRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("failed to parse eval run payload: %w", err)
	}
	return &run, nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, question, answer, agent_iterations, total_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.Question,
		record.Answer,
		record.AgentIterations,
		record.TotalTokens,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.Int("agent_iterations", record.AgentIterations),
		zap.Int64("latency_ms", record.LatencyMS),
	)
	return nil
}

func (c *Client) GetQueryHistory(limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, question, answer, agent_iterations, total_tokens, latency_ms, created_at
		FROM query_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.AgentIterations, &r.TotalTokens, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertArticle(article *models.Article) error {
	query := `
		INSERT INTO articles (id, url, title, raw_content, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			raw_content = excluded.raw_content,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		article.ID,
		article.URL,
		article.Title,
		article.RawContent,
		article.ChunkCount,
		article.CreatedAt.Unix(),
		article.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}

	logger.Debug("Article inserted", zap.String("article_id", article.ID), zap.String("url", article.URL))
	return nil
}

func (c *Client) GetArticleByURL(url string) (*models.Article, error) {
	query := `SELECT id, url, title, chunk_count, created_at, updated_at FROM articles WHERE url = ?`

	var article models.Article
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, url).Scan(
		&article.ID,
		&article.URL,
		&article.Title,
		&article.ChunkCount,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	article.CreatedAt = time.Unix(createdAt, 0)
	article.UpdatedAt = time.Unix(updatedAt, 0)
	return &article, nil
}

func (c *Client) InsertChunk(chunk *models.ArticleChunk) error {
	query := `INSERT INTO article_chunks (id, article_id, chunk_index, text, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.ArticleID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}
