package models

import "time"

// Evaluation run statuses. A run is created as running and transitions
// exactly once to completed or failed.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// EvalMetrics aggregates per-item scores over one run.
type EvalMetrics struct {
	Count         int     `json:"count"`
	ExactMatchAvg float64 `json:"exact_match_avg"`
	F1Avg         float64 `json:"f1_avg"`
}

// EvalItemResult is the scored outcome for a single golden-set question.
type EvalItemResult struct {
	Question        string  `json:"question"`
	ExpectedAnswer  string  `json:"expected_answer"`
	PredictedAnswer string  `json:"predicted_answer"`
	ExactMatch      float64 `json:"exact_match"`
	F1              float64 `json:"f1"`
}

// EvalRun is the full persisted record of one evaluation run. Error is
// set only when Status is failed.
type EvalRun struct {
	RunID      string           `json:"run_id"`
	RunName    string           `json:"run_name,omitempty"`
	Status     string           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Metrics    EvalMetrics      `json:"metrics"`
	Items      []EvalItemResult `json:"items"`
	Error      string           `json:"error,omitempty"`
}

// QueryRecord is one answered question kept for the history endpoint.
type QueryRecord struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	AgentIterations int       `json:"agent_iterations"`
	TotalTokens     int       `json:"total_tokens"`
	LatencyMS       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Article is an ingested knowledge-base source document.
type Article struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	RawContent string    `json:"raw_content,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ArticleChunk is one embedded fragment of an article. The chunk id is
// also the vector-store primary key.
type ArticleChunk struct {
	ID         string    `json:"id"`
	ArticleID  string    `json:"article_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
