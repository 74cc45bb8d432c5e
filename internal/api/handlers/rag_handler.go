package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/agent"
	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/internal/rag"
	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/internal/storage/models"
	"github.com/tj-assistant/ml-backend/internal/storage/sqlite"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

type RAGHandler struct {
	agent       *agent.Agent
	db          *sqlite.Client
	defaultTopK int
}

func NewRAGHandler(agent *agent.Agent, db *sqlite.Client, defaultTopK int) *RAGHandler {
	return &RAGHandler{
		agent:       agent,
		db:          db,
		defaultTopK: defaultTopK,
	}
}

type ragQueryRequest struct {
	Question    string         `json:"question"`
	TopK        int            `json:"top_k"`
	ChatHistory []rag.ChatTurn `json:"chat_history"`
}

type sourceDocument struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// HandleQuery answers one question through the agent loop. Upstream
// failures never leak raw error text to the client.
func (h *RAGHandler) HandleQuery(c *fiber.Ctx) error {
	var req ragQueryRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	topK := req.TopK
	if topK < 1 {
		topK = h.defaultTopK
	}

	start := time.Now()
	result, err := h.agent.Process(c.Context(), req.Question, topK, req.ChatHistory)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues("agent").Observe(elapsed.Seconds())
	metrics.AgentIterations.Observe(float64(result.Iterations))
	metrics.VectorResultsCount.Observe(float64(len(result.Docs)))
	metrics.LLMTokensUsed.WithLabelValues("prompt").Add(float64(result.TokenUsage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues("completion").Add(float64(result.TokenUsage.CompletionTokens))

	h.recordQuery(req.Question, result, elapsed)

	return c.JSON(fiber.Map{
		"answer":           result.Answer,
		"context":          result.Context,
		"sources":          docsToSources(result.Docs),
		"token_usage":      result.TokenUsage,
		"agent_iterations": result.Iterations,
	})
}

// recordQuery keeps history best-effort: a storage failure must not
// fail an already answered request.
func (h *RAGHandler) recordQuery(question string, result *agent.Result, elapsed time.Duration) {
	record := &models.QueryRecord{
		ID:              uuid.New().String(),
		Question:        question,
		Answer:          result.Answer,
		AgentIterations: result.Iterations,
		TotalTokens:     result.TokenUsage.TotalTokens,
		LatencyMS:       elapsed.Milliseconds(),
		CreatedAt:       time.Now(),
	}
	if err := h.db.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query history", zap.Error(err))
	}
}

func (h *RAGHandler) GetQueryHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	records, err := h.db.GetQueryHistory(limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}
	if records == nil {
		records = []models.QueryRecord{}
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}

func docsToSources(docs []retriever.Document) []sourceDocument {
	sources := make([]sourceDocument, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, sourceDocument{Content: doc.Content, Metadata: doc.Metadata})
	}
	return sources
}
