package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/ingestion"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
}

func NewDocumentHandler(processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{processor: processor}
}

// HandleIngest accepts one article's HTML and adds it to the knowledge
// base synchronously.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URL == "" || req.HTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url and html are required",
		})
	}

	article, err := h.processor.ProcessArticle(c.Context(), req.URL, req.HTML)
	if err != nil {
		logger.Error("Failed to ingest article", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest article",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     article.ID,
		"url":    article.URL,
		"title":  article.Title,
		"chunks": article.ChunkCount,
	})
}
