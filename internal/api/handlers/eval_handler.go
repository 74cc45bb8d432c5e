package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/evaluation"
	"github.com/tj-assistant/ml-backend/internal/storage/sqlite"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

type EvalHandler struct {
	pipeline *evaluation.Pipeline
}

func NewEvalHandler(pipeline *evaluation.Pipeline) *EvalHandler {
	return &EvalHandler{pipeline: pipeline}
}

// HandleCreateRun starts an evaluation run and returns immediately; the
// run executes in the background and is observed by polling.
func (h *EvalHandler) HandleCreateRun(c *fiber.Ctx) error {
	var req struct {
		RunName string `json:"run_name"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	run, err := h.pipeline.CreateRun(req.RunName)
	if err != nil {
		logger.Error("Failed to create evaluation run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create evaluation run",
		})
	}

	runID := run.RunID
	go func() {
		if err := h.pipeline.RunEvaluation(context.Background(), runID); err != nil {
			logger.Error("Evaluation run finished with error",
				zap.String("run_id", runID),
				zap.Error(err),
			)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": run.RunID,
		"status": run.Status,
	})
}

func (h *EvalHandler) HandleGetStatus(c *fiber.Ctx) error {
	runID := c.Params("run_id")

	run, err := h.pipeline.ReadRun(runID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
		})
	}
	if err != nil {
		logger.Error("Failed to read evaluation run", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read evaluation run",
		})
	}

	resp := fiber.Map{
		"run_id":     run.RunID,
		"status":     run.Status,
		"started_at": run.StartedAt,
	}
	if run.FinishedAt != nil {
		resp["finished_at"] = run.FinishedAt
	}
	if run.Error != "" {
		resp["error"] = run.Error
	}
	return c.JSON(resp)
}

func (h *EvalHandler) HandleGetReport(c *fiber.Ctx) error {
	runID := c.Params("run_id")

	run, err := h.pipeline.ReadRun(runID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
		})
	}
	if err != nil {
		logger.Error("Failed to read evaluation run", zap.String("run_id", runID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read evaluation run",
		})
	}

	return c.JSON(run)
}
