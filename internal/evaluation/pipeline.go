// Package evaluation scores the direct RAG pipeline against a golden
// question/answer set and persists one durable record per run.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/internal/rag"
	"github.com/tj-assistant/ml-backend/internal/storage/models"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

// Answerer produces a predicted answer for one golden question. The
// direct pipeline is used rather than the agent loop so scoring stays
// deterministic and tool-free.
type Answerer interface {
	Query(ctx context.Context, question string, topK int, chatHistory []rag.ChatTurn) (*rag.Result, error)
}

// RunStore persists evaluation run records keyed by run id.
type RunStore interface {
	SaveEvalRun(run *models.EvalRun) error
	GetEvalRun(runID string) (*models.EvalRun, error)
}

type Pipeline struct {
	store      RunStore
	answerer   Answerer
	goldenPath string
	topK       int
}

func NewPipeline(store RunStore, answerer Answerer, goldenPath string, topK int) *Pipeline {
	return &Pipeline{
		store:      store,
		answerer:   answerer,
		goldenPath: goldenPath,
		topK:       topK,
	}
}

// CreateRun writes an initial running record and returns it. The caller
// is expected to invoke RunEvaluation out-of-band afterwards.
func (p *Pipeline) CreateRun(runName string) (*models.EvalRun, error) {
	run := &models.EvalRun{
		RunID:     uuid.New().String(),
		RunName:   runName,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
		Items:     []models.EvalItemResult{},
	}

	if err := p.store.SaveEvalRun(run); err != nil {
		return nil, err
	}

	logger.Info("Evaluation run created",
		zap.String("run_id", run.RunID),
		zap.String("run_name", runName),
	)
	return run, nil
}

// RunEvaluation executes the run to a terminal status. Items are scored
// sequentially; the first failure aborts the run and is captured in the
// persisted record, so the record never stays running after return. The
// returned error mirrors what was persisted, for the caller's log.
func (p *Pipeline) RunEvaluation(ctx context.Context, runID string) error {
	run, err := p.store.GetEvalRun(runID)
	if err != nil {
		return err
	}

	items, err := p.scoreAll(ctx)
	if err != nil {
		p.finishRun(run, nil, err)
		return err
	}

	p.finishRun(run, items, nil)
	return nil
}

// ReadRun returns the current persisted record for the id.
func (p *Pipeline) ReadRun(runID string) (*models.EvalRun, error) {
	return p.store.GetEvalRun(runID)
}

func (p *Pipeline) scoreAll(ctx context.Context) ([]models.EvalItemResult, error) {
	golden, err := LoadGoldenSet(p.goldenPath)
	if err != nil {
		return nil, err
	}

	logger.Info("Evaluation started",
		zap.Int("items", len(golden)),
		zap.Int("top_k", p.topK),
	)

	results := make([]models.EvalItemResult, 0, len(golden))
	for i, item := range golden {
		res, err := p.answerer.Query(ctx, item.Question, p.topK, nil)
		if err != nil {
			return nil, fmt.Errorf("item %d (%q): %w", i+1, item.Question, err)
		}

		results = append(results, models.EvalItemResult{
			Question:        item.Question,
			ExpectedAnswer:  item.Answer,
			PredictedAnswer: res.Answer,
			ExactMatch:      ExactMatch(res.Answer, item.Answer),
			F1:              F1(res.Answer, item.Answer),
		})
	}
	return results, nil
}

// finishRun transitions the record to its terminal status and persists
// it once. A persistence failure here is only logged: the process must
// not crash over a finished run it cannot record.
func (p *Pipeline) finishRun(run *models.EvalRun, items []models.EvalItemResult, runErr error) {
	now := time.Now().UTC()
	run.FinishedAt = &now

	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
		logger.Error("Evaluation run failed",
			zap.String("run_id", run.RunID),
			zap.Error(runErr),
		)
	} else {
		run.Status = models.RunStatusCompleted
		run.Items = items
		run.Metrics = aggregate(items)
		logger.Info("Evaluation run completed",
			zap.String("run_id", run.RunID),
			zap.Int("count", run.Metrics.Count),
			zap.Float64("exact_match_avg", run.Metrics.ExactMatchAvg),
			zap.Float64("f1_avg", run.Metrics.F1Avg),
		)
	}

	metrics.EvalRunsTotal.WithLabelValues(run.Status).Inc()

	if err := p.store.SaveEvalRun(run); err != nil {
		logger.Error("Failed to persist finished evaluation run",
			zap.String("run_id", run.RunID),
			zap.Error(err),
		)
	}
}

func aggregate(items []models.EvalItemResult) models.EvalMetrics {
	metrics := models.EvalMetrics{Count: len(items)}
	if len(items) == 0 {
		return metrics
	}

	var emSum, f1Sum float64
	for _, item := range items {
		emSum += item.ExactMatch
		f1Sum += item.F1
	}
	metrics.ExactMatchAvg = emSum / float64(len(items))
	metrics.F1Avg = f1Sum / float64(len(items))
	return metrics
}
