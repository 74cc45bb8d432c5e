// Package tools defines the fixed set of capabilities the agent may call:
// knowledge-base search, safe arithmetic and current date. Tools never
// panic toward the agent loop: every failure becomes a textual result the
// model can read and react to.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

type Tool interface {
	Name() string
	Spec() llm.ToolSpec
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is the fixed name-to-tool table built once at startup. Adding
// a tool means adding a variant here, nothing is registered dynamically.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewRegistry(searcher Searcher) *Registry {
	all := []Tool{
		NewSearchKnowledgeBase(searcher),
		NewCalculate(),
		NewGetCurrentDate(),
	}

	byName := make(map[string]Tool, len(all))
	for _, t := range all {
		byName[t.Name()] = t
	}

	return &Registry{tools: all, byName: byName}
}

func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Dispatch executes one tool-call request and always returns text: an
// unknown name or a failing tool produces an error message the agent
// loop feeds back into the conversation instead of aborting.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) string {
	logger.Info("Dispatching tool call",
		zap.String("tool", call.Name),
		zap.String("arguments", string(call.Arguments)),
	)
	metrics.ToolCallsTotal.WithLabelValues(call.Name).Inc()

	tool, ok := r.byName[call.Name]
	if !ok {
		msg := fmt.Sprintf("Инструмент '%s' не найден.", call.Name)
		logger.Warn("Unknown tool requested", zap.String("tool", call.Name))
		return msg
	}

	result, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		msg := fmt.Sprintf("Ошибка выполнения инструмента '%s': %v", call.Name, err)
		logger.Warn("Tool execution failed", zap.String("tool", call.Name), zap.Error(err))
		return msg
	}

	logger.Debug("Tool call finished",
		zap.String("tool", call.Name),
		zap.Int("result_length", len(result)),
	)
	return result
}
