// Package agent runs the tool-calling orchestration loop: initial
// knowledge-base retrieval, a tool-bound conversation with the model,
// dispatch of requested tool calls, and a guaranteed terminal answer via
// either the iteration cap or a direct no-tools fallback.
package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/internal/rag"
	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/internal/tokens"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

// ToolSet is the registry surface the loop needs: the schemas to bind
// and a by-name dispatcher that always returns text, never an error.
type ToolSet interface {
	Specs() []llm.ToolSpec
	Dispatch(ctx context.Context, call llm.ToolCall) string
}

// Result mirrors the direct pipeline's output plus the number of tool
// rounds executed. Iterations is 0 when no tool round ran, including the
// fallback path.
type Result struct {
	Answer     string
	Context    string
	Docs       []retriever.Document
	TokenUsage tokens.UsageStats
	Iterations int
}

type Agent struct {
	retriever     rag.Searcher
	completer     rag.Completer
	tools         ToolSet
	maxIterations int
}

func New(retriever rag.Searcher, completer rag.Completer, tools ToolSet, maxIterations int) *Agent {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Agent{
		retriever:     retriever,
		completer:     completer,
		tools:         tools,
		maxIterations: maxIterations,
	}
}

// Process answers question through the agent loop. A retrieval failure is
// fatal; any failure inside the loop triggers exactly one fallback
// attempt on the same initial conversation without tools.
func (a *Agent) Process(ctx context.Context, question string, topK int, chatHistory []rag.ChatTurn) (*Result, error) {
	logger.Info("agent query",
		zap.String("question", truncate(question, 80)),
		zap.Int("top_k", topK),
		zap.Int("max_iterations", a.maxIterations),
	)

	docs, err := a.retriever.SearchMMR(ctx, question, topK, 0)
	if err != nil {
		return nil, err
	}
	contextBlock := rag.FormatDocs(docs)

	tracker := tokens.NewTracker(tokens.Estimate(question), tokens.Estimate(contextBlock))
	messages := rag.BuildMessages(SystemPrompt, chatHistory, contextBlock, question, UserTemplate)

	res, err := a.runLoop(ctx, messages, docs, contextBlock, tracker)
	if err == nil {
		return res, nil
	}

	logger.Warn("agent loop failed, falling back to direct completion", zap.Error(err))
	metrics.AgentFallbacks.Inc()
	return a.fallback(ctx, messages, docs, contextBlock, tracker)
}

// runLoop drives the tool-bound conversation. It owns a private copy of
// the conversation so a mid-loop failure leaves the caller's messages
// untouched for the fallback.
func (a *Agent) runLoop(ctx context.Context, base []llm.Message, docs []retriever.Document, contextBlock string, tracker *tokens.Tracker) (*Result, error) {
	conv := append(make([]llm.Message, 0, len(base)+2*a.maxIterations), base...)
	specs := a.tools.Specs()

	iterations := 0
	for i := 0; i < a.maxIterations; i++ {
		resp, err := a.completer.Chat(ctx, conv, llm.WithTools(specs), llm.WithObserver(tracker))
		if err != nil {
			return nil, err
		}

		if len(resp.Message.ToolCalls) == 0 {
			logger.Info("agent finished", zap.Int("iterations", iterations))
			return a.finish(resp.Message.Content, docs, contextBlock, tracker, iterations), nil
		}

		conv = append(conv, resp.Message)
		iterations++

		// Results must follow the request order, each tied to its id.
		for _, call := range resp.Message.ToolCalls {
			result := a.tools.Dispatch(ctx, call)
			conv = append(conv, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		logger.Info("agent iteration complete",
			zap.Int("iteration", iterations),
			zap.Int("max_iterations", a.maxIterations),
		)
	}

	logger.Warn("agent iteration cap reached, requesting final answer",
		zap.Int("max_iterations", a.maxIterations),
	)
	conv = append(conv, llm.Message{Role: llm.RoleUser, Content: FinalAnswerInstruction})

	resp, err := a.completer.Chat(ctx, conv, llm.WithObserver(tracker))
	if err != nil {
		return nil, err
	}
	return a.finish(resp.Message.Content, docs, contextBlock, tracker, iterations), nil
}

func (a *Agent) fallback(ctx context.Context, messages []llm.Message, docs []retriever.Document, contextBlock string, tracker *tokens.Tracker) (*Result, error) {
	resp, err := a.completer.Chat(ctx, messages, llm.WithObserver(tracker))
	if err != nil {
		return nil, err
	}
	return a.finish(resp.Message.Content, docs, contextBlock, tracker, 0), nil
}

func (a *Agent) finish(answer string, docs []retriever.Document, contextBlock string, tracker *tokens.Tracker, iterations int) *Result {
	return &Result{
		Answer:     rag.EnsureSources(answer, docs),
		Context:    contextBlock,
		Docs:       docs,
		TokenUsage: tracker.Stats(),
		Iterations: iterations,
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
