// Package rag implements the single-shot retrieve → prompt → generate
// flow. It performs no retries and carries no tool loop; the agent
// package builds on the same formatting and post-processing helpers.
package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/internal/tokens"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

type Searcher interface {
	SearchMMR(ctx context.Context, query string, topK, fetchK int) ([]retriever.Document, error)
}

type Completer interface {
	Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (*llm.Response, error)
}

// ChatTurn is one prior turn of the user/assistant dialog.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Result struct {
	Answer     string
	Context    string
	Docs       []retriever.Document
	TokenUsage tokens.UsageStats
}

type Pipeline struct {
	retriever Searcher
	completer Completer
}

func NewPipeline(retriever Searcher, completer Completer) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		completer: completer,
	}
}

// Query answers question from topK MMR-retrieved documents with a single
// completion call. Retrieval and completion failures propagate to the
// caller untouched.
func (p *Pipeline) Query(ctx context.Context, question string, topK int, chatHistory []ChatTurn) (*Result, error) {
	logger.Info("RAG query",
		zap.String("question", truncate(question, 80)),
		zap.Int("top_k", topK),
	)

	docs, err := p.retriever.SearchMMR(ctx, question, topK, 0)
	if err != nil {
		return nil, err
	}
	contextBlock := FormatDocs(docs)

	tracker := tokens.NewTracker(tokens.Estimate(question), tokens.Estimate(contextBlock))

	messages := BuildMessages(SystemPrompt, chatHistory, contextBlock, question, UserTemplate)

	resp, err := p.completer.Chat(ctx, messages, llm.WithObserver(tracker))
	if err != nil {
		return nil, err
	}

	answer := EnsureSources(resp.Message.Content, docs)

	stats := tracker.Stats()
	logger.Info("RAG answer generated",
		zap.Int("docs", len(docs)),
		zap.Int("total_tokens", stats.TotalTokens),
		zap.Int("answer_length", len(answer)),
	)

	return &Result{
		Answer:     answer,
		Context:    contextBlock,
		Docs:       docs,
		TokenUsage: stats,
	}, nil
}

// BuildMessages assembles the conversation: system prompt, prior chat
// turns in order, then the current question bundled with the context
// block via userTemplate. Turns with unknown roles are dropped.
func BuildMessages(systemPrompt string, chatHistory []ChatTurn, contextBlock, question, userTemplate string) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	for _, turn := range chatHistory {
		switch turn.Role {
		case "user":
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Content})
		case "assistant":
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: turn.Content})
		}
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(userTemplate, contextBlock, question),
	})

	return messages
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
