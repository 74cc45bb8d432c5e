package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/pkg/circuitbreaker"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

// Client talks to an OpenAI-compatible completion and embedding API.
// A circuit breaker fails calls fast when the upstream is persistently
// down; failed calls are never retried here.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	cb             *circuitbreaker.CircuitBreaker
}

func NewClient(apiKey, baseURL, model, embeddingModel string, temperature float32, maxTokens, timeoutSec int) *Client {
	apiConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		apiConfig.BaseURL = baseURL
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	if timeoutSec <= 0 {
		timeoutSec = 60
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         openai.NewClientWithConfig(apiConfig),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		timeout:        time.Duration(timeoutSec) * time.Second,
		cb:             cb,
	}
}

// Chat sends the conversation to the completion service. Tools, when
// bound via WithTools, allow the model to answer with tool-call requests
// instead of (or alongside) text. The observer, when attached, receives
// usage metadata for this single call.
func (c *Client) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (*Response, error) {
	var options ChatOptions
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(options.Tools) > 0 {
		req.Tools = toOpenAITools(options.Tools)
	}

	var result *Response

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty choices in completion response")
		}

		if options.Observer != nil {
			options.Observer.OnCompletion(
				resp.Usage.PromptTokens,
				resp.Usage.CompletionTokens,
				resp.Usage.TotalTokens,
			)
		}

		result = &Response{Message: fromOpenAIMessage(resp.Choices[0].Message)}
		return nil
	})

	if err != nil {
		if options.Observer != nil {
			options.Observer.OnError(err)
		}
		return nil, &CompletionError{Err: err}
	}

	return result, nil
}

// Embed returns the embedding vector for text. Deterministic for
// identical input as long as the upstream model is.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return fmt.Errorf("failed to generate embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}

		embedding = make([]float32, len(resp.Data[0].Embedding))
		copy(embedding, resp.Data[0].Embedding)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// EmbedBatch embeds texts in batches of 100, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate batch embeddings: %w", err)
			}

			for _, data := range resp.Data {
				embedding := make([]float32, len(data.Embedding))
				copy(embedding, data.Embedding)
				embeddings = append(embeddings, embedding)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) Message {
	out := Message{
		Role:    msg.Role,
		Content: msg.Content,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	return out
}
