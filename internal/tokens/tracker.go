package tokens

import (
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/pkg/logger"
)

// UsageStats is the aggregated token accounting for one logical request.
// QueryTokens and ContextTokens are estimated once at request start; the
// remaining counters accumulate across every completion call made while
// serving the request.
type UsageStats struct {
	QueryTokens        int `json:"query_tokens"`
	ContextTokens      int `json:"context_tokens"`
	PromptTokens       int `json:"prompt_tokens"`
	CompletionTokens   int `json:"completion_tokens"`
	TotalTokens        int `json:"total_tokens"`
	SuccessfulRequests int `json:"successful_requests"`
}

// Tracker observes completion calls for a single request. It is owned by
// that request's call stack and is not safe for use across requests.
type Tracker struct {
	queryTokens        int
	contextTokens      int
	promptTokens       int
	completionTokens   int
	totalTokens        int
	successfulRequests int
}

func NewTracker(queryTokens, contextTokens int) *Tracker {
	return &Tracker{
		queryTokens:   queryTokens,
		contextTokens: contextTokens,
	}
}

// OnCompletion records one successful completion call. When the service
// does not report a total, it is derived from prompt+completion.
func (t *Tracker) OnCompletion(promptTokens, completionTokens, totalTokens int) {
	if totalTokens == 0 && (promptTokens > 0 || completionTokens > 0) {
		totalTokens = promptTokens + completionTokens
	}

	t.promptTokens += promptTokens
	t.completionTokens += completionTokens
	t.totalTokens += totalTokens
	t.successfulRequests++

	logger.Debug("LLM token usage recorded",
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
		zap.Int("total_tokens", totalTokens),
		zap.Int("request_number", t.successfulRequests),
	)
}

// OnError is called when a completion call fails. Counters are left
// untouched; the failure is only logged.
func (t *Tracker) OnError(err error) {
	logger.Warn("LLM call failed", zap.Error(err))
}

func (t *Tracker) Stats() UsageStats {
	return UsageStats{
		QueryTokens:        t.queryTokens,
		ContextTokens:      t.contextTokens,
		PromptTokens:       t.promptTokens,
		CompletionTokens:   t.completionTokens,
		TotalTokens:        t.totalTokens,
		SuccessfulRequests: t.successfulRequests,
	}
}

// Reset zeroes the call-derived counters. The request-level query and
// context estimates set at construction are preserved.
func (t *Tracker) Reset() {
	t.promptTokens = 0
	t.completionTokens = 0
	t.totalTokens = 0
	t.successfulRequests = 0
}
