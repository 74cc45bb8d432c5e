package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/internal/tools"
)

type fakeSearcher struct {
	docs []retriever.Document
	err  error
}

func (f *fakeSearcher) SearchMMR(_ context.Context, _ string, _, _ int) ([]retriever.Document, error) {
	return f.docs, f.err
}

type chatCall struct {
	messages []llm.Message
	opts     llm.ChatOptions
}

// scriptedCompleter replays a fixed sequence of responses/errors and
// records every call it receives.
type scriptedCompleter struct {
	script []func() (*llm.Response, error)
	calls  []chatCall
}

func (s *scriptedCompleter) Chat(_ context.Context, messages []llm.Message, opts ...llm.ChatOption) (*llm.Response, error) {
	var options llm.ChatOptions
	for _, opt := range opts {
		opt(&options)
	}
	s.calls = append(s.calls, chatCall{
		messages: append([]llm.Message(nil), messages...),
		opts:     options,
	})

	idx := len(s.calls) - 1
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	resp, err := s.script[idx]()
	if err != nil {
		if options.Observer != nil {
			options.Observer.OnError(err)
		}
		return nil, err
	}
	if options.Observer != nil {
		options.Observer.OnCompletion(10, 5, 15)
	}
	return resp, nil
}

func textResponse(content string) func() (*llm.Response, error) {
	return func() (*llm.Response, error) {
		return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: content}}, nil
	}
}

func toolCallResponse(calls ...llm.ToolCall) func() (*llm.Response, error) {
	return func() (*llm.Response, error) {
		return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}}, nil
	}
}

func failure(err error) func() (*llm.Response, error) {
	return func() (*llm.Response, error) { return nil, err }
}

type stubToolSearcher struct{}

func (stubToolSearcher) SearchMMR(_ context.Context, _ string, _, _ int) ([]retriever.Document, error) {
	return nil, nil
}

func doc(content, url, title string) retriever.Document {
	return retriever.Document{
		Content: content,
		Metadata: map[string]string{
			retriever.MetaSourceURL:    url,
			retriever.MetaArticleTitle: title,
		},
	}
}

func newTestAgent(searcher *fakeSearcher, completer *scriptedCompleter, maxIterations int) *Agent {
	registry := tools.NewRegistry(stubToolSearcher{})
	return New(searcher, completer, registry, maxIterations)
}

func TestProcessDirectAnswer(t *testing.T) {
	searcher := &fakeSearcher{docs: []retriever.Document{
		doc("ИИС — счёт.", "https://journal.tinkoff.ru/u1/", "Про ИИС"),
		doc("Вычеты.", "https://journal.tinkoff.ru/u2/", "Вычеты"),
		doc("Лимиты.", "https://journal.tinkoff.ru/u3/", "Лимиты"),
	}}
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		textResponse("ИИС — это инвестиционный счёт."),
	}}

	res, err := newTestAgent(searcher, completer, 4).Process(context.Background(), "Что такое ИИС?", 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Iterations)
	assert.True(t, strings.HasPrefix(res.Answer, "ИИС — это инвестиционный счёт."))
	assert.Contains(t, res.Answer, "**Источники:**")
	assert.Contains(t, res.Answer, "https://journal.tinkoff.ru/u1/")
	assert.Contains(t, res.Answer, "https://journal.tinkoff.ru/u2/")
	assert.Contains(t, res.Answer, "https://journal.tinkoff.ru/u3/")

	require.Len(t, completer.calls, 1)
	assert.NotEmpty(t, completer.calls[0].opts.Tools, "first call must bind tools")
	first := completer.calls[0].messages
	assert.Equal(t, llm.RoleSystem, first[0].Role)
	assert.Contains(t, first[len(first)-1].Content, "Начальный контекст из базы знаний:")
	assert.Contains(t, first[len(first)-1].Content, "Что такое ИИС?")
}

func TestProcessToolRound(t *testing.T) {
	searcher := &fakeSearcher{docs: []retriever.Document{
		doc("Налог 13%.", "https://journal.tinkoff.ru/u1/", "Налоги"),
	}}
	call := llm.ToolCall{
		ID:        "call_1",
		Name:      "calculate",
		Arguments: json.RawMessage(`{"expression":"1000*0.13"}`),
	}
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		toolCallResponse(call),
		textResponse("Налог составит 130 рублей."),
	}}

	res, err := newTestAgent(searcher, completer, 4).Process(context.Background(), "Сколько налога с 1000?", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.Contains(t, res.Answer, "130 рублей")

	require.Len(t, completer.calls, 2)
	second := completer.calls[1].messages
	// assistant tool request then its result, correlated by id
	toolMsg := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, "130")
	assistantMsg := second[len(second)-2]
	assert.Equal(t, llm.RoleAssistant, assistantMsg.Role)
	require.Len(t, assistantMsg.ToolCalls, 1)
}

func TestProcessToolResultOrder(t *testing.T) {
	searcher := &fakeSearcher{}
	first := llm.ToolCall{ID: "a", Name: "calculate", Arguments: json.RawMessage(`{"expression":"1+1"}`)}
	second := llm.ToolCall{ID: "b", Name: "get_current_date", Arguments: json.RawMessage(`{}`)}
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		toolCallResponse(first, second),
		textResponse("Готово."),
	}}

	_, err := newTestAgent(searcher, completer, 4).Process(context.Background(), "вопрос", 5, nil)
	require.NoError(t, err)

	msgs := completer.calls[1].messages
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, "a", msgs[len(msgs)-2].ToolCallID)
	assert.Equal(t, "b", msgs[len(msgs)-1].ToolCallID)
}

func TestProcessIterationCap(t *testing.T) {
	searcher := &fakeSearcher{}
	call := llm.ToolCall{ID: "loop", Name: "get_current_date", Arguments: json.RawMessage(`{}`)}
	maxIterations := 2
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		toolCallResponse(call),
		toolCallResponse(call),
		textResponse("Финальный ответ."),
	}}

	res, err := newTestAgent(searcher, completer, maxIterations).Process(context.Background(), "вопрос", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, maxIterations, res.Iterations)
	assert.Contains(t, res.Answer, "Финальный ответ.")

	require.Len(t, completer.calls, maxIterations+1)
	for i := 0; i < maxIterations; i++ {
		assert.NotEmpty(t, completer.calls[i].opts.Tools)
	}
	final := completer.calls[maxIterations]
	assert.Empty(t, final.opts.Tools, "forced final answer must not bind tools")
	assert.Equal(t, FinalAnswerInstruction, final.messages[len(final.messages)-1].Content)
}

func TestProcessFallback(t *testing.T) {
	searcher := &fakeSearcher{docs: []retriever.Document{
		doc("a", "https://journal.tinkoff.ru/u1/", "Статья"),
	}}
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		failure(errors.New("tool schema unsupported")),
		textResponse("Ответ без инструментов."),
	}}

	res, err := newTestAgent(searcher, completer, 4).Process(context.Background(), "вопрос", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Iterations)
	assert.Contains(t, res.Answer, "Ответ без инструментов.")
	assert.Contains(t, res.Answer, "**Источники:**")

	require.Len(t, completer.calls, 2)
	assert.Empty(t, completer.calls[1].opts.Tools)
	// fallback reuses the initial conversation, not the failed loop's
	assert.Equal(t, len(completer.calls[0].messages), len(completer.calls[1].messages))
}

func TestProcessFallbackAlsoFails(t *testing.T) {
	wantErr := errors.New("llm down")
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		failure(wantErr),
	}}

	_, err := newTestAgent(&fakeSearcher{}, completer, 4).Process(context.Background(), "вопрос", 5, nil)
	assert.ErrorIs(t, err, wantErr)
	assert.Len(t, completer.calls, 2)
}

func TestProcessRetrievalErrorFatal(t *testing.T) {
	wantErr := &retriever.RetrievalError{Err: errors.New("milvus unreachable")}
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		textResponse("не должно вызываться"),
	}}

	_, err := newTestAgent(&fakeSearcher{err: wantErr}, completer, 4).Process(context.Background(), "вопрос", 5, nil)
	require.Error(t, err)
	var re *retriever.RetrievalError
	assert.ErrorAs(t, err, &re)
	assert.Empty(t, completer.calls)
}

func TestProcessSharedTracker(t *testing.T) {
	searcher := &fakeSearcher{}
	call := llm.ToolCall{ID: "x", Name: "get_current_date", Arguments: json.RawMessage(`{}`)}
	completer := &scriptedCompleter{script: []func() (*llm.Response, error){
		toolCallResponse(call),
		textResponse("Ответ."),
	}}

	res, err := newTestAgent(searcher, completer, 4).Process(context.Background(), "вопрос", 5, nil)
	require.NoError(t, err)

	// both completions accumulate into the one request-scoped tracker
	assert.Equal(t, 2, res.TokenUsage.SuccessfulRequests)
	assert.Equal(t, 30, res.TokenUsage.TotalTokens)
}
