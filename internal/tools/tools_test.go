package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/retriever"
)

type stubSearcher struct {
	docs []retriever.Document
	err  error

	lastQuery string
	lastTopK  int
}

func (s *stubSearcher) SearchMMR(ctx context.Context, query string, topK, fetchK int) ([]retriever.Document, error) {
	s.lastQuery = query
	s.lastTopK = topK
	return s.docs, s.err
}

func TestRegistrySpecs(t *testing.T) {
	reg := NewRegistry(&stubSearcher{})

	specs := reg.Specs()
	require.Len(t, specs, 3)

	names := []string{specs[0].Name, specs[1].Name, specs[2].Name}
	assert.Contains(t, names, "search_knowledge_base")
	assert.Contains(t, names, "calculate")
	assert.Contains(t, names, "get_current_date")
}

func TestDispatchUnknownTool(t *testing.T) {
	reg := NewRegistry(&stubSearcher{})

	result := reg.Dispatch(context.Background(), llm.ToolCall{
		ID:        "call_1",
		Name:      "delete_all_files",
		Arguments: json.RawMessage(`{}`),
	})

	assert.Equal(t, "Инструмент 'delete_all_files' не найден.", result)
}

func TestDispatchCalculate(t *testing.T) {
	reg := NewRegistry(&stubSearcher{})

	result := reg.Dispatch(context.Background(), llm.ToolCall{
		ID:        "call_1",
		Name:      "calculate",
		Arguments: json.RawMessage(`{"expression": "1000*0.13"}`),
	})

	assert.Equal(t, "Результат: 1000*0.13 = 130", result)
}

func TestDispatchCalculateDivisionByZero(t *testing.T) {
	reg := NewRegistry(&stubSearcher{})

	result := reg.Dispatch(context.Background(), llm.ToolCall{
		Name:      "calculate",
		Arguments: json.RawMessage(`{"expression": "1/0"}`),
	})

	assert.Contains(t, result, "Ошибка вычисления")
	assert.Contains(t, result, "деление на ноль")
}

func TestSearchToolFormatsResults(t *testing.T) {
	searcher := &stubSearcher{docs: []retriever.Document{
		{
			Content: "ИИС — индивидуальный инвестиционный счёт.",
			Metadata: map[string]string{
				retriever.MetaSourceURL:    "https://journal.tinkoff.ru/iis/",
				retriever.MetaArticleTitle: "Что такое ИИС",
			},
		},
	}}
	reg := NewRegistry(searcher)

	result := reg.Dispatch(context.Background(), llm.ToolCall{
		Name:      "search_knowledge_base",
		Arguments: json.RawMessage(`{"query": "что такое ИИС"}`),
	})

	assert.Equal(t, "что такое ИИС", searcher.lastQuery)
	assert.Equal(t, searchTopK, searcher.lastTopK)
	assert.Contains(t, result, "--- Результат 1: Что такое ИИС ---")
	assert.Contains(t, result, "Источник: https://journal.tinkoff.ru/iis/")
}

func TestSearchToolEmptyResults(t *testing.T) {
	reg := NewRegistry(&stubSearcher{})

	result := reg.Dispatch(context.Background(), llm.ToolCall{
		Name:      "search_knowledge_base",
		Arguments: json.RawMessage(`{"query": "несуществующая тема"}`),
	})

	assert.Equal(t, "Результатов не найдено.", result)
}

func TestSearchToolFailureBecomesText(t *testing.T) {
	reg := NewRegistry(&stubSearcher{err: errors.New("qdrant unreachable")})

	result := reg.Dispatch(context.Background(), llm.ToolCall{
		Name:      "search_knowledge_base",
		Arguments: json.RawMessage(`{"query": "налоги"}`),
	})

	assert.Contains(t, result, "Ошибка выполнения инструмента 'search_knowledge_base'")
}

func TestGetCurrentDate(t *testing.T) {
	tool := NewGetCurrentDate()
	tool.now = func() time.Time {
		return time.Date(2025, 3, 7, 15, 4, 0, 0, time.UTC)
	}

	result, err := tool.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Текущая дата и время (UTC): 07.03.2025 15:04. День недели: Friday.", result)
}
