package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/retriever"
)

// Knowledge-base searches inside the tool loop use a fixed fan-out.
const searchTopK = 4

type Searcher interface {
	SearchMMR(ctx context.Context, query string, topK, fetchK int) ([]retriever.Document, error)
}

type SearchKnowledgeBase struct {
	searcher Searcher
}

func NewSearchKnowledgeBase(searcher Searcher) *SearchKnowledgeBase {
	return &SearchKnowledgeBase{searcher: searcher}
}

func (t *SearchKnowledgeBase) Name() string {
	return "search_knowledge_base"
}

func (t *SearchKnowledgeBase) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: t.Name(),
		Description: "Поиск статей в базе знаний Тинькофф Журнала по заданному запросу. " +
			"Используй этот инструмент когда: нужна дополнительная информация по теме вопроса; " +
			"вопрос затрагивает несколько тем и нужен контекст по каждой; " +
			"нужно уточнить или проверить факты из имеющегося контекста; " +
			"пользователь задаёт вопрос о конкретной статье или теме.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Поисковый запрос на русском языке. Формулируй кратко и по существу.",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *SearchKnowledgeBase) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	docs, err := t.searcher.SearchMMR(ctx, params.Query, searchTopK, 0)
	if err != nil {
		return "", err
	}

	return formatSearchResults(docs), nil
}

func formatSearchResults(docs []retriever.Document) string {
	if len(docs) == 0 {
		return "Результатов не найдено."
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		title := doc.ArticleTitle()
		if title == "" {
			title = "Без названия"
		}
		parts = append(parts, fmt.Sprintf(
			"--- Результат %d: %s ---\n%s\nИсточник: %s",
			i+1, title, doc.Content, doc.SourceURL(),
		))
	}
	return strings.Join(parts, "\n\n")
}
