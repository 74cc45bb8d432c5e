package rag

import (
	"fmt"
	"strings"

	"github.com/tj-assistant/ml-backend/internal/retriever"
)

// FormatDocs renders retrieved documents into the context block sent to
// the model: numbered fragments with title and source link, separated by
// a visible divider.
func FormatDocs(docs []retriever.Document) string {
	if len(docs) == 0 {
		return NoContextPlaceholder
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		title := doc.ArticleTitle()
		if title == "" {
			title = "Без названия"
		}
		parts = append(parts, fmt.Sprintf(
			"### Фрагмент %d: %s\n%s\nИсточник: [%s](%s)",
			i+1, title, doc.Content, title, doc.SourceURL(),
		))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// EnsureSources guarantees the answer ends with a sources section when
// source documents exist. The check is a substring probe for a
// source-indicating token, so an answer that already mentions sources is
// returned unchanged — the function is idempotent. URLs are deduplicated
// in first-seen order; documents without a URL are skipped.
func EnsureSources(answer string, docs []retriever.Document) string {
	lower := strings.ToLower(answer)
	if strings.Contains(lower, "источник") || strings.Contains(lower, "source") {
		return answer
	}

	seen := make(map[string]bool)
	type source struct {
		url   string
		title string
	}
	var sources []source

	for _, doc := range docs {
		url := doc.SourceURL()
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		title := doc.ArticleTitle()
		if title == "" {
			title = "Статья Т-Ж"
		}
		sources = append(sources, source{url: url, title: title})
	}

	if len(sources) == 0 {
		return answer
	}

	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n**Источники:**\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "- [%s](%s)\n", s.title, s.url)
	}
	return b.String()
}
