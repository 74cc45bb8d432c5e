package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tj-assistant/ml-backend/internal/agent"
	"github.com/tj-assistant/ml-backend/internal/evaluation"
	"github.com/tj-assistant/ml-backend/internal/llm"
	"github.com/tj-assistant/ml-backend/internal/rag"
	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/internal/storage/sqlite"
	"github.com/tj-assistant/ml-backend/internal/tools"
)

type fakeSearcher struct {
	docs []retriever.Document
}

func (f *fakeSearcher) SearchMMR(_ context.Context, _ string, _, _ int) ([]retriever.Document, error) {
	return f.docs, nil
}

type fakeCompleter struct {
	answer string
}

func (f *fakeCompleter) Chat(_ context.Context, _ []llm.Message, opts ...llm.ChatOption) (*llm.Response, error) {
	var options llm.ChatOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Observer != nil {
		options.Observer.OnCompletion(10, 5, 15)
	}
	return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: f.answer}}, nil
}

func newTestDB(t *testing.T) *sqlite.Client {
	t.Helper()
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())
	return db
}

func newRAGApp(t *testing.T, searcher *fakeSearcher, completer *fakeCompleter) (*fiber.App, *sqlite.Client) {
	t.Helper()
	db := newTestDB(t)
	registry := tools.NewRegistry(searcher)
	a := agent.New(searcher, completer, registry, 4)
	handler := NewRAGHandler(a, db, 5)

	app := fiber.New()
	app.Post("/api/v1/rag/query", handler.HandleQuery)
	app.Get("/api/v1/query/history", handler.GetQueryHistory)
	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp.StatusCode, parsed
}

func TestHandleQuery(t *testing.T) {
	searcher := &fakeSearcher{docs: []retriever.Document{
		{
			Content: "ИИС — счёт.",
			Metadata: map[string]string{
				retriever.MetaSourceURL:    "https://journal.tinkoff.ru/iis/",
				retriever.MetaArticleTitle: "Про ИИС",
			},
		},
	}}
	app, db := newRAGApp(t, searcher, &fakeCompleter{answer: "ИИС — это счёт с льготами."})

	status, body := doJSON(t, app, "POST", "/api/v1/rag/query", `{"question": "Что такое ИИС?"}`)
	require.Equal(t, fiber.StatusOK, status)

	assert.Contains(t, body["answer"].(string), "ИИС — это счёт с льготами.")
	assert.Contains(t, body["answer"].(string), "**Источники:**")
	assert.EqualValues(t, 0, body["agent_iterations"])

	sources := body["sources"].([]interface{})
	require.Len(t, sources, 1)
	meta := sources[0].(map[string]interface{})["metadata"].(map[string]interface{})
	assert.Equal(t, "https://journal.tinkoff.ru/iis/", meta["source_url"])

	usage := body["token_usage"].(map[string]interface{})
	assert.EqualValues(t, 15, usage["total_tokens"])
	assert.EqualValues(t, 1, usage["successful_requests"])

	// answered query lands in history
	records, err := db.GetQueryHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Что такое ИИС?", records[0].Question)
}

func TestHandleQueryValidation(t *testing.T) {
	app, _ := newRAGApp(t, &fakeSearcher{}, &fakeCompleter{answer: "x"})

	status, body := doJSON(t, app, "POST", "/api/v1/rag/query", `{"question": ""}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Question is required", body["error"])

	status, _ = doJSON(t, app, "POST", "/api/v1/rag/query", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestQueryHistoryEmpty(t *testing.T) {
	app, _ := newRAGApp(t, &fakeSearcher{}, &fakeCompleter{answer: "x"})

	status, body := doJSON(t, app, "GET", "/api/v1/query/history", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["history"])
}

type staticAnswerer struct{}

func (staticAnswerer) Query(_ context.Context, _ string, _ int, _ []rag.ChatTurn) (*rag.Result, error) {
	return &rag.Result{Answer: "ответ"}, nil
}

func newEvalApp(t *testing.T) *fiber.App {
	t.Helper()
	db := newTestDB(t)
	pipeline := evaluation.NewPipeline(db, staticAnswerer{}, filepath.Join(t.TempDir(), "missing.json"), 5)
	handler := NewEvalHandler(pipeline)

	app := fiber.New()
	app.Post("/api/v1/eval/run", handler.HandleCreateRun)
	app.Get("/api/v1/eval/status/:run_id", handler.HandleGetStatus)
	app.Get("/api/v1/eval/report/:run_id", handler.HandleGetReport)
	return app
}

func TestEvalRunNotFound(t *testing.T) {
	app := newEvalApp(t)

	status, body := doJSON(t, app, "GET", "/api/v1/eval/status/missing-id", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Run not found", body["error"])

	status, _ = doJSON(t, app, "GET", "/api/v1/eval/report/missing-id", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestEvalCreateRunReturnsRunning(t *testing.T) {
	app := newEvalApp(t)

	status, body := doJSON(t, app, "POST", "/api/v1/eval/run", `{"run_name": "smoke"}`)
	require.Equal(t, fiber.StatusAccepted, status)
	assert.NotEmpty(t, body["run_id"])
	assert.Equal(t, "running", body["status"])
}
