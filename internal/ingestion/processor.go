// Package ingestion turns raw TJ article HTML into embedded chunks in
// the vector store, with the article and chunk rows mirrored in SQLite.
package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/internal/storage/models"
	"github.com/tj-assistant/ml-backend/internal/storage/sqlite"
	"github.com/tj-assistant/ml-backend/internal/vector/milvus"
	"github.com/tj-assistant/ml-backend/pkg/logger"
	"github.com/tj-assistant/ml-backend/pkg/retry"
	"github.com/tj-assistant/ml-backend/pkg/utils"
)

// BatchEmbedder computes embeddings for a batch of texts in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Processor struct {
	db               *sqlite.Client
	vectorDB         *milvus.Client
	embedder         BatchEmbedder
	chunkSize        int
	overlapSentences int
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, embedder BatchEmbedder, chunkSize int) *Processor {
	if chunkSize < 1 {
		chunkSize = 1000
	}
	return &Processor{
		db:               db,
		vectorDB:         vectorDB,
		embedder:         embedder,
		chunkSize:        chunkSize,
		overlapSentences: 1,
	}
}

// ProcessArticle cleans the HTML, chunks the text on sentence
// boundaries, embeds every chunk and writes both stores. Embedding is
// the only step that retries: it is the one idempotent remote call in
// the path.
func (p *Processor) ProcessArticle(ctx context.Context, url, htmlContent string) (*models.Article, error) {
	logger.Info("Processing article", zap.String("url", url))

	title, text := p.extractContent(htmlContent)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from HTML")
	}

	chunks, err := p.chunkText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk article: %w", err)
	}
	logger.Info("Article chunked", zap.String("url", url), zap.Int("chunks", len(chunks)))

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger.GetLogger()
	embeddings, err := retry.DoWithResult(ctx, retryCfg, func() ([][]float32, error) {
		return p.embedder.EmbedBatch(ctx, chunks)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	now := time.Now()
	articleID := utils.HashString(url)
	article := &models.Article{
		ID:         articleID,
		URL:        url,
		Title:      title,
		RawContent: text,
		ChunkCount: len(chunks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := p.db.InsertArticle(article); err != nil {
		return nil, fmt.Errorf("failed to insert article: %w", err)
	}

	vectorChunks := make([]milvus.Chunk, 0, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", articleID, i)
		vectorChunks = append(vectorChunks, milvus.Chunk{
			ID:           chunkID,
			Embedding:    embeddings[i],
			Content:      chunkText,
			SourceURL:    url,
			ArticleTitle: title,
			Timestamp:    now,
		})

		dbChunk := &models.ArticleChunk{
			ID:         chunkID,
			ArticleID:  articleID,
			ChunkIndex: i,
			Text:       chunkText,
			CreatedAt:  now,
		}
		if err := p.db.InsertChunk(dbChunk); err != nil {
			logger.Warn("Failed to mirror chunk in SQLite",
				zap.String("chunk_id", chunkID),
				zap.Error(err),
			)
		}
	}

	if err := p.vectorDB.Insert(ctx, vectorChunks); err != nil {
		return nil, fmt.Errorf("failed to insert into vector DB: %w", err)
	}

	metrics.ArticlesIngested.Inc()
	logger.Info("Article processed",
		zap.String("article_id", articleID),
		zap.String("title", title),
		zap.Int("chunks", len(vectorChunks)),
	)

	return article, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// extractContent strips boilerplate elements and returns the article
// title and its plain text body.
func (p *Processor) extractContent(html string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find("script, style, nav, footer, header, aside, form").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	return title, text
}

// chunkText groups sentences into chunks of roughly chunkSize characters
// with a one-sentence overlap, so no chunk cuts mid-sentence.
func (p *Processor) chunkText(text string) ([]string, error) {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, err
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return nil, fmt.Errorf("no sentences found")
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		s := strings.TrimSpace(sentence.Text)
		if s == "" {
			continue
		}

		if currentLen+len(s) > p.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			overlapStart := len(current) - p.overlapSentences
			if overlapStart < 0 {
				overlapStart = 0
			}
			current = append([]string(nil), current[overlapStart:]...)
			currentLen = 0
			for _, kept := range current {
				currentLen += len(kept) + 1
			}
		}

		current = append(current, s)
		currentLen += len(s) + 1
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks, nil
}
