// Package milvus adapts the Milvus vector database to the retrieval
// layer: one collection of embedded article chunks with their source
// metadata.
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/retriever"
	"github.com/tj-assistant/ml-backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// Chunk is one embedded article fragment as stored in the collection.
type Chunk struct {
	ID           string
	Embedding    []float32
	Content      string
	SourceURL    string
	ArticleTitle string
	Timestamp    time.Time
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "TJ article chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "source_url",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "article_title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	contents := make([]string, len(chunks))
	sourceURLs := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		contents[i] = chunk.Content
		sourceURLs[i] = chunk.SourceURL
		titles[i] = chunk.ArticleTitle
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("source_url", sourceURLs),
		entity.NewColumnVarChar("article_title", titles),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(chunks)))

	return nil
}

// Search implements the vector-store contract of the retrieval layer.
// The embedding column is fetched only when the caller needs candidate
// vectors (MMR reranking).
func (m *Client) Search(ctx context.Context, vector []float32, k int, withVectors bool) ([]retriever.Candidate, error) {
	outputFields := []string{"chunk_id", "content", "source_url", "article_title"}
	if withVectors {
		outputFields = append(outputFields, "embedding")
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	candidates := make([]retriever.Candidate, 0, k)
	for _, sr := range searchResult {
		contentCol := sr.Fields.GetColumn("content")
		urlCol := sr.Fields.GetColumn("source_url")
		titleCol := sr.Fields.GetColumn("article_title")

		var embeddingCol *entity.ColumnFloatVector
		if withVectors {
			embeddingCol, _ = sr.Fields.GetColumn("embedding").(*entity.ColumnFloatVector)
		}

		for i := 0; i < sr.ResultCount; i++ {
			content, _ := contentCol.Get(i)
			sourceURL, _ := urlCol.Get(i)
			title, _ := titleCol.Get(i)

			candidate := retriever.Candidate{
				Document: retriever.Document{
					Content: content.(string),
					Metadata: map[string]string{
						retriever.MetaSourceURL:    sourceURL.(string),
						retriever.MetaArticleTitle: title.(string),
					},
				},
				Score: sr.Scores[i],
			}
			if embeddingCol != nil {
				candidate.Vector = embeddingCol.Data()[i]
			}
			candidates = append(candidates, candidate)
		}
	}

	logger.Info("Vector search completed",
		zap.Int("k", k),
		zap.Int("results", len(candidates)),
		zap.Bool("with_vectors", withVectors),
	)

	return candidates, nil
}
