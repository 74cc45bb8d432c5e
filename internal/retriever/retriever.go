package retriever

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/pkg/logger"
)

// Relevance-leaning diversity tradeoff for MMR: 1.0 is pure relevance,
// 0.0 is pure diversity.
const mmrLambda = 0.7

const defaultFetchKMultiplier = 3

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	// Search returns the k nearest candidates for the query vector,
	// including stored vectors when withVectors is set.
	Search(ctx context.Context, vector []float32, k int, withVectors bool) ([]Candidate, error)
}

// Retriever wraps the embedding service and the vector store behind the
// two search operations the pipelines need.
type Retriever struct {
	store            VectorStore
	embedder         Embedder
	fetchKMultiplier int
}

func New(store VectorStore, embedder Embedder, fetchKMultiplier int) *Retriever {
	if fetchKMultiplier <= 0 {
		fetchKMultiplier = defaultFetchKMultiplier
	}
	return &Retriever{
		store:            store,
		embedder:         embedder,
		fetchKMultiplier: fetchKMultiplier,
	}
}

// SearchSimilar returns the topK nearest documents by plain similarity.
func (r *Retriever) SearchSimilar(ctx context.Context, query string, topK int) ([]Document, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	candidates, err := r.store.Search(ctx, vector, topK, false)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	docs := make([]Document, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, c.Document)
	}
	return docs, nil
}

// SearchMMR returns topK documents selected for maximal marginal
// relevance: the fetchK nearest candidates are reranked so that each pick
// maximizes relevance to the query while staying dissimilar to what was
// already picked. This keeps several chunks of one article from crowding
// out the context. fetchK <= 0 defaults to topK times the configured
// multiplier.
func (r *Retriever) SearchMMR(ctx context.Context, query string, topK, fetchK int) ([]Document, error) {
	if fetchK <= 0 {
		fetchK = topK * r.fetchKMultiplier
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	candidates, err := r.store.Search(ctx, vector, fetchK, true)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	selected := maximalMarginalRelevance(vector, candidates, topK)

	logger.Debug("MMR search completed",
		zap.Int("top_k", topK),
		zap.Int("fetch_k", fetchK),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)),
	)

	return selected, nil
}

func maximalMarginalRelevance(queryVector []float32, candidates []Candidate, topK int) []Document {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosineSimilarity(queryVector, c.Vector)
	}

	picked := make([]int, 0, topK)
	used := make([]bool, len(candidates))

	for len(picked) < topK && len(picked) < len(candidates) {
		best := -1
		bestScore := math.Inf(-1)

		for i := range candidates {
			if used[i] {
				continue
			}

			maxSimToPicked := 0.0
			for _, j := range picked {
				sim := cosineSimilarity(candidates[i].Vector, candidates[j].Vector)
				if sim > maxSimToPicked {
					maxSimToPicked = sim
				}
			}

			score := mmrLambda*relevance[i] - (1-mmrLambda)*maxSimToPicked
			if score > bestScore {
				bestScore = score
				best = i
			}
		}

		if best < 0 {
			break
		}
		used[best] = true
		picked = append(picked, best)
	}

	docs := make([]Document, 0, len(picked))
	for _, i := range picked {
		docs = append(docs, candidates[i].Document)
	}
	return docs
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
