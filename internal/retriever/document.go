package retriever

// Metadata keys every indexed chunk carries.
const (
	MetaSourceURL    = "source_url"
	MetaArticleTitle = "article_title"
)

// Document is one retrieved context unit. It is owned by the caller of a
// search operation and lives for a single request.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (d Document) SourceURL() string {
	return d.Metadata[MetaSourceURL]
}

func (d Document) ArticleTitle() string {
	return d.Metadata[MetaArticleTitle]
}

// Candidate is a scored search hit from the vector store. Vector is
// populated only when the search was asked to return stored vectors.
type Candidate struct {
	Document Document
	Vector   []float32
	Score    float32
}

// RetrievalError marks a vector-store or embedding-service failure. The
// retriever never retries; the error propagates to the caller.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return "retrieval: " + e.Err.Error()
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
