package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vivavoce/backend/internal/middleware"
)

const (
	DefaultTopK      = 3
	DefaultThreshold = 0.7

	blockSeparator = "\n\n---\n\n"
)

// Result is one retrieved chunk, ranked by ascending distance.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	Ordinal    int     `json:"ordinal"`
	Distance   float64 `json:"distance"`
	Score      float64 `json:"score"`
}

// Context is the assembled retrieval outcome for one query. Err is set when
// retrieval failed; callers treat that the same as no context.
type Context struct {
	HasContext bool     `json:"has_context"`
	Context    string   `json:"context"`
	Sources    []string `json:"sources"`
	Results    []Result `json:"results"`
	Err        string   `json:"error,omitempty"`
}

type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type VectorStore interface {
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, logger: l}
}

// RetrieveContext embeds the query, fetches the topK nearest chunks and
// assembles a labelled context block. It never fails: embedding or index
// errors degrade to an empty Context carrying the error message, since
// retrieval is a best-effort enhancement to the surrounding conversation.
func (s *Service) RetrieveContext(ctx context.Context, query string, topK int) Context {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "query embedding failed, continuing without context", "error", err)
		return Context{Err: err.Error()}
	}

	results, err := s.store.Query(ctx, vec, topK)
	if err != nil {
		slog.WarnContext(ctx, "index query failed, continuing without context", "error", err)
		return Context{Err: err.Error()}
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			NumResults:    len(results),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}

	if len(results) == 0 {
		return Context{}
	}

	for i := range results {
		// Cosine distance lives in [0,2], so scores land in [-1,1].
		results[i].Score = 1 - results[i].Distance
	}

	var blocks []string
	var sources []string
	seen := make(map[string]bool)
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[Source %d: %s]\n%s", i+1, r.FileName, r.Text))
		if !seen[r.FileName] {
			seen[r.FileName] = true
			sources = append(sources, r.FileName)
		}
	}

	return Context{
		HasContext: true,
		Context:    strings.Join(blocks, blockSeparator),
		Sources:    sources,
		Results:    results,
	}
}

// HasRelevantMaterials reports whether the single best match clears the
// relevance threshold. Any failure or empty result reads as false.
func (s *Service) HasRelevantMaterials(ctx context.Context, query string, threshold float64) bool {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	rc := s.RetrieveContext(ctx, query, 1)
	if !rc.HasContext || len(rc.Results) == 0 {
		return false
	}
	return rc.Results[0].Score >= threshold
}

// FormatContextForAI renders a prompt-ready block: header, source list, the
// joined context and a fixed instruction footer. Empty when there is no
// context.
func FormatContextForAI(rc Context) string {
	if !rc.HasContext {
		return ""
	}

	var b strings.Builder
	b.WriteString("REFERENCE MATERIALS\n")
	b.WriteString("The candidate has uploaded the following study materials: ")
	b.WriteString(strings.Join(rc.Sources, ", "))
	b.WriteString("\n\n")
	b.WriteString(rc.Context)
	b.WriteString("\n\n")
	b.WriteString("When relevant, draw questions and follow-ups from these materials and cite the source by name. Blend them with your general expertise; do not limit the exam to the materials alone.")
	return b.String()
}
