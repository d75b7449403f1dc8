package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"vivavoce/backend/internal/settings"
)

const DefaultBatchSize = 20

// EmbeddingError marks a failure of the external embedding collaborator.
// Batch is the zero-based index of the batch that failed.
type EmbeddingError struct {
	Batch int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d failed: %v", e.Batch, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// DynamicEmbedder resolves the API key and model from runtime settings on
// every call, rebuilding the client only when the key changes.
type DynamicEmbedder struct {
	settingsSvc *settings.Service
	batchSize   int
	clientOpts  []option.RequestOption

	mu         sync.RWMutex
	client     openai.Client
	currentKey string
	haveClient bool
}

func NewDynamicEmbedder(svc *settings.Service, opts ...option.RequestOption) *DynamicEmbedder {
	return &DynamicEmbedder{
		settingsSvc: svc,
		batchSize:   DefaultBatchSize,
		clientOpts:  opts,
	}
}

func (e *DynamicEmbedder) SetBatchSize(n int) {
	if n > 0 {
		e.batchSize = n
	}
}

// EmbedBatch converts texts into vectors, one per input, preserving input
// order across batch boundaries. The call is atomic from the caller's
// perspective: any batch failure fails the whole call and partial progress is
// discarded.
func (e *DynamicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	s, err := e.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if s.OpenAIAPIKey == "" {
		return nil, &EmbeddingError{Err: fmt.Errorf("openai api key not configured")}
	}

	client := e.getClient(s.OpenAIAPIKey)

	vectors := make([][]float32, 0, len(texts))
	for batch := 0; batch*e.batchSize < len(texts); batch++ {
		lo := batch * e.batchSize
		hi := lo + e.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}

		part, err := embedOnce(ctx, client, s.EmbeddingModel, texts[lo:hi])
		if err != nil {
			return nil, &EmbeddingError{Batch: batch, Err: err}
		}
		vectors = append(vectors, part...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *DynamicEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, &EmbeddingError{Err: fmt.Errorf("expected 1 vector, got %d", len(vectors))}
	}
	return vectors[0], nil
}

func embedOnce(ctx context.Context, client openai.Client, model string, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}

	resp, err := client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API reports the input index per embedding; place vectors by it
	// rather than trusting response ordering.
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", idx)
		}
		vec := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vec[i] = float32(v)
		}
		vectors[idx] = vec
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return vectors, nil
}

func (e *DynamicEmbedder) getClient(key string) openai.Client {
	e.mu.RLock()
	if e.haveClient && e.currentKey == key {
		defer e.mu.RUnlock()
		return e.client
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.haveClient && e.currentKey == key {
		return e.client
	}

	opts := append([]option.RequestOption{option.WithAPIKey(key)}, e.clientOpts...)
	e.client = openai.NewClient(opts...)
	e.currentKey = key
	e.haveClient = true
	return e.client
}
