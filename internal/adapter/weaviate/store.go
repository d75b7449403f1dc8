package weaviate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"vivavoce/backend/internal/retrieval"
	"vivavoce/backend/internal/vector"
)

// ErrIndexUnavailable marks a failed round trip to the vector storage
// collaborator. The index is a required dependency; callers do not degrade at
// this layer.
var ErrIndexUnavailable = errors.New("vector index unavailable")

const listPageSize = 10000

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}

// ChunkID derives the deterministic chunk identifier for a document ordinal.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}

// objectID maps a chunk id onto a stable Weaviate object UUID, so re-upserting
// the same document id overwrites per chunk id (last writer wins).
func objectID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// UpsertDocument writes one chunk record per (chunk, embedding) pair, tagged
// with the document id, ordinal and totalChunks. Re-upserting without a prior
// delete leaves stale chunks behind when the new chunk count is smaller; the
// ingest worker deletes before re-ingesting.
func (s *Store) UpsertDocument(ctx context.Context, documentID string, chunks []string, embeddings [][]float32, meta vector.DocumentMeta) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	for i, content := range chunks {
		chunkID := ChunkID(documentID, i)
		_, err := s.client.Data().Creator().
			WithClassName(vector.ClassName).
			WithID(objectID(chunkID)).
			WithProperties(map[string]interface{}{
				"content":     content,
				"chunkId":     chunkID,
				"documentId":  documentID,
				"fileName":    meta.FileName,
				"ordinal":     i,
				"totalChunks": len(chunks),
				"uploadedAt":  meta.UploadedAt.Format(time.RFC3339),
			}).
			WithVector(embeddings[i]).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: store chunk %s: %v", ErrIndexUnavailable, chunkID, err)
		}
	}
	return nil
}

// Query returns up to k nearest records by ascending distance, annotated with
// their stored metadata. k <= 0 and an empty index both yield an empty result.
func (s *Store) Query(ctx context.Context, queryVector []float32, k int) ([]retrieval.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "chunkId"},
		{Name: "documentId"},
		{Name: "fileName"},
		{Name: "ordinal"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql error: %v", ErrIndexUnavailable, res.Errors)
	}

	var results []retrieval.Result
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok {
			for _, row := range rows {
				props, ok := row.(map[string]interface{})
				if !ok {
					continue
				}

				result := retrieval.Result{}
				if content, ok := props["content"].(string); ok {
					result.Text = content
				}
				if chunkID, ok := props["chunkId"].(string); ok {
					result.ChunkID = chunkID
				}
				if docID, ok := props["documentId"].(string); ok {
					result.DocumentID = docID
				}
				if fileName, ok := props["fileName"].(string); ok {
					result.FileName = fileName
				}
				if ordinal, ok := props["ordinal"].(float64); ok {
					result.Ordinal = int(ordinal)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if distance, ok := additional["distance"].(float64); ok {
						result.Distance = distance
					}
				}

				results = append(results, result)
			}
		}
	}

	return results, nil
}

// DeleteDocument removes every chunk tagged with the document id. Deleting an
// absent document is a no-op, not an error.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %v", ErrIndexUnavailable, documentID, err)
	}
	return nil
}

// ListDocuments groups chunk metadata into one summary row per document id,
// first seen wins for display fields.
func (s *Store) ListDocuments(ctx context.Context) ([]vector.Document, error) {
	fields := []graphql.Field{
		{Name: "documentId"},
		{Name: "fileName"},
		{Name: "uploadedAt"},
		{Name: "totalChunks"},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithLimit(listPageSize).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql error: %v", ErrIndexUnavailable, res.Errors)
	}

	byID := make(map[string]*vector.Document)
	var order []string

	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok {
			for _, row := range rows {
				props, ok := row.(map[string]interface{})
				if !ok {
					continue
				}
				docID, _ := props["documentId"].(string)
				if docID == "" {
					continue
				}

				if _, exists := byID[docID]; !exists {
					doc := &vector.Document{DocumentID: docID}
					if fileName, ok := props["fileName"].(string); ok {
						doc.FileName = fileName
					}
					if uploadedAt, ok := props["uploadedAt"].(string); ok {
						if ts, err := time.Parse(time.RFC3339, uploadedAt); err == nil {
							doc.UploadedAt = ts
						}
					}
					if total, ok := props["totalChunks"].(float64); ok {
						doc.TotalChunks = int(total)
					}
					byID[docID] = doc
					order = append(order, docID)
				}
			}
		}
	}

	docs := make([]vector.Document, 0, len(order))
	for _, id := range order {
		docs = append(docs, *byID[id])
	}
	return docs, nil
}

// CountChunks returns the total number of chunk records in the index.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("%w: graphql error: %v", ErrIndexUnavailable, res.Errors)
	}

	if agg, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := agg[vector.ClassName].([]interface{}); ok && len(rows) > 0 {
			if props, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := props["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

// Stats aggregates chunk and document counts plus the document list.
func (s *Store) Stats(ctx context.Context) (*vector.Stats, error) {
	total, err := s.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return &vector.Stats{
		TotalChunks:    total,
		TotalDocuments: len(docs),
		Documents:      docs,
	}, nil
}
