package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "vivavoce/backend/internal/adapter/weaviate"
	"vivavoce/backend/internal/vector"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc_1_0", adapter.ChunkID("doc_1", 0))
	assert.Equal(t, "doc_1_7", adapter.ChunkID("doc_1", 7))
}

func TestStore_UpsertDocument(t *testing.T) {
	var stored []map[string]interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		assert.Equal(t, "/v1/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		stored = append(stored, body)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": body["id"]})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	meta := vector.DocumentMeta{FileName: "notes.pdf", UploadedAt: time.Now()}

	err := store.UpsertDocument(context.Background(), "doc_1",
		[]string{"first chunk", "second chunk"},
		[][]float32{{0.1, 0.2}, {0.3, 0.4}},
		meta,
	)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	first := stored[0]["properties"].(map[string]interface{})
	assert.Equal(t, "first chunk", first["content"])
	assert.Equal(t, "doc_1_0", first["chunkId"])
	assert.Equal(t, "doc_1", first["documentId"])
	assert.Equal(t, "notes.pdf", first["fileName"])
	assert.Equal(t, float64(0), first["ordinal"])
	assert.Equal(t, float64(2), first["totalChunks"])

	second := stored[1]["properties"].(map[string]interface{})
	assert.Equal(t, float64(1), second["ordinal"])

	// Deterministic object ids: the same chunk id always maps to the same
	// Weaviate object id.
	assert.NotEmpty(t, stored[0]["id"])
	assert.NotEqual(t, stored[0]["id"], stored[1]["id"])
}

func TestStore_UpsertDocument_LengthMismatch(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.UpsertDocument(context.Background(), "doc_1",
		[]string{"one"}, [][]float32{{0.1}, {0.2}}, vector.DocumentMeta{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestStore_Query(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)

		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{
							"content":    "closest chunk",
							"chunkId":    "doc_1_2",
							"documentId": "doc_1",
							"fileName":   "notes.pdf",
							"ordinal":    float64(2),
							"_additional": map[string]interface{}{
								"distance": 0.12,
							},
						},
						map[string]interface{}{
							"content":    "farther chunk",
							"chunkId":    "doc_2_0",
							"documentId": "doc_2",
							"fileName":   "slides.md",
							"ordinal":    float64(0),
							"_additional": map[string]interface{}{
								"distance": 0.48,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Query(context.Background(), []float32{0.1, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "closest chunk", results[0].Text)
	assert.Equal(t, "doc_1_2", results[0].ChunkID)
	assert.Equal(t, "doc_1", results[0].DocumentID)
	assert.Equal(t, "notes.pdf", results[0].FileName)
	assert.Equal(t, 2, results[0].Ordinal)
	assert.InDelta(t, 0.12, results[0].Distance, 1e-9)

	// Ranked by ascending distance.
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestStore_Query_NonPositiveK(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		t.Error("no request expected for k <= 0")
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Query(context.Background(), []float32{0.1}, 0)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_Query_Unavailable(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ts.Close() // connection refused

	store := adapter.NewStore(client)
	_, err := store.Query(context.Background(), []float32{0.1}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrIndexUnavailable)
}

func TestStore_DeleteDocument(t *testing.T) {
	var gotWhere map[string]interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if match, ok := body["match"].(map[string]interface{}); ok {
			gotWhere, _ = match["where"].(map[string]interface{})
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{"matches": 3},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeleteDocument(context.Background(), "doc_1")
	require.NoError(t, err)
	require.NotNil(t, gotWhere)
	assert.Equal(t, "doc_1", gotWhere["valueString"])
}

func TestStore_ListDocuments_FirstSeenWins(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{
							"documentId":  "doc_1",
							"fileName":    "notes.pdf",
							"uploadedAt":  "2026-08-01T10:00:00Z",
							"totalChunks": float64(3),
						},
						map[string]interface{}{
							"documentId":  "doc_1",
							"fileName":    "renamed.pdf",
							"uploadedAt":  "2026-08-01T10:00:00Z",
							"totalChunks": float64(3),
						},
						map[string]interface{}{
							"documentId":  "doc_2",
							"fileName":    "slides.md",
							"uploadedAt":  "2026-08-02T09:30:00Z",
							"totalChunks": float64(1),
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	docs, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "doc_1", docs[0].DocumentID)
	assert.Equal(t, "notes.pdf", docs[0].FileName)
	assert.Equal(t, 3, docs[0].TotalChunks)
	assert.Equal(t, "doc_2", docs[1].DocumentID)
}

func TestStore_CountChunks(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"MaterialChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": float64(42)},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestStore_Stats(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		query, _ := body["query"].(string)

		var resp map[string]interface{}
		if strings.Contains(query, "Aggregate") {
			resp = map[string]interface{}{
				"data": map[string]interface{}{
					"Aggregate": map[string]interface{}{
						"MaterialChunk": []interface{}{
							map[string]interface{}{"meta": map[string]interface{}{"count": float64(4)}},
						},
					},
				},
			}
		} else {
			resp = map[string]interface{}{
				"data": map[string]interface{}{
					"Get": map[string]interface{}{
						"MaterialChunk": []interface{}{
							map[string]interface{}{
								"documentId":  "doc_1",
								"fileName":    "notes.pdf",
								"uploadedAt":  "2026-08-01T10:00:00Z",
								"totalChunks": float64(4),
							},
						},
					},
				},
			}
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalChunks)
	assert.Equal(t, 1, stats.TotalDocuments)
	require.Len(t, stats.Documents, 1)
	assert.Equal(t, "notes.pdf", stats.Documents[0].FileName)
}
