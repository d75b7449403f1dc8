package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"vivavoce/backend/internal/vector"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) UpsertDocument(ctx context.Context, documentID string, chunks []string, embeddings [][]float32, meta vector.DocumentMeta) error {
	return m.Called(ctx, documentID, chunks, embeddings, meta).Error(0)
}

func (m *MockVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}

type MockDocumentUpdater struct {
	mock.Mock
}

func (m *MockDocumentUpdater) UpdateStatus(ctx context.Context, id, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockDocumentUpdater) UpdateChunkCount(ctx context.Context, id string, count int) error {
	return m.Called(ctx, id, count).Error(0)
}

type MockFailureRecorder struct {
	mock.Mock
}

func (m *MockFailureRecorder) RecordFailure(ctx context.Context, documentID, handler string, payload []byte, message string) error {
	return m.Called(ctx, documentID, handler, payload, message).Error(0)
}
