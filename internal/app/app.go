package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"vivavoce/backend/features/job"
	"vivavoce/backend/features/material"
	"vivavoce/backend/features/search"
	sessionfeature "vivavoce/backend/features/session"
	"vivavoce/backend/features/stats"
	"vivavoce/backend/internal/adapter/openai"
	"vivavoce/backend/internal/adapter/realtime"
	"vivavoce/backend/internal/config"
	"vivavoce/backend/internal/middleware"
	"vivavoce/backend/internal/retrieval"
	"vivavoce/backend/internal/session"
	"vivavoce/backend/internal/settings"
	"vivavoce/backend/internal/vector"
	"vivavoce/backend/internal/worker"
)

type Database interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// VectorStore is everything the app needs from the index adapter. The
// concrete store satisfies this; tests substitute fakes.
type VectorStore interface {
	UpsertDocument(ctx context.Context, documentID string, chunks []string, embeddings [][]float32, meta vector.DocumentMeta) error
	DeleteDocument(ctx context.Context, documentID string) error
	Query(ctx context.Context, vec []float32, k int) ([]retrieval.Result, error)
	Stats(ctx context.Context) (*vector.Stats, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	MaterialService *material.Service
	IngestConsumer  *worker.IngestConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	vecStore VectorStore,
	taskPub TaskPublisher,
) (*App, error) {
	// Repositories need the concrete handle; the interface in the signature
	// keeps construction mockable with sqlmock.
	sqlDB := db.(*sql.DB)

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(sqlDB)
	settingsService := settings.NewService(settingsRepo)

	// Seed the API key from the environment when the stored settings have none.
	if cfg.OpenAIAPIKey != "" {
		ctx := context.Background()
		set, err := settingsService.Get(ctx)
		if err == nil {
			if set.OpenAIAPIKey == "" {
				set.OpenAIAPIKey = cfg.OpenAIAPIKey
				if err := settingsService.Update(ctx, set); err != nil {
					slog.Warn("failed to seed openai api key", "error", err)
				} else {
					slog.Info("seeded openai api key from environment")
				}
			}
		} else {
			slog.Warn("failed to fetch settings for seeding", "error", err)
		}
	}

	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Job (dead letters)
	jobRepo := job.NewPostgresRepo(sqlDB)
	jobService := job.NewService(jobRepo, taskPub)
	jobHandler := job.NewHandler(jobService)

	// Feature: Material
	materialRepo := material.NewPostgresRepo(sqlDB)
	materialService := material.NewService(materialRepo, taskPub, vecStore)
	materialHandler := material.NewHandler(materialService, cfg.UploadDir, int(cfg.MaxUploadSizeMB))

	// Feature: Stats
	statsHandler := stats.NewHandler(materialRepo, jobRepo, vecStore)

	// Adapters: Dynamic
	embedder := openai.NewDynamicEmbedder(settingsService)
	embedder.SetBatchSize(cfg.EmbedBatchSize)

	realtimeClient := realtime.NewClient(settingsService)
	if cfg.OpenAIBaseURL != "" {
		realtimeClient.SetBaseURL(cfg.OpenAIBaseURL)
	}

	// Feature: Retrieval & Search
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(embedder, vecStore, queryLogger)
	searchHandler := search.NewHandler(retrievalService, settingsService)

	// Feature: Session
	negotiator := session.NewNegotiator(realtimeClient, retrievalService, settingsService)
	sessionHandler := sessionfeature.NewHandler(negotiator)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /materials", middleware.CorrelationID(enableCORS(materialHandler.Create)))
	mux.Handle("POST /materials/upload", middleware.CorrelationID(enableCORS(materialHandler.Upload)))
	mux.Handle("GET /materials", middleware.CorrelationID(enableCORS(materialHandler.List)))
	mux.Handle("GET /materials/{id}", middleware.CorrelationID(enableCORS(materialHandler.Get)))
	mux.Handle("DELETE /materials/{id}", middleware.CorrelationID(enableCORS(materialHandler.Delete)))
	mux.Handle("POST /materials/{id}/reingest", middleware.CorrelationID(enableCORS(materialHandler.Reingest)))

	mux.Handle("POST /search", middleware.CorrelationID(enableCORS(searchHandler.Search)))
	mux.Handle("POST /sessions", middleware.CorrelationID(enableCORS(sessionHandler.Create)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	ingestConsumer := worker.NewIngestConsumer(embedder, vecStore, materialRepo, jobService, cfg.ChunkTargetSize, cfg.ChunkOverlap)

	return &App{
		Handler:         mux,
		MaterialService: materialService,
		IngestConsumer:  ingestConsumer,
		port:            cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
