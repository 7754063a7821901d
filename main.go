package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docsdoctor/config"
	"docsdoctor/llm/providers"
	"docsdoctor/llm/rag"
	"docsdoctor/llm/vector"
	"docsdoctor/tui/chat"
)

func init() {
	// Load .env file if exists
	_ = godotenv.Load()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docsdoctor:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	embCfg := &providers.EmbeddingConfig{
		APIKey:  cfg.EmbeddingAPIKey(),
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	}
	embModel, err := providers.NewEmbeddingModel(ctx, embCfg)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	embedder, err := vector.NewEmbeddingService(embModel, embCfg.ModelID())
	if err != nil {
		return err
	}

	chatModel, err := providers.NewChatModel(ctx, &providers.ChatModelConfig{
		Provider: cfg.Chat.Provider,
		APIKey:   cfg.ChatAPIKey(),
		BaseURL:  cfg.Chat.BaseURL,
		Model:    cfg.Chat.Model,
	})
	if err != nil {
		return fmt.Errorf("chat provider: %w", err)
	}
	generator, err := rag.NewGenerator(chatModel)
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}

	engine, err := rag.NewEngine(ctx, embedder, store, generator, rag.Options{
		TopK:        cfg.TopK,
		Chunk:       vector.ChunkConfig{Size: cfg.Chunker.Size, Overlap: cfg.Chunker.Overlap},
		CallTimeout: time.Duration(cfg.CallTimeoutSecs) * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	session := rag.NewSession(engine)

	// Paths on the command line are ingested before the UI starts.
	if args := os.Args[1:]; len(args) > 0 {
		count, err := session.IngestFiles(ctx, args)
		if err != nil {
			return fmt.Errorf("initial ingest: %w", err)
		}
		logger.Info("initial ingest complete", zap.Int("documents", count))
	}

	program := tea.NewProgram(
		chat.InitialModel(session, engine.Events()),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// buildStore constructs the configured vector store backend, tagged with
// the embedder's model identity.
func buildStore(ctx context.Context, cfg *config.AppConfig, embedder *vector.EmbeddingService) (vector.VectorStore, error) {
	storeCfg := vector.StoreConfig{
		Collection:       cfg.Store.Collection,
		EmbeddingModelID: embedder.ModelID(),
	}

	switch cfg.Store.Type {
	case "memory":
		return vector.NewMemoryStore(storeCfg), nil
	case "chromem":
		return vector.NewChromemStore(vector.ChromemConfig{
			Path:        cfg.Store.Chromem.Path,
			Compress:    cfg.Store.Chromem.Compress,
			StoreConfig: storeCfg,
		})
	case "redis":
		// The HNSW index needs the dimension up front; probe the model
		// with a throwaway embedding.
		probe, err := embedder.Embed(ctx, "dimension probe")
		if err != nil {
			return nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
		}
		return vector.NewRedisStore(ctx, vector.RedisConfig{
			Addr:        cfg.Store.Redis.Addr,
			Password:    cfg.Store.Redis.Password,
			DB:          cfg.Store.Redis.DB,
			StoreConfig: storeCfg,
		}, len(probe))
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Store.Type)
	}
}
