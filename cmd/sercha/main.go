// Command sercha is the entry point: it loads configuration, opens the
// store, rebuilds the vector index from the stored chunks and wires the
// services behind the CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/sercha-core/internal/adapters/driven/embedding"
	ollamaembed "github.com/custodia-labs/sercha-core/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-core/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/sercha-core/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sercha-core/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sercha-core/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-core/internal/adapters/driven/vector/hnsw"
	"github.com/custodia-labs/sercha-core/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-core/internal/chunker"
	"github.com/custodia-labs/sercha-core/internal/config"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/services"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configDir, err := config.DefaultDir()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	defer generator.Close()

	index, err := hnsw.New(hnsw.Config{
		Dimension:      embedder.Dimensions(),
		M:              cfg.Index.M,
		EfConstruction: cfg.Index.EfConstruction,
		EfSearch:       cfg.Index.EfSearch,
	})
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	// The index lives in memory; rebuild it from the durable chunks.
	if err := rebuildIndex(context.Background(), store.DocumentStore(), index); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	split := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)

	docStore := store.DocumentStore()
	ingest := services.NewIngestService(docStore, index, embedder, split)
	retrieval := services.NewRetrievalService(docStore, index, embedder, cfg.Retrieval.Oversample)
	conversations := services.NewConversationService(store.ConversationStore(), embedder)
	chat := services.NewChatService(conversations, retrieval, generator, cfg.Chat.HistoryLimit)

	cli.SetServices(cli.Services{
		Ingest:       ingest,
		Retrieval:    retrieval,
		Chat:         chat,
		Conversation: conversations,
	})
	cli.SetRetrievalDefaults(cfg.Retrieval.MatchCount, cfg.Retrieval.Threshold)

	return cli.Execute()
}

// newEmbedder constructs the configured embedding provider.
func newEmbedder(cfg config.Config) (driven.EmbeddingService, error) {
	rateLimit := embedding.RateLimitConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		BurstSize:         cfg.Embedding.Burst,
	}
	timeout := time.Duration(cfg.Embedding.TimeoutSecs) * time.Second

	switch cfg.Embedding.Provider {
	case "ollama", "":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Embedding.Dimensions,
			RateLimit:  rateLimit,
		}), nil
	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     apiKey(cfg.Embedding.APIKeyEnv),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Embedding.Dimensions,
			RateLimit:  rateLimit,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Embedding.Provider)
	}
}

// newGenerator constructs the configured LLM provider.
func newGenerator(cfg config.Config) (driven.Generator, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second

	switch cfg.LLM.Provider {
	case "ollama", "":
		return ollamallm.NewGenerator(ollamallm.Config{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: timeout,
		}), nil
	case "openai":
		return openaillm.NewGenerator(openaillm.Config{
			APIKey:  apiKey(cfg.LLM.APIKeyEnv),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}

// apiKey reads the key from the configured environment variable. Keys
// never live in the config file.
func apiKey(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// rebuildIndex feeds every stored chunk embedding back into the index.
func rebuildIndex(ctx context.Context, docStore driven.DocumentStore, index driven.VectorIndex) error {
	docs, err := docStore.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	var indexed int
	for i := range docs {
		chunks, err := docStore.GetChunks(ctx, docs[i].ID)
		if err != nil {
			return fmt.Errorf("get chunks for %s: %w", docs[i].ID, err)
		}
		for j := range chunks {
			if len(chunks[j].Embedding) == 0 {
				continue
			}
			if err := index.Add(ctx, chunks[j].ID, chunks[j].Embedding); err != nil {
				return fmt.Errorf("index chunk %s: %w", chunks[j].ID, err)
			}
			indexed++
		}
	}

	if indexed > 0 {
		logger.Debug("Rebuilt index with %d chunks from %d documents", indexed, len(docs))
	}
	return nil
}
