package docai

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docaihq/docai/api"
	"github.com/docaihq/docai/pkg/cache"
	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/embedder"
	"github.com/docaihq/docai/pkg/ingest"
	"github.com/docaihq/docai/pkg/llm"
	"github.com/docaihq/docai/pkg/pipeline"
	"github.com/docaihq/docai/pkg/prompt"
	"github.com/docaihq/docai/pkg/retrieval"
	"github.com/docaihq/docai/pkg/store"
)

var (
	port int
	host string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API service",
	Long:  `Start the HTTP server exposing upload, chat and session endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port == 0 {
			port = cfg.Server.Port
		}
		if host == "" {
			host = cfg.Server.Host
		}

		// Metadata and chunk store.
		db, err := store.OpenSQLite(cfg.Store.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				fmt.Printf("Warning: failed to close database: %v\n", err)
			}
		}()

		fileStore, err := store.NewFileStore(db)
		if err != nil {
			return fmt.Errorf("failed to initialize file store: %w", err)
		}

		// Sessions live in the same database unless a separate path is
		// configured.
		sessionDB := db
		if cfg.Store.SessionURI != "" && cfg.Store.SessionURI != cfg.Store.DBPath {
			sessionDB, err = store.OpenSQLite(cfg.Store.SessionURI)
			if err != nil {
				return fmt.Errorf("failed to open session database: %w", err)
			}
			defer func() {
				if err := sessionDB.Close(); err != nil {
					fmt.Printf("Warning: failed to close session database: %v\n", err)
				}
			}()
		}
		sessionStore, err := store.NewSessionStore(sessionDB)
		if err != nil {
			return fmt.Errorf("failed to initialize session store: %w", err)
		}

		// Vector store.
		vectorStore, err := store.NewQdrant(cfg.Vector.Address, time.Duration(cfg.Vector.TimeoutSeconds)*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to vector store: %w", err)
		}
		defer func() {
			if err := vectorStore.Close(); err != nil {
				fmt.Printf("Warning: failed to close vector store: %v\n", err)
			}
		}()

		// Cache: redis when configured, in-process LRU otherwise.
		var appCache domain.Cache
		if cfg.Cache.URI != "" {
			redisCache, err := cache.NewRedisCache(cfg.Cache.URI)
			if err != nil {
				return fmt.Errorf("failed to connect to cache: %w", err)
			}
			defer func() {
				if err := redisCache.Close(); err != nil {
					fmt.Printf("Warning: failed to close cache: %v\n", err)
				}
			}()
			appCache = redisCache
		} else {
			appCache = cache.NewMemoryCache(cfg.Cache.MaxSize)
		}

		embedService := embedder.NewCached(
			embedder.NewOpenAI(
				cfg.Embedding.BaseURL,
				cfg.Embedding.APIKey,
				cfg.Embedding.Model,
				time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
			),
			appCache,
		)

		generator := llm.NewOpenAI(
			cfg.LLM.BaseURL,
			cfg.LLM.APIKey,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
			time.Duration(cfg.LLM.IdleSeconds)*time.Second,
		)

		var chunker ingest.Chunker
		if strings.EqualFold(cfg.Chunking.Strategy, "recursive") {
			chunker = ingest.NewRecursiveChunker(cfg.Chunking.RecursiveSize, cfg.Chunking.RecursiveOverlap)
		} else {
			chunker = ingest.NewHierarchicalChunker(cfg.Chunking.HierarchicalSizes, cfg.Chunking.Overlap)
		}

		ingestEngine := ingest.NewEngine(fileStore, vectorStore, embedService, chunker, ingest.Options{
			UploadDir:         cfg.Upload.Dir,
			MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			EmbeddingDim:      cfg.Embedding.Dimension,
		})

		retriever := retrieval.New(embedService, vectorStore, generator, appCache, cfg.Query.ExpansionCount)
		builder := prompt.NewBuilder(cfg.Query.HistoryLimit, cfg.Query.PromptTokenCeil)
		queryPipeline := pipeline.New(fileStore, sessionStore, retriever, builder, generator, pipeline.Options{
			TopK:         cfg.Query.TopK,
			HistoryLimit: cfg.Query.HistoryLimit,
		})

		logLevel := "info"
		if verbose {
			logLevel = "debug"
		}
		server := api.NewServer(api.Config{
			Host:           host,
			Port:           port,
			CORSOrigins:    cfg.Server.CORSOrigins,
			LogLevel:       logLevel,
			MaxUploadBytes: cfg.Upload.MaxSizeBytes,
		}, api.Deps{
			Ingestor: ingestEngine,
			Pipeline: queryPipeline,
			Sessions: sessionStore,
		})

		return server.Start()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&host, "host", "", "server host (default from config)")
}
