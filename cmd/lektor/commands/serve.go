package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lektor-ai/lektor-go/internal/chunking"
	"github.com/lektor-ai/lektor-go/internal/config"
	"github.com/lektor-ai/lektor-go/internal/extract"
	"github.com/lektor-ai/lektor-go/internal/ingestion"
	"github.com/lektor-ai/lektor-go/internal/logging"
	"github.com/lektor-ai/lektor-go/internal/provider"
	"github.com/lektor-ai/lektor-go/internal/query"
	"github.com/lektor-ai/lektor-go/internal/server"
	"github.com/lektor-ai/lektor-go/internal/tokenizer"
	"github.com/lektor-ai/lektor-go/internal/version"
)

// NewServeCmd constructs the `lektor serve` command, which starts the HTTP
// API for querying and ingesting course materials.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lektor HTTP API server",
		Long: `Start the lektor HTTP server.

The server exposes a REST API for asking questions over ingested course
materials (POST /api/query), uploading documents for background ingestion
(POST /api/ingest), and tracking ingestion jobs (GET /api/jobs/{id}).

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: course_rag)
  MODEL_PROVIDER       Answer backend: ollama, openai, azure (default: ollama)
  EMBEDDING_PROVIDER   Embedding backend (default: ollama)
  REDIS_URL            Optional Redis cache URL; in-process cache when unset
  LEKTOR_API_KEY       Optional Bearer token; auth disabled when unset

Examples:
  lektor serve
  lektor serve --port 9090
  MODEL_PROVIDER=azure lektor serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			settings := config.Resolve()
			if cmd.Flags().Changed("host") {
				settings.ServerHost = host
			}
			if cmd.Flags().Changed("port") {
				settings.ServerPort = port
			}

			log := buildLogger(settings)
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("provider", string(settings.Model.Backend)),
				slog.String("embedding_provider", settings.Embedding.Provider),
			)

			completer, err := provider.NewCompleter(ctx, &settings.Model)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(settings.Model.Backend)))

			cacheStore, redisConn := buildCache(settings, log)
			if redisConn != nil {
				defer func() { _ = redisConn.Close() }()
			}

			store, err := buildVectorStore(ctx, settings)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = store.Close() }()
			log.Info("qdrant store ready",
				slog.String("host", settings.Qdrant.Host),
				slog.Int("port", settings.Qdrant.Port),
				slog.String("collection", settings.Qdrant.Collection),
			)

			cached, batcher, err := buildEmbedders(settings, cacheStore, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			engine := query.NewEngine(store, cached, completer, query.Options{
				ScoreThreshold: settings.ScoreThreshold,
				ResponseCache:  cacheStore,
			}, log)

			codec, err := tokenizer.New(tokenizer.DefaultEncoding)
			if err != nil {
				return fmt.Errorf("serve: failed to load tokenizer: %w", err)
			}

			jobStore, err := openJobStore(settings)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = jobStore.Close() }()

			pipeline := ingestion.New(
				extract.NewRegistry(),
				chunking.New(codec),
				batcher,
				store,
				jobStore,
				settings.Chunking,
				log,
			)

			pingers := []server.Pinger{server.NewQdrantPinger(store.Client())}
			if redisConn != nil {
				pingers = append(pingers, server.NewRedisPinger(redisConn))
			}

			srv, err := server.New(engine, pipeline, jobStore, &server.Config{
				Host:    settings.ServerHost,
				Port:    settings.ServerPort,
				Logger:  log,
				Pingers: pingers,
				APIKey:  settings.APIKey,
				Version: version.Version,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
