package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lektor-ai/lektor-go/internal/config"
	"github.com/lektor-ai/lektor-go/internal/logging"
	"github.com/lektor-ai/lektor-go/internal/provider"
	"github.com/lektor-ai/lektor-go/internal/query"
)

// NewQueryCmd constructs the `lektor query` command, which asks a single
// question over indexed course materials and prints the answer to stdout.
func NewQueryCmd() *cobra.Command {
	var courseID string
	var moduleID string
	var topK int
	var fullContext bool
	var showSources bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question over indexed course materials",
		Long: `Ask a question and receive an answer grounded in indexed course material.

By default the most similar chunks are retrieved (semantic mode). With
--full-context, every chunk in the course/module scope is fed to the model
in reading order instead, which suits summarisation-style questions.

Examples:
  lektor query --course cs101 "what is a binary search tree?"
  lektor query --course cs101 --module week3 --top-k 10 "explain heapsort"
  lektor query --course cs101 --full-context "summarise this module"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings := config.Resolve()
			log := buildLogger(settings)
			ctx = logging.WithLogger(ctx, log)

			completer, err := provider.NewCompleter(ctx, &settings.Model)
			if err != nil {
				return fmt.Errorf("query: failed to initialise model provider: %w", err)
			}

			cacheStore, redisConn := buildCache(settings, log)
			if redisConn != nil {
				defer func() { _ = redisConn.Close() }()
			}

			store, err := buildVectorStore(ctx, settings)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer func() { _ = store.Close() }()

			cached, _, err := buildEmbedders(settings, cacheStore, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			engine := query.NewEngine(store, cached, completer, query.Options{
				ScoreThreshold: settings.ScoreThreshold,
				ResponseCache:  cacheStore,
			}, log)

			resp, err := engine.Answer(ctx, query.Request{
				Query:          args[0],
				CourseID:       courseID,
				ModuleID:       moduleID,
				TopK:           topK,
				FullContext:    fullContext,
				IncludeSources: showSources,
			})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			fmt.Println(resp.Answer)

			if showSources && len(resp.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range resp.Sources {
					fmt.Printf("  [%.3f] %s (%s)\n", src.Score, src.SourceURI, src.SourceType)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&courseID, "course", "c", "", "Restrict retrieval to one course")
	cmd.Flags().StringVarP(&moduleID, "module", "m", "", "Restrict retrieval to one module")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: 5)")
	cmd.Flags().BoolVar(&fullContext, "full-context", false, "Use every chunk in scope instead of top-k")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print source attributions after the answer")

	return cmd
}
