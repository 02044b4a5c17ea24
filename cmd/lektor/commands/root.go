// Package commands defines all Cobra CLI commands for the lektor binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/lektor-ai/lektor-go/internal/audit"
	"github.com/lektor-ai/lektor-go/internal/config"
	"github.com/lektor-ai/lektor-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lektor",
		Short: "Lektor — retrieval-augmented answers over course materials",
		Long: `Lektor indexes course materials (documents, lecture notes, video
transcripts) into a vector store and answers student questions grounded in
that material only.

Documents are chunked by token windows with natural-break snapping, embedded,
and stored in Qdrant with course/module scoping. Questions are answered via
semantic top-k retrieval or full-context mode, with Redis-backed caching of
embeddings and responses.

Model and embedding providers are selected via the MODEL_PROVIDER and
EMBEDDING_PROVIDER environment variables or a YAML config file
(~/.lektor/config.yaml). See 'lektor --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.lektor/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewQueryCmd(),
		NewVersionCmd(),
	)

	return root
}
