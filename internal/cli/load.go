package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"passage/internal/adapter/corpus"
	"passage/internal/adapter/retriever"
	"passage/internal/usecase"
)

var (
	loadSettingsPath string
	loadQuery        string
)

var loadCmd = &cobra.Command{
	Use:   "load [corpus-path]",
	Short: "Recreate the remote index and bulk-load the corpus into it",
	Long: `Drop and recreate the document store index with the configured
settings, then load every corpus passage into it. Documents that fail
to index are logged and skipped; ids follow corpus order.

Examples:
  passage load                             # Load the configured corpus
  passage load data/wiki.json -q "hamlet"  # Load, then run an example query`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVar(&loadSettingsPath, "settings", "", "index settings file (default from config)")
	loadCmd.Flags().StringVarP(&loadQuery, "query", "q", "", "example query to run after loading")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	corpusPath := resolvePath(cfg.Corpus.Path)
	if len(args) > 0 {
		corpusPath = resolvePath(args[0])
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	loader := corpus.NewLoader(cfg.Corpus.Includes, cfg.Corpus.Excludes)
	docs, err := loader.Load(corpusPath)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	fmt.Printf("Loaded %d passages from %s\n", len(docs), corpusPath)

	settings, err := readSettings()
	if err != nil {
		return err
	}

	client := newDocStore(log)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("document store is unreachable: %w", err)
	}

	ingestUC := usecase.NewIngestUseCase(client, log)

	fmt.Printf("Recreating index %s...\n", cfg.Elastic.Index)
	if err := ingestUC.Recreate(ctx, cfg.Elastic.Index, settings); err != nil {
		return err
	}

	result, err := ingestUC.BulkLoad(ctx, cfg.Elastic.Index, docs, barProgress("Loading"))
	if err != nil {
		return err
	}

	fmt.Printf("\nLoad complete:\n")
	fmt.Printf("  Indexed:  %d\n", result.Indexed)
	fmt.Printf("  Skipped:  %d\n", result.Skipped)
	fmt.Printf("  In index: %d\n", result.Total)

	query := loadQuery
	if query == "" {
		query = cfg.Retrieve.ExampleQuery
	}
	if query == "" {
		return nil
	}

	fmt.Printf("\nExample query: %s\n", query)
	ranked, err := retriever.NewElasticRetriever(client, cfg.Elastic.Index).Rank(ctx, query, cfg.Retrieve.TopK)
	if err != nil {
		return fmt.Errorf("example query failed: %w", err)
	}
	for _, sd := range ranked {
		fmt.Printf("Doc ID: %3d  Score: %5.2f\n", sd.Document.ID, sd.Score)
		fmt.Println(preview(sd.Document.Text, 200))
	}
	return nil
}

// readSettings reads the index settings file. A missing default path
// falls back to backend defaults; an explicitly flagged path must exist.
func readSettings() ([]byte, error) {
	path := loadSettingsPath
	explicit := path != ""
	if !explicit {
		path = cfg.Elastic.SettingsPath
	}
	path = resolvePath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			fmt.Printf("No settings file at %s, using backend defaults\n", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return data, nil
}
