package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"passage/config"
	"passage/internal/adapter/corpus"
	"passage/internal/adapter/store"
	"passage/internal/adapter/vectorizer"
	"passage/internal/usecase"
)

var indexAnnoy bool

var indexCmd = &cobra.Command{
	Use:   "index [corpus-path]",
	Short: "Build the sparse index for a passage corpus",
	Long: `Load the corpus, build the TF-IDF index and persist the artifacts
under .passage/ in the root directory. Artifacts carry the corpus hash,
so an unchanged corpus reuses them instead of rebuilding.

Examples:
  passage index                          # Index the configured corpus
  passage index data/wiki.json           # Index a specific JSON corpus
  passage index corpus/meetings --annoy  # Also build the approximate index`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexAnnoy, "annoy", false, "also build the approximate (annoy) index")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	corpusPath := resolvePath(cfg.Corpus.Path)
	if len(args) > 0 {
		corpusPath = resolvePath(args[0])
	}
	if _, err := os.Stat(corpusPath); err != nil {
		return fmt.Errorf("corpus path does not exist: %w", err)
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

	if err := config.EnsureDataDir(rootDir); err != nil {
		return fmt.Errorf("failed to create .passage directory: %w", err)
	}

	snapshots, err := store.NewCorpusStore(config.SnapshotPath(rootDir))
	if err != nil {
		return fmt.Errorf("failed to open corpus snapshot: %w", err)
	}
	defer snapshots.Close()

	migration, err := snapshots.CheckMigration(cfg)
	if err != nil {
		return err
	}
	if migration.NeedsRebuild {
		fmt.Printf("Discarding previous index: %s\n", migration.Reason)
		if err := discardArtifacts(snapshots); err != nil {
			return fmt.Errorf("failed to discard previous index: %w", err)
		}
	}

	vec := vectorizer.New(cfg.Index.NGramMin, cfg.Index.NGramMax, cfg.Index.MaxFeatures)
	indexUC := usecase.NewIndexUseCase(
		vec,
		snapshots,
		config.ModelPath(rootDir),
		config.MatrixPath(rootDir),
		log,
	)

	model, matrix, result, err := indexUC.BuildOrLoad(docs)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if indexAnnoy {
		_, err := indexUC.EnsureAnnoy(model, matrix, docs,
			config.AnnoyPath(rootDir), cfg.Index.AnnoyTrees, result.Rebuilt)
		if err != nil {
			return fmt.Errorf("failed to build annoy index: %w", err)
		}
	}

	if err := snapshots.Migrate(cfg); err != nil {
		return fmt.Errorf("failed to stamp snapshot: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Documents:   %d\n", result.Docs)
	fmt.Printf("  Vocabulary:  %d terms\n", result.VocabSize)
	if result.Rebuilt {
		fmt.Printf("  Artifacts:   rebuilt\n")
	} else {
		fmt.Printf("  Artifacts:   reused (corpus unchanged)\n")
	}
	fmt.Printf("  Corpus hash: %s\n", result.CorpusHash)

	fmt.Printf("\nArtifacts stored in: %s\n", config.DataDir(rootDir))
	return nil
}

// discardArtifacts clears the snapshot and removes the persisted
// artifact files so the next build starts from nothing.
func discardArtifacts(snapshots *store.CorpusStore) error {
	if err := snapshots.Clear(); err != nil {
		return err
	}
	for _, path := range []string{
		config.ModelPath(rootDir),
		config.MatrixPath(rootDir),
		config.AnnoyPath(rootDir),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
