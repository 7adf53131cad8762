package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"passage/config"
	"passage/internal/adapter/store"
	"passage/internal/domain"
)

var statusDocID int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the local index and the document store",
	Long: `Show what has been built locally (corpus snapshot, sparse artifacts,
annoy index) and what the remote document store reports for the
configured index.

Examples:
  passage status
  passage status --doc 42   # Also fetch one document from the store`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusDocID, "doc", -1, "fetch a single document by id from the store")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	if err := printLocalStatus(); err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	client := newDocStore(log)

	fmt.Printf("\nDocument store (%s):\n", cfg.Elastic.URL)
	if err := client.Ping(ctx); err != nil {
		fmt.Printf("  Status:  unreachable (%v)\n", err)
		return nil
	}
	fmt.Printf("  Status:  reachable\n")

	count, err := client.Count(ctx, cfg.Elastic.Index)
	switch {
	case err == nil:
		fmt.Printf("  Index:   %s (%d documents)\n", cfg.Elastic.Index, count)
	case errors.Is(err, domain.ErrNoIndex):
		fmt.Printf("  Index:   %s not created (run 'passage load' first)\n", cfg.Elastic.Index)
	default:
		fmt.Printf("  Index:   %s (%v)\n", cfg.Elastic.Index, err)
	}

	if indices, err := client.ListIndices(ctx); err == nil && len(indices) > 0 {
		fmt.Printf("  Indices: %s\n", strings.Join(indices, ", "))
	}

	if statusDocID >= 0 {
		doc, err := client.GetDocument(ctx, cfg.Elastic.Index, statusDocID)
		if err != nil {
			return fmt.Errorf("failed to fetch document %d: %w", statusDocID, err)
		}
		fmt.Printf("\nDocument %s in %s:\n", doc.ID, cfg.Elastic.Index)
		if doc.Source.Title != "" {
			fmt.Printf("  Title: %s\n", doc.Source.Title)
		}
		fmt.Printf("  Text:  %s\n", preview(doc.Source.DocumentText, 200))
	}

	return nil
}

func printLocalStatus() error {
	fmt.Printf("Local index (%s):\n", config.DataDir(rootDir))

	snapPath := config.SnapshotPath(rootDir)
	if _, err := os.Stat(snapPath); err != nil {
		fmt.Printf("  Snapshot:    not built (run 'passage index' first)\n")
		return nil
	}

	snapshots, err := store.NewCorpusStore(snapPath)
	if err != nil {
		return fmt.Errorf("failed to open corpus snapshot: %w", err)
	}
	defer snapshots.Close()

	count, err := snapshots.Count()
	if err != nil {
		return fmt.Errorf("failed to read corpus snapshot: %w", err)
	}
	hash, err := snapshots.Hash()
	if err != nil {
		return err
	}
	stats, err := snapshots.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("  Documents:   %d\n", count)
	if stats.VocabSize > 0 {
		fmt.Printf("  Vocabulary:  %d terms\n", stats.VocabSize)
		fmt.Printf("  Avg length:  %.1f tokens\n", stats.AvgDocLen)
	}
	fmt.Printf("  Corpus hash: %s\n", hash)
	fmt.Printf("  Sparse artifacts: %s\n", artifactState(
		config.ModelPath(rootDir), config.MatrixPath(rootDir)))

	if _, err := os.Stat(config.AnnoyPath(rootDir)); err == nil {
		fmt.Printf("  Annoy index:      present\n")
	} else {
		fmt.Printf("  Annoy index:      missing (run 'passage index --annoy' to build)\n")
	}
	return nil
}

func artifactState(paths ...string) string {
	present := 0
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			present++
		}
	}
	switch present {
	case len(paths):
		return "present"
	case 0:
		return "missing"
	default:
		return "incomplete (run 'passage index' to rebuild)"
	}
}
