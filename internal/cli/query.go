package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"passage/internal/adapter/corpus"
	"passage/internal/usecase"
)

var (
	queryText     string
	queryTopK     int
	queryJSON     bool
	queryStrategy string
	queryDataset  string
	queryOutput   string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Rank passages against questions",
	Long: `Rank corpus passages against a single question, or against every
question of a CSV/JSON dataset. Dataset runs shape one record per
question and report the hit rate when ground-truth contexts are present.

Examples:
  passage query -q "who wrote hamlet"
  passage query -q "hamlet" --strategy elastic --top-k 5
  passage query --dataset data/validation.csv -o records.json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to rank against")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().StringVar(&queryStrategy, "strategy", "", "ranking strategy: sparse, annoy or elastic (default from config)")
	queryCmd.Flags().StringVar(&queryDataset, "dataset", "", "dataset file to evaluate (CSV or JSON)")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "write shaped records to this file")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	if (queryText == "") == (queryDataset == "") {
		return fmt.Errorf("exactly one of --query and --dataset is required")
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	strategy := cfg.Retrieve.Strategy
	if queryStrategy != "" {
		strategy = queryStrategy
	}
	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	rt, _, cleanup, err := buildRetriever(strategy, nil, log)
	if err != nil {
		return err
	}
	defer cleanup()

	retrieveUC := usecase.NewRetrieveUseCase(rt, log)

	if queryDataset != "" {
		return runDataset(ctx, retrieveUC, topK)
	}

	ranked, err := retrieveUC.Retrieve(ctx, queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		results := make([]queryResult, len(ranked))
		for i, sd := range ranked {
			results[i] = queryResult{
				ID:    sd.Document.ID,
				Title: sd.Document.Title,
				Score: sd.Score,
				Text:  sd.Document.Text,
			}
		}
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(ranked) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(ranked), queryText)
	for i, sd := range ranked {
		header := fmt.Sprintf("doc %d", sd.Document.ID)
		if sd.Document.Title != "" {
			header += " " + sd.Document.Title
		}
		fmt.Printf("--- [%d] %s (score: %.4f) ---\n", i+1, header, sd.Score)
		fmt.Println(preview(sd.Document.Text, 500))
		fmt.Println()
	}
	return nil
}

type queryResult struct {
	ID    int     `json:"id"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

func runDataset(ctx context.Context, retrieveUC *usecase.RetrieveUseCase, topK int) error {
	examples, err := corpus.LoadDataset(resolvePath(queryDataset))
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	fmt.Printf("Retrieving contexts for %d questions...\n", len(examples))

	records, eval, err := retrieveUC.ShapeDataset(ctx, examples, topK, barProgress("Retrieving"))
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if queryOutput != "" {
		if err := os.WriteFile(resolvePath(queryOutput), output, 0644); err != nil {
			return fmt.Errorf("failed to write records: %w", err)
		}
		fmt.Printf("Wrote %d records to %s\n", len(records), queryOutput)
	} else {
		fmt.Println(string(output))
	}

	if eval.Evaluated > 0 {
		fmt.Printf("\nHit rate: %d/%d (%.4f)\n", eval.Hits, eval.Evaluated, eval.HitRate())
		fmt.Printf("MRR:      %.4f\n", eval.MRR())
	}
	return nil
}

// preview truncates text for terminal display.
func preview(text string, max int) string {
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
