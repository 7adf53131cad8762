package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"passage/config"
	"passage/internal/logger"
	"passage/internal/version"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "passage",
	Short: "Passage retriever - index a passage corpus and answer questions against it",
	Long: `passage indexes a corpus of text passages with TF-IDF, ranks passages
against natural-language questions, and mirrors the corpus into an
Elasticsearch-compatible document store.

Example usage:
  passage index                        # Build the sparse index for the corpus
  passage query -q "who wrote hamlet"  # Rank passages against a question
  passage load                         # Recreate the remote index and bulk-load it
  passage serve                        # Expose search over HTTP`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.Commit, version.Date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./passage.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// newLogger builds the process logger from the logging config.
func newLogger() (*zap.Logger, error) {
	return logger.New(cfg.Logging.Format, cfg.Logging.Level)
}

// resolvePath resolves p against the root directory unless absolute.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}
