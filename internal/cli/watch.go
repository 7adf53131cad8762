package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"passage/internal/adapter/corpus"
	"passage/internal/usecase"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a drop directory and index new passages",
	Long: `Watch a directory for new or changed text files and append each one to
the document store. The file name minus its extension becomes the
document title, which is joined into the indexed text.

Examples:
  passage watch ./inbox
  passage watch ./inbox --debounce 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "settle time before a changed file is indexed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	dir := cfg.Corpus.Path
	if len(args) > 0 {
		dir = args[0]
	}
	dir = resolvePath(dir)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch needs a directory, %s is a file", dir)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	client := newDocStore(log)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("document store is unreachable: %w", err)
	}
	ingestUC := usecase.NewIngestUseCase(client, log)
	matcher := corpus.NewLoader(cfg.Corpus.Includes, cfg.Corpus.Excludes)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fmt.Printf("Watching %s for new passages...\n", dir)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-quit:
			fmt.Println("\nWatch stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if event.Op&fsnotify.Create != 0 {
					_ = addWatchDirs(watcher, event.Name)
				}
				continue
			}
			rel, err := filepath.Rel(dir, event.Name)
			if err != nil || !matcher.Matches(rel) {
				continue
			}
			pending[event.Name] = struct{}{}
			// The timer slides on every event so a file is read only
			// after its writes settle.
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			uploads := make([]usecase.Upload, 0, len(paths))
			for _, path := range paths {
				data, err := os.ReadFile(path)
				if err != nil {
					log.Warn("unable to read dropped file",
						zap.String("path", path),
						zap.Error(err))
					continue
				}
				name := filepath.Base(path)
				uploads = append(uploads, usecase.Upload{
					Title: strings.TrimSuffix(name, filepath.Ext(name)),
					Text:  string(data),
				})
			}
			if len(uploads) == 0 {
				continue
			}

			res, err := ingestUC.Append(ctx, cfg.Elastic.Index, uploads, nil)
			if err != nil {
				log.Warn("unable to append dropped files", zap.Error(err))
				continue
			}
			fmt.Printf("Indexed %d passage(s), %d now in index %s\n", res.Indexed, res.Total, cfg.Elastic.Index)
		}
	}
}

// addWatchDirs registers root and every non-hidden subdirectory with the
// watcher. Directories created while watching are added from the event
// loop.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if base := filepath.Base(path); strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
