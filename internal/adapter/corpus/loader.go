package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"passage/internal/adapter/analyzer"
	"passage/internal/domain"
)

// Loader reads raw passages from disk, normalizes them and collapses
// duplicates into an ordered corpus with positional ids.
type Loader struct {
	includes []string
	excludes []string
}

func NewLoader(includes, excludes []string) *Loader {
	if len(includes) == 0 {
		includes = []string{"**/*.txt"}
	}
	return &Loader{
		includes: includes,
		excludes: excludes,
	}
}

type rawEntry struct {
	title string
	text  string
}

// Load reads the corpus at path: a directory loads one document per
// matching text file, anything else is parsed as a JSON mapping.
func (l *Loader) Load(path string) ([]domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat corpus path: %w", err)
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	return l.LoadJSON(path)
}

// LoadJSON reads a mapping of arbitrary keys to objects carrying at least
// a text field. Entries keep the order they appear in the file, so ids
// are reproducible for a given corpus file.
func (l *Loader) LoadJSON(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse corpus %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("corpus %s: top-level value must be an object", path)
	}

	var raw []rawEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse corpus %s: %w", path, err)
		}
		key, _ := keyTok.(string)

		var entry struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		}
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("corpus entry %q: %w", key, err)
		}
		raw = append(raw, rawEntry{title: entry.Title, text: entry.Text})
	}

	return l.collapse(raw), nil
}

// LoadDir reads every matching plain-text file under root, one document
// per file. Paths sort lexicographically before id assignment so the
// corpus order does not depend on directory iteration order. The file
// name minus its extension becomes the document title.
func (l *Loader) LoadDir(root string) ([]domain.Document, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if l.excluded(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.Matches(relPath) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus dir: %w", err)
	}

	sort.Strings(paths)

	raw := make([]rawEntry, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		name := filepath.Base(path)
		raw = append(raw, rawEntry{
			title: strings.TrimSuffix(name, filepath.Ext(name)),
			text:  string(data),
		})
	}

	return l.collapse(raw), nil
}

// collapse normalizes every entry and drops duplicates, keeping the first
// occurrence. Ids are positions in the surviving order. Entries that
// normalize to the empty string carry no indexable text and are skipped.
func (l *Loader) collapse(raw []rawEntry) []domain.Document {
	seen := make(map[string]struct{}, len(raw))
	docs := make([]domain.Document, 0, len(raw))

	for _, entry := range raw {
		text := analyzer.Normalize(entry.text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		docs = append(docs, domain.Document{
			ID:    len(docs),
			Title: entry.title,
			Text:  text,
		})
	}

	return docs
}

// Matches reports whether a file at relPath falls under the loader's
// include and exclude patterns.
func (l *Loader) Matches(relPath string) bool {
	return l.included(relPath) && !l.excluded(relPath)
}

func (l *Loader) included(path string) bool {
	for _, pattern := range l.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (l *Loader) excluded(path string) bool {
	for _, pattern := range l.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
