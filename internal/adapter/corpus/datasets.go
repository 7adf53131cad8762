package corpus

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"passage/internal/domain"
)

// LoadDataset reads an evaluation dataset of questions. CSV files need a
// header row naming at least a question column; id, context and answers
// columns are optional. JSON files hold an array of objects with the
// same fields. Values pass through raw; normalization happens at query
// time. Rows without an id get their position as one.
func LoadDataset(path string) ([]domain.Example, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSVDataset(path)
	case ".json":
		return loadJSONDataset(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

func loadCSVDataset(path string) ([]domain.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	qCol, ok := col["question"]
	if !ok {
		return nil, fmt.Errorf("dataset %s has no question column", path)
	}

	examples := make([]domain.Example, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ex := domain.Example{Question: row[qCol]}
		if c, ok := col["id"]; ok {
			ex.ID = row[c]
		}
		if ex.ID == "" {
			ex.ID = strconv.Itoa(i)
		}
		if c, ok := col["context"]; ok {
			ex.Context = row[c]
		}
		if c, ok := col["answers"]; ok {
			ex.Answers = row[c]
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

func loadJSONDataset(path string) ([]domain.Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	var rows []struct {
		ID       string `json:"id"`
		Question string `json:"question"`
		Context  string `json:"context"`
		Answers  string `json:"answers"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	examples := make([]domain.Example, len(rows))
	for i, row := range rows {
		id := row.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		examples[i] = domain.Example{
			ID:       id,
			Question: row.Question,
			Context:  row.Context,
			Answers:  row.Answers,
		}
	}
	return examples, nil
}
