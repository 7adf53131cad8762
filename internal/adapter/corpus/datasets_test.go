package corpus

import (
	"path/filepath"
	"testing"
)

func TestLoadDatasetCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.csv")
	writeFile(t, path, "id,question,context,answers\n"+
		"q-1,what fruit?,\"apple\nbanana\",apple\n"+
		"q-2,which tree?,cherry,\n")

	examples, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(examples))
	}

	first := examples[0]
	if first.ID != "q-1" || first.Question != "what fruit?" {
		t.Errorf("unexpected first example: %+v", first)
	}
	// Quoted newlines survive parsing; normalization is not applied here.
	if first.Context != "apple\nbanana" {
		t.Errorf("expected raw context, got %q", first.Context)
	}
	if first.Answers != "apple" {
		t.Errorf("expected answers passthrough, got %q", first.Answers)
	}
	if examples[1].Answers != "" {
		t.Errorf("expected empty answers, got %q", examples[1].Answers)
	}
}

func TestLoadDatasetCSVWithoutOptionalColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.csv")
	writeFile(t, path, "question\nwhat fruit?\nwhich tree?\n")

	examples, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(examples))
	}
	if examples[0].ID != "0" || examples[1].ID != "1" {
		t.Errorf("expected positional ids, got %q, %q", examples[0].ID, examples[1].ID)
	}
	if examples[0].Context != "" || examples[0].Answers != "" {
		t.Errorf("expected empty optional fields: %+v", examples[0])
	}
}

func TestLoadDatasetCSVMissingQuestionColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.csv")
	writeFile(t, path, "id,text\nq-1,hello\n")

	if _, err := LoadDataset(path); err == nil {
		t.Fatal("expected error for missing question column")
	}
}

func TestLoadDatasetJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.json")
	writeFile(t, path, `[
		{"id": "q-1", "question": "what fruit?", "context": "apple", "answers": "apple"},
		{"question": "which tree?"}
	]`)

	examples, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(examples))
	}
	if examples[0].ID != "q-1" || examples[0].Context != "apple" {
		t.Errorf("unexpected first example: %+v", examples[0])
	}
	if examples[1].ID != "1" {
		t.Errorf("expected positional id for second example, got %q", examples[1].ID)
	}
}

func TestLoadDatasetUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.tsv")
	writeFile(t, path, "question\thello\n")

	if _, err := LoadDataset(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadDatasetMalformedCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.csv")
	writeFile(t, path, "id,question\nq-1,one,extra\n")

	if _, err := LoadDataset(path); err == nil {
		t.Fatal("expected error for ragged csv row")
	}
}
