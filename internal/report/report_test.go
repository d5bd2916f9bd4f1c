package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestRender_FrontMatterThenAnswer(t *testing.T) {
	r := Report{
		Query:    "state of RAG",
		Created:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Findings: 1,
		Answer:   "# Summary\n\nfact1\nfact2\n",
	}
	data, err := Render(r)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "---\nquery: state of RAG\n") {
		t.Errorf("unexpected header:\n%s", text)
	}
	if !strings.HasSuffix(text, "---\n\n# Summary\n\nfact1\nfact2\n") {
		t.Errorf("unexpected body:\n%s", text)
	}
}

func TestRender_FrontMatterDecodes(t *testing.T) {
	want := Report{
		Query:    "what: a colon query",
		Created:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Findings: 2,
		Source:   "cron:abc",
	}
	data, err := Render(Report{
		Query:    want.Query,
		Created:  want.Created,
		Findings: want.Findings,
		Source:   want.Source,
		Answer:   "line one\n---\nline two",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	header, body, ok := strings.Cut(strings.TrimPrefix(string(data), "---\n"), "\n---\n")
	if !ok {
		t.Fatalf("no closing delimiter in:\n%s", data)
	}
	var got Report
	if err := yaml.Unmarshal([]byte(header), &got); err != nil {
		t.Fatalf("decode front matter: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("front matter mismatch (-want +got):\n%s", diff)
	}
	if body != "\nline one\n---\nline two\n" {
		t.Errorf("body = %q", body)
	}
}

func TestFileName(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC)
	tests := []struct {
		query string
		want  string
	}{
		{"State of RAG, 2026?", "20260301-090507-state-of-rag-2026.md"},
		{"???", "20260301-090507-report.md"},
	}
	for _, tt := range tests {
		if got := FileName(tt.query, created); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestSave_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := Report{Query: "q", Created: time.Now(), Answer: "a"}
	path, err := Save(dir, r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(string(data), "\na\n") {
		t.Errorf("unexpected content:\n%s", data)
	}
}
