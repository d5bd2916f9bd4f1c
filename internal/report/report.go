// Package report renders research answers as Markdown documents with a
// YAML front matter header.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is used when the caller asks for a report without naming it.
const DefaultFileName = "research_report.md"

const delimiter = "---"

// Report is one finished research run.
type Report struct {
	Query    string    `yaml:"query"`
	Created  time.Time `yaml:"created"`
	Findings int       `yaml:"findings"`
	Source   string    `yaml:"source,omitempty"` // "cli", "cron:<job id>", ...
	Answer   string    `yaml:"-"`
}

// Render returns the Markdown document for r.
func Render(r Report) ([]byte, error) {
	meta, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(meta)
	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(strings.TrimRight(r.Answer, "\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// WriteFile renders r to path, creating parent directories.
func WriteFile(path string, r Report) error {
	data, err := Render(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Save writes r into dir under a name derived from its creation time and
// query, and returns the path.
func Save(dir string, r Report) (string, error) {
	path := filepath.Join(dir, FileName(r.Query, r.Created))
	if err := WriteFile(path, r); err != nil {
		return "", err
	}
	return path, nil
}

var reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// FileName returns "<yyyymmdd-hhmmss>-<slug>.md" for query.
func FileName(query string, created time.Time) string {
	slug := strings.Trim(reNonSlug.ReplaceAllString(strings.ToLower(query), "-"), "-")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	if slug == "" {
		slug = "report"
	}
	return created.UTC().Format("20060102-150405") + "-" + slug + ".md"
}
