// Package output persists provider and combined collections as
// timestamped JSON documents.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"etfharvest/internal/holdings"
)

// SchemaVersion identifies the document layout for downstream readers.
const SchemaVersion = 1

const timestampLayout = "20060102_150405"

// ProviderDocument is the per-provider output file.
type ProviderDocument struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Provider      string              `json:"provider"`
	GeneratedAt   string              `json:"generatedAt"`
	Funds         holdings.Collection `json:"funds"`
}

// CombinedDocument merges every provider's collection into one file.
type CombinedDocument struct {
	SchemaVersion int               `json:"schemaVersion"`
	GeneratedAt   string            `json:"generatedAt"`
	Providers     holdings.Combined `json:"providers"`
}

// Writer writes documents into a single output directory.
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// WriteProvider persists one provider's collection and returns the
// file path.
func (w *Writer) WriteProvider(name string, funds holdings.Collection) (string, error) {
	doc := ProviderDocument{
		SchemaVersion: SchemaVersion,
		Provider:      name,
		GeneratedAt:   w.now().Format(time.RFC3339),
		Funds:         funds,
	}
	filename := fmt.Sprintf("%s_data_%s.json", sanitize(name), w.now().Format(timestampLayout))
	return w.write(filename, doc)
}

// WriteCombined persists the all-provider document and returns the
// file path.
func (w *Writer) WriteCombined(providers holdings.Combined) (string, error) {
	doc := CombinedDocument{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   w.now().Format(time.RFC3339),
		Providers:     providers,
	}
	filename := fmt.Sprintf("combined_etf_data_%s.json", w.now().Format(timestampLayout))
	return w.write(filename, doc)
}

func (w *Writer) write(filename string, doc any) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	path := filepath.Join(w.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func sanitize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
