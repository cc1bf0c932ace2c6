// Package export writes a transcript in formats other than the native text file.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"sita/core"
)

// Document is what every exporter receives.
type Document struct {
	SessionID  string      `json:"session_id" yaml:"session_id"`
	Source     string      `json:"source" yaml:"source"`
	ExportedAt time.Time   `json:"exported_at" yaml:"exported_at"`
	Turns      []core.Turn `json:"turns" yaml:"turns"`
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{}, nil
	case "jsonl":
		return &JSONLExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, jsonl, yaml, md)", format)
	}
}

// ForPath picks an exporter from the file extension. ok is false for .txt and anything
// unknown, which are written as a plain copy of the transcript file.
func ForPath(path string) (exp Exporter, ok bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" || strings.EqualFold(ext, "txt") {
		return nil, false
	}
	exp, err := NewExporter(ext)
	return exp, err == nil
}
