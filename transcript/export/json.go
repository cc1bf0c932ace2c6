package export

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// JSONExporter writes the whole document as one indented JSON object.
type JSONExporter struct{}

func (e *JSONExporter) Export(doc *Document, w io.Writer) error {
	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func (e *JSONExporter) Extension() string {
	return "json"
}

// JSONLExporter writes one turn per line.
type JSONLExporter struct{}

func (e *JSONLExporter) Export(doc *Document, w io.Writer) error {
	for _, turn := range doc.Turns {
		data, err := sonic.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to encode turn: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
