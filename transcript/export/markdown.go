package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownExporter renders the conversation for reading, one section per turn.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", doc.SessionID)
	if !doc.ExportedAt.IsZero() {
		fmt.Fprintf(&b, "**Exported:** %s  \n", doc.ExportedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "**Turns:** %d\n\n---\n\n", len(doc.Turns))

	for i, turn := range doc.Turns {
		fmt.Fprintf(&b, "**%s:**\n\n%s\n\n", turn.Role.Label(), escapeMarkdown(turn.Text))
		if i < len(doc.Turns)-1 {
			b.WriteString("---\n\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// escapeMarkdown keeps bold markers in the text from closing the role labels. Code fences
// are left alone.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			continue
		}
		if !inCode {
			lines[i] = strings.ReplaceAll(line, "**", `\*\*`)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
