package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
)

// Printer renders Markdown for the terminal.
type Printer struct {
	out   io.Writer
	style string
}

// NewPrinter returns a printer using a glamour style ("auto", "dark",
// "light", "notty", ...). An empty style writes raw Markdown.
func NewPrinter(out io.Writer, style string) *Printer {
	return &Printer{out: out, style: style}
}

func (p *Printer) Print(md string) error {
	if p.style == "" || p.style == "raw" {
		_, err := io.WriteString(p.out, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(p.style),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(p.out, rendered)
	return err
}
