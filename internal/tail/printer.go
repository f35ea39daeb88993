package tail

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/okian/lobstream/internal/client"
)

const maxLineText = 280

// Printer renders consumer items as one line each.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Render implements client.Renderer.
func (p *Printer) Render(items []client.Item, backfill bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if backfill {
		fmt.Fprintf(p.out, "--- %d recent posts ---\n", len(items))
	}
	for _, it := range items {
		fmt.Fprintln(p.out, FormatItem(it))
	}
}

// FormatItem renders one item as "[source] author: text #topic (sentiment)".
func FormatItem(it client.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", it.Source, it.Author, clip(oneLine(it.Text), maxLineText))
	for _, t := range it.Topics {
		b.WriteString(" #")
		b.WriteString(t)
	}
	if it.Sentiment != "" {
		fmt.Fprintf(&b, " (%s)", it.Sentiment)
	}
	if it.ImageURL != "" {
		b.WriteString(" <")
		b.WriteString(it.ImageURL)
		b.WriteString(">")
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
