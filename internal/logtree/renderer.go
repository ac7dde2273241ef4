package logtree

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// TimestampLayout is the sortable form used for the Timestamp field.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultIndent is the per-level indentation.
const DefaultIndent = "    "

// Status glyphs.
const (
	GlyphSuccess = "√"
	GlyphFail    = "x"
	GlyphWaiting = "⌛"
)

// outputMu serializes writes from every Renderer in the process so entries
// from concurrent jobs never interleave.
var outputMu sync.Mutex

// Option customizes a Renderer.
type Option func(*Renderer)

// WithColor toggles ANSI styling of glyphs, headers and labels.
func WithColor(enabled bool) Option {
	return func(r *Renderer) { r.color = enabled }
}

// WithClock overrides the time source used for the Timestamp field.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIndent overrides the per-level indentation.
func WithIndent(indent string) Option {
	return func(r *Renderer) { r.indent = indent }
}

// Renderer writes entries to an output sink.
type Renderer struct {
	out    io.Writer
	now    func() time.Time
	indent string
	color  bool
	styles styles
}

type styles struct {
	header  *color.Color
	label   *color.Color
	success *color.Color
	fail    *color.Color
	waiting *color.Color
}

// NewRenderer builds a Renderer writing to w (os.Stdout when nil).
func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	if w == nil {
		w = os.Stdout
	}
	r := &Renderer{
		out:    w,
		now:    time.Now,
		indent: DefaultIndent,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.styles = newStyles(r.color)
	return r
}

func newStyles(enabled bool) styles {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return styles{
		header:  mk(color.Bold),
		label:   mk(color.Bold),
		success: mk(color.FgGreen, color.Bold),
		fail:    mk(color.FgRed, color.Bold),
		waiting: mk(color.FgYellow, color.Bold),
	}
}

// Render writes e as a top-level entry: a blank separator line, the header,
// a leading Timestamp field and then the nested content. The whole entry is
// written with a single Write call.
func (r *Renderer) Render(e Entry) error {
	text := r.Format(e)
	outputMu.Lock()
	defer outputMu.Unlock()
	if _, err := io.WriteString(r.out, text); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// Format returns the text Render would write for e.
func (r *Renderer) Format(e Entry) string {
	var b strings.Builder
	b.WriteString("\n")
	r.write(&b, e, 0, true)
	return b.String()
}

func (r *Renderer) write(b *strings.Builder, e Entry, depth int, withTimestamp bool) {
	prefix := strings.Repeat(r.indent, depth)
	b.WriteString(prefix)
	b.WriteString(r.header(e))
	b.WriteString("\n")

	fields := e.Fields
	if withTimestamp {
		fields = append([]Field{{Label: "Timestamp", Value: r.now().UTC().Format(TimestampLayout)}}, fields...)
	}
	inner := prefix + r.indent
	for _, f := range fields {
		b.WriteString(inner)
		b.WriteString(r.styles.label.Sprint(f.Label))
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	for _, child := range e.Children {
		r.write(b, child, depth+1, false)
	}
}

func (r *Renderer) header(e Entry) string {
	text := r.styles.header.Sprint(e.Header)
	switch e.Status {
	case StatusSuccess:
		return r.styles.success.Sprint(GlyphSuccess) + " " + text
	case StatusFail:
		return r.styles.fail.Sprint(GlyphFail) + " " + text
	case StatusWaiting:
		return r.styles.waiting.Sprint(GlyphWaiting) + " " + text
	default:
		return text
	}
}
