package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// PrettyOptions configures a PrettyHandler.
type PrettyOptions struct {
	Level slog.Leveler
	// TimeFormat defaults to time.TimeOnly.
	TimeFormat string
	NoColor    bool
}

// palette holds the escape sequences for one handler; every field is empty
// when colour is off.
type palette struct {
	reset, dim, bold, attr string
	debug, info, warn, err string
}

var ansi = palette{
	reset: "\033[0m",
	dim:   "\033[90m",
	bold:  "\033[1m",
	attr:  "\033[36m",
	debug: "\033[90m",
	info:  "\033[34m",
	warn:  "\033[33m",
	err:   "\033[31m",
}

func (p palette) level(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return p.err
	case l >= slog.LevelWarn:
		return p.warn
	case l >= slog.LevelInfo:
		return p.info
	default:
		return p.debug
	}
}

// PrettyHandler writes one line per record for people watching a terminal:
//
//	15:04:05 INFO  model loaded name=demo window=5
//
// Attributes added through WithAttrs are rendered once and reused.
type PrettyHandler struct {
	level   slog.Leveler
	timeFmt string
	colors  palette

	mu *sync.Mutex
	w  io.Writer

	prefix string // group prefix for keys, "a.b."
	fixed  []byte // pre-rendered WithAttrs attributes, each preceded by a space
}

func NewPrettyHandler(w io.Writer, opts *PrettyOptions) *PrettyHandler {
	if opts == nil {
		opts = &PrettyOptions{}
	}
	h := &PrettyHandler{
		level:   opts.Level,
		timeFmt: opts.TimeFormat,
		mu:      &sync.Mutex{},
		w:       w,
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	if h.timeFmt == "" {
		h.timeFmt = time.TimeOnly
	}
	if !opts.NoColor {
		h.colors = ansi
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	c := h.colors
	buf := make([]byte, 0, 256)

	if !r.Time.IsZero() {
		buf = append(buf, c.dim...)
		buf = r.Time.AppendFormat(buf, h.timeFmt)
		buf = append(buf, c.reset...)
		buf = append(buf, ' ')
	}
	buf = append(buf, c.level(r.Level)...)
	buf = append(buf, c.bold...)
	buf = appendPadded(buf, r.Level.String(), 5)
	buf = append(buf, c.reset...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	if len(h.fixed) > 0 || r.NumAttrs() > 0 {
		buf = append(buf, c.attr...)
		buf = append(buf, h.fixed...)
		r.Attrs(func(a slog.Attr) bool {
			buf = appendAttr(buf, h.prefix, a)
			return true
		})
		buf = append(buf, c.reset...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.fixed = append([]byte(nil), h.fixed...)
	for _, a := range attrs {
		next.fixed = appendAttr(next.fixed, h.prefix, a)
	}
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// appendAttr renders " key=value". Empty attributes are skipped and groups
// are flattened into dotted keys, as slog's text handler does.
func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, prefix, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	switch a.Value.Kind() {
	case slog.KindTime:
		buf = a.Value.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindDuration:
		buf = append(buf, a.Value.Duration().String()...)
	default:
		buf = appendValue(buf, a.Value.String())
	}
	return buf
}

func appendValue(buf []byte, s string) []byte {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func appendPadded(buf []byte, s string, width int) []byte {
	buf = append(buf, s...)
	for i := len(s); i < width; i++ {
		buf = append(buf, ' ')
	}
	return buf
}

// colorable reports whether w is a terminal that should get escape codes.
func colorable(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
