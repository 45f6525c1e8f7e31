package flagsynctest

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Record is a captured log entry.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]slog.Value
}

// LogRecorder is a slog.Handler keeping every record in memory.
type LogRecorder struct {
	mu      sync.Mutex
	records []Record
	attrs   []slog.Attr
	root    *LogRecorder
}

func NewLogRecorder() *LogRecorder {
	r := &LogRecorder{}
	r.root = r

	return r
}

// Logger returns a logger writing into the recorder at every level.
func (r *LogRecorder) Logger() *slog.Logger {
	return slog.New(r)
}

func (r *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

//nolint:gocritic
func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	captured := Record{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   make(map[string]slog.Value, record.NumAttrs()+len(r.attrs)),
	}

	for _, attr := range r.attrs {
		captured.Attrs[attr.Key] = attr.Value
	}

	record.Attrs(func(attr slog.Attr) bool {
		captured.Attrs[attr.Key] = attr.Value
		return true
	})

	r.root.mu.Lock()
	defer r.root.mu.Unlock()

	r.root.records = append(r.root.records, captured)

	return nil
}

func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogRecorder{
		attrs: append(slices.Clone(r.attrs), attrs...),
		root:  r.root,
	}
}

// WithGroup is not needed by the code under test; groups are flattened.
func (r *LogRecorder) WithGroup(string) slog.Handler {
	return r
}

func (r *LogRecorder) Records() []Record {
	r.root.mu.Lock()
	defer r.root.mu.Unlock()

	return slices.Clone(r.root.records)
}

// Errors returns the records logged at slog.LevelError or above.
func (r *LogRecorder) Errors() []Record {
	var errs []Record
	for _, record := range r.Records() {
		if record.Level >= slog.LevelError {
			errs = append(errs, record)
		}
	}

	return errs
}
