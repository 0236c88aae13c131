package cache

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
)

// JSONLWriter appends one JSON object per line to a log file. Appends are
// serialized; failures are the caller's to ignore (the usage log is
// fire-and-forget).
type JSONLWriter struct {
	mu   sync.Mutex
	path string
}

// NewJSONLWriter creates a writer appending to path.
func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

// Append marshals v and appends it as a single line.
func (w *JSONLWriter) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "jsonl: marshal")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "jsonl: open %s", w.path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(append(data, '\n')); err != nil {
		return eris.Wrapf(err, "jsonl: append %s", w.path)
	}
	return nil
}
