package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var csvHeader = []string{"timestamp", "user_id", "question", "answer"}

// CSVStore is the flat-file alternative sink: one row per interaction
// with a header line. It tolerates files written before the user_id
// column existed (three-column rows read back as anonymous).
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore creates a store backed by the CSV file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Init ensures the file and its parent directory exist and writes the
// header once. Calling it on an existing file is a no-op.
func (s *CSVStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure log dir: %w", err)
		}
	}

	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat log file: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Append writes one record to the end of the file.
func (s *CSVStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	// O_CREATE keeps appends working if the file vanished after Init.
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{rec.Timestamp.Format(time.RFC3339), rec.UserID, rec.Question, rec.Answer}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// List reads the whole file and returns matching records newest-first.
func (s *CSVStore) List(opts ListOptions) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // legacy files have 3-column rows

	var out []Record
	first := true
	for id := int64(1); ; id++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "timestamp" {
				id--
				continue
			}
		}

		rec := Record{ID: id}
		switch len(row) {
		case 4:
			rec.UserID = row[1]
			rec.Question = row[2]
			rec.Answer = row[3]
		case 3:
			// Pre-user_id format: timestamp, question, answer.
			rec.Question = row[1]
			rec.Answer = row[2]
		default:
			continue
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, row[0])

		if opts.UserID != "" && rec.UserID != opts.UserID {
			continue
		}
		out = append(out, rec)
	}

	// Reverse to newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
