package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var csvHeader = []string{"timestamp", "title", "video_url"}

// CSVStore keeps history in a CSV file with a timestamp,title,video_url header
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVStore opens the CSV file at path, writing the header if the file is new
func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create history file: %w", err)
		}
		w := csv.NewWriter(f)
		_ = w.Write(csvHeader)
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write history header: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close history file: %w", err)
		}
	}

	return &CSVStore{path: path}, nil
}

// Append writes one row to the end of the file
func (s *CSVStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{rec.Timestamp.Format(TimestampLayout), rec.Title, rec.URL}); err != nil {
		return fmt.Errorf("failed to write history record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Recent reads the file and returns the last limit rows, newest first.
// Malformed rows are skipped.
func (s *CSVStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []Record
	for first := true; ; first = false {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("failed to read history file: %w", err)
		}
		if first && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) < 3 {
			continue
		}
		ts, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
		if err != nil {
			continue
		}
		records = append(records, Record{Timestamp: ts, Title: row[1], URL: row[2]})
	}

	// Reverse into newest-first order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close is a no-op; the file is opened per operation
func (s *CSVStore) Close() error {
	return nil
}
