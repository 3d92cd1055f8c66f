package leadlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gopartnerr/zeyatek/internal/model"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Header is the first row of every lead log.
var Header = []string{"Name", "Email", "Message"}

// Writer appends leads to a local CSV file. The file is only ever extended;
// the header row is written once, before the first lead.
//
// Appends are serialized by mu so rows from concurrent requests never
// interleave and the header check cannot race.
type Writer struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger
}

// Open prepares a writer for path, creating its parent directory. The file
// itself is created lazily by the first Append.
func Open(path string, logger zerolog.Logger) (*Writer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("leadlog: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("leadlog: mkdir: %w", err)
	}
	return &Writer{
		path:   path,
		logger: logger.With().Str("component", "leadlog").Logger(),
	}, nil
}

// Path returns the lead log location.
func (w *Writer) Path() string {
	return w.path
}

// Append persists one lead. The row is encoded in full and written with a
// single write call, then synced before returning.
func (w *Writer) Append(lead model.Lead) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("leadlog: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("leadlog: stat: %w", err)
	}

	rows := [][]string{lead.Row()}
	if info.Size() == 0 {
		rows = append([][]string{Header}, rows...)
	}
	payload, err := encodeRows(rows)
	if err != nil {
		_ = f.Close()
		return err
	}

	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("leadlog: write row: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("leadlog: sync row: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("leadlog: close: %w", err)
	}

	w.logger.Debug().Int("bytes", len(payload)).Bool("header", len(rows) == 2).Msg("lead appended")
	return nil
}

// SnapshotTo copies the current log to dstPath atomically. It holds the
// append lock so the copy never ends in a partial row. When no lead has been
// written yet it returns an error wrapping os.ErrNotExist.
func (w *Writer) SnapshotTo(dstPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("leadlog: open for snapshot: %w", err)
	}
	defer src.Close()

	if err := atomic.WriteFile(dstPath, src); err != nil {
		return fmt.Errorf("leadlog: write snapshot: %w", err)
	}
	return nil
}

func encodeRows(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.UseCRLF = true
	if err := cw.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("leadlog: encode row: %w", err)
	}
	return buf.Bytes(), nil
}
