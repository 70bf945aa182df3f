// Package report keeps the history of aggregate training reports as a
// parquet file so runs can be compared offline.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// Row is one aggregate report.
type Row struct {
	RunID         string  `parquet:"run_id,dict"`
	Tag           string  `parquet:"tag,dict"`
	Episode       int64   `parquet:"episode"`
	UnixMillis    int64   `parquet:"unix_millis"`
	Seconds       float64 `parquet:"seconds"`
	RecentGames   int32   `parquet:"recent_games"`
	RecentWins    int32   `parquet:"recent_wins"`
	RecentWinRate float64 `parquet:"recent_win_rate"`
	TotalWinRate  float64 `parquet:"total_win_rate"`
	Epsilon       float64 `parquet:"epsilon"`
	Updates       int64   `parquet:"updates"`
	Loss          float64 `parquet:"loss"`
	ReplaySize    int32   `parquet:"replay_size"`
	Checkpoint    string  `parquet:"checkpoint,optional"`
}

// Sink receives every report row.
type Sink interface {
	Append(row Row) error
}

// History accumulates rows in memory and rewrites the whole file on every
// Append. Reports are emitted every few hundred episodes so the file stays
// small.
type History struct {
	path string
	rows []Row
}

// NewHistory starts a history at path, keeping rows already stored there.
func NewHistory(path string) (*History, error) {
	h := &History{path: path}
	if _, err := os.Stat(path); err == nil {
		rows, err := Read(path)
		if err != nil {
			return nil, err
		}
		h.rows = rows
	}
	return h, nil
}

// Path returns the parquet file location.
func (h *History) Path() string { return h.path }

// Append adds a row and rewrites the file through a temp file and rename.
func (h *History) Append(row Row) error {
	h.rows = append(h.rows, row)
	return write(h.path, h.rows)
}

func write(outPath string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "landlord_report_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// Read loads every row of a history file.
func Read(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

// Discard drops every row.
type Discard struct{}

func (Discard) Append(Row) error { return nil }
