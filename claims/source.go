package claims

import (
	"context"
	"fmt"
)

// Source describes where the historical dataset lives.
type Source struct {
	Format string // csv, parquet or postgres; empty picks by file extension
	Path   string
	DSN    string
	Table  string
}

// Load reads the dataset the source points at and indexes it.
func (s Source) Load(ctx context.Context) (*History, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return NewHistory(records), nil
}

// Records reads the raw rows without indexing them.
func (s Source) Records(ctx context.Context) ([]Record, error) {
	switch s.Format {
	case "":
		return readFileRecords(s.Path)
	case "csv":
		return ReadCSVFile(s.Path)
	case "parquet":
		return ReadParquetFile(s.Path)
	case "postgres":
		return ReadPostgresDSN(ctx, s.DSN, s.Table)
	}
	return nil, fmt.Errorf("unsupported dataset format %q", s.Format)
}

// String names the source for logs and audit records, without credentials.
func (s Source) String() string {
	if s.Format == "postgres" {
		return "postgres:" + s.Table
	}
	return s.Path
}

// WatchPath is the file to watch for changes, empty for database sources.
func (s Source) WatchPath() string {
	if s.Format == "postgres" {
		return ""
	}
	return s.Path
}
