package claims

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names of the historical dataset.
var requiredColumns = []string{"date", "county", "claim_type", "claim_count", "total_cost"}

// LoadFile reads a dataset file, choosing the reader by extension
// (.csv or .parquet), and indexes it.
func LoadFile(path string) (*History, error) {
	records, err := readFileRecords(path)
	if err != nil {
		return nil, err
	}
	return NewHistory(records), nil
}

func readFileRecords(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return ReadParquetFile(path)
	case ".csv", "":
		return ReadCSVFile(path)
	}
	return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
}

func ReadCSVFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	records, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadCSV parses a claims table with a header row. Columns may appear in any
// order; metro, population, area_type and avg_cost_per_claim are optional.
func ReadCSV(r io.Reader) ([]Record, error) {
	bufReader := bufio.NewReaderSize(r, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseCSVRow(row, colIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCSVRow(row []string, colIdx map[string]int) (Record, error) {
	get := func(col string) string {
		i, ok := colIdx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := ParseDate(get("date"))
	if err != nil {
		return Record{}, err
	}
	count, err := strconv.Atoi(get("claim_count"))
	if err != nil {
		return Record{}, fmt.Errorf("claim_count: %w", err)
	}
	cost, err := strconv.ParseFloat(get("total_cost"), 64)
	if err != nil {
		return Record{}, fmt.Errorf("total_cost: %w", err)
	}

	rec := Record{
		Date:       date,
		County:     get("county"),
		AreaType:   AreaType(get("area_type")),
		Metro:      get("metro"),
		ClaimType:  get("claim_type"),
		ClaimCount: count,
		TotalCost:  cost,
	}
	if pop := get("population"); pop != "" {
		if rec.Population, err = strconv.Atoi(pop); err != nil {
			return Record{}, fmt.Errorf("population: %w", err)
		}
	}
	rec.AvgCostPerClaim = AvgCost(rec.TotalCost, rec.ClaimCount)
	if avg := get("avg_cost_per_claim"); avg != "" {
		if rec.AvgCostPerClaim, err = strconv.ParseFloat(avg, 64); err != nil {
			return Record{}, fmt.Errorf("avg_cost_per_claim: %w", err)
		}
	}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// WriteCSV writes records in the canonical column order.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	header := []string{"date", "county", "area_type", "metro", "population",
		"claim_type", "claim_count", "total_cost", "avg_cost_per_claim"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date.String(),
			r.County,
			string(r.AreaType),
			r.Metro,
			strconv.Itoa(r.Population),
			r.ClaimType,
			strconv.Itoa(r.ClaimCount),
			strconv.FormatFloat(r.TotalCost, 'f', 2, 64),
			strconv.FormatFloat(r.AvgCostPerClaim, 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
