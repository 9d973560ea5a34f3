package claims

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ParquetRow is the on-disk layout of a dataset row in Parquet form.
type ParquetRow struct {
	Date            string  `parquet:"date"`
	County          string  `parquet:"county"`
	AreaType        string  `parquet:"area_type"`
	Metro           *string `parquet:"metro,optional"`
	Population      int64   `parquet:"population"`
	ClaimType       string  `parquet:"claim_type"`
	ClaimCount      int64   `parquet:"claim_count"`
	TotalCost       float64 `parquet:"total_cost"`
	AvgCostPerClaim float64 `parquet:"avg_cost_per_claim"`
}

func (p ParquetRow) record() (Record, error) {
	date, err := ParseDate(p.Date)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Date:            date,
		County:          p.County,
		AreaType:        AreaType(p.AreaType),
		Population:      int(p.Population),
		ClaimType:       p.ClaimType,
		ClaimCount:      int(p.ClaimCount),
		TotalCost:       p.TotalCost,
		AvgCostPerClaim: p.AvgCostPerClaim,
	}
	if p.Metro != nil {
		rec.Metro = *p.Metro
	}
	if rec.AvgCostPerClaim == 0 {
		rec.AvgCostPerClaim = AvgCost(rec.TotalCost, rec.ClaimCount)
	}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func ReadParquetFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[ParquetRow](f)
	defer reader.Close()

	const readBatch = 4096
	buf := make([]ParquetRow, readBatch)
	records := make([]Record, 0, reader.NumRows())
	for {
		n, readErr := reader.Read(buf)
		for i := 0; i < n; i++ {
			rec, err := buf[i].record()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", len(records)+1, err)
			}
			records = append(records, rec)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, fmt.Errorf("read parquet: %w", readErr)
		}
	}
	return records, nil
}

// WriteParquetFile writes records with one row group per call.
func WriteParquetFile(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[ParquetRow](file,
		parquet.CreatedBy("claimcast", "1.0", ""),
	)
	rows := make([]ParquetRow, len(records))
	for i, r := range records {
		rows[i] = ParquetRow{
			Date:            r.Date.String(),
			County:          r.County,
			AreaType:        string(r.AreaType),
			Population:      int64(r.Population),
			ClaimType:       r.ClaimType,
			ClaimCount:      int64(r.ClaimCount),
			TotalCost:       r.TotalCost,
			AvgCostPerClaim: r.AvgCostPerClaim,
		}
		if r.Metro != "" {
			metro := r.Metro
			rows[i].Metro = &metro
		}
	}
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet: %w", err)
	}
	return nil
}
