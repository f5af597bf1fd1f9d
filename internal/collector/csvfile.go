package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"AShareLens/internal/model"
)

// CSVFetcher reads exported daily klines from <Dir>/<symbol>.csv.
type CSVFetcher struct {
	Dir string
}

func (f *CSVFetcher) Name() string { return "csv" }

func (f *CSVFetcher) FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, err := ReadCSV(filepath.Join(f.Dir, req.Symbol+".csv"), req.Symbol)
	if err != nil {
		return nil, err
	}
	series.Adjust = req.Adjust
	series = series.Window(req.Start, req.End)
	if req.Period != "" && req.Period != series.Period {
		return Resample(series, req.Period)
	}
	return series, nil
}

// ReadCSV parses one kline file. The first row is the header.
func ReadCSV(path, symbol string) (*model.PriceSeries, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv %s: %w", path, ErrNoDateColumn)
	}
	series, err := ParseTable(symbol, records[0], records[1:])
	if err != nil {
		return nil, err
	}
	if info, err := file.Stat(); err == nil {
		series.FetchedAt = info.ModTime()
	} else {
		series.FetchedAt = time.Now()
	}
	return series, nil
}
