package backtest

import (
	"os"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/quantfold/replay/internal/metrics"
	"github.com/quantfold/replay/internal/pricestore"
	"github.com/quantfold/replay/internal/types"
	"github.com/quantfold/replay/pkg/errors"
)

// LoadSignalsCSV reads a signal stream from a CSV file. Rows are returned
// sorted by time with ties kept in file order, which is the arrival order the
// engine executes in.
func LoadSignalsCSV(path string) ([]types.Signal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to open signal file", err)
	}
	defer file.Close()

	var signals []types.Signal
	if err := gocsv.UnmarshalFile(file, &signals); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to unmarshal signals from CSV", err)
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Time.Before(signals[j].Time)
	})

	return signals, nil
}

// LoadBenchmarkCSV reads a benchmark bar file and derives its daily return
// series from the closes. The file must carry exactly one symbol; mixing
// symbols would interleave unrelated series into one.
func LoadBenchmarkCSV(path string) ([]float64, error) {
	store := pricestore.NewStore()
	if err := store.LoadCSV(path); err != nil {
		return nil, err
	}

	symbols := store.Symbols()
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeNoBenchmark, "benchmark file contains no bars")
	}

	if len(symbols) > 1 {
		return nil, errors.Newf(errors.ErrCodeDataParseFailed, "benchmark file must contain exactly one symbol, got %d", len(symbols))
	}

	symbol := symbols[0]
	curve := make([]types.EquityPoint, 0, store.Len())

	for _, date := range store.Dates() {
		if bar, ok := store.At(symbol, date); ok {
			curve = append(curve, types.EquityPoint{Time: date, Value: bar.Close})
		}
	}

	return metrics.DailyReturns(curve), nil
}
