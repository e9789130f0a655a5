// Package pricestore provides read-only, in-memory indexed access to
// per-symbol OHLCV bars. All data is preloaded before a run starts; there is
// no I/O on the lookup path.
package pricestore

import (
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/quantfold/replay/internal/types"
	"github.com/quantfold/replay/pkg/errors"
)

// Store indexes bars by symbol, then by time. Lookups are served from sorted
// slices via binary search. The store is read-only after loading; it is safe
// for concurrent reads but not for concurrent Add and read.
type Store struct {
	// bars[symbol] is sorted ascending by time
	bars map[string][]types.Bar

	// timeIndex[symbol][unixNano] = index into bars[symbol]
	timeIndex map[string]map[int64]int
}

// NewStore creates an empty price store.
func NewStore() *Store {
	return &Store{
		bars:      make(map[string][]types.Bar),
		timeIndex: make(map[string]map[int64]int),
	}
}

// Add inserts bars into the store, keeping each symbol's series sorted by
// time. Bars missing a symbol or a time are skipped as malformed input.
func (s *Store) Add(bars ...types.Bar) {
	touched := make(map[string]bool)

	for _, bar := range bars {
		if bar.Symbol == "" || bar.Time.IsZero() {
			continue
		}

		s.bars[bar.Symbol] = append(s.bars[bar.Symbol], bar)
		touched[bar.Symbol] = true
	}

	for symbol := range touched {
		series := s.bars[symbol]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Time.Before(series[j].Time)
		})

		index := make(map[int64]int, len(series))
		for i, bar := range series {
			index[bar.Time.UnixNano()] = i
		}

		s.timeIndex[symbol] = index
	}
}

// At returns the bar for symbol at exactly t.
func (s *Store) At(symbol string, t time.Time) (types.Bar, bool) {
	index, ok := s.timeIndex[symbol]
	if !ok {
		return types.Bar{}, false
	}

	i, ok := index[t.UnixNano()]
	if !ok {
		return types.Bar{}, false
	}

	return s.bars[symbol][i], true
}

// AtOrBefore returns the latest bar for symbol with time <= t.
func (s *Store) AtOrBefore(symbol string, t time.Time) (types.Bar, bool) {
	series, ok := s.bars[symbol]
	if !ok || len(series) == 0 {
		return types.Bar{}, false
	}

	// first index with time > t
	i := sort.Search(len(series), func(i int) bool {
		return series[i].Time.After(t)
	})
	if i == 0 {
		return types.Bar{}, false
	}

	return series[i-1], true
}

// Symbols returns every symbol the store holds bars for, sorted.
func (s *Store) Symbols() []string {
	symbols := make([]string, 0, len(s.bars))
	for symbol := range s.bars {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}

// Dates returns the union of all bar dates across symbols, ascending.
// The equity curve builder values the portfolio on each of these dates.
func (s *Store) Dates() []time.Time {
	seen := make(map[int64]time.Time)

	for _, series := range s.bars {
		for _, bar := range series {
			seen[bar.Time.UnixNano()] = bar.Time
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		dates = append(dates, t)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	return dates
}

// Len returns the total number of bars across all symbols.
func (s *Store) Len() int {
	n := 0
	for _, series := range s.bars {
		n += len(series)
	}

	return n
}

// LoadCSV reads bars from a CSV file and adds them to the store.
func (s *Store) LoadCSV(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataParseFailed, "failed to open bar file", err)
	}
	defer file.Close()

	var bars []types.Bar
	if err := gocsv.UnmarshalFile(file, &bars); err != nil {
		return errors.Wrap(errors.ErrCodeDataParseFailed, "failed to unmarshal bars from CSV", err)
	}

	s.Add(bars...)

	return nil
}
