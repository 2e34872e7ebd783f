package indicator

import (
	"fmt"
	"math"
	"strings"

	"llm-perps-trader/internal/types"
)

// Series is an ordered frame of candle columns plus appended indicator
// columns. Rows stay aligned with the original candle order (oldest first);
// history is never rewritten, columns are only added.
type Series struct {
	ts    []int64
	cols  map[string][]float64
	order []string
}

// Base columns present in every series.
var baseColumns = []string{"open", "high", "low", "close", "volume"}

// FromCandles builds a series from an ordered candle slice. Duplicate
// timestamps are dropped (first wins) and rows are assumed oldest to newest.
func FromCandles(candles []types.Candle) *Series {
	s := &Series{cols: make(map[string][]float64)}
	seen := make(map[int64]bool, len(candles))
	for _, c := range candles {
		if seen[c.Ts] {
			continue
		}
		seen[c.Ts] = true
		s.ts = append(s.ts, c.Ts)
		s.cols["open"] = append(s.cols["open"], c.Open)
		s.cols["high"] = append(s.cols["high"], c.High)
		s.cols["low"] = append(s.cols["low"], c.Low)
		s.cols["close"] = append(s.cols["close"], c.Close)
		s.cols["volume"] = append(s.cols["volume"], c.Volume)
	}
	s.order = append(s.order, baseColumns...)
	return s
}

func (s *Series) Len() int {
	return len(s.ts)
}

func (s *Series) Has(name string) bool {
	_, ok := s.cols[name]
	return ok
}

// Column returns the named column, or nil when absent.
func (s *Series) Column(name string) []float64 {
	return s.cols[name]
}

// Columns returns column names in insertion order.
func (s *Series) Columns() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Last returns the most recent value of a column. ok is false when the
// column is absent, the series is empty, or the value is not finite.
func (s *Series) Last(name string) (float64, bool) {
	col, ok := s.cols[name]
	if !ok || len(col) == 0 {
		return 0, false
	}
	v := col[len(col)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Tail returns the last k values of a column (fewer when the series is
// shorter than k).
func (s *Series) Tail(name string, k int) []float64 {
	col, ok := s.cols[name]
	if !ok {
		return nil
	}
	if len(col) < k {
		k = len(col)
	}
	out := make([]float64, k)
	copy(out, col[len(col)-k:])
	return out
}

func (s *Series) set(name string, vals []float64) {
	if _, exists := s.cols[name]; !exists {
		s.order = append(s.order, name)
	}
	s.cols[name] = vals
}

// sanitize replaces non-finite values with NaN, forward-fills each column,
// then drops any leading rows still carrying NaN in some column. There is
// deliberately no backward fill: filling from the future would leak
// look-ahead information into the indicators.
func (s *Series) sanitize() {
	for name, col := range s.cols {
		last := math.NaN()
		for i, v := range col {
			if math.IsInf(v, 0) {
				v = math.NaN()
			}
			if math.IsNaN(v) {
				col[i] = last
			} else {
				col[i] = v
				last = v
			}
		}
		s.cols[name] = col
	}

	firstValid := 0
	for i := 0; i < s.Len(); i++ {
		clean := true
		for _, col := range s.cols {
			if math.IsNaN(col[i]) {
				clean = false
				break
			}
		}
		if clean {
			firstValid = i
			break
		}
		firstValid = i + 1
	}

	if firstValid > 0 {
		s.ts = s.ts[firstValid:]
		for name, col := range s.cols {
			s.cols[name] = col[firstValid:]
		}
	}
}

// CSV renders the frame for the judgment prompt, one row per candle with
// all columns in insertion order.
func (s *Series) CSV() string {
	var b strings.Builder
	b.WriteString("ts")
	for _, name := range s.order {
		b.WriteByte(',')
		b.WriteString(name)
	}
	b.WriteByte('\n')
	for i := 0; i < s.Len(); i++ {
		fmt.Fprintf(&b, "%d", s.ts[i])
		for _, name := range s.order {
			v := s.cols[name][i]
			if math.IsNaN(v) {
				b.WriteString(",")
			} else {
				fmt.Fprintf(&b, ",%.6f", v)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
