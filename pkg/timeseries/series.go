// Package timeseries holds the timestamped float series shared by market data,
// strategy signals and the signal log.
package timeseries

import (
	"math"
	"sort"
	"time"
)

// Point is one observation. Value may be NaN for "no value at this bar".
type Point struct {
	Time  time.Time
	Value float64
}

// Series is ordered ascending by Time once normalised.
type Series []Point

// MergeStats describes what a Merge changed.
type MergeStats struct {
	Appended int
	Updated  int
}

func (s Series) Len() int { return len(s) }

// Last returns the most recent point.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Values returns the bare values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Sorted returns a copy ordered ascending by time. Equal timestamps keep
// their relative order, so a later duplicate stays later.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// DropNaN removes NaN and ±Inf points.
func (s Series) DropNaN() Series {
	out := make(Series, 0, len(s))
	for _, p := range s {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Map applies fn to every value, keeping timestamps.
func (s Series) Map(fn func(float64) float64) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time, Value: fn(p.Value)}
	}
	return out
}

// Dedupe keeps the last point for every timestamp and returns an ascending series.
func (s Series) Dedupe() Series {
	sorted := s.Sorted()
	out := make(Series, 0, len(sorted))
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// Merge combines existing with incoming. On a duplicate timestamp the incoming
// point wins. The result is ascending and free of duplicates.
func Merge(existing, incoming Series) (Series, MergeStats) {
	var stats MergeStats
	index := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		index[p.Time.UnixNano()] = struct{}{}
	}
	counted := make(map[int64]struct{}, len(incoming))
	for _, p := range incoming {
		k := p.Time.UnixNano()
		if _, dup := counted[k]; dup {
			continue
		}
		counted[k] = struct{}{}
		if _, ok := index[k]; ok {
			stats.Updated++
		} else {
			stats.Appended++
		}
	}

	all := make(Series, 0, len(existing)+len(incoming))
	all = append(all, existing...)
	all = append(all, incoming...)
	return all.Dedupe(), stats
}

// MeanAcross aligns series on timestamps and averages the non-NaN values at
// each timestamp. A timestamp where every contributing value is missing or NaN
// yields NaN.
func MeanAcross(series ...Series) Series {
	type acc struct {
		t     time.Time
		sum   float64
		count int
	}
	buckets := make(map[int64]*acc)
	for _, s := range series {
		for _, p := range s {
			k := p.Time.UnixNano()
			a, ok := buckets[k]
			if !ok {
				a = &acc{t: p.Time}
				buckets[k] = a
			}
			if math.IsNaN(p.Value) {
				continue
			}
			a.sum += p.Value
			a.count++
		}
	}

	out := make(Series, 0, len(buckets))
	for _, a := range buckets {
		v := math.NaN()
		if a.count > 0 {
			v = a.sum / float64(a.count)
		}
		out = append(out, Point{Time: a.t, Value: v})
	}
	return out.Sorted()
}
