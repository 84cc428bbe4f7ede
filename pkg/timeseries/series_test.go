package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func TestMergeLastWriteWins(t *testing.T) {
	existing := Series{{at(0), 1}, {at(1), 0}}
	incoming := Series{{at(1), -1}, {at(2), 1}}

	merged, stats := Merge(existing, incoming)
	require.Len(t, merged, 3)
	assert.Equal(t, 1.0, merged[0].Value)
	assert.Equal(t, -1.0, merged[1].Value)
	assert.Equal(t, 1.0, merged[2].Value)
	assert.Equal(t, MergeStats{Appended: 1, Updated: 1}, stats)
}

func TestMergeUnorderedIncoming(t *testing.T) {
	merged, _ := Merge(nil, Series{{at(3), 3}, {at(1), 1}, {at(3), 4}})
	require.Len(t, merged, 2)
	assert.True(t, merged[0].Time.Equal(at(1)))
	assert.Equal(t, 4.0, merged[1].Value, "later duplicate in the same batch wins")
}

func TestMeanAcross(t *testing.T) {
	a := Series{{at(0), 1}, {at(1), 1}, {at(2), math.NaN()}}
	b := Series{{at(0), -1}, {at(1), 0}, {at(2), math.NaN()}}
	c := Series{{at(0), 0}, {at(1), 1}}

	mean := MeanAcross(a, b, c)
	require.Len(t, mean, 3)
	assert.InDelta(t, 0.0, mean[0].Value, 1e-12)
	assert.InDelta(t, 2.0/3.0, mean[1].Value, 1e-12)
	assert.True(t, math.IsNaN(mean[2].Value), "all-missing timestamp must be NaN")
}

func TestMeanAcrossStaysInRange(t *testing.T) {
	vals := []float64{-1, 0, 1}
	var sets []Series
	for i := 0; i < 5; i++ {
		var s Series
		for j := 0; j < 20; j++ {
			s = append(s, Point{at(j), vals[(i*7+j*3)%3]})
		}
		sets = append(sets, s)
	}
	for _, p := range MeanAcross(sets...) {
		assert.GreaterOrEqual(t, p.Value, -1.0)
		assert.LessOrEqual(t, p.Value, 1.0)
	}
}

func TestDropNaN(t *testing.T) {
	s := Series{{at(0), math.NaN()}, {at(1), 2}, {at(2), math.Inf(1)}}
	got := s.DropNaN()
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Value)
}

func TestRolling(t *testing.T) {
	s := Series{{at(0), 1}, {at(1), 2}, {at(2), 3}, {at(3), 4}}

	mean := RollingMean(s, 3)
	assert.True(t, math.IsNaN(mean[1].Value))
	assert.InDelta(t, 2.0, mean[2].Value, 1e-12)
	assert.InDelta(t, 3.0, mean[3].Value, 1e-12)

	std := RollingStd(s, 3)
	assert.True(t, math.IsNaN(std[0].Value))
	assert.InDelta(t, 1.0, std[3].Value, 1e-12)
}
