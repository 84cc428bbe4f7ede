package timeseries

import "math"

// RollingMean is the trailing mean over window bars. The first window-1 bars
// are NaN, as is any window containing a NaN.
func RollingMean(s Series, window int) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time, Value: math.NaN()}
		if window <= 0 || i+1 < window {
			continue
		}
		sum := 0.0
		for j := i + 1 - window; j <= i; j++ {
			sum += s[j].Value
		}
		out[i].Value = sum / float64(window)
	}
	return out
}

// RollingStd is the trailing sample standard deviation (n-1 denominator).
// A window of one bar has no sample deviation and yields NaN.
func RollingStd(s Series, window int) Series {
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time, Value: math.NaN()}
		if window <= 1 || i+1 < window {
			continue
		}
		mean := 0.0
		for j := i + 1 - window; j <= i; j++ {
			mean += s[j].Value
		}
		mean /= float64(window)
		ss := 0.0
		for j := i + 1 - window; j <= i; j++ {
			d := s[j].Value - mean
			ss += d * d
		}
		out[i].Value = math.Sqrt(ss / float64(window-1))
	}
	return out
}
