package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/i5heu/GoChunkRing/internal/resultstore"
)

// concurrencyStats holds "5%-avg-min", median, and "5%-avg-max" for each x value.
type concurrencyStats struct {
	concurrency float64 // replaced with category index
	orig        float64 // original x value
	min         float64 // "average of bottom 5%"
	median      float64
	max         float64 // "average of top 5%"
}

// statsPoints implements XYer and YErrorer for concurrencyStats, so we can plot lines + error bars.
type statsPoints []concurrencyStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].concurrency, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	low = s[i].median - s[i].min
	high = s[i].max - s[i].median
	return low, high
}

// series maps a line name to x value to samples.
type series map[string]map[float64][]float64

func (s series) add(name string, x, v float64) {
	if _, ok := s[name]; !ok {
		s[name] = make(map[float64][]float64)
	}
	s[name][x] = append(s[name][x], v)
}

// nsPerMessage returns the measured latency of one consumed message.
func nsPerMessage(b resultstore.BenchmarkResult) (float64, bool) {
	dur, err := time.ParseDuration(b.ActualElapsed)
	if err != nil || b.NumMessagesConsumed == 0 {
		return 0, false
	}
	return float64(dur.Nanoseconds()) / float64(b.NumMessagesConsumed), true
}

// groupByConcurrency groups ns/msg by CPU count, implementation and producers+consumers.
func groupByConcurrency(sessions []resultstore.FullReport) map[int]series {
	out := make(map[int]series)
	for _, session := range sessions {
		cpus := session.SystemInfo.CPUs()
		if _, ok := out[cpus]; !ok {
			out[cpus] = make(series)
		}
		for _, b := range session.Benchmarks {
			if v, ok := nsPerMessage(b); ok {
				out[cpus].add(b.Implementation, float64(b.NumProducers+b.NumConsumers), v)
			}
		}
	}
	return out
}

// groupByChunkGeometry groups chunked-queue throughput by cells per chunk,
// one line per producer/consumer setting.
func groupByChunkGeometry(sessions []resultstore.FullReport) series {
	out := make(series)
	for _, session := range sessions {
		for _, b := range session.Benchmarks {
			if b.CellsPerChunk == 0 || b.Throughput <= 0 {
				continue
			}
			name := fmt.Sprintf("%dP/%dC spare=%d", b.NumProducers, b.NumConsumers, b.SpareChunks)
			out.add(name, float64(b.CellsPerChunk), b.Throughput)
		}
	}
	return out
}

// buildStats computes "average of bottom 5%", median, and "average of top 5%".
func buildStats(xMap map[float64][]float64) []concurrencyStats {
	var out []concurrencyStats
	for x, vals := range xMap {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out = append(out, concurrencyStats{
			concurrency: x,
			orig:        x,
			min:         averageOfRange(vals, 0.0, 0.05),
			median:      median(vals),
			max:         averageOfRange(vals, 0.95, 1.0),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].orig < out[b].orig })
	return out
}

// averageOfRange returns the average of sortedVals in [startFrac, endFrac] of its length.
// E.g. averageOfRange(vals, 0, 0.05) is the average of the bottom 5%.
func averageOfRange(sortedVals []float64, startFrac, endFrac float64) float64 {
	n := len(sortedVals)
	if n == 0 {
		return 0
	}
	startIndex := max(int(float64(n)*startFrac), 0)
	endIndex := min(int(float64(n)*endFrac), n)
	if startIndex >= endIndex {
		// fallback to median if 5% slice is too small
		return median(sortedVals)
	}
	sum := 0.0
	for i := startIndex; i < endIndex; i++ {
		sum += sortedVals[i]
	}
	return sum / float64(endIndex-startIndex)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// formatNs nicely formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}

// formatRate formats messages per second with a k/M suffix.
func formatRate(v float64) string {
	switch {
	case v < 1e3:
		return fmt.Sprintf("%.0f/s", v)
	case v < 1e6:
		return fmt.Sprintf("%.1fk/s", v/1e3)
	default:
		return fmt.Sprintf("%.1fM/s", v/1e6)
	}
}
