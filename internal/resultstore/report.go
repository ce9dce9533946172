// Package resultstore holds benchmark report types and persists them as JSON
// files or in a SQLite database.
package resultstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation      string  `json:"implementation"`
	NumProducers        int     `json:"num_producers"`
	NumConsumers        int     `json:"num_consumers"`
	NumMessages         int64   `json:"num_messages"`          // produced count
	NumMessagesConsumed int64   `json:"num_messages_consumed"` // consumed count
	TestDuration        string  `json:"test_duration"`         // e.g. "10s"
	ActualElapsed       string  `json:"actual_elapsed"`        // measured time
	Throughput          float64 `json:"throughput_msgs_sec"`   // based on consumed count
	CellsPerChunk       uint32  `json:"cells_per_chunk,omitempty"`
	SpareChunks         int     `json:"spare_chunks,omitempty"`
	Timestamp           int64   `json:"timestamp"`
	GoVersion           string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// CPUs is the GOMAXPROCS value the session ran with.
func (s SystemInfo) CPUs() int {
	if s.SimulatedCPUCount != 0 {
		return s.SimulatedCPUCount
	}
	return s.NumCPU
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// LoadJSON reads every session stored in a JSON report file.
func LoadJSON(path string) ([]FullReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sessions []FullReport
	if err := sonnet.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("resultstore: decode %s: %w", path, err)
	}
	return sessions, nil
}

// AppendJSON adds sessions to the report file, creating it when missing.
func AppendJSON(path string, sessions []FullReport) error {
	previous, err := LoadJSON(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	data, err := sonnet.MarshalIndent(append(previous, sessions...), "", "  ")
	if err != nil {
		return fmt.Errorf("resultstore: encode: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
