package main

import (
	"encoding/csv"
	"runtime"
	"strconv"
)

// BenchResult is one row of the output CSV.
type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

// MemoryStats snapshots the Go runtime's heap accounting.
type MemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

// GetDetailedMem forces a GC so the reading reflects live data rather than
// not-yet-collected garbage, then snapshots runtime.MemStats.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

// Record appends one result row to w.
func Record(w *csv.Writer, res BenchResult) {
	w.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}
