// Command storebench runs an insert/OLTP/OLAP/range-scan workload against
// dbms/btree.BTree and, side by side on the same operations, a Pebble-backed
// store, and writes per-operation latency and memory figures to a CSV file.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/halvardb/storecore/dbms/btree"
)

func main() {
	outPath := flag.String("out", "storebench_results.csv", "CSV output path")
	scale := flag.Int("n", 100_000, "number of keys to insert per store")
	workdir := flag.String("workdir", "", "directory for scratch index files (defaults to a temp dir)")
	flag.Parse()

	dir := *workdir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "storebench-*")
		if err != nil {
			log.Fatalf("storebench: create workdir: %v", err)
		}
		defer os.RemoveAll(dir)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("storebench: create %s: %v", *outPath, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"}); err != nil {
		log.Fatalf("storebench: write header: %v", err)
	}

	bt, err := btree.Create(filepath.Join(dir, "storebench.bt"))
	if err != nil {
		log.Fatalf("storebench: create btree: %v", err)
	}
	defer bt.Close()
	runSuite(w, "BTree", strconv.Itoa(btree.MaxLeafEntries), bt, *scale)

	pb, err := openPebbleStore(filepath.Join(dir, "storebench.pebble"))
	if err != nil {
		log.Fatalf("storebench: open pebble: %v", err)
	}
	defer pb.Close()
	runSuite(w, "Pebble", "lsm", pb, *scale)

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("storebench: flush csv: %v", err)
	}
	fmt.Printf("storebench: wrote results to %s\n", *outPath)
}

func runSuite(w *csv.Writer, name, conf string, idx Index, n int) {
	log.Printf("storebench: loading %s (config=%s, n=%d)", name, conf, n)

	start := time.Now()
	for k := 0; k < n; k++ {
		_ = idx.Insert(int64(k), btree.RowRef{PageID: uint32(k), Slot: 0})
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	stats := GetDetailedMem()
	Record(w, BenchResult{
		Name:      name,
		Config:    conf,
		Operation: "Footprint_SteadyState",
		LatencyNs: insertLatency,
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	})

	start = time.Now()
	ExecuteWorkload(idx, OLTP, n/2)
	Record(w, BenchResult{name, conf, "Workload_OLTP", time.Since(start).Nanoseconds() / int64(n/2), GetDetailedMem().AllocMB, 0})

	start = time.Now()
	ExecuteWorkload(idx, OLAP, n/2)
	Record(w, BenchResult{name, conf, "Workload_OLAP", time.Since(start).Nanoseconds() / int64(n/2), GetDetailedMem().AllocMB, 0})

	start = time.Now()
	ExecuteWorkload(idx, Reporting, 100)
	Record(w, BenchResult{name, conf, "Workload_Range", time.Since(start).Nanoseconds() / 100, GetDetailedMem().AllocMB, 0})
}
