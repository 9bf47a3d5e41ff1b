package main

import (
	"math/rand"

	"github.com/halvardb/storecore/dbms/btree"
)

// WorkloadType names one of the mixed access patterns run against each
// store.
type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

// ExecuteWorkload runs ops operations of the given mix against idx. Insert
// keys are drawn from [0, ops] so OLTP/OLAP reads mostly hit existing rows.
func ExecuteWorkload(idx Index, wType WorkloadType, ops int) {
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int64(rand.Intn(ops + 1))

		switch wType {
		case OLTP:
			if choice < 90 {
				_, _, _ = idx.Get(key)
			} else {
				_ = idx.Insert(key, btree.RowRef{PageID: uint32(key), Slot: 0})
			}
		case OLAP:
			if choice < 10 {
				_, _, _ = idx.Get(key)
			} else {
				_ = idx.Insert(key, btree.RowRef{PageID: uint32(key), Slot: 0})
			}
		case Reporting:
			_, _ = idx.RangeScan(key, key+100)
		}
	}
}
