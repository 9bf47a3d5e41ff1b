package main

import "github.com/halvardb/storecore/dbms/btree"

// Index is the narrow surface both stores under comparison expose: enough
// to drive the OLTP/OLAP/Reporting workload mix without assuming which
// storage engine is underneath.
type Index interface {
	Insert(key int64, ref btree.RowRef) error
	Get(key int64) (btree.RowRef, bool, error)
	RangeScan(start, end int64) ([]btree.ScanEntry, error)
	Close() error
}
