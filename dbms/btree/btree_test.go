package btree

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/halvardb/storecore/dbms/page"
)

func newTestTree(t *testing.T) *BTree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.bt")
	bt, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { bt.Close() })
	return bt
}

func TestInsertGet(t *testing.T) {
	bt := newTestTree(t)
	if err := bt.Insert(10, RowRef{PageID: 1, Slot: 0}); err != nil {
		t.Fatalf("Insert(10): %v", err)
	}
	if err := bt.Insert(20, RowRef{PageID: 2, Slot: 1}); err != nil {
		t.Fatalf("Insert(20): %v", err)
	}
	if err := bt.Insert(5, RowRef{PageID: 0, Slot: 2}); err != nil {
		t.Fatalf("Insert(5): %v", err)
	}

	cases := []struct {
		key  int64
		want RowRef
		ok   bool
	}{
		{10, RowRef{1, 0}, true},
		{5, RowRef{0, 2}, true},
		{20, RowRef{2, 1}, true},
		{7, RowRef{}, false},
	}
	for _, c := range cases {
		got, ok, err := bt.Get(c.key)
		if err != nil {
			t.Fatalf("Get(%d): %v", c.key, err)
		}
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("Get(%d) = %v, %v; want %v, %v", c.key, got, ok, c.want, c.ok)
		}
	}
}

func TestRangeScan(t *testing.T) {
	bt := newTestTree(t)
	for i := int64(0); i < 10; i++ {
		if err := bt.Insert(i*10, RowRef{PageID: uint32(i), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i*10, err)
		}
	}
	got, err := bt.RangeScan(25, 55)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	want := []int64{30, 40, 50}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].Key != k {
			t.Fatalf("entry %d: key = %d, want %d", i, got[i].Key, k)
		}
	}
}

// A leaf holds at most MaxLeafEntries entries before it must split, so
// inserting a handful more than that is what actually forces the backing
// file past one page.
func TestInsertManyForcesSplitsAndStaysConsistent(t *testing.T) {
	bt := newTestTree(t)
	const n = MaxLeafEntries + 5
	for i := int64(0); i < n; i++ {
		ref := RowRef{PageID: uint32(i % 100), Slot: uint16(i % 10)}
		if err := bt.Insert(i, ref); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if bt.NumPages() <= 1 {
		t.Fatalf("NumPages = %d, want > 1 after %d inserts", bt.NumPages(), n)
	}
	for i := int64(0); i < n; i++ {
		got, ok, err := bt.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Get(%d): not found", i)
		}
		want := RowRef{PageID: uint32(i % 100), Slot: uint16(i % 10)}
		if got != want {
			t.Fatalf("Get(%d) = %+v, want %+v", i, got, want)
		}
	}
}

// Enough keys to exceed internal fan-out forces a root split.
func TestEnoughKeysForcesRootSplit(t *testing.T) {
	bt := newTestTree(t)
	// (MaxLeafEntries+1) * (MaxInternalKeys+2) keys is enough leaf splits
	// that an internal node with MaxInternalKeys+1 children must itself
	// split, so at least one internal split propagates to the root.
	n := int64(MaxLeafEntries+1) * int64(MaxInternalKeys+2)
	for i := int64(0); i < n; i++ {
		if err := bt.Insert(i, RowRef{PageID: uint32(i % 1000), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	root, err := bt.heap.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage(0): %v", err)
	}
	if root.PageFlags() != page.Internal {
		t.Fatalf("root flavor = %s, want Internal", root.PageFlags())
	}
	// Spot check correctness after the heavier load.
	for _, k := range []int64{0, n / 2, n - 1} {
		got, ok, err := bt.Get(k)
		if err != nil || !ok {
			t.Fatalf("Get(%d) = %+v, %v, err=%v", k, got, ok, err)
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bt")
	bt, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := bt.Insert(42, RowRef{PageID: 7, Slot: 3}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := bt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got != (RowRef{PageID: 7, Slot: 3}) {
		t.Fatalf("Get(42) = %+v, %v", got, ok)
	}
}

func TestDuplicateKeyRejected(t *testing.T) {
	bt := newTestTree(t)
	if err := bt.Insert(1, RowRef{PageID: 1, Slot: 0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := bt.Insert(1, RowRef{PageID: 2, Slot: 1})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	got, ok, err := bt.Get(1)
	if err != nil || !ok || got != (RowRef{PageID: 1, Slot: 0}) {
		t.Fatalf("tree changed after rejected duplicate: got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestGetMissingKeyOnFreshTree(t *testing.T) {
	bt := newTestTree(t)
	_, ok, err := bt.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected not found on empty tree")
	}
}

func TestRangeScanEmptyRange(t *testing.T) {
	bt := newTestTree(t)
	for i := int64(0); i < 5; i++ {
		if err := bt.Insert(i, RowRef{PageID: uint32(i)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	got, err := bt.RangeScan(100, 200)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}

// A range spanning several leaves must visit each leaf exactly once: no
// entry skipped, none double-counted, order still ascending.
func TestRangeScanAcrossSplitLeaves(t *testing.T) {
	bt := newTestTree(t)
	const n = int64(MaxLeafEntries)*3 + 7
	for i := int64(0); i < n; i++ {
		if err := bt.Insert(i, RowRef{PageID: uint32(i % 1000), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if bt.NumPages() <= 1 {
		t.Fatalf("NumPages = %d, want > 1 after %d inserts", bt.NumPages(), n)
	}

	start, end := n/4, n/4*3
	got, err := bt.RangeScan(start, end)
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if int64(len(got)) != end-start {
		t.Fatalf("got %d entries, want %d", len(got), end-start)
	}
	for i, e := range got {
		want := start + int64(i)
		if e.Key != want {
			t.Fatalf("entry %d: key = %d, want %d", i, e.Key, want)
		}
		if e.Ref.PageID != uint32(want%1000) {
			t.Fatalf("entry %d: ref = %+v, want page id %d", i, e.Ref, want%1000)
		}
	}
}
