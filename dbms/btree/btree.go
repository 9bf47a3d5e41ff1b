// Package btree implements an ordered map from signed 64-bit keys to RowRef,
// persisted as Leaf and Internal pages inside a dedicated heap file. The
// root is always page 0; insertion splits propagate upward, and a root
// split is installed in place by copying the old root aside.
package btree

import (
	"errors"
	"fmt"

	"github.com/halvardb/storecore/dbms/page"
	"github.com/halvardb/storecore/dbms/pager"
)

var (
	// ErrDuplicateKey is returned by Insert when the key already exists.
	ErrDuplicateKey = errors.New("btree: duplicate key")
	// ErrEmptyTree is returned by Insert when the backing file has no pages.
	ErrEmptyTree = errors.New("btree: empty tree")
)

// BTree is an ordered i64 -> RowRef map persisted inside one HeapFile that
// it owns exclusively.
type BTree struct {
	heap *pager.HeapFile
}

// Create makes a fresh backing heap file at path and allocates an empty
// leaf as page 0.
func Create(path string) (*BTree, error) {
	heap, err := pager.Create(path)
	if err != nil {
		return nil, fmt.Errorf("btree: create: %w", err)
	}
	root := newLeaf(0)
	id, err := heap.AppendPage(root)
	if err != nil {
		return nil, fmt.Errorf("btree: allocate root: %w", err)
	}
	if id != 0 {
		return nil, fmt.Errorf("btree: root page id = %d, want 0", id)
	}
	return &BTree{heap: heap}, nil
}

// Open opens an existing backing heap file; its page 0 is assumed to be
// the current root.
func Open(path string) (*BTree, error) {
	heap, err := pager.Open(path)
	if err != nil {
		return nil, fmt.Errorf("btree: open: %w", err)
	}
	return &BTree{heap: heap}, nil
}

// Close releases the backing heap file.
func (t *BTree) Close() error {
	return t.heap.Close()
}

// NumPages exposes the backing file's page count.
func (t *BTree) NumPages() uint32 {
	return t.heap.NumPages()
}

// Get descends from the root, routing on internal nodes and linearly
// scanning the target leaf.
func (t *BTree) Get(key int64) (RowRef, bool, error) {
	return t.getFrom(0, key)
}

func (t *BTree) getFrom(pageID uint32, key int64) (RowRef, bool, error) {
	p, err := t.heap.ReadPage(pageID)
	if err != nil {
		return RowRef{}, false, fmt.Errorf("btree: get: %w", err)
	}
	if p.PageFlags() == page.Leaf {
		n := leafNumEntries(p)
		for i := 0; i < n; i++ {
			if leafKeyAt(p, i) == key {
				return leafRefAt(p, i), true, nil
			}
		}
		return RowRef{}, false, nil
	}
	return t.getFrom(internalChildAt(p, routeIdx(p, key)), key)
}

// routeIdx applies the routing rule: choose the smallest i such that
// key < key_i, returning child index i-1; if no key exceeds it, return the
// last child index (num_keys).
func routeIdx(p *page.Page, key int64) int {
	n := internalNumKeys(p)
	for i := 1; i <= n; i++ {
		if key < internalKeyAt(p, i) {
			return i - 1
		}
	}
	return n
}

// Insert adds (key, ref) to the tree. It fails with ErrDuplicateKey if the
// key is already present, or ErrEmptyTree if the backing file has no
// pages at all.
func (t *BTree) Insert(key int64, ref RowRef) error {
	if t.heap.NumPages() == 0 {
		return ErrEmptyTree
	}
	split, err := t.insertInto(0, key, ref)
	if err != nil {
		return err
	}
	if split != nil {
		if err := t.splitRoot(split.key, split.pageID); err != nil {
			return fmt.Errorf("btree: split root: %w", err)
		}
	}
	return nil
}

// splitResult carries the split key and new sibling page id returned by a
// split one level up the recursion.
type splitResult struct {
	key    int64
	pageID uint32
}

func (t *BTree) insertInto(pageID uint32, key int64, ref RowRef) (*splitResult, error) {
	p, err := t.heap.ReadPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("btree: insert: %w", err)
	}

	if p.PageFlags() == page.Leaf {
		n := leafNumEntries(p)
		idx := n
		for i := 0; i < n; i++ {
			k := leafKeyAt(p, i)
			if k == key {
				return nil, fmt.Errorf("%w: %d", ErrDuplicateKey, key)
			}
			if k > key {
				idx = i
				break
			}
		}
		if n == MaxLeafEntries {
			// The page has no room for an extra entry: place (key, ref) and
			// carry whichever entry is then last into the split.
			lastKey, lastRef := key, ref
			if idx < n {
				lastKey, lastRef = leafKeyAt(p, n-1), leafRefAt(p, n-1)
				setLeafNumEntries(p, n-1)
				leafInsertAt(p, idx, key, ref)
			}
			return t.splitLeaf(pageID, p, lastKey, lastRef)
		}
		leafInsertAt(p, idx, key, ref)
		if err := t.heap.WritePage(pageID, p); err != nil {
			return nil, fmt.Errorf("btree: persist leaf %d: %w", pageID, err)
		}
		return nil, nil
	}

	childIdx := routeIdx(p, key)
	childID := internalChildAt(p, childIdx)
	split, err := t.insertInto(childID, key, ref)
	if err != nil {
		return nil, err
	}
	if split == nil {
		return nil, nil
	}
	if n := internalNumKeys(p); n == MaxInternalKeys {
		// As for leaves: the page has no room for an extra pair, so the
		// pair that ends up last is carried into the split.
		lastKey, lastChild := split.key, split.pageID
		if childIdx < n {
			lastKey, lastChild = internalKeyAt(p, n), internalChildAt(p, n)
			setInternalNumKeys(p, n-1)
			internalInsertChild(p, childIdx, split.key, split.pageID)
		}
		return t.splitInternal(pageID, p, lastKey, lastChild)
	}
	internalInsertChild(p, childIdx, split.key, split.pageID)
	if err := t.heap.WritePage(pageID, p); err != nil {
		return nil, fmt.Errorf("btree: persist internal %d: %w", pageID, err)
	}
	return nil, nil
}

// splitLeaf splits the full leaf at pageID whose entries, followed by
// (lastKey, lastRef), form the n = MaxLeafEntries+1 entries of the
// overflowing leaf. It moves the upper half [mid..n) into a freshly
// appended leaf, splices it into the next_leaf chain, and returns the split
// key (the first key of the new right sibling).
func (t *BTree) splitLeaf(pageID uint32, p *page.Page, lastKey int64, lastRef RowRef) (*splitResult, error) {
	n := leafNumEntries(p) + 1
	mid := n / 2
	splitKey := leafKeyAt(p, mid)

	newPage := newLeaf(0)
	setLeafNext(newPage, leafNext(p))
	for i := mid; i < n-1; i++ {
		setLeafEntry(newPage, i-mid, leafKeyAt(p, i), leafRefAt(p, i))
	}
	setLeafEntry(newPage, n-1-mid, lastKey, lastRef)
	setLeafNumEntries(newPage, n-mid)

	newID, err := t.heap.AppendPage(newPage)
	if err != nil {
		return nil, fmt.Errorf("btree: append split leaf: %w", err)
	}

	setLeafNumEntries(p, mid)
	setLeafNext(p, newID)
	if err := t.heap.WritePage(pageID, p); err != nil {
		return nil, fmt.Errorf("btree: persist split leaf %d: %w", pageID, err)
	}
	return &splitResult{key: splitKey, pageID: newID}, nil
}

// splitInternal splits a full internal node whose pairs, followed by
// (lastKey, lastChild), form the n = MaxInternalKeys+1 keys of the
// overflowing node: key[mid] is promoted to the parent, the left node keeps
// keys[0..mid) and children[0..mid], the right node (freshly appended)
// takes keys[mid+1..] and children[mid+1..].
func (t *BTree) splitInternal(pageID uint32, p *page.Page, lastKey int64, lastChild uint32) (*splitResult, error) {
	n := internalNumKeys(p) + 1
	mid := n / 2
	promoteKey := internalKeyAt(p, mid+1)

	newPage := newInternal(0)
	rightN := n - mid - 1
	setInternalChildAt(newPage, 0, internalChildAt(p, mid+1))
	for i := 0; i < rightN-1; i++ {
		setInternalKeyAt(newPage, i+1, internalKeyAt(p, mid+2+i))
		setInternalChildAt(newPage, i+1, internalChildAt(p, mid+2+i))
	}
	setInternalKeyAt(newPage, rightN, lastKey)
	setInternalChildAt(newPage, rightN, lastChild)
	setInternalNumKeys(newPage, rightN)

	rightID, err := t.heap.AppendPage(newPage)
	if err != nil {
		return nil, fmt.Errorf("btree: append split internal: %w", err)
	}

	setInternalNumKeys(p, mid)
	if err := t.heap.WritePage(pageID, p); err != nil {
		return nil, fmt.Errorf("btree: persist split internal %d: %w", pageID, err)
	}
	return &splitResult{key: promoteKey, pageID: rightID}, nil
}

// splitRoot handles a split that propagated out of the root: the current
// root (page 0) is copied aside to a freshly appended page, and page 0 is
// overwritten with a new internal root pointing at the two halves. This
// keeps the root at page 0 without rewriting any external reference to it.
func (t *BTree) splitRoot(promoteKey int64, rightPageID uint32) error {
	oldRoot, err := t.heap.ReadPage(0)
	if err != nil {
		return fmt.Errorf("read old root: %w", err)
	}
	leftID, err := t.heap.AppendPage(oldRoot)
	if err != nil {
		return fmt.Errorf("append old root copy: %w", err)
	}

	newRoot := newInternal(0)
	setInternalNumKeys(newRoot, 1)
	setInternalChildAt(newRoot, 0, leftID)
	setInternalKeyAt(newRoot, 1, promoteKey)
	setInternalChildAt(newRoot, 1, rightPageID)
	return t.heap.WritePage(0, newRoot)
}

// ScanEntry is one result of RangeScan.
type ScanEntry struct {
	Key int64
	Ref RowRef
}

// RangeScan returns every (key, RowRef) with start <= key < end, in
// ascending order. It descends once to the leaf that would hold start, then
// follows next_leaf links rather than re-descending from the root for each
// subsequent leaf, so each leaf is visited exactly once.
func (t *BTree) RangeScan(start, end int64) ([]ScanEntry, error) {
	leafID, err := t.firstLeafFor(0, start)
	if err != nil {
		return nil, fmt.Errorf("btree: range scan: %w", err)
	}

	var out []ScanEntry
	for {
		p, err := t.heap.ReadPage(leafID)
		if err != nil {
			return nil, fmt.Errorf("btree: range scan: %w", err)
		}
		n := leafNumEntries(p)
		reachedEnd := false
		for i := 0; i < n; i++ {
			k := leafKeyAt(p, i)
			if k >= end {
				reachedEnd = true
				break
			}
			if k >= start {
				out = append(out, ScanEntry{Key: k, Ref: leafRefAt(p, i)})
			}
		}
		next := leafNext(p)
		if reachedEnd || next == 0 {
			break
		}
		leafID = next
	}
	return out, nil
}

// firstLeafFor descends from pageID, routing on internal nodes exactly as
// Get does, to the single leaf that would contain key start if it existed.
func (t *BTree) firstLeafFor(pageID uint32, start int64) (uint32, error) {
	p, err := t.heap.ReadPage(pageID)
	if err != nil {
		return 0, err
	}
	if p.PageFlags() == page.Leaf {
		return pageID, nil
	}
	return t.firstLeafFor(internalChildAt(p, routeIdx(p, start)), start)
}
