package main

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/halvardb/storecore/dbms/btree"
)

// pebbleStore wraps a Pebble database (CockroachDB's LSM storage engine)
// behind Index, so it can be benchmarked alongside dbms/btree.BTree on the
// same workload. Keys are big-endian with the sign bit flipped so the LSM's
// natural byte ordering matches int64 ordering.
type pebbleStore struct {
	db *pebble.DB
}

func openPebbleStore(dir string) (*pebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open: %w", err)
	}
	return &pebbleStore{db: db}, nil
}

func encodeKey(k int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k)^(1<<63))
	return b
}

func encodeRef(ref btree.RowRef) []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint32(b[0:4], ref.PageID)
	binary.LittleEndian.PutUint16(b[4:6], ref.Slot)
	return b
}

func decodeRef(b []byte) (btree.RowRef, error) {
	if len(b) != 6 {
		return btree.RowRef{}, fmt.Errorf("pebblestore: value has %d bytes, want 6", len(b))
	}
	return btree.RowRef{
		PageID: binary.LittleEndian.Uint32(b[0:4]),
		Slot:   binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

func (s *pebbleStore) Insert(key int64, ref btree.RowRef) error {
	return s.db.Set(encodeKey(key), encodeRef(ref), pebble.NoSync)
}

func (s *pebbleStore) Get(key int64) (btree.RowRef, bool, error) {
	val, closer, err := s.db.Get(encodeKey(key))
	if err == pebble.ErrNotFound {
		return btree.RowRef{}, false, nil
	}
	if err != nil {
		return btree.RowRef{}, false, fmt.Errorf("pebblestore: get: %w", err)
	}
	defer closer.Close()
	ref, err := decodeRef(val)
	if err != nil {
		return btree.RowRef{}, false, err
	}
	return ref, true, nil
}

func (s *pebbleStore) RangeScan(start, end int64) ([]btree.ScanEntry, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKey(end),
	})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: range: %w", err)
	}
	defer iter.Close()

	var out []btree.ScanEntry
	for valid := iter.First(); valid; valid = iter.Next() {
		key := int64(binary.BigEndian.Uint64(iter.Key()) ^ (1 << 63))
		ref, err := decodeRef(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, btree.ScanEntry{Key: key, Ref: ref})
	}
	return out, iter.Error()
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}
