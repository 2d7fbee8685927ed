// @license
// Copyright (C) 2025  Dinko Korunic
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.


package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/dkorunic/leco/internal/conn"
)

// rawRecord is one packed struct conn_t as stored in conn_table.
type rawRecord [conn.RecordSize]byte

var (
	haveBatchMapSupport      bool
	checkBatchMapSupportOnce sync.Once
)

// checkBatchMapSupport checks if the kernel supports BPF_MAP_LOOKUP_BATCH
// for the given map, which requires a v5.6 kernel.
func checkBatchMapSupport(m *ebpf.Map) bool {
	keys := make([]uint32, 1)
	values := make([]rawRecord, 1)

	var cursor ebpf.MapBatchCursor

	_, err := m.BatchLookup(&cursor, keys, values, nil)

	if err != nil && errors.Is(err, ebpf.ErrNotSupported) {
		return false
	}

	return true
}

// readWindow reads the snapshot window and returns its records oldest first.
//
// Parameters:
//
//	m *ebpf.Map: the conn_table array.
//	idx uint32: the current value of the kernel write index.
//
// Returns:
//
//	[]conn.Record: written slots, oldest first.
//	error: error reading or decoding the map.
func readWindow(m *ebpf.Map, idx uint32) ([]conn.Record, error) {
	checkBatchMapSupportOnce.Do(func() {
		haveBatchMapSupport = checkBatchMapSupport(m)
	})

	var (
		slots []rawRecord
		err   error
	)

	if haveBatchMapSupport {
		slots, err = readWindowBatch(m)
	} else {
		slots, err = readWindowIterate(m)
	}

	if err != nil {
		return nil, err
	}

	return decodeWindow(slots, idx)
}

func readWindowBatch(m *ebpf.Map) ([]rawRecord, error) {
	keys := make([]uint32, m.MaxEntries())
	values := make([]rawRecord, m.MaxEntries())

	var cursor ebpf.MapBatchCursor
	var (
		count int
		c     int
		err   error
	)

	for {
		c, err = m.BatchLookup(&cursor, keys[count:], values[count:], nil)
		count += c

		if err != nil {
			if errors.Is(err, ebpf.ErrKeyNotExist) {
				break
			}

			return nil, err
		}

		if count >= len(keys) {
			break
		}
	}

	return orderSlots(keys[:count], values[:count], m.MaxEntries()), nil
}

func readWindowIterate(m *ebpf.Map) ([]rawRecord, error) {
	var (
		key uint32
		val rawRecord
	)

	keys := make([]uint32, 0, m.MaxEntries())
	values := make([]rawRecord, 0, m.MaxEntries())

	iter := m.Iterate()

	for iter.Next(&key, &val) {
		keys = append(keys, key)
		values = append(values, val)
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return orderSlots(keys, values, m.MaxEntries()), nil
}

// orderSlots places values at their array index.
func orderSlots(keys []uint32, values []rawRecord, size uint32) []rawRecord {
	slots := make([]rawRecord, size)

	for i, k := range keys {
		if k < size {
			slots[k] = values[i]
		}
	}

	return slots
}

// decodeWindow rotates slots so the oldest entry comes first and decodes every
// written slot. idx counts every write ever made, so once it reaches the
// window size the oldest entry sits at idx modulo size.
func decodeWindow(slots []rawRecord, idx uint32) ([]conn.Record, error) {
	n := uint32(len(slots))
	if n == 0 {
		return nil, nil
	}

	var start uint32
	if idx >= n {
		start = idx % n
	}

	buf := make([]byte, 0, len(slots)*conn.RecordSize)
	for i := range n {
		s := slots[(start+i)%n]
		buf = append(buf, s[:]...)
	}

	recs, err := conn.DecodeRecords(buf)
	if err != nil {
		return nil, fmt.Errorf("decoding window: %w", err)
	}

	return recs, nil
}

// readDiag reads the diagnostics counter and the correlation miss tally.
func readDiag(m *ebpf.Map) (uint64, uint64, error) {
	var errs, misses uint64

	if err := m.Lookup(uint32(0), &errs); err != nil {
		return 0, 0, fmt.Errorf("reading diag errors: %w", err)
	}

	if err := m.Lookup(uint32(1), &misses); err != nil {
		return 0, 0, fmt.Errorf("reading diag misses: %w", err)
	}

	return errs, misses, nil
}
