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


package cache

import (
	"encoding/binary"
	"sync"

	"github.com/dkorunic/leco/internal/conn"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/twmb/murmur3"
)

// DedupKey is struct cache_udp_key: socket plus destination. The bound
// source endpoint is implied by the socket.
type DedupKey struct {
	Sock  uint64
	Daddr conn.Addr
	Dport uint16
}

// Dedup remembers which sender identity last notified about a peer so that
// repeated datagrams to the same destination do not fire new notifications.
type Dedup struct {
	mu  sync.Mutex
	lru *simplelru.LRU[DedupKey, uint64]
}

// NewDedup returns a dedup cache holding at most size entries.
func NewDedup(size int) (*Dedup, error) {
	l, err := simplelru.NewLRU[DedupKey, uint64](size, nil)
	if err != nil {
		return nil, err
	}

	return &Dedup{lru: l}, nil
}

// ShouldSuppress reports true when the same identity already notified for
// this socket and destination. Otherwise it records identity and returns false.
func (d *Dedup) ShouldSuppress(sock uint64, daddr conn.Addr, dport uint16, identity uint64) bool {
	k := DedupKey{Sock: sock, Daddr: daddr, Dport: dport}

	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.lru.Get(k); ok && v == identity {
		return true
	}

	d.lru.Add(k, identity)

	return false
}

// Len returns the number of remembered destinations.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lru.Len()
}

// EndpointIdentity derives a sender identity from the local endpoint, for
// hook points that run on kernel worker threads where the pid says nothing
// about the logical sender. Port is in host order.
func EndpointIdentity(saddr conn.Addr, sport uint16) uint64 {
	var b [18]byte

	copy(b[:16], saddr[:])
	binary.BigEndian.PutUint16(b[16:], sport)

	return murmur3.Sum64(b[:])
}
