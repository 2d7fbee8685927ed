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


// Package store is the canonical table of live connections and their byte
// counters. It decides when a connection snapshot is worth forwarding.
package store

import (
	"sync"
	"time"

	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/diag"
	"github.com/dkorunic/leco/internal/ktime"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultSize matches max_entries of conn_store.
	DefaultSize = 1000
	// DefaultInterval is the minimum spacing of forwarded counter updates.
	DefaultInterval = 3 * time.Second
)

// Direction tells which counter a byte delta belongs to.
type Direction uint8

const (
	DirNone Direction = iota
	DirRx
	DirTx
)

// Delta is the byte count moved by one observation.
type Delta struct {
	Dir   Direction
	Bytes uint64
}

// Rx returns a receive delta.
func Rx(n uint64) Delta { return Delta{Dir: DirRx, Bytes: n} }

// Tx returns a transmit delta.
func Tx(n uint64) Delta { return Delta{Dir: DirTx, Bytes: n} }

// Fields is everything needed to build a new record.
type Fields struct {
	Proto  conn.Proto
	Family conn.Family
	Saddr  conn.Addr
	Daddr  conn.Addr
	Sport  uint16 // host order
	Dport  uint16 // host order
	Pid    uint32
	Uid    uint32
	Cgroup uint64
	Comm   [conn.TaskCommLen]byte
}

// Extractor reads Fields, called only when the key has no record yet.
type Extractor func() (Fields, error)

// Peer is a remote endpoint observed on a single datagram.
type Peer struct {
	Addr conn.Addr
	Port uint16 // host order
}

// Options configure a Store. Zero values select the defaults.
type Options struct {
	Size     int
	Interval time.Duration
	Clock    ktime.Source
	Diag     *diag.Counters
}

// Store holds at most Size records, evicting the least recently used one.
type Store struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[conn.Key, *conn.Record]
	interval uint64
	clock    ktime.Source
	diag     *diag.Counters
}

// New builds a Store.
func New(opts Options) (*Store, error) {
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}

	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}

	if opts.Clock == nil {
		opts.Clock = ktime.Monotonic{}
	}

	if opts.Diag == nil {
		opts.Diag = diag.New()
	}

	l, err := simplelru.NewLRU[conn.Key, *conn.Record](opts.Size, nil)
	if err != nil {
		return nil, err
	}

	return &Store{
		lru:      l,
		interval: uint64(opts.Interval),
		clock:    opts.Clock,
		diag:     opts.Diag,
	}, nil
}

// Observe creates or updates the record for key and returns a copy of it,
// plus whether it should be forwarded to the publisher.
//
// On a miss the record is built from extract and the delta; an extraction
// error (unsupported family) is counted and nothing is inserted. On a hit the
// delta is added, a differing peer is written and forces a publish, otherwise
// a publish happens at most once per interval.
func (s *Store) Observe(key conn.Key, extract Extractor, delta Delta, peer *Peer) (conn.Record, bool) {
	now := s.clock.Nanotime()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lru.Get(key)
	if !ok {
		f, err := extract()
		if err != nil {
			s.diag.Inc()

			return conn.Record{}, false
		}

		r, err = newRecord(f, now)
		if err != nil {
			s.diag.Inc()

			return conn.Record{}, false
		}

		if peer != nil {
			r.Daddr, r.Dport = peer.Addr, peer.Port
		}

		apply(r, delta)
		r.LastNs = now
		s.lru.Add(key, r)

		return *r, true
	}

	apply(r, delta)

	publish := now-r.LastNs >= s.interval
	if peer != nil && (peer.Addr != r.Daddr || peer.Port != r.Dport) {
		r.Daddr, r.Dport = peer.Addr, peer.Port
		publish = true
	}

	if publish {
		r.LastNs = now
	}

	return *r, publish
}

// Lookup returns a copy of the record for key without touching recency.
func (s *Store) Lookup(key conn.Key) (conn.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.lru.Peek(key)
	if !ok {
		return conn.Record{}, false
	}

	return *r, true
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lru.Len()
}

func newRecord(f Fields, now uint64) (*conn.Record, error) {
	t, err := conn.TypeOf(f.Proto, f.Family)
	if err != nil {
		return nil, err
	}

	return &conn.Record{
		Type:   t,
		Ns:     now,
		Saddr:  f.Saddr,
		Daddr:  f.Daddr,
		Sport:  f.Sport,
		Dport:  f.Dport,
		Pid:    f.Pid,
		Uid:    f.Uid,
		Comm:   f.Comm,
		Cgroup: f.Cgroup,
	}, nil
}

func apply(r *conn.Record, d Delta) {
	switch d.Dir {
	case DirRx:
		r.Rx += d.Bytes
	case DirTx:
		r.Tx += d.Bytes
	}
}
