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


// Package cache implements the small capacity bounded tables the probe
// handlers share: the entry/return correlation cache and the connectionless
// send deduplication cache. Both evict least recently used entries silently.
package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultCorrelationSize matches max_entries of cache_tcp.
	DefaultCorrelationSize = 300
	// DefaultDedupSize matches max_entries of cache_udp.
	DefaultDedupSize = 300
)

// Correlation bridges the entry and return invocations of one hooked call,
// keyed by calling thread (pid_tgid).
type Correlation[V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[uint64, V]
}

// NewCorrelation returns a correlation cache holding at most size entries.
func NewCorrelation[V any](size int) (*Correlation[V], error) {
	l, err := simplelru.NewLRU[uint64, V](size, nil)
	if err != nil {
		return nil, err
	}

	return &Correlation[V]{lru: l}, nil
}

// Begin stores v for the thread, replacing any stale entry it left behind.
func (c *Correlation[V]) Begin(tid uint64, v V) {
	c.mu.Lock()
	c.lru.Add(tid, v)
	c.mu.Unlock()
}

// End removes and returns the entry for the thread. A false result means
// the entry was evicted or never stored.
func (c *Correlation[V]) End(tid uint64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Peek(tid)
	if ok {
		c.lru.Remove(tid)
	}

	return v, ok
}

// Len returns the number of pending entries.
func (c *Correlation[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}
