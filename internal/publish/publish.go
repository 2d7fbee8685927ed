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


// Package publish forwards connection snapshots to a consumer through a
// bounded live channel and a restart recovery window.
package publish

import (
	"sync"

	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/diag"
)

const (
	// WindowSize matches max_entries of conn_table.
	WindowSize = 1000
	// DefaultQueueSize is roughly what the 8 KiB updates ring buffer holds.
	DefaultQueueSize = 80
)

// Window is a fixed capacity circular array of the most recent records.
// It has no read cursor, a restarted consumer reads it wholesale once.
type Window struct {
	mu    sync.Mutex
	slots []conn.Record
	idx   int
	full  bool
}

// NewWindow returns a window with size slots.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = WindowSize
	}

	return &Window{slots: make([]conn.Record, size)}
}

// Put overwrites the slot at the current index and advances it.
func (w *Window) Put(r conn.Record) {
	w.mu.Lock()
	w.slots[w.idx] = r
	w.idx++

	if w.idx == len(w.slots) {
		w.idx = 0
		w.full = true
	}
	w.mu.Unlock()
}

// Snapshot copies the written slots, oldest first.
func (w *Window) Snapshot() []conn.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.full {
		return append([]conn.Record(nil), w.slots[:w.idx]...)
	}

	out := make([]conn.Record, 0, len(w.slots))
	out = append(out, w.slots[w.idx:]...)

	return append(out, w.slots[:w.idx]...)
}

// Publisher writes every forwarded record into the window and offers it to
// the live channel without ever blocking.
type Publisher struct {
	window *Window
	live   chan conn.Record
	diag   *diag.Counters
}

// New returns a publisher with a live channel of queueSize records.
func New(window *Window, queueSize int, d *diag.Counters) *Publisher {
	if window == nil {
		window = NewWindow(WindowSize)
	}

	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	if d == nil {
		d = diag.New()
	}

	return &Publisher{
		window: window,
		live:   make(chan conn.Record, queueSize),
		diag:   d,
	}
}

// Publish forwards a full record. A full live channel drops the event and
// counts it, the window copy is kept either way.
func (p *Publisher) Publish(r conn.Record) {
	p.window.Put(r)

	select {
	case p.live <- r:
	default:
		p.diag.Inc()
	}
}

// Events is the single reader side of the live channel.
func (p *Publisher) Events() <-chan conn.Record {
	return p.live
}

// Window returns the recovery window.
func (p *Publisher) Window() *Window {
	return p.window
}
