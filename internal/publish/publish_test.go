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


package publish

import (
	"sync"
	"testing"

	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(pid uint32) conn.Record {
	return conn.Record{Type: conn.TypeTCP4, Pid: pid}
}

func TestWindowPartial(t *testing.T) {
	w := NewWindow(4)
	w.Put(rec(1))
	w.Put(rec(2))

	got := w.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].Pid)
	assert.Equal(t, uint32(2), got[1].Pid)
}

func TestWindowWrapsOldestFirst(t *testing.T) {
	w := NewWindow(WindowSize)

	for pid := range uint32(WindowSize + 1) {
		w.Put(rec(pid + 1))
	}

	got := w.Snapshot()
	require.Len(t, got, WindowSize)

	for _, r := range got {
		assert.NotEqual(t, uint32(1), r.Pid, "first record must have been overwritten")
	}

	assert.Equal(t, uint32(2), got[0].Pid)
	assert.Equal(t, uint32(WindowSize+1), got[WindowSize-1].Pid)
}

func TestPublishDropOnFull(t *testing.T) {
	d := diag.New()
	p := New(NewWindow(8), 2, d)

	p.Publish(rec(1))
	p.Publish(rec(2))
	p.Publish(rec(3))

	assert.Equal(t, uint64(1), d.Errors())

	// dropped event still lands in the window
	assert.Len(t, p.Window().Snapshot(), 3)

	assert.Equal(t, uint32(1), (<-p.Events()).Pid)
	assert.Equal(t, uint32(2), (<-p.Events()).Pid)

	select {
	case r := <-p.Events():
		t.Fatalf("unexpected event %+v", r)
	default:
	}
}

func TestPublishManyProducers(t *testing.T) {
	d := diag.New()
	p := New(nil, 64, d)

	var wg sync.WaitGroup

	for w := range uint32(8) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range uint32(100) {
				p.Publish(rec(w*1000 + i))
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, uint64(800-64), d.Errors())
	assert.Len(t, p.Events(), 64)
	assert.Len(t, p.Window().Snapshot(), 800)
}
