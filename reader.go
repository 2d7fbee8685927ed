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
	"context"
	"errors"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/dkorunic/leco/internal/conn"
	"github.com/tevino/abool"
	"go.uber.org/zap"
)

// eventReader streams records from the live ring buffer.
type eventReader struct {
	rd      *ringbuf.Reader
	closing *abool.AtomicBool
	log     *zap.Logger
}

func newEventReader(m *ebpf.Map, log *zap.Logger) (*eventReader, error) {
	rd, err := ringbuf.NewReader(m)
	if err != nil {
		return nil, err
	}

	return &eventReader{rd: rd, closing: abool.New(), log: log}, nil
}

// run reads records until ctx is done, sending each to out. out is closed on
// return.
func (r *eventReader) run(ctx context.Context, out chan<- conn.Record) {
	defer close(out)

	go func() {
		<-ctx.Done()
		r.closing.Set()
		_ = r.rd.Close()
	}()

	var rec ringbuf.Record

	for {
		if err := r.rd.ReadInto(&rec); err != nil {
			if errors.Is(err, ringbuf.ErrClosed) || r.closing.IsSet() {
				return
			}

			r.log.Warn("Error reading ring buffer", zap.Error(err))

			continue
		}

		var c conn.Record
		if err := c.UnmarshalBinary(rec.RawSample); err != nil {
			r.log.Warn("Dropping malformed record", zap.Int("size", len(rec.RawSample)), zap.Error(err))

			continue
		}

		select {
		case out <- c:
		case <-ctx.Done():
			return
		}
	}
}
