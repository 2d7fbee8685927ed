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


// Package diag counts observability failures. Nothing here ever fails an
// operation, callers increment and move on.
package diag

import "go.uber.org/atomic"

// Counters is the process wide failure tally.
type Counters struct {
	errors atomic.Uint64
	misses atomic.Uint64
}

// New returns zeroed counters.
func New() *Counters {
	return &Counters{}
}

// Inc records one observability failure (unsupported family, publish drop).
func (c *Counters) Inc() {
	c.errors.Inc()
}

// Errors returns the Diagnostics Counter value.
func (c *Counters) Errors() uint64 {
	return c.errors.Load()
}

// Miss records an entry/return pairing that found no correlation entry.
// Kept apart from Errors, a miss is an accepted coverage gap.
func (c *Counters) Miss() {
	c.misses.Inc()
}

// Misses returns the correlation miss tally.
func (c *Counters) Misses() uint64 {
	return c.misses.Load()
}
