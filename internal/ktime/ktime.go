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


// Package ktime provides CLOCK_MONOTONIC nanosecond timestamps, the same
// time base bpf_ktime_get_ns() uses.
package ktime

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sys/unix"
)

// Source returns monotonic nanoseconds.
type Source interface {
	Nanotime() uint64
}

// Monotonic reads CLOCK_MONOTONIC.
type Monotonic struct{}

func (Monotonic) Nanotime() uint64 {
	var ts unix.Timespec

	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}

	return uint64(ts.Nano())
}

// Clock adapts a clock.Clock, typically a *clock.Mock in tests. Nanoseconds
// count from the clock's Unix epoch.
type Clock struct {
	C clock.Clock
}

func (c Clock) Nanotime() uint64 {
	return uint64(c.C.Now().UnixNano())
}

// BootTime estimates the wall clock instant at which the monotonic clock
// read zero, used to turn kernel timestamps into wall clock times.
func BootTime(src Source, now time.Time) time.Time {
	return now.Add(-time.Duration(src.Nanotime()))
}

// ToTime converts a monotonic timestamp using a boot time from BootTime.
func ToTime(boot time.Time, ns uint64) time.Time {
	return boot.Add(time.Duration(ns))
}
