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
	"fmt"
	"time"

	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/ktime"
)

// cgroupNamer resolves cgroup ids to display names.
type cgroupNamer interface {
	Resolve(id uint64) string
}

// newConnEntry converts a kernel record into a printable entry.
//
// Parameters:
//
//	r conn.Record: decoded record.
//	boot time.Time: wall clock time at which the monotonic clock was zero.
//	source string: sourceSnapshot or sourceLive.
//	cg cgroupNamer: optional cgroup resolver, nil to leave paths empty.
//
// Returns:
//
//	connEntry: entry with addresses in natural form and wall clock times.
func newConnEntry(r conn.Record, boot time.Time, source string, cg cgroupNamer) connEntry {
	e := connEntry{
		Created:    ktime.ToTime(boot, r.Ns),
		LastUpdate: ktime.ToTime(boot, r.LastNs),
		LocalIP:    r.LocalIP(),
		RemoteIP:   r.RemoteIP(),
		Type:       r.Type.String(),
		Proto:      r.Type.Proto().String(),
		Comm:       r.CommString(),
		Source:     source,
		Rx:         r.Rx,
		Tx:         r.Tx,
		CGroupID:   r.Cgroup,
		Pid:        r.Pid,
		Uid:        r.Uid,
		LocalPort:  r.Sport,
		RemotePort: r.Dport,
	}

	if cg != nil {
		e.CGroup = cg.Resolve(r.Cgroup)
	}

	return e
}

const (
	B   float64 = 1.0
	KiB         = 1024 * B
	MiB         = 1024 * KiB
	GiB         = 1024 * MiB
	TiB         = 1024 * GiB
)

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(v uint64) string {
	b := float64(v)

	switch {
	case b < KiB:
		return fmt.Sprintf("%d B", v)
	case b < MiB:
		return fmt.Sprintf("%.2f KiB", b/KiB)
	case b < GiB:
		return fmt.Sprintf("%.2f MiB", b/MiB)
	case b < TiB:
		return fmt.Sprintf("%.2f GiB", b/GiB)
	}

	return fmt.Sprintf("%.2f TiB", b/TiB)
}
