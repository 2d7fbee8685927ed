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
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hako/durafmt"
)

// outputPlain writes one entry as a human readable line. Age is relative to now.
func outputPlain(w io.Writer, e connEntry, now time.Time) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%v %v: %v -> %v, pid: %d, uid: %d, comm: %v, rx: %v, tx: %v, age: %v",
		e.Source, e.Type,
		hostPort(e.LocalIP, e.LocalPort), hostPort(e.RemoteIP, e.RemotePort),
		e.Pid, e.Uid, e.Comm, formatBytes(e.Rx), formatBytes(e.Tx), formatAge(now.Sub(e.Created)))

	if e.CGroup != "" {
		fmt.Fprintf(&sb, ", cgroup: %v", e.CGroup)
	}

	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())

	return err
}

// outputJSON writes one entry as a single line JSON object.
func outputJSON(w io.Writer, e connEntry) error {
	out, err := json.Marshal(e)
	if err != nil {
		return err
	}

	out = append(out, '\n')
	_, err = w.Write(out)

	return err
}

func hostPort(ip netip.Addr, port uint16) string {
	if !ip.IsValid() {
		return ":" + strconv.Itoa(int(port))
	}

	return netip.AddrPortFrom(ip, port).String()
}

// formatAge renders d with at most two units, negative durations as zero.
func formatAge(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).String()
}
