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
	"net/netip"
	"time"
)

// connEntry is one printable connection record.
type connEntry struct {
	Created    time.Time  `json:"created"`
	LastUpdate time.Time  `json:"lastUpdate"`
	LocalIP    netip.Addr `json:"localIP"`
	RemoteIP   netip.Addr `json:"remoteIP"`
	Type       string     `json:"type"`
	Proto      string     `json:"proto"`
	Comm       string     `json:"comm"`
	CGroup     string     `json:"cgroup,omitempty"`
	Source     string     `json:"source"`
	Rx         uint64     `json:"rx"`
	Tx         uint64     `json:"tx"`
	CGroupID   uint64     `json:"cgroupID"`
	Pid        uint32     `json:"pid"`
	Uid        uint32     `json:"uid"`
	LocalPort  uint16     `json:"localPort"`
	RemotePort uint16     `json:"remotePort"`
}

const (
	sourceSnapshot = "snapshot"
	sourceLive     = "live"
)
