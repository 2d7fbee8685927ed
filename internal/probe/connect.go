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


package probe

import (
	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/store"
)

// ConnectHook names a connection establishing call. The five-tuple can only
// be read from struct sock once the call returns, so every hook is an
// entry/return pair.
type ConnectHook uint8

const (
	HookTCPv4Connect ConnectHook = iota + 1 // tcp_v4_connect
	HookTCPv6Connect                        // tcp_v6_connect
	HookDgramConnect                        // inet_dgram_connect
)

var connectSymbols = map[ConnectHook]string{
	HookTCPv4Connect: "tcp_v4_connect",
	HookTCPv6Connect: "tcp_v6_connect",
	HookDgramConnect: "inet_dgram_connect",
}

func (h ConnectHook) String() string {
	if v, ok := connectSymbols[h]; ok {
		return v
	}

	return "unknown"
}

// ConnectEnter stashes the socket for the calling thread.
func (d *Dispatcher) ConnectEnter(task Task, sk uint64) {
	d.t.Connect.Begin(task.PidTgid, sk)
}

// ConnectReturn pairs with ConnectEnter on the same thread and records the
// connection. A missing entry means it was evicted under load: the
// observation is dropped and only tallied as a correlation miss. Failed
// calls (ret < 0) consume the entry and record nothing.
func (d *Dispatcher) ConnectReturn(hook ConnectHook, task Task, ret int) {
	sk, ok := d.t.Connect.End(task.PidTgid)
	if !ok {
		d.t.Diag.Miss()

		return
	}

	if ret < 0 {
		return
	}

	s, err := d.mem.Sock(sk)
	if err != nil {
		d.t.Diag.Inc()

		return
	}

	var (
		proto  conn.Proto
		family conn.Family
	)

	switch hook {
	case HookTCPv4Connect:
		// also reached from tcp_v6_connect for v4-mapped peers, the v4
		// fields are the valid ones regardless of skc_family
		proto, family = conn.ProtoTCP, conn.FamilyInet
	case HookTCPv6Connect:
		proto, family = conn.ProtoTCP, conn.FamilyInet6
	case HookDgramConnect:
		proto, family = protoOf(s.Protocol), s.Family
	default:
		d.t.Diag.Inc()

		return
	}

	extract := func() (store.Fields, error) {
		return sockFields(task, proto, family, s), nil
	}

	d.observe(sockKey(sk, task, s), extract, store.Delta{}, nil)
}
