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

// DataEvent is one send or receive seen on the data path: tcp_sendmsg,
// tcp_cleanup_rbuf, skb_consume_udp.
type DataEvent struct {
	Sock   uint64
	Proto  conn.Proto
	Family conn.Family // zero takes skc_family
	Dir    store.Direction
	Bytes  int64
}

// Data accounts bytes moved on a socket. Non-positive byte counts
// (tcp_cleanup_rbuf with nothing copied) are ignored.
func (d *Dispatcher) Data(task Task, ev DataEvent) {
	if ev.Bytes <= 0 {
		return
	}

	s, err := d.mem.Sock(ev.Sock)
	if err != nil {
		d.t.Diag.Inc()

		return
	}

	family := ev.Family
	if family == 0 {
		family = s.Family
	}

	extract := func() (store.Fields, error) {
		return sockFields(task, ev.Proto, family, s), nil
	}

	d.observe(sockKey(ev.Sock, task, s), extract, store.Delta{Dir: ev.Dir, Bytes: uint64(ev.Bytes)}, nil)
}

// Endpoint is an address and a network order port as found in a sockaddr.
type Endpoint struct {
	Addr conn.Addr
	Port uint16 // network order
}

// Msg is what udp_sendmsg handlers read from struct msghdr.
type Msg struct {
	Name    *Endpoint  // msg_name, set for unconnected sends
	PktInfo *conn.Addr // IP_PKTINFO / IPV6_PKTINFO source from msg_control
}

// SendEvent is a udp_sendmsg or udpv6_sendmsg call.
type SendEvent struct {
	Sock   uint64
	Family conn.Family
	Bytes  int64
	Msg    Msg
}

// UDPSend accounts a connectionless send. The destination comes from the
// socket when it is connected and from msg_name otherwise; the source falls
// back to the pktinfo control message when the socket is not bound to an
// address. Repeated sends from the same pid to the same destination do not
// count as a peer change, bytes are accounted either way.
func (d *Dispatcher) UDPSend(task Task, ev SendEvent) {
	s, err := d.mem.Sock(ev.Sock)
	if err != nil {
		d.t.Diag.Inc()

		return
	}

	saddr, daddr := s.Addrs(ev.Family)
	dport := s.Dport

	if dport == 0 {
		if ev.Msg.Name == nil {
			d.t.Diag.Inc()

			return
		}

		daddr, dport = ev.Msg.Name.Addr, ev.Msg.Name.Port
	}

	if saddr.IsZero() && ev.Msg.PktInfo != nil {
		saddr = *ev.Msg.PktInfo
	}

	peer := &store.Peer{Addr: daddr, Port: conn.Ntohs(dport)}
	if d.t.Dedup.ShouldSuppress(ev.Sock, daddr, peer.Port, uint64(task.Pid())) {
		peer = nil
	}

	extract := func() (store.Fields, error) {
		f := sockFields(task, conn.ProtoUDP, ev.Family, s)
		f.Saddr, f.Daddr, f.Dport = saddr, daddr, conn.Ntohs(dport)

		return f, nil
	}

	var delta store.Delta
	if ev.Bytes > 0 {
		delta = store.Tx(uint64(ev.Bytes))
	}

	d.observe(sockKey(ev.Sock, task, s), extract, delta, peer)
}
