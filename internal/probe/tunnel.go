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
	"encoding/binary"

	"github.com/dkorunic/leco/internal/cache"
	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/store"
)

// TunnelLayout gives the 1-based argument positions of a tunnel transmit
// function. Zero means the function has no such argument.
type TunnelLayout struct {
	Symbol string
	Family conn.Family
	Sock   int
	// Saddr and Daddr are __be32 values for AF_INET and struct in6_addr
	// pointers for AF_INET6.
	Saddr int
	Daddr int
	Proto int // u8 IP protocol, zero means UDP
	Sport int // __be16
	Dport int // __be16
}

var (
	// IPTunnelXmit is
	//
	//	void iptunnel_xmit(struct sock *sk, struct rtable *rt, struct sk_buff *skb,
	//	                   __be32 src, __be32 dst, u8 proto, u8 tos, u8 ttl,
	//	                   __be16 df, bool xnet);
	//
	// as of v4.7 onwards. Ports live in the encapsulated payload, not in
	// the arguments.
	IPTunnelXmit = TunnelLayout{
		Symbol: "iptunnel_xmit",
		Family: conn.FamilyInet,
		Sock:   1,
		Saddr:  4,
		Daddr:  5,
		Proto:  6,
	}

	// UDPTunnel6XmitSkb is
	//
	//	int udp_tunnel6_xmit_skb(struct dst_entry *dst, struct sock *sk,
	//	                         struct sk_buff *skb, struct net_device *dev,
	//	                         struct in6_addr *saddr, struct in6_addr *daddr,
	//	                         __u8 prio, __u8 ttl, __be32 label,
	//	                         __be16 src_port, __be16 dst_port, bool nocheck);
	//
	// v4.6 to v6.x. On amd64 both ports are stack arguments, on arm64 only
	// from the ninth argument on.
	UDPTunnel6XmitSkb = TunnelLayout{
		Symbol: "udp_tunnel6_xmit_skb",
		Family: conn.FamilyInet6,
		Sock:   2,
		Saddr:  5,
		Daddr:  6,
		Sport:  10,
		Dport:  11,
	}
)

// TunnelPending carries what a tunnel entry probe extracted to its return probe.
type TunnelPending struct {
	Sock   uint64
	Proto  conn.Proto
	Family conn.Family
	Saddr  conn.Addr
	Daddr  conn.Addr
	Sport  uint16 // host order
	Dport  uint16 // host order
}

// TunnelEnter extracts the destination out of raw call arguments and parks
// it for the calling thread. Arguments that cannot be read abort the
// observation and count as a failure.
func (d *Dispatcher) TunnelEnter(layout TunnelLayout, task Task, f Frame) {
	p, err := d.tunnelArgs(layout, f)
	if err != nil {
		d.t.Diag.Inc()

		return
	}

	d.t.Tunnel.Begin(task.PidTgid, p)
}

// TunnelReturn records the transmission parked by TunnelEnter. Tunnel
// transmits run on whatever worker thread serves the device, so the pid is
// left out of the key and the dedup identity is derived from the local
// endpoint instead.
func (d *Dispatcher) TunnelReturn(task Task) {
	p, ok := d.t.Tunnel.End(task.PidTgid)
	if !ok {
		d.t.Diag.Miss()

		return
	}

	peer := &store.Peer{Addr: p.Daddr, Port: p.Dport}
	if d.t.Dedup.ShouldSuppress(p.Sock, p.Daddr, p.Dport, cache.EndpointIdentity(p.Saddr, p.Sport)) {
		peer = nil
	}

	extract := func() (store.Fields, error) {
		return store.Fields{
			Proto:  p.Proto,
			Family: p.Family,
			Saddr:  p.Saddr,
			Daddr:  p.Daddr,
			Sport:  p.Sport,
			Dport:  p.Dport,
			Pid:    task.Pid(),
			Uid:    task.Uid,
			Cgroup: task.Cgroup,
			Comm:   task.Comm,
		}, nil
	}

	key := conn.Key{Sock: p.Sock, Sport: p.Sport}

	d.observe(key, extract, store.Delta{}, peer)
}

func (d *Dispatcher) tunnelArgs(layout TunnelLayout, f Frame) (TunnelPending, error) {
	p := TunnelPending{Family: layout.Family, Proto: conn.ProtoUDP}

	var err error

	if p.Sock, err = d.arg(f, layout.Sock); err != nil {
		return p, err
	}

	if layout.Proto != 0 {
		v, err := d.arg(f, layout.Proto)
		if err != nil {
			return p, err
		}

		p.Proto = protoOf(uint8(v))
	}

	if p.Saddr, err = d.addrArg(layout, f, layout.Saddr); err != nil {
		return p, err
	}

	if p.Daddr, err = d.addrArg(layout, f, layout.Daddr); err != nil {
		return p, err
	}

	if p.Sport, err = d.portArg(f, layout.Sport); err != nil {
		return p, err
	}

	if p.Dport, err = d.portArg(f, layout.Dport); err != nil {
		return p, err
	}

	return p, nil
}

func (d *Dispatcher) arg(f Frame, n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}

	return d.abi.Arg(f, n)
}

func (d *Dispatcher) addrArg(layout TunnelLayout, f Frame, n int) (conn.Addr, error) {
	v, err := d.arg(f, n)
	if err != nil || n == 0 {
		return conn.Addr{}, err
	}

	if layout.Family == conn.FamilyInet6 {
		b, err := d.mem.In6Addr(v)
		if err != nil {
			return conn.Addr{}, err
		}

		return conn.AddrFrom16(b), nil
	}

	// __be32 in the low half of the register, in memory order
	var b [4]byte

	binary.NativeEndian.PutUint32(b[:], uint32(v))

	return conn.AddrFrom4(b), nil
}

func (d *Dispatcher) portArg(f Frame, n int) (uint16, error) {
	v, err := d.arg(f, n)
	if err != nil {
		return 0, err
	}

	return conn.Ntohs(uint16(v)), nil
}
