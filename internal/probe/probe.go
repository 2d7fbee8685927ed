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


// Package probe is the dispatch layer behind every hook point. Handlers turn
// raw hook arguments into store observations and forward the snapshots the
// store asks for. A handler never blocks and never returns an error: failed
// extractions are counted and dropped.
package probe

import (
	"errors"

	"github.com/dkorunic/leco/internal/cache"
	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/diag"
	"github.com/dkorunic/leco/internal/publish"
	"github.com/dkorunic/leco/internal/store"
)

var ErrBadSock = errors.New("unreadable socket")

// Task is the current task a hook fires in.
type Task struct {
	PidTgid uint64
	Uid     uint32
	Cgroup  uint64
	Comm    [conn.TaskCommLen]byte
}

// Pid returns the thread group id.
func (t Task) Pid() uint32 {
	return uint32(t.PidTgid >> 32)
}

// Sock is what handlers read out of struct sock_common.
type Sock struct {
	Family   conn.Family // skc_family
	Protocol uint8       // sk_protocol
	Saddr4   [4]byte     // skc_rcv_saddr
	Daddr4   [4]byte     // skc_daddr
	Saddr6   [16]byte    // skc_v6_rcv_saddr
	Daddr6   [16]byte    // skc_v6_daddr
	Num      uint16      // skc_num, host order
	Dport    uint16      // skc_dport, network order
}

// Addrs returns the address pair for family f.
func (s Sock) Addrs(f conn.Family) (conn.Addr, conn.Addr) {
	if f == conn.FamilyInet6 {
		return conn.AddrFrom16(s.Saddr6), conn.AddrFrom16(s.Daddr6)
	}

	return conn.AddrFrom4(s.Saddr4), conn.AddrFrom4(s.Daddr4)
}

// Memory reads kernel objects by address, bpf_probe_read in the kernel.
type Memory interface {
	Sock(handle uint64) (Sock, error)
	In6Addr(ptr uint64) ([16]byte, error)
}

// Tables are the shared state handlers operate on.
type Tables struct {
	Connect   *cache.Correlation[uint64]
	Tunnel    *cache.Correlation[TunnelPending]
	Dedup     *cache.Dedup
	Store     *store.Store
	Publisher *publish.Publisher
	Diag      *diag.Counters
}

// NewTables builds default sized tables around a store and publisher.
func NewTables(s *store.Store, p *publish.Publisher, d *diag.Counters) (Tables, error) {
	connect, err := cache.NewCorrelation[uint64](cache.DefaultCorrelationSize)
	if err != nil {
		return Tables{}, err
	}

	tunnel, err := cache.NewCorrelation[TunnelPending](cache.DefaultCorrelationSize)
	if err != nil {
		return Tables{}, err
	}

	dedup, err := cache.NewDedup(cache.DefaultDedupSize)
	if err != nil {
		return Tables{}, err
	}

	return Tables{
		Connect:   connect,
		Tunnel:    tunnel,
		Dedup:     dedup,
		Store:     s,
		Publisher: p,
		Diag:      d,
	}, nil
}

// Dispatcher owns no state of its own, everything lives in Tables.
type Dispatcher struct {
	mem Memory
	abi ABI
	t   Tables
}

// New returns a dispatcher reading kernel memory through mem and raw call
// arguments through abi.
func New(mem Memory, abi ABI, t Tables) *Dispatcher {
	return &Dispatcher{mem: mem, abi: abi, t: t}
}

// observe runs one store update and forwards the result when asked to.
func (d *Dispatcher) observe(key conn.Key, extract store.Extractor, delta store.Delta, peer *store.Peer) {
	r, forward := d.t.Store.Observe(key, extract, delta, peer)
	if forward {
		d.t.Publisher.Publish(r)
	}
}

func protoOf(ipproto uint8) conn.Proto {
	switch ipproto {
	case ipprotoTCP:
		return conn.ProtoTCP
	case ipprotoUDP, ipprotoUDPLite:
		return conn.ProtoUDP
	default:
		return conn.ProtoOther
	}
}

const (
	ipprotoTCP     = 6
	ipprotoUDP     = 17
	ipprotoUDPLite = 136
)

func sockFields(task Task, p conn.Proto, f conn.Family, s Sock) store.Fields {
	saddr, daddr := s.Addrs(f)

	return store.Fields{
		Proto:  p,
		Family: f,
		Saddr:  saddr,
		Daddr:  daddr,
		Sport:  s.Num,
		Dport:  conn.Ntohs(s.Dport),
		Pid:    task.Pid(),
		Uid:    task.Uid,
		Cgroup: task.Cgroup,
		Comm:   task.Comm,
	}
}

func sockKey(handle uint64, task Task, s Sock) conn.Key {
	return conn.Key{Sock: handle, Pid: task.Pid(), Sport: s.Num, Dport: conn.Ntohs(s.Dport)}
}
