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

// Package conn holds connection record and key definitions shared by the
// kernel object and every userspace component. Values here must stay in sync
// with struct conn_t and struct conn_key in bpf/leco.c.
package conn

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// TaskCommLen is the kernel TASK_COMM_LEN.
const TaskCommLen = 16

var ErrUnsupportedFamily = errors.New("unsupported address family")

// Type is the protocol/family tag of a record, enum conn_type in the kernel.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeTCP4
	TypeTCP6
	TypeUDP4
	TypeUDP6
	TypeOther4
	TypeOther6
)

var typeNames = map[Type]string{
	TypeTCP4:   "TCP4",
	TypeTCP6:   "TCP6",
	TypeUDP4:   "UDP4",
	TypeUDP6:   "UDP6",
	TypeOther4: "OTHER4",
	TypeOther6: "OTHER6",
}

func (t Type) String() string {
	if v, ok := typeNames[t]; ok {
		return v
	}

	return "Unknown"
}

// Valid reports whether t is one of the known tags.
func (t Type) Valid() bool {
	return t >= TypeTCP4 && t <= TypeOther6
}

// IsV6 reports whether records of this type carry 128-bit addresses.
func (t Type) IsV6() bool {
	return t == TypeTCP6 || t == TypeUDP6 || t == TypeOther6
}

// Proto returns the transport part of the tag.
func (t Type) Proto() Proto {
	switch t {
	case TypeTCP4, TypeTCP6:
		return ProtoTCP
	case TypeUDP4, TypeUDP6:
		return ProtoUDP
	default:
		return ProtoOther
	}
}

// Proto is the transport protocol seen at a hook point.
type Proto uint8

const (
	ProtoOther Proto = iota
	ProtoTCP
	ProtoUDP
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	default:
		return "OTHER"
	}
}

// Family is a socket address family as stored in skc_family.
type Family uint16

const (
	FamilyInet  Family = unix.AF_INET
	FamilyInet6 Family = unix.AF_INET6
)

// TypeOf combines a protocol and an address family into a record tag.
// Families other than AF_INET and AF_INET6 are rejected.
func TypeOf(p Proto, f Family) (Type, error) {
	var v6 bool

	switch f {
	case FamilyInet:
	case FamilyInet6:
		v6 = true
	default:
		return TypeUnknown, fmt.Errorf("%w: %d", ErrUnsupportedFamily, f)
	}

	switch p {
	case ProtoTCP:
		if v6 {
			return TypeTCP6, nil
		}

		return TypeTCP4, nil
	case ProtoUDP:
		if v6 {
			return TypeUDP6, nil
		}

		return TypeUDP4, nil
	default:
		if v6 {
			return TypeOther6, nil
		}

		return TypeOther4, nil
	}
}

// Addr is a 128-bit address field. IPv4 addresses occupy the low 32 bits
// (the first four bytes of the field as written by the kernel on
// little-endian hosts), upper 96 bits zero.
type Addr [16]byte

// AddrFrom4 stores an IPv4 address (network order bytes) zero-extended.
func AddrFrom4(b [4]byte) Addr {
	var a Addr

	copy(a[:4], b[:])

	return a
}

// AddrFrom16 stores an IPv6 address as is.
func AddrFrom16(b [16]byte) Addr {
	return Addr(b)
}

// AddrFromIP converts a netip.Addr, storing IPv4 and IPv4-mapped addresses
// in the low 32 bits.
func AddrFromIP(ip netip.Addr) Addr {
	if ip.Is4() || ip.Is4In6() {
		return AddrFrom4(ip.Unmap().As4())
	}

	return AddrFrom16(ip.As16())
}

// IP interprets the field according to the record family.
func (a Addr) IP(v6 bool) netip.Addr {
	if v6 {
		return netip.AddrFrom16(a)
	}

	return netip.AddrFrom4([4]byte{a[0], a[1], a[2], a[3]})
}

// IsZero reports whether no address bits are set.
func (a Addr) IsZero() bool {
	return a == Addr{}
}

// Key identifies one live connection. Socket memory gets reused by the
// kernel, so the port pair is part of the key. Ports are the ones bound on
// the socket itself, so a per-datagram peer override never moves a record
// to another key.
type Key struct {
	Sock  uint64
	Pid   uint32
	Sport uint16
	Dport uint16
}

// Record is a connection snapshot, struct conn_t in the kernel.
type Record struct {
	Type   Type
	Ns     uint64 // CLOCK_MONOTONIC at creation
	Saddr  Addr
	Daddr  Addr
	Sport  uint16 // host order
	Dport  uint16 // host order
	Pid    uint32
	Uid    uint32
	Comm   [TaskCommLen]byte
	LastNs uint64 // CLOCK_MONOTONIC of the last forwarded update
	Rx     uint64
	Tx     uint64
	Cgroup uint64
}

// LocalIP returns the local address in its natural form.
func (r *Record) LocalIP() netip.Addr {
	return r.Saddr.IP(r.Type.IsV6())
}

// RemoteIP returns the remote address in its natural form.
func (r *Record) RemoteIP() netip.Addr {
	return r.Daddr.IP(r.Type.IsV6())
}

// CommString returns the command name up to the first NUL.
func (r *Record) CommString() string {
	return CommString(r.Comm[:])
}

// SetComm copies s into the fixed width command field, truncating and NUL padding.
func (r *Record) SetComm(s string) {
	r.Comm = [TaskCommLen]byte{}
	copy(r.Comm[:TaskCommLen-1], s)
}

// CommString converts a NUL padded byte slice into a string.
func CommString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}
