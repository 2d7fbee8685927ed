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

	"github.com/cilium/ebpf"
	"github.com/hashicorp/go-multierror"
)

// lecoPrograms holds every probe handler in leco.bpf.o.
type lecoPrograms struct {
	TcpV4Connect        *ebpf.Program `ebpf:"kprobe__tcp_v4_connect"`
	TcpV4ConnectRet     *ebpf.Program `ebpf:"kretprobe__tcp_v4_connect"`
	TcpV6Connect        *ebpf.Program `ebpf:"kprobe__tcp_v6_connect"`
	TcpV6ConnectRet     *ebpf.Program `ebpf:"kretprobe__tcp_v6_connect"`
	InetDgramConnect    *ebpf.Program `ebpf:"kprobe__inet_dgram_connect"`
	InetDgramConnectRet *ebpf.Program `ebpf:"kretprobe__inet_dgram_connect"`
	TcpSendmsg          *ebpf.Program `ebpf:"kprobe__tcp_sendmsg"`
	TcpCleanupRbuf      *ebpf.Program `ebpf:"kprobe__tcp_cleanup_rbuf"`
	SkbConsumeUdp       *ebpf.Program `ebpf:"kprobe__skb_consume_udp"`
	UdpSendmsg          *ebpf.Program `ebpf:"kprobe__udp_sendmsg"`
	Udpv6Sendmsg        *ebpf.Program `ebpf:"kprobe__udpv6_sendmsg"`
	IptunnelXmit        *ebpf.Program `ebpf:"kprobe__iptunnel_xmit"`
	IptunnelXmitRet     *ebpf.Program `ebpf:"kretprobe__iptunnel_xmit"`
	UdpTunnel6Xmit      *ebpf.Program `ebpf:"kprobe__udp_tunnel6_xmit_skb"`
	UdpTunnel6XmitRet   *ebpf.Program `ebpf:"kretprobe__udp_tunnel6_xmit_skb"`
}

// lecoMaps holds the maps userspace reads.
type lecoMaps struct {
	ConnTable *ebpf.Map `ebpf:"conn_table"`
	Updates   *ebpf.Map `ebpf:"updates"`
	Diag      *ebpf.Map `ebpf:"diag"`
}

type lecoVariables struct {
	ConnIdx *ebpf.Variable `ebpf:"conn_idx"`
}

type lecoObjects struct {
	lecoPrograms
	lecoMaps
	lecoVariables
}

// loadLecoObjects reads the compiled object at path and loads it into the
// kernel, assigning programs, maps and variables into objs.
//
// Parameters:
//
//	objs *lecoObjects: destination for loaded objects.
//	path string: path to leco.bpf.o.
//
// Returns:
//
//	error: error reading the ELF or loading it into the kernel.
func loadLecoObjects(objs *lecoObjects, path string) error {
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := spec.LoadAndAssign(objs, nil); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// Close releases every program and map, collecting all close errors.
func (o *lecoObjects) Close() error {
	var result *multierror.Error

	for _, c := range []interface{ Close() error }{
		o.TcpV4Connect, o.TcpV4ConnectRet, o.TcpV6Connect, o.TcpV6ConnectRet,
		o.InetDgramConnect, o.InetDgramConnectRet, o.TcpSendmsg, o.TcpCleanupRbuf,
		o.SkbConsumeUdp, o.UdpSendmsg, o.Udpv6Sendmsg, o.IptunnelXmit,
		o.IptunnelXmitRet, o.UdpTunnel6Xmit, o.UdpTunnel6XmitRet,
		o.ConnTable, o.Updates, o.Diag,
	} {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
