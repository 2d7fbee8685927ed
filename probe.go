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
	"errors"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/features"
	"github.com/cilium/ebpf/link"
	"go.uber.org/zap"
)

type kprobeHook struct {
	prog   *ebpf.Program
	symbol string
	ret    bool
}

// lecoHooks returns the hook table for objs. Connect and tunnel transmit
// hooks come in entry/return pairs sharing one correlation cache, the data
// path hooks fire on entry only.
func lecoHooks(objs *lecoObjects) []kprobeHook {
	return []kprobeHook{
		{symbol: "tcp_v4_connect", prog: objs.TcpV4Connect},
		{symbol: "tcp_v4_connect", prog: objs.TcpV4ConnectRet, ret: true},
		{symbol: "tcp_v6_connect", prog: objs.TcpV6Connect},
		{symbol: "tcp_v6_connect", prog: objs.TcpV6ConnectRet, ret: true},
		{symbol: "inet_dgram_connect", prog: objs.InetDgramConnect},
		{symbol: "inet_dgram_connect", prog: objs.InetDgramConnectRet, ret: true},
		{symbol: "tcp_sendmsg", prog: objs.TcpSendmsg},
		{symbol: "tcp_cleanup_rbuf", prog: objs.TcpCleanupRbuf},
		{symbol: "skb_consume_udp", prog: objs.SkbConsumeUdp},
		{symbol: "udp_sendmsg", prog: objs.UdpSendmsg},
		{symbol: "udpv6_sendmsg", prog: objs.Udpv6Sendmsg},
		{symbol: "iptunnel_xmit", prog: objs.IptunnelXmit},
		{symbol: "iptunnel_xmit", prog: objs.IptunnelXmitRet, ret: true},
		{symbol: "udp_tunnel6_xmit_skb", prog: objs.UdpTunnel6Xmit},
		{symbol: "udp_tunnel6_xmit_skb", prog: objs.UdpTunnel6XmitRet, ret: true},
	}
}

// startKProbes attaches a series of eBPF programs to kernel functions using
// KProbes and KRetProbes.
//
// A hook that cannot be attached is logged and skipped, for example tunnel
// transmit functions when the tunnel module is not loaded. The function first
// checks if KProbes are supported by the current kernel and terminates the
// program if not.
//
// Parameters:
//
//	hooks []kprobeHook: kernel function names with their eBPF programs.
//	links []link.Link: slice to which successfully attached links are appended.
//	log *zap.Logger: logger.
//
// Returns:
//
//	[]link.Link: the updated slice of links.
func startKProbes(hooks []kprobeHook, links []link.Link, log *zap.Logger) []link.Link {
	var l link.Link

	err := features.HaveProgramType(ebpf.Kprobe)
	if errors.Is(err, ebpf.ErrNotSupported) {
		log.Fatal("KProbes are not supported on this kernel")
	}

	if err != nil {
		log.Fatal("Error checking KProbes support", zap.Error(err))
	}

	for _, kp := range hooks {
		if kp.ret {
			l, err = link.Kretprobe(kp.symbol, kp.prog, nil)
		} else {
			l, err = link.Kprobe(kp.symbol, kp.prog, nil)
		}

		if err != nil {
			log.Warn("Unable to attach probe",
				zap.String("symbol", kp.symbol), zap.Bool("return", kp.ret), zap.Error(err))

			continue
		}

		links = append(links, l)
	}

	log.Info("Attached probes", zap.Int("attached", len(links)), zap.Int("total", len(hooks)))

	return links
}
