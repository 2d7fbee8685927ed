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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"github.com/dkorunic/leco/internal/conn"
	"github.com/dkorunic/leco/internal/ktime"
	"github.com/hako/durafmt"
	"go.uber.org/zap"
)

func main() {
	parseFlags()

	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()

	// Remove resource limits for kernels <5.11
	if err := rlimit.RemoveMemlock(); err != nil {
		log.Fatal("Error removing memlock", zap.Error(err))
	}

	// Load the compiled eBPF ELF and load it into the kernel
	var objs lecoObjects
	if err := loadLecoObjects(&objs, *objectPath); err != nil {
		log.Fatal("Error loading eBPF objects", zap.String("object", *objectPath), zap.Error(err))
	}

	defer func() {
		if err := objs.Close(); err != nil {
			log.Warn("Error closing eBPF objects", zap.Error(err))
		}
	}()

	var links []link.Link

	defer func() {
		for _, l := range links {
			_ = l.Close()
		}
	}()

	links = startKProbes(lecoHooks(&objs), links, log)

	c1, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		s := <-signalCh
		log.Info("Received signal, trying to exit", zap.Stringer("signal", s))
		cancel()
	}()

	if *timeout > 0 {
		log.Info("Listening before exiting", zap.Stringer("timeout", durafmt.Parse(*timeout)))

		go func() {
			time.Sleep(*timeout)
			cancel()
		}()
	}

	var cg cgroupNamer

	if *useCGroups {
		r, err := newCGroupResolver(CGroupRootPath, log)
		if err != nil {
			log.Warn("Cgroup path resolution disabled", zap.Error(err))
		} else {
			go r.run(c1)

			cg = r
		}
	}

	w := bufio.NewWriter(os.Stdout)
	defer func() { _ = w.Flush() }()

	boot := ktime.BootTime(ktime.Monotonic{}, time.Now())
	emit := func(r conn.Record, source string) {
		e := newConnEntry(r, boot, source, cg)

		var err error
		if *jsonOutput {
			err = outputJSON(w, e)
		} else {
			err = outputPlain(w, e, time.Now())
		}

		if err != nil {
			log.Error("Error writing output", zap.Error(err))
		}
	}

	// subscribe to the live channel before reading the window so no update
	// falls between the two
	var events chan conn.Record

	if !*snapshotOnly {
		rd, err := newEventReader(objs.Updates, log)
		if err != nil {
			log.Fatal("Error opening ring buffer", zap.Error(err))
		}

		events = make(chan conn.Record)

		go rd.run(c1, events)
	}

	if !*noSnapshot {
		var idx uint32
		if err := objs.ConnIdx.Get(&idx); err != nil {
			log.Fatal("Error reading window index", zap.Error(err))
		}

		recs, err := readWindow(objs.ConnTable, idx)
		if err != nil {
			log.Fatal("Error reading eBPF map", zap.Error(err))
		}

		log.Debug("Read snapshot window", zap.Int("records", len(recs)))

		for _, r := range recs {
			emit(r, sourceSnapshot)
		}

		_ = w.Flush()
	}

	if *snapshotOnly {
		reportDiag(&objs, log)

		return
	}

	var tick <-chan time.Time

	if *diagInterval > 0 {
		t := time.NewTicker(*diagInterval)
		defer t.Stop()

		tick = t.C
	}

	for {
		select {
		case r, ok := <-events:
			if !ok {
				reportDiag(&objs, log)

				return
			}

			emit(r, sourceLive)

			_ = w.Flush()
		case <-tick:
			reportDiag(&objs, log)
		}
	}
}

// newLogger builds a production logger, or a development one when verbose.
func newLogger(verbose bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)

	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	return log
}

// reportDiag logs the diagnostics counter and correlation miss tally.
func reportDiag(objs *lecoObjects, log *zap.Logger) {
	errs, misses, err := readDiag(objs.Diag)
	if err != nil {
		log.Warn("Error reading diagnostics", zap.Error(err))

		return
	}

	log.Info("Diagnostics", zap.Uint64("diagnostics", errs), zap.Uint64("correlationMisses", misses))
}
