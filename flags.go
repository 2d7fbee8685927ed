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
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

const (
	defaultObject       = "/usr/lib/leco/leco.bpf.o"
	defaultTimeout      = 0
	defaultDiagInterval = 30 * time.Second
	envVarPrefix        = "LECO"
)

var (
	objectPath, configFile *string
	jsonOutput, version    *bool
	help, verbose          *bool
	snapshotOnly           *bool
	noSnapshot, useCGroups *bool
	timeout, diagInterval  *time.Duration
)

// parseFlags parses command line flags, LECO_ prefixed environment variables
// and an optional plain config file, in that order of precedence.
func parseFlags() {
	fs := ff.NewFlagSet("leco")

	help = fs.Bool('?', "help", "display help")
	jsonOutput = fs.Bool('j', "json", "if true, output in JSON format")
	snapshotOnly = fs.Bool('s', "snapshot-only", "if true, print the recent connection window and exit")
	noSnapshot = fs.BoolLong("no-snapshot", "if true, skip the recent connection window and only stream live updates")
	useCGroups = fs.Bool('c', "cgroups", "if true, resolve cgroup ids to cgroup paths")
	verbose = fs.Bool('v', "verbose", "if true, enable debug logging")

	version = fs.BoolLong("version", "display program version")

	objectPath = fs.String('o', "object", defaultObject, "path to compiled leco eBPF object")
	configFile = fs.StringLong("config", "", "config file (plain \"flag value\" lines)")

	timeout = fs.Duration('t', "timeout", defaultTimeout, "exit after timeout, 0 to run until interrupted")
	diagInterval = fs.DurationLong("diag-interval", defaultDiagInterval, "interval for diagnostics counter reports, 0 to disable")

	var err error

	if err = ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix(envVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Printf("%s\n", ffhelp.Flags(fs))
		fmt.Printf("Error: %v\n", err)

		os.Exit(1)
	}

	if *help {
		fmt.Printf("%s\n", ffhelp.Flags(fs))

		os.Exit(0)
	}

	if *version {
		fmt.Printf("leco %v %v%v, built on: %v\n", GitTag, GitCommit, GitDirty, BuildTime)

		os.Exit(0)
	}

	if *snapshotOnly && *noSnapshot {
		fmt.Printf("Error: --snapshot-only and --no-snapshot are mutually exclusive\n")

		os.Exit(1)
	}
}
