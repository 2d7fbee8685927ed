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
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// TestOutputPlain tests the human readable line format
func TestOutputPlain(t *testing.T) {
	boot := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newConnEntry(testRecord(), boot, sourceLive, nil)

	var buf bytes.Buffer
	if err := outputPlain(&buf, e, e.Created.Add(90*time.Second)); err != nil {
		t.Fatalf("outputPlain failed: %v", err)
	}

	line := buf.String()

	for _, want := range []string{
		"live TCP4: 10.0.0.1:40000 -> 93.184.216.34:443",
		"pid: 100", "uid: 1000", "comm: curl",
		"rx: 300 B", "tx: 500 B",
		"age: 1 minute 30 seconds",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}

	if strings.Contains(line, "cgroup") {
		t.Errorf("Unexpected cgroup in %q", line)
	}

	if !strings.HasSuffix(line, "\n") {
		t.Errorf("Expected trailing newline in %q", line)
	}
}

// TestOutputJSON tests that every entry is one parseable JSON line
func TestOutputJSON(t *testing.T) {
	e := newConnEntry(testRecord(), time.Time{}, sourceSnapshot, fakeNamer{42: "/x"})

	var buf bytes.Buffer
	if err := outputJSON(&buf, e); err != nil {
		t.Fatalf("outputJSON failed: %v", err)
	}

	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("Expected exactly one line, got %q", buf.String())
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON %q: %v", buf.String(), err)
	}

	if got["localIP"] != "10.0.0.1" || got["remotePort"] != float64(443) {
		t.Errorf("Unexpected endpoint fields: %v", got)
	}

	if got["source"] != "snapshot" || got["cgroup"] != "/x" {
		t.Errorf("Unexpected source/cgroup fields: %v", got)
	}
}

// TestFormatAge tests sub-second and negative ages
func TestFormatAge(t *testing.T) {
	if got := formatAge(-time.Second); got != "0 seconds" {
		t.Errorf("Expected 0 seconds, got %q", got)
	}

	if got := formatAge(3*time.Second + 400*time.Millisecond); got != "3 seconds" {
		t.Errorf("Expected 3 seconds, got %q", got)
	}
}
