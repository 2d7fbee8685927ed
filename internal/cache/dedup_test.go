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


package cache

import (
	"net/netip"
	"testing"

	"github.com/dkorunic/leco/internal/conn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peer = conn.AddrFromIP(netip.MustParseAddr("198.51.100.7"))

func TestDedupSuppressesSameIdentity(t *testing.T) {
	d, err := NewDedup(8)
	require.NoError(t, err)

	assert.False(t, d.ShouldSuppress(0xaa, peer, 53, 100))
	assert.True(t, d.ShouldSuppress(0xaa, peer, 53, 100))
	assert.True(t, d.ShouldSuppress(0xaa, peer, 53, 100))
}

func TestDedupDifferentIdentityNotSuppressed(t *testing.T) {
	d, err := NewDedup(8)
	require.NoError(t, err)

	assert.False(t, d.ShouldSuppress(0xaa, peer, 53, 100))
	assert.False(t, d.ShouldSuppress(0xaa, peer, 53, 200))
	// identity 200 is now the remembered one
	assert.False(t, d.ShouldSuppress(0xaa, peer, 53, 100))
	assert.True(t, d.ShouldSuppress(0xaa, peer, 53, 100))
}

func TestDedupKeyCoversDestination(t *testing.T) {
	d, err := NewDedup(8)
	require.NoError(t, err)

	other := conn.AddrFromIP(netip.MustParseAddr("198.51.100.8"))

	assert.False(t, d.ShouldSuppress(0xaa, peer, 53, 100))
	assert.False(t, d.ShouldSuppress(0xaa, peer, 5353, 100))
	assert.False(t, d.ShouldSuppress(0xaa, other, 53, 100))
	assert.False(t, d.ShouldSuppress(0xbb, peer, 53, 100))
	assert.Equal(t, 4, d.Len())
}

func TestDedupEviction(t *testing.T) {
	d, err := NewDedup(2)
	require.NoError(t, err)

	assert.False(t, d.ShouldSuppress(1, peer, 53, 100))
	assert.False(t, d.ShouldSuppress(2, peer, 53, 100))
	assert.False(t, d.ShouldSuppress(3, peer, 53, 100))

	// socket 1 was evicted, so it notifies again
	assert.False(t, d.ShouldSuppress(1, peer, 53, 100))
	assert.Equal(t, 2, d.Len())
}

func TestEndpointIdentity(t *testing.T) {
	a := conn.AddrFromIP(netip.MustParseAddr("10.0.0.1"))
	b := conn.AddrFromIP(netip.MustParseAddr("10.0.0.2"))

	assert.Equal(t, EndpointIdentity(a, 4789), EndpointIdentity(a, 4789))
	assert.NotEqual(t, EndpointIdentity(a, 4789), EndpointIdentity(a, 4790))
	assert.NotEqual(t, EndpointIdentity(a, 4789), EndpointIdentity(b, 4789))
}
