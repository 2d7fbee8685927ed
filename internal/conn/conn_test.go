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


package conn

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	r := Record{
		Type:   TypeTCP6,
		Ns:     0x0102030405060708,
		Saddr:  AddrFromIP(netip.MustParseAddr("2001:db8::1")),
		Daddr:  AddrFromIP(netip.MustParseAddr("2001:db8::2")),
		Sport:  44321,
		Dport:  443,
		Pid:    100,
		Uid:    1000,
		LastNs: 0x1112131415161718,
		Rx:     300,
		Tx:     500,
		Cgroup: 4242,
	}
	r.SetComm("curl")

	return r
}

func TestRecordSize(t *testing.T) {
	r := sampleRecord()

	b, err := r.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, RecordSize)
}

func TestRecordFieldOffsets(t *testing.T) {
	r := sampleRecord()

	b, err := r.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, byte(TypeTCP6), b[0])
	assert.Equal(t, r.Ns, binary.NativeEndian.Uint64(b[1:]))
	assert.Equal(t, r.Saddr[:], b[9:25])
	assert.Equal(t, r.Daddr[:], b[25:41])
	assert.Equal(t, uint16(44321), binary.NativeEndian.Uint16(b[41:]))
	assert.Equal(t, uint16(443), binary.NativeEndian.Uint16(b[43:]))
	assert.Equal(t, uint32(100), binary.NativeEndian.Uint32(b[45:]))
	assert.Equal(t, uint32(1000), binary.NativeEndian.Uint32(b[49:]))
	assert.Equal(t, []byte("curl"), b[53:57])
	assert.Equal(t, make([]byte, 12), b[57:69])
	assert.Equal(t, r.LastNs, binary.NativeEndian.Uint64(b[69:]))
	assert.Equal(t, uint64(300), binary.NativeEndian.Uint64(b[77:]))
	assert.Equal(t, uint64(500), binary.NativeEndian.Uint64(b[85:]))
	assert.Equal(t, uint64(4242), binary.NativeEndian.Uint64(b[93:]))
}

func TestRecordRoundTrip(t *testing.T) {
	in := sampleRecord()

	b, err := in.MarshalBinary()
	require.NoError(t, err)

	// ring buffer samples carry alignment padding
	b = append(b, 0, 0, 0)

	var out Record
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, in, out)
	assert.Equal(t, "curl", out.CommString())
}

func TestRecordUnmarshalShort(t *testing.T) {
	var r Record

	err := r.UnmarshalBinary(make([]byte, RecordSize-1))
	assert.True(t, errors.Is(err, ErrShortRecord))
}

func TestDecodeRecordsSkipsEmptySlots(t *testing.T) {
	a := sampleRecord()
	c := sampleRecord()
	c.Type = TypeUDP4
	c.Pid = 7

	buf, _ := a.MarshalBinary()
	buf = append(buf, make([]byte, RecordSize)...)
	buf, _ = c.AppendBinary(buf)

	recs, err := DecodeRecords(buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint32(100), recs[0].Pid)
	assert.Equal(t, uint32(7), recs[1].Pid)

	_, err = DecodeRecords(buf[:RecordSize+1])
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestSetCommTruncates(t *testing.T) {
	var r Record

	r.SetComm("a-very-long-command-name")
	assert.Equal(t, "a-very-long-com", r.CommString())
	assert.Equal(t, byte(0), r.Comm[TaskCommLen-1])
}

func TestAddrV4LowBits(t *testing.T) {
	a := AddrFromIP(netip.MustParseAddr("192.0.2.10"))

	assert.Equal(t, [4]byte{192, 0, 2, 10}, [4]byte(a[:4]))
	assert.Equal(t, make([]byte, 12), a[4:])
	assert.Equal(t, "192.0.2.10", a.IP(false).String())

	mapped := AddrFromIP(netip.MustParseAddr("::ffff:192.0.2.10"))
	assert.Equal(t, a, mapped)
}

func TestTypeOf(t *testing.T) {
	cases := []struct {
		proto  Proto
		family Family
		want   Type
	}{
		{ProtoTCP, FamilyInet, TypeTCP4},
		{ProtoTCP, FamilyInet6, TypeTCP6},
		{ProtoUDP, FamilyInet, TypeUDP4},
		{ProtoUDP, FamilyInet6, TypeUDP6},
		{ProtoOther, FamilyInet, TypeOther4},
		{ProtoOther, FamilyInet6, TypeOther6},
	}

	for _, c := range cases {
		got, err := TypeOf(c.proto, c.family)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
		assert.Equal(t, c.proto, got.Proto())
		assert.True(t, got.Valid())
	}

	_, err := TypeOf(ProtoTCP, Family(1)) // AF_UNIX
	assert.ErrorIs(t, err, ErrUnsupportedFamily)
}

func TestNtohs(t *testing.T) {
	var b [2]byte

	binary.BigEndian.PutUint16(b[:], 443)
	wire := binary.NativeEndian.Uint16(b[:])

	assert.Equal(t, uint16(443), Ntohs(wire))
	assert.Equal(t, wire, Htons(443))
}
