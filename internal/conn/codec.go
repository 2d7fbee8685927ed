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
	"fmt"
)

// Wire layout of struct conn_t (packed, host byte order for integers):
//
//	offset size field
//	     0    1 type tag
//	     1    8 creation timestamp, ns
//	     9   16 local address
//	    25   16 remote address
//	    41    2 local port
//	    43    2 remote port
//	    45    4 pid
//	    49    4 uid
//	    53   16 command name, NUL padded
//	    69    8 last forwarded update, ns
//	    77    8 receive bytes
//	    85    8 transmit bytes
//	    93    8 cgroup id
//	   101      end
const (
	offType   = 0
	offNs     = 1
	offSaddr  = 9
	offDaddr  = 25
	offSport  = 41
	offDport  = 43
	offPid    = 45
	offUid    = 49
	offComm   = 53
	offLastNs = 69
	offRx     = 77
	offTx     = 85
	offCgroup = 93

	// RecordSize is sizeof(struct conn_t).
	RecordSize = 101
)

var ErrShortRecord = errors.New("short connection record")

// hostOrder is the byte order the kernel writes integers in.
var hostOrder = binary.NativeEndian

var hostIsLittle = hostOrder.Uint16([]byte{1, 0}) == 1

// Ntohs converts a 16-bit value from network to host order.
func Ntohs(v uint16) uint16 {
	if hostIsLittle {
		return v<<8 | v>>8
	}

	return v
}

// Htons converts a 16-bit value from host to network order.
func Htons(v uint16) uint16 {
	return Ntohs(v)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, RecordSize))
}

// AppendBinary appends the packed record to b.
func (r *Record) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, byte(r.Type))
	b = hostOrder.AppendUint64(b, r.Ns)
	b = append(b, r.Saddr[:]...)
	b = append(b, r.Daddr[:]...)
	b = hostOrder.AppendUint16(b, r.Sport)
	b = hostOrder.AppendUint16(b, r.Dport)
	b = hostOrder.AppendUint32(b, r.Pid)
	b = hostOrder.AppendUint32(b, r.Uid)
	b = append(b, r.Comm[:]...)
	b = hostOrder.AppendUint64(b, r.LastNs)
	b = hostOrder.AppendUint64(b, r.Rx)
	b = hostOrder.AppendUint64(b, r.Tx)
	b = hostOrder.AppendUint64(b, r.Cgroup)

	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Trailing bytes
// beyond RecordSize are ignored, ring buffer samples are 8-byte aligned.
func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return fmt.Errorf("%w: %d bytes", ErrShortRecord, len(b))
	}

	r.Type = Type(b[offType])
	r.Ns = hostOrder.Uint64(b[offNs:])
	copy(r.Saddr[:], b[offSaddr:offDaddr])
	copy(r.Daddr[:], b[offDaddr:offSport])
	r.Sport = hostOrder.Uint16(b[offSport:])
	r.Dport = hostOrder.Uint16(b[offDport:])
	r.Pid = hostOrder.Uint32(b[offPid:])
	r.Uid = hostOrder.Uint32(b[offUid:])
	copy(r.Comm[:], b[offComm:offLastNs])
	r.LastNs = hostOrder.Uint64(b[offLastNs:])
	r.Rx = hostOrder.Uint64(b[offRx:])
	r.Tx = hostOrder.Uint64(b[offTx:])
	r.Cgroup = hostOrder.Uint64(b[offCgroup:])

	return nil
}

// DecodeRecords splits a buffer of back to back records, skipping slots
// that were never written (zero type tag).
func DecodeRecords(b []byte) ([]Record, error) {
	if len(b)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrShortRecord, len(b), RecordSize)
	}

	recs := make([]Record, 0, len(b)/RecordSize)

	for off := 0; off < len(b); off += RecordSize {
		if b[off+offType] == byte(TypeUnknown) {
			continue
		}

		var r Record
		if err := r.UnmarshalBinary(b[off : off+RecordSize]); err != nil {
			return nil, err
		}

		recs = append(recs, r)
	}

	return recs, nil
}
