// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checksum implements the Internet checksum (RFC 1071) and its
// incremental update (RFC 1624) as used by IPv4, TCP, UDP and ICMP.
//
// All words are interpreted in network byte order. Values exported by this
// package are always the one's complement of the folded sum, i.e. the value
// that goes on the wire.
package checksum

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Size is the size of a checksum.
//
// The checksum is held in a uint16 which is 2 bytes.
const Size = 2

// Put puts the checksum in the provided byte slice.
func Put(b []byte, xsum uint16) {
	binary.BigEndian.PutUint16(b, xsum)
}

// Checksum is an incremental Internet checksum accumulator.
//
// The zero value is an empty checksum, ready to use. Bytes may be added in
// chunks of any size; an odd trailing byte is carried over to the next call
// to Add, so feeding a buffer one byte at a time produces the same result as
// feeding it all at once.
type Checksum struct {
	// sum is the running sum of 16-bit words, folded back into 32 bits
	// whenever an addition would overflow.
	sum uint32

	// trailing holds a leftover odd byte from the last call to Add. It is
	// only valid if hasTrailing is set.
	trailing    byte
	hasTrailing bool
}

// New returns an empty Checksum.
func New() Checksum {
	return Checksum{}
}

// Add folds b into the running sum.
func (c *Checksum) Add(b []byte) {
	if len(b) == 0 {
		return
	}
	if c.hasTrailing {
		c.addWord(uint16(c.trailing)<<8 | uint16(b[0]))
		c.hasTrailing = false
		b = b[1:]
	}
	for len(b) >= 2 {
		c.addWord(binary.BigEndian.Uint16(b))
		b = b[2:]
	}
	if len(b) == 1 {
		c.trailing = b[0]
		c.hasTrailing = true
	}
}

// Checksum returns the checksum of all bytes added so far.
//
// A pending odd byte is treated as if it were followed by a zero byte. The
// accumulator is not modified, so more bytes may be added afterwards.
func (c *Checksum) Checksum() uint16 {
	sum := c.sum
	if c.hasTrailing {
		sum = add(sum, uint16(c.trailing)<<8)
	}
	return ^normalize(sum)
}

func (c *Checksum) addWord(w uint16) {
	c.sum = add(c.sum, w)
}

// add adds w to sum, folding sum down to 16 bits first if the addition
// would overflow. No carry is ever lost.
func add(sum uint32, w uint16) uint32 {
	s, carry := bits.Add32(sum, uint32(w), 0)
	if carry != 0 {
		// normalize returns at most 0xffff, so this cannot overflow.
		return uint32(normalize(sum)) + uint32(w)
	}
	return s
}

// normalize folds sum into 16 bits by repeatedly adding the high 16 bits
// into the low 16 bits.
func normalize(sum uint32) uint16 {
	for sum > 0xffff {
		sum = sum>>16 + sum&0xffff
	}
	return uint16(sum)
}

// Of returns the checksum of b.
func Of(b []byte) uint16 {
	var c Checksum
	c.Add(b)
	return c.Checksum()
}

// Update returns the checksum that results from replacing old with new in a
// buffer whose checksum was xsum, without rescanning the whole buffer. It
// implements RFC 1624, Eqn. 3:
//
//	HC' = ~(~HC + ~m + m')
//
// old and new must have the same length. The first byte of old must be at an
// even offset in the checksummed buffer; this is not checked. If old and new
// have an odd length they must be the tail of the buffer.
func Update(xsum uint16, old, new []byte) uint16 {
	if len(old) != len(new) {
		panic(fmt.Sprintf("checksum.Update: len(old) = %d != len(new) = %d", len(old), len(new)))
	}
	c := Checksum{sum: uint32(^xsum)}
	for len(old) >= 2 {
		c.addWord(^binary.BigEndian.Uint16(old))
		c.addWord(binary.BigEndian.Uint16(new))
		old, new = old[2:], new[2:]
	}
	if len(old) == 1 {
		c.addWord(^(uint16(old[0]) << 8))
		c.addWord(uint16(new[0]) << 8)
	}
	return c.Checksum()
}

// Combine combines the two uint16 to form their checksum. This is done
// by adding them and the carry.
//
// Note that a must have been computed on an even number of bytes. The values
// combined are folded sums, not the complemented values returned by
// Checksum.Checksum.
func Combine(a, b uint16) uint16 {
	v := uint32(a) + uint32(b)
	return uint16(v + v>>16)
}
