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

// Package buffer provides ByteRange, a byte buffer with a movable active
// range, used to peel headers off received packets and to reserve room for
// headers and footers when building outgoing ones.
package buffer

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ownership records whether a ByteRange's backing slice belongs to the
// caller or was allocated by the ByteRange itself.
type ownership uint8

const (
	// borrowed means the backing slice was supplied by the caller. Writes
	// through the ByteRange are visible to the caller.
	borrowed ownership = iota

	// owned means the backing slice was allocated by
	// EnsurePrefixSuffixPadding. A ByteRange never goes back to borrowed.
	owned
)

func (o ownership) String() string {
	switch o {
	case borrowed:
		return "borrowed"
	case owned:
		return "owned"
	default:
		return fmt.Sprintf("ownership(%d)", uint8(o))
	}
}

// ByteRange is a buffer together with an active range [start, end) inside
// it.
//
// The bytes before the range are the prefix and the bytes after it are the
// suffix. When parsing, each protocol layer narrows the range to its payload.
// When serializing, each layer writes its header into the prefix and its
// footer into the suffix, then widens the range to cover them.
//
// Every method panics if asked to move the range outside of the buffer:
// these are programming errors, not data errors.
type ByteRange struct {
	buf   []byte
	own   ownership
	start int
	end   int
}

// NewByteRange returns a ByteRange borrowing buf with the active range
// [start, end).
func NewByteRange(buf []byte, start, end int) *ByteRange {
	checkRange(start, end, len(buf))
	return &ByteRange{buf: buf, own: borrowed, start: start, end: end}
}

// FromBytes returns a ByteRange borrowing buf whose range covers all of buf.
func FromBytes(buf []byte) *ByteRange {
	return NewByteRange(buf, 0, len(buf))
}

func checkRange(start, end, length int) {
	if start < 0 || start > end || end > length {
		panic(fmt.Sprintf("invalid range [%d, %d) for buffer of length %d", start, end, length))
	}
}

// Range returns the bounds of the active range within the buffer.
func (r *ByteRange) Range() (start, end int) {
	return r.start, r.end
}

// Len returns the length of the active range.
func (r *ByteRange) Len() int {
	return r.end - r.start
}

// PrefixLen returns the number of bytes preceding the active range.
func (r *ByteRange) PrefixLen() int {
	return r.start
}

// SuffixLen returns the number of bytes following the active range.
func (r *ByteRange) SuffixLen() int {
	return len(r.buf) - r.end
}

// Bytes returns the active range. The returned slice aliases the buffer and
// may be written to.
func (r *ByteRange) Bytes() []byte {
	return r.buf[r.start:r.end:r.end]
}

// Buffer returns the whole backing buffer.
func (r *ByteRange) Buffer() []byte {
	return r.buf
}

// Owned returns true if the backing buffer was allocated by the ByteRange
// rather than supplied by the caller.
func (r *ByteRange) Owned() bool {
	return r.own == owned
}

// Slice narrows the active range to [start, end), relative to the current
// range.
func (r *ByteRange) Slice(start, end int) {
	checkRange(start, end, r.Len())
	r.start, r.end = r.start+start, r.start+end
}

// ExtendForwards widens the range by n bytes towards the end of the buffer.
func (r *ByteRange) ExtendForwards(n int) {
	if n < 0 || n > r.SuffixLen() {
		panic(fmt.Sprintf("cannot extend range [%d, %d) forwards by %d bytes in buffer of length %d", r.start, r.end, n, len(r.buf)))
	}
	r.end += n
}

// ExtendForwardsZero is like ExtendForwards, but also zeroes the bytes newly
// covered by the range. It must be used for padding so that stale buffer
// contents never end up on the wire.
func (r *ByteRange) ExtendForwardsZero(n int) {
	r.ExtendForwards(n)
	clear(r.buf[r.end-n : r.end])
}

// ExtendBackwards widens the range by n bytes towards the beginning of the
// buffer.
func (r *ByteRange) ExtendBackwards(n int) {
	if n < 0 || n > r.start {
		panic(fmt.Sprintf("cannot extend range [%d, %d) backwards by %d bytes", r.start, r.end, n))
	}
	r.start -= n
}

// Parts splits the buffer into the prefix, the active range and the suffix.
// The three slices are disjoint and may be written to simultaneously.
func (r *ByteRange) Parts() (prefix, body, suffix []byte) {
	return r.buf[:r.start:r.start], r.buf[r.start:r.end:r.end], r.buf[r.end:]
}

// EnsurePrefixSuffixPadding makes sure that at least prefix bytes precede
// the range, and that the bytes following the range can hold both padding
// up to a total of rangePlusPadding bytes and a further suffix bytes.
//
// If the current buffer already satisfies all three constraints nothing
// happens. Otherwise a new zeroed buffer of exactly the required size is
// allocated, the contents of the range are copied into it and the ByteRange
// takes ownership of it. The contents of the range are preserved either way.
//
// TODO: shift the range in place when the buffer is large
// enough but the slack is on the wrong side, instead of reallocating.
func (r *ByteRange) EnsurePrefixSuffixPadding(prefix, suffix, rangePlusPadding int) {
	if prefix < 0 || suffix < 0 || rangePlusPadding < 0 {
		panic(fmt.Sprintf("negative requirement: prefix=%d suffix=%d rangePlusPadding=%d", prefix, suffix, rangePlusPadding))
	}
	l := r.Len()
	padded := max(rangePlusPadding, l)
	if prefix <= r.PrefixLen() && suffix <= r.SuffixLen() && l+r.SuffixLen() >= padded+suffix {
		return
	}

	padding := padded - l
	buf := make([]byte, prefix+l+padding+suffix)
	copy(buf[prefix:], r.Bytes())
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.WithFields(logrus.Fields{
			"prefix":    prefix,
			"length":    l,
			"padding":   padding,
			"suffix":    suffix,
			"ownership": r.own,
		}).Debug("reallocated packet buffer")
	}
	r.buf = buf
	r.own = owned
	r.start = prefix
	r.end = prefix + l
}
