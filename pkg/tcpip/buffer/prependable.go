// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

// Prepend widens the range backwards by size bytes and returns the newly
// covered bytes, which is where a protocol layer writes its header. Each
// layer prepends its own header in front of the higher-level header and
// payload; for example, TCP prepends its header to the payload, then IP
// prepends its own, then ethernet.
//
// Prepend panics if fewer than size bytes precede the range.
func (r *ByteRange) Prepend(size int) []byte {
	r.ExtendBackwards(size)
	return r.buf[r.start : r.start+size : r.start+size]
}

// Append widens the range forwards by size bytes and returns the newly
// covered bytes, which is where a protocol layer writes its footer.
//
// Append panics if fewer than size bytes follow the range.
func (r *ByteRange) Append(size int) []byte {
	r.ExtendForwards(size)
	return r.buf[r.end-size : r.end : r.end]
}

// TrimFront narrows the range by removing count bytes from its front. It is
// used by parsers to step over a header once it has been consumed.
func (r *ByteRange) TrimFront(count int) {
	r.Slice(count, r.Len())
}

// CapLength narrows the range to at most length bytes, dropping trailing
// bytes such as link-layer padding.
func (r *ByteRange) CapLength(length int) {
	if length < 0 {
		panic("length < 0")
	}
	if length < r.Len() {
		r.Slice(0, length)
	}
}
