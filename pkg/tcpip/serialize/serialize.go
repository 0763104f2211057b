// Copyright 2019 The gVisor Authors.
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

// Package serialize lets independently written protocol layers build one
// encapsulated packet in a single buffer.
//
// A packet is described as a chain of requests, innermost first:
//
//	r := serialize.Encapsulate(serialize.Bytes(payload), udp)
//	r = r.Encapsulate(ipv4).Encapsulate(eth)
//	pkt := serialize.SerializeOuter(r)
//
// Serializing the outermost request walks the chain inwards, adding up
// every layer's header and footer requirements, so the innermost request
// can make sure the buffer has room for all of them, allocating at most
// once. The chain then unwinds outwards and each layer writes its header
// and footer around the body produced by the layers inside it.
package serialize

import (
	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
)

// Request is a packet, or a partially built packet, that can be serialized
// into a buffer with room reserved around it.
type Request interface {
	// Serialize serializes the request and returns the buffer holding it.
	// The range of the returned buffer covers exactly the serialized
	// request, and the buffer has at least headerBytes bytes before the
	// range and room for both padding up to minBodyAndPaddingBytes in total
	// and footerBytes bytes after it.
	//
	// A request must be serialized at most once.
	Serialize(headerBytes, minBodyAndPaddingBytes, footerBytes int) *buffer.ByteRange
}

// InnerPacketSerializer is an innermost packet that knows its exact size,
// such as an application payload or an ICMP message.
type InnerPacketSerializer interface {
	// Size returns the number of bytes the packet serializes to.
	Size() int

	// Serialize writes the packet into b, which is exactly Size bytes.
	Serialize(b []byte)
}

// PacketSerializer is a protocol layer that encapsulates a body with a
// header and/or footer.
//
// Header and footer sizes may be approximate: a layer reports bounds, and
// the buffer is sized for the maximum.
type PacketSerializer interface {
	// MaxHeaderBytes is the largest header this layer may write.
	MaxHeaderBytes() int

	// MinHeaderBytes is the smallest header this layer may write.
	MinHeaderBytes() int

	// MaxFooterBytes is the largest footer this layer may write.
	MaxFooterBytes() int

	// MinFooterBytes is the smallest footer this layer may write.
	MinFooterBytes() int

	// MinBodyAndPaddingBytes is the minimum length of this layer's body.
	// Shorter bodies are padded with zeroes before Serialize is called.
	MinBodyAndPaddingBytes() int

	// Serialize writes the header immediately before buf's range and the
	// footer immediately after it, then extends the range to cover both.
	// The buffer is guaranteed to have MaxHeaderBytes of prefix and
	// MaxFooterBytes of suffix available.
	Serialize(buf *buffer.ByteRange)
}

// SerializeOuter serializes r as the outermost packet, with no extra room
// around it.
func SerializeOuter(r Request) *buffer.ByteRange {
	return r.Serialize(0, 0, 0)
}

// Encapsulate returns a request for inner encapsulated in the layer outer.
func Encapsulate(inner Request, outer PacketSerializer) *Encapsulating {
	return &Encapsulating{serializer: outer, inner: inner}
}

// Encapsulating is a request for a body, described by another request,
// wrapped in one more protocol layer.
type Encapsulating struct {
	serializer PacketSerializer
	inner      Request
}

// Encapsulate returns a request for e encapsulated in the layer outer.
func (e *Encapsulating) Encapsulate(outer PacketSerializer) *Encapsulating {
	return Encapsulate(e, outer)
}

// Serialize implements Request.Serialize.
func (e *Encapsulating) Serialize(headerBytes, minBodyAndPaddingBytes, footerBytes int) *buffer.ByteRange {
	s := e.serializer
	ownMinBody := s.MinBodyAndPaddingBytes()

	// Whatever remains of an outer layer's minimum body after our smallest
	// header and footer must be made up by our body.
	nextMinBody := max(minBodyAndPaddingBytes-(s.MinHeaderBytes()+s.MinFooterBytes()), 0)

	buf := e.inner.Serialize(headerBytes+s.MaxHeaderBytes(), max(ownMinBody, nextMinBody), footerBytes+s.MaxFooterBytes())
	if l := buf.Len(); l < ownMinBody {
		buf.ExtendForwardsZero(ownMinBody - l)
	}
	s.Serialize(buf)
	return buf
}

// Bytes is a request for a raw byte slice. The slice is reused as is when no
// room has to be reserved around it, and copied into a new buffer otherwise.
type Bytes []byte

// Serialize implements Request.Serialize.
func (b Bytes) Serialize(headerBytes, minBodyAndPaddingBytes, footerBytes int) *buffer.ByteRange {
	r := buffer.FromBytes(b)
	r.EnsurePrefixSuffixPadding(headerBytes, footerBytes, minBodyAndPaddingBytes)
	return r
}

// Encapsulate returns a request for b encapsulated in the layer outer.
func (b Bytes) Encapsulate(outer PacketSerializer) *Encapsulating {
	return Encapsulate(b, outer)
}

// Range is a request for the current range of an existing buffer, such as a
// received packet being forwarded. The buffer is reused, and written to, if
// it has enough room around the range.
type Range struct {
	*buffer.ByteRange
}

// Serialize implements Request.Serialize.
func (r Range) Serialize(headerBytes, minBodyAndPaddingBytes, footerBytes int) *buffer.ByteRange {
	r.EnsurePrefixSuffixPadding(headerBytes, footerBytes, minBodyAndPaddingBytes)
	return r.ByteRange
}

// Encapsulate returns a request for r encapsulated in the layer outer.
func (r Range) Encapsulate(outer PacketSerializer) *Encapsulating {
	return Encapsulate(r, outer)
}

// Inner is a request for an InnerPacketSerializer.
type Inner struct {
	serializer InnerPacketSerializer
	buf        []byte
}

// NewInner returns a request for s. If buf is large enough to hold the whole
// packet it is used as the backing buffer; otherwise, or if buf is nil, a
// new buffer is allocated.
func NewInner(s InnerPacketSerializer, buf []byte) Inner {
	return Inner{serializer: s, buf: buf}
}

// Serialize implements Request.Serialize.
func (in Inner) Serialize(headerBytes, minBodyAndPaddingBytes, footerBytes int) *buffer.ByteRange {
	size := in.serializer.Size()
	// Start with an empty range where the body would go if buf is large
	// enough, leaving room for the headers in front of it.
	at := min(headerBytes, len(in.buf))
	r := buffer.NewByteRange(in.buf, at, at)
	r.EnsurePrefixSuffixPadding(headerBytes, footerBytes, max(size, minBodyAndPaddingBytes))
	r.ExtendForwards(size)
	in.serializer.Serialize(r.Bytes())
	return r
}

// Encapsulate returns a request for in encapsulated in the layer outer.
func (in Inner) Encapsulate(outer PacketSerializer) *Encapsulating {
	return Encapsulate(in, outer)
}

// Chain returns a request for inner encapsulated in layers, which are given
// outermost first.
func Chain(inner Request, layers ...PacketSerializer) Request {
	r := inner
	for i := len(layers) - 1; i >= 0; i-- {
		r = Encapsulate(r, layers[i])
	}
	return r
}
