// Copyright 2024 The gVisor Authors.
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

package header

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
)

// LayerSerializer lets a gopacket layer take part in an encapsulation chain,
// for protocols this package has no serializer for.
//
// gopacket layers do not report their sizes up front, so HeaderBytes and
// FooterBytes must be upper bounds on what the layer writes. The layer is
// serialized into the reserved space directly; it never reallocates.
type LayerSerializer struct {
	Layer gopacket.SerializableLayer

	// Options are passed to Layer.SerializeTo.
	Options gopacket.SerializeOptions

	// HeaderBytes and FooterBytes bound the header and footer the layer
	// writes.
	HeaderBytes int
	FooterBytes int

	// MinBody is the minimum body length of the layer. Shorter bodies are
	// zero padded.
	MinBody int
}

// MaxHeaderBytes implements serialize.PacketSerializer.MaxHeaderBytes.
func (l *LayerSerializer) MaxHeaderBytes() int { return l.HeaderBytes }

// MinHeaderBytes implements serialize.PacketSerializer.MinHeaderBytes.
func (*LayerSerializer) MinHeaderBytes() int { return 0 }

// MaxFooterBytes implements serialize.PacketSerializer.MaxFooterBytes.
func (l *LayerSerializer) MaxFooterBytes() int { return l.FooterBytes }

// MinFooterBytes implements serialize.PacketSerializer.MinFooterBytes.
func (*LayerSerializer) MinFooterBytes() int { return 0 }

// MinBodyAndPaddingBytes implements
// serialize.PacketSerializer.MinBodyAndPaddingBytes.
func (l *LayerSerializer) MinBodyAndPaddingBytes() int { return l.MinBody }

// Serialize implements serialize.PacketSerializer.Serialize. It panics if the
// layer fails to serialize or writes more than it declared.
func (l *LayerSerializer) Serialize(buf *buffer.ByteRange) {
	b := rangeBuffer{r: buf}
	if err := l.Layer.SerializeTo(&b, l.Options); err != nil {
		panic(fmt.Sprintf("serializing %s layer: %v", l.Layer.LayerType(), err))
	}
}

var errNoRoom = errors.New("not enough room reserved in packet buffer")

// rangeBuffer implements gopacket.SerializeBuffer on top of a ByteRange.
// Prepends and appends grow the range into the room reserved around it.
type rangeBuffer struct {
	r      *buffer.ByteRange
	layers []gopacket.LayerType
}

// Bytes implements gopacket.SerializeBuffer.Bytes.
func (b *rangeBuffer) Bytes() []byte {
	return b.r.Bytes()
}

// PrependBytes implements gopacket.SerializeBuffer.PrependBytes.
func (b *rangeBuffer) PrependBytes(num int) ([]byte, error) {
	if num > b.r.PrefixLen() {
		return nil, fmt.Errorf("prepending %d bytes with %d available: %w", num, b.r.PrefixLen(), errNoRoom)
	}
	return b.r.Prepend(num), nil
}

// AppendBytes implements gopacket.SerializeBuffer.AppendBytes.
func (b *rangeBuffer) AppendBytes(num int) ([]byte, error) {
	if num > b.r.SuffixLen() {
		return nil, fmt.Errorf("appending %d bytes with %d available: %w", num, b.r.SuffixLen(), errNoRoom)
	}
	return b.r.Append(num), nil
}

// Clear implements gopacket.SerializeBuffer.Clear. The body of a packet being
// encapsulated cannot be discarded.
func (b *rangeBuffer) Clear() error {
	return errors.New("cannot clear a packet being encapsulated")
}

// Layers implements gopacket.SerializeBuffer.Layers.
func (b *rangeBuffer) Layers() []gopacket.LayerType {
	return b.layers
}

// PushLayer implements gopacket.SerializeBuffer.PushLayer.
func (b *rangeBuffer) PushLayer(l gopacket.LayerType) {
	b.layers = append(b.layers, l)
}
