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

package header

import (
	"encoding/binary"

	"github.com/netpkt/netpkt/pkg/tcpip"
	"github.com/netpkt/netpkt/pkg/tcpip/checksum"
)

// ICMPv4 represents an ICMPv4 header stored in a byte array.
type ICMPv4 []byte

const (
	// ICMPv4PayloadOffset defines the start of ICMP payload.
	ICMPv4PayloadOffset = 8

	// ICMPv4MinimumSize is the minimum size of a valid ICMP packet.
	ICMPv4MinimumSize = 8

	// ICMPv4ProtocolNumber is the ICMP transport protocol number.
	ICMPv4ProtocolNumber tcpip.TransportProtocolNumber = 1

	// icmpv4ChecksumOffset is the offset of the checksum field
	// in an ICMPv4 message.
	icmpv4ChecksumOffset = 2

	// icmpv4IdentOffset is the offset of the ident field
	// in a ICMPv4EchoRequest/Reply message.
	icmpv4IdentOffset = 4

	// icmpv4SequenceOffset is the offset of the sequence field
	// in a ICMPv4EchoRequest/Reply message.
	icmpv4SequenceOffset = 6
)

// ICMPv4Type is the ICMP type field described in RFC 792.
type ICMPv4Type byte

// Typical values of ICMPv4Type defined in RFC 792.
const (
	ICMPv4EchoReply      ICMPv4Type = 0
	ICMPv4DstUnreachable ICMPv4Type = 3
	ICMPv4Echo           ICMPv4Type = 8
	ICMPv4TimeExceeded   ICMPv4Type = 11
)

// Type is the ICMP type field.
func (b ICMPv4) Type() ICMPv4Type { return ICMPv4Type(b[0]) }

// SetType sets the ICMP type field.
func (b ICMPv4) SetType(t ICMPv4Type) { b[0] = byte(t) }

// Code is the ICMP code field. Its meaning depends on the value of Type.
func (b ICMPv4) Code() byte { return b[1] }

// SetCode sets the ICMP code field.
func (b ICMPv4) SetCode(c byte) { b[1] = c }

// Checksum is the ICMP checksum field.
func (b ICMPv4) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[icmpv4ChecksumOffset:])
}

// SetChecksum sets the ICMP checksum field.
func (b ICMPv4) SetChecksum(xsum uint16) {
	checksum.Put(b[icmpv4ChecksumOffset:], xsum)
}

// Payload returns the data after the ICMP header.
func (b ICMPv4) Payload() []byte {
	return b[ICMPv4PayloadOffset:]
}

// Ident retrieves the Ident field from an ICMPv4 message.
func (b ICMPv4) Ident() uint16 {
	return binary.BigEndian.Uint16(b[icmpv4IdentOffset:])
}

// SetIdent sets the Ident field from an ICMPv4 message.
func (b ICMPv4) SetIdent(ident uint16) {
	binary.BigEndian.PutUint16(b[icmpv4IdentOffset:], ident)
}

// Sequence retrieves the Sequence field from an ICMPv4 message.
func (b ICMPv4) Sequence() uint16 {
	return binary.BigEndian.Uint16(b[icmpv4SequenceOffset:])
}

// SetSequence sets the Sequence field from an ICMPv4 message.
func (b ICMPv4) SetSequence(sequence uint16) {
	binary.BigEndian.PutUint16(b[icmpv4SequenceOffset:], sequence)
}

// CalculateChecksum returns the checksum of the ICMP message b, which must
// span the whole message, skipping the checksum field.
func (b ICMPv4) CalculateChecksum() uint16 {
	xsum := checksum.New()
	xsum.Add(b[:icmpv4ChecksumOffset])
	xsum.Add(b[icmpv4ChecksumOffset+checksum.Size:])
	return xsum.Checksum()
}

// ICMPv4EchoMessage is an ICMP echo request or reply. It is an innermost
// packet: it implements serialize.InnerPacketSerializer.
type ICMPv4EchoMessage struct {
	// Reply selects an echo reply instead of a request.
	Reply    bool
	Ident    uint16
	Sequence uint16
	Data     []byte
}

// Size implements serialize.InnerPacketSerializer.Size.
func (m *ICMPv4EchoMessage) Size() int {
	return ICMPv4MinimumSize + len(m.Data)
}

// Serialize implements serialize.InnerPacketSerializer.Serialize.
func (m *ICMPv4EchoMessage) Serialize(b []byte) {
	h := ICMPv4(b)
	h.SetType(ICMPv4Echo)
	if m.Reply {
		h.SetType(ICMPv4EchoReply)
	}
	h.SetCode(0)
	h.SetChecksum(0)
	h.SetIdent(m.Ident)
	h.SetSequence(m.Sequence)
	copy(h.Payload(), m.Data)
	h.SetChecksum(h.CalculateChecksum())
}
