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
	"fmt"
	"math"

	"github.com/netpkt/netpkt/pkg/tcpip"
	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
	"github.com/netpkt/netpkt/pkg/tcpip/checksum"
)

const (
	udpSrcPort  = 0
	udpDstPort  = 2
	udpLength   = 4
	udpChecksum = 6
)

// UDPFields contains the fields of a UDP packet. It is used to describe the
// fields of a packet that needs to be encoded.
type UDPFields struct {
	// SrcPort is the "source port" field of a UDP packet.
	SrcPort uint16

	// DstPort is the "destination port" field of a UDP packet.
	DstPort uint16

	// Length is the "length" field of a UDP packet.
	Length uint16

	// Checksum is the "checksum" field of a UDP packet.
	Checksum uint16
}

// UDP represents a UDP header stored in a byte array.
type UDP []byte

const (
	// UDPMinimumSize is the minimum size of a valid UDP packet.
	UDPMinimumSize = 8

	// UDPMaximumSize is the maximum size of a valid UDP packet. The length field
	// in the UDP header is 16 bits as per RFC 768.
	UDPMaximumSize = math.MaxUint16

	// UDPProtocolNumber is UDP's transport protocol number.
	UDPProtocolNumber tcpip.TransportProtocolNumber = 17
)

// SourcePort returns the "source port" field of the UDP header.
func (b UDP) SourcePort() uint16 {
	return binary.BigEndian.Uint16(b[udpSrcPort:])
}

// DestinationPort returns the "destination port" field of the UDP header.
func (b UDP) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(b[udpDstPort:])
}

// Length returns the "length" field of the UDP header.
func (b UDP) Length() uint16 {
	return binary.BigEndian.Uint16(b[udpLength:])
}

// Payload returns the data contained in the UDP datagram.
func (b UDP) Payload() []byte {
	return b[UDPMinimumSize:]
}

// Checksum returns the "checksum" field of the UDP header.
func (b UDP) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[udpChecksum:])
}

// SetSourcePort sets the "source port" field of the UDP header.
func (b UDP) SetSourcePort(port uint16) {
	binary.BigEndian.PutUint16(b[udpSrcPort:], port)
}

// SetDestinationPort sets the "destination port" field of the UDP header.
func (b UDP) SetDestinationPort(port uint16) {
	binary.BigEndian.PutUint16(b[udpDstPort:], port)
}

// SetChecksum sets the "checksum" field of the UDP header.
func (b UDP) SetChecksum(xsum uint16) {
	checksum.Put(b[udpChecksum:], xsum)
}

// SetLength sets the "length" field of the UDP header.
func (b UDP) SetLength(length uint16) {
	binary.BigEndian.PutUint16(b[udpLength:], length)
}

// CalculateChecksum returns the checksum of the UDP datagram b, which must
// span the whole datagram, given the source and destination IPv4 addresses.
// A computed checksum of zero is returned as 0xffff, since zero on the wire
// means no checksum (RFC 768).
func (b UDP) CalculateChecksum(src, dst tcpip.Address) uint16 {
	xsum := PseudoHeaderChecksum(UDPProtocolNumber, src, dst, b.Length())
	xsum.Add(b[:udpChecksum])
	xsum.Add(b[udpChecksum+checksum.Size:])
	if v := xsum.Checksum(); v != 0 {
		return v
	}
	return 0xffff
}

// IsChecksumValid returns true iff the UDP datagram's checksum is valid. A
// zero checksum field means the sender did not compute one, and is valid.
func (b UDP) IsChecksumValid(src, dst tcpip.Address) bool {
	if b.Checksum() == 0 {
		return true
	}
	xsum := PseudoHeaderChecksum(UDPProtocolNumber, src, dst, b.Length())
	xsum.Add(b)
	return xsum.Checksum() == 0
}

// Encode encodes all the fields of the UDP header.
func (b UDP) Encode(u *UDPFields) {
	b.SetSourcePort(u.SrcPort)
	b.SetDestinationPort(u.DstPort)
	b.SetLength(u.Length)
	b.SetChecksum(u.Checksum)
}

// SetSourcePortWithChecksumUpdate sets the source port and updates the
// checksum incrementally.
func (b UDP) SetSourcePortWithChecksumUpdate(new uint16) {
	b.setWithChecksumUpdate(udpSrcPort, new)
}

// SetDestinationPortWithChecksumUpdate sets the destination port and updates
// the checksum incrementally.
func (b UDP) SetDestinationPortWithChecksumUpdate(new uint16) {
	b.setWithChecksumUpdate(udpDstPort, new)
}

func (b UDP) setWithChecksumUpdate(off int, v uint16) {
	var old [2]byte
	copy(old[:], b[off:off+2])
	binary.BigEndian.PutUint16(b[off:], v)
	if b.Checksum() == 0 {
		// No checksum to maintain.
		return
	}
	xsum := checksum.Update(b.Checksum(), old[:], b[off:off+2])
	if xsum == 0 {
		xsum = 0xffff
	}
	b.SetChecksum(xsum)
}

// UDPSerializer encapsulates a body in a UDP header. The length and checksum
// are computed from the body and the IPv4 addresses of the enclosing packet.
type UDPSerializer struct {
	SrcAddr tcpip.Address
	DstAddr tcpip.Address
	SrcPort uint16
	DstPort uint16

	// NoChecksum leaves the checksum field zero.
	NoChecksum bool
}

// MaxHeaderBytes implements serialize.PacketSerializer.MaxHeaderBytes.
func (*UDPSerializer) MaxHeaderBytes() int { return UDPMinimumSize }

// MinHeaderBytes implements serialize.PacketSerializer.MinHeaderBytes.
func (*UDPSerializer) MinHeaderBytes() int { return UDPMinimumSize }

// MaxFooterBytes implements serialize.PacketSerializer.MaxFooterBytes.
func (*UDPSerializer) MaxFooterBytes() int { return 0 }

// MinFooterBytes implements serialize.PacketSerializer.MinFooterBytes.
func (*UDPSerializer) MinFooterBytes() int { return 0 }

// MinBodyAndPaddingBytes implements
// serialize.PacketSerializer.MinBodyAndPaddingBytes.
func (*UDPSerializer) MinBodyAndPaddingBytes() int { return 0 }

// Serialize implements serialize.PacketSerializer.Serialize. It panics if the
// datagram would be longer than UDPMaximumSize.
func (s *UDPSerializer) Serialize(buf *buffer.ByteRange) {
	length := UDPMinimumSize + buf.Len()
	if length > UDPMaximumSize {
		panic(fmt.Sprintf("UDP datagram of %d bytes is too long", length))
	}
	u := UDP(buf.Prepend(UDPMinimumSize))
	u.Encode(&UDPFields{
		SrcPort: s.SrcPort,
		DstPort: s.DstPort,
		Length:  uint16(length),
	})
	if !s.NoChecksum {
		UDP(buf.Bytes()).SetChecksum(UDP(buf.Bytes()).CalculateChecksum(s.SrcAddr, s.DstAddr))
	}
}

// ParseUDP validates the UDP header at the front of r, whose datagram was
// carried between the IPv4 addresses src and dst, and narrows r to the
// datagram's payload.
func ParseUDP(r *buffer.ByteRange, src, dst tcpip.Address) (UDP, error) {
	if r.Len() < UDPMinimumSize {
		return nil, fmt.Errorf("UDP datagram of %d bytes: %w", r.Len(), ErrTruncated)
	}
	u := UDP(r.Bytes())
	length := int(u.Length())
	if length < UDPMinimumSize || length > r.Len() {
		return nil, fmt.Errorf("UDP length %d with %d bytes: %w", length, r.Len(), ErrInvalidLength)
	}
	u = u[:length]
	if !u.IsChecksumValid(src, dst) {
		return nil, fmt.Errorf("UDP checksum %#04x: %w", u.Checksum(), ErrBadChecksum)
	}
	r.CapLength(length)
	r.TrimFront(UDPMinimumSize)
	return u, nil
}
