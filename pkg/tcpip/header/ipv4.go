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

	"github.com/netpkt/netpkt/pkg/tcpip"
	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
	"github.com/netpkt/netpkt/pkg/tcpip/checksum"
	"github.com/netpkt/netpkt/pkg/tcpip/options"
)

const (
	versIHL      = 0
	tos          = 1
	totalLen     = 2
	id           = 4
	flagsFO      = 6
	ttl          = 8
	protocol     = 9
	ipv4Checksum = 10
	srcAddr      = 12
	dstAddr      = 16
	ipv4Options  = 20

	ipVersionShift = 4
	ipIHLMask      = 0x0f
)

// IPv4Fields contains the fields of an IPv4 packet. It is used to describe the
// fields of a packet that needs to be encoded.
type IPv4Fields struct {
	// TOS is the "type of service" field of an IPv4 packet.
	TOS uint8

	// TotalLength is the "total length" field of an IPv4 packet.
	TotalLength uint16

	// ID is the "identification" field of an IPv4 packet.
	ID uint16

	// Flags is the "flags" field of an IPv4 packet.
	Flags uint8

	// FragmentOffset is the "fragment offset" field of an IPv4 packet, in
	// bytes. It must be a multiple of 8.
	FragmentOffset uint16

	// TTL is the "time to live" field of an IPv4 packet.
	TTL uint8

	// Protocol is the "protocol" field of an IPv4 packet.
	Protocol uint8

	// Checksum is the "checksum" field of an IPv4 packet.
	Checksum uint16

	// SrcAddr is the "source ip address" of an IPv4 packet.
	SrcAddr tcpip.Address

	// DstAddr is the "destination ip address" of an IPv4 packet.
	DstAddr tcpip.Address

	// Options must be 40 bytes or less as they must fit along with the
	// rest of the IPv4 header into the maximum size describable in the
	// IHL field. RFC 791 section 3.1 says:
	//    IHL:  4 bits
	//
	//    Internet Header Length is the length of the internet header in 32
	//    bit words, and thus points to the beginning of the data.  Note that
	//    the minimum value for a correct header is 5.
	//
	// That leaves ten 32 bit (4 byte) fields for options. An attempt to encode
	// more will fail.
	Options IPv4OptionsSerializer
}

// IPv4 is an IPv4 header.
// Most of the methods of IPv4 access to the underlying slice without
// checking the boundaries and could panic because of 'index out of range'.
// Always call IsValid() to validate an instance of IPv4 before using other
// methods.
type IPv4 []byte

const (
	// IPv4MinimumSize is the minimum size of a valid IPv4 packet;
	// i.e. a packet header with no options.
	IPv4MinimumSize = 20

	// IPv4MaximumHeaderSize is the maximum size of an IPv4 header. Given
	// that there are only 4 bits (max 0xF (15)) to represent the header length
	// in 32-bit (4 byte) units, the header cannot exceed 15*4 = 60 bytes.
	IPv4MaximumHeaderSize = 60

	// IPv4MaximumOptionsSize is the largest size the IPv4 options can be.
	IPv4MaximumOptionsSize = IPv4MaximumHeaderSize - IPv4MinimumSize

	// IPv4MaximumPayloadSize is the maximum size of a valid IPv4 payload.
	IPv4MaximumPayloadSize = 65536 - IPv4MinimumSize

	// IPv4AddressSize is the size, in bytes, of an IPv4 address.
	IPv4AddressSize = 4

	// IPv4ProtocolNumber is IPv4's network protocol number.
	IPv4ProtocolNumber tcpip.NetworkProtocolNumber = 0x0800

	// IPv4Version is the version of the IPv4 protocol.
	IPv4Version = 4
)

// Flags that may be set in an IPv4 packet.
const (
	IPv4FlagMoreFragments = 1 << iota
	IPv4FlagDontFragment
)

// IPVersion returns the version of IP used in the given packet. It returns -1
// if the packet is not large enough to contain the version field.
func IPVersion(b []byte) int {
	// Length must be at least offset+length of version field.
	if len(b) < versIHL+1 {
		return -1
	}
	return int(b[versIHL] >> ipVersionShift)
}

// HeaderLength returns the value of the "header length" field of the IPv4
// header. The length returned is in bytes.
func (b IPv4) HeaderLength() uint8 {
	return (b[versIHL] & ipIHLMask) * 4
}

// SetHeaderLength sets the value of the "Internet Header Length" field.
func (b IPv4) SetHeaderLength(hdrLen uint8) {
	if hdrLen > IPv4MaximumHeaderSize {
		panic(fmt.Sprintf("got IPv4 Header size = %d, want <= %d", hdrLen, IPv4MaximumHeaderSize))
	}
	b[versIHL] = (IPv4Version << ipVersionShift) | ((hdrLen / 4) & ipIHLMask)
}

// ID returns the value of the identifier field of the IPv4 header.
func (b IPv4) ID() uint16 {
	return binary.BigEndian.Uint16(b[id:])
}

// Protocol returns the value of the protocol field of the IPv4 header.
func (b IPv4) Protocol() uint8 {
	return b[protocol]
}

// Flags returns the "flags" field of the IPv4 header.
func (b IPv4) Flags() uint8 {
	return uint8(binary.BigEndian.Uint16(b[flagsFO:]) >> 13)
}

// TTL returns the "TTL" field of the IPv4 header.
func (b IPv4) TTL() uint8 {
	return b[ttl]
}

// FragmentOffset returns the "fragment offset" field of the IPv4 header, in
// bytes.
func (b IPv4) FragmentOffset() uint16 {
	return binary.BigEndian.Uint16(b[flagsFO:]) << 3
}

// TotalLength returns the "total length" field of the IPv4 header.
func (b IPv4) TotalLength() uint16 {
	return binary.BigEndian.Uint16(b[totalLen:])
}

// Checksum returns the checksum field of the IPv4 header.
func (b IPv4) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[ipv4Checksum:])
}

// SourceAddress returns the "source address" field of the IPv4 header.
func (b IPv4) SourceAddress() tcpip.Address {
	return tcpip.Address(b[srcAddr : srcAddr+IPv4AddressSize])
}

// DestinationAddress returns the "destination address" field of the IPv4
// header.
func (b IPv4) DestinationAddress() tcpip.Address {
	return tcpip.Address(b[dstAddr : dstAddr+IPv4AddressSize])
}

// TOS returns the "type of service" field of the IPv4 header.
func (b IPv4) TOS() uint8 {
	return b[tos]
}

// Options returns the raw options of the IPv4 header.
func (b IPv4) Options() []byte {
	return b[ipv4Options:b.HeaderLength()]
}

// Payload returns the data carried by the IPv4 packet.
func (b IPv4) Payload() []byte {
	return b[b.HeaderLength():][:b.PayloadLength()]
}

// PayloadLength returns the length of the payload portion of the IPv4 packet.
func (b IPv4) PayloadLength() uint16 {
	return b.TotalLength() - uint16(b.HeaderLength())
}

// SetTOS sets the "type of service" field of the IPv4 header.
func (b IPv4) SetTOS(v uint8) {
	b[tos] = v
}

// SetTTL sets the "Time to Live" field of the IPv4 header.
func (b IPv4) SetTTL(v byte) {
	b[ttl] = v
}

// SetTotalLength sets the "total length" field of the IPv4 header.
func (b IPv4) SetTotalLength(totalLength uint16) {
	binary.BigEndian.PutUint16(b[totalLen:], totalLength)
}

// SetChecksum sets the checksum field of the IPv4 header.
func (b IPv4) SetChecksum(v uint16) {
	checksum.Put(b[ipv4Checksum:], v)
}

// SetSourceAddress sets the "source address" field of the IPv4 header.
func (b IPv4) SetSourceAddress(addr tcpip.Address) {
	copy(b[srcAddr:srcAddr+IPv4AddressSize], addr)
}

// SetDestinationAddress sets the "destination address" field of the IPv4
// header.
func (b IPv4) SetDestinationAddress(addr tcpip.Address) {
	copy(b[dstAddr:dstAddr+IPv4AddressSize], addr)
}

// CalculateChecksum returns the value the checksum field of the IPv4 header
// must hold, computed over the header with the checksum field skipped.
func (b IPv4) CalculateChecksum() uint16 {
	hdr := b[:b.HeaderLength()]
	c := checksum.New()
	c.Add(hdr[:ipv4Checksum])
	c.Add(hdr[ipv4Checksum+checksum.Size:])
	return c.Checksum()
}

// IsChecksumValid returns true iff the IPv4 header's checksum is valid.
func (b IPv4) IsChecksumValid() bool {
	return checksum.Of(b[:b.HeaderLength()]) == 0
}

// SetTTLWithChecksumUpdate sets the TTL field and updates the header checksum
// incrementally instead of recomputing it over the whole header.
func (b IPv4) SetTTLWithChecksumUpdate(v uint8) {
	var old, new [2]byte
	copy(old[:], b[ttl:ttl+2])
	b.SetTTL(v)
	copy(new[:], b[ttl:ttl+2])
	b.SetChecksum(checksum.Update(b.Checksum(), old[:], new[:]))
}

// Encode encodes all the fields of the IPv4 header.
func (b IPv4) Encode(i *IPv4Fields) {
	// The size of the options defines the size of the whole header and thus the
	// IHL field. Options are rare and this is a heavily used function so it is
	// worth a bit of optimisation here to keep the serializer out of the fast
	// path.
	hdrLen := uint8(IPv4MinimumSize)
	if len(i.Options) != 0 {
		hdrLen += i.Options.Serialize(b[ipv4Options:])
	}
	if hdrLen > IPv4MaximumHeaderSize {
		panic(fmt.Sprintf("%d is larger than maximum IPv4 header size of %d", hdrLen, IPv4MaximumHeaderSize))
	}
	b.SetHeaderLength(hdrLen)
	b[tos] = i.TOS
	b.SetTotalLength(i.TotalLength)
	binary.BigEndian.PutUint16(b[id:], i.ID)
	binary.BigEndian.PutUint16(b[flagsFO:], uint16(i.Flags)<<13|i.FragmentOffset>>3)
	b[ttl] = i.TTL
	b[protocol] = i.Protocol
	b.SetChecksum(i.Checksum)
	copy(b[srcAddr:srcAddr+IPv4AddressSize], i.SrcAddr)
	copy(b[dstAddr:dstAddr+IPv4AddressSize], i.DstAddr)
}

// IsValid performs basic validation on the packet.
func (b IPv4) IsValid(pktSize int) bool {
	if len(b) < IPv4MinimumSize {
		return false
	}

	hlen := int(b.HeaderLength())
	tlen := int(b.TotalLength())
	if hlen < IPv4MinimumSize || hlen > tlen || tlen > pktSize {
		return false
	}

	if IPVersion(b) != IPv4Version {
		return false
	}

	return true
}

// IPv4Serializer encapsulates a body in an IPv4 header. The total length and
// header checksum are computed from the body; the other fields are taken
// from Fields.
type IPv4Serializer struct {
	Fields IPv4Fields
}

func (s *IPv4Serializer) headerLength() int {
	return IPv4MinimumSize + int(s.Fields.Options.Length())
}

// MaxHeaderBytes implements serialize.PacketSerializer.MaxHeaderBytes.
func (s *IPv4Serializer) MaxHeaderBytes() int { return s.headerLength() }

// MinHeaderBytes implements serialize.PacketSerializer.MinHeaderBytes.
func (s *IPv4Serializer) MinHeaderBytes() int { return s.headerLength() }

// MaxFooterBytes implements serialize.PacketSerializer.MaxFooterBytes.
func (*IPv4Serializer) MaxFooterBytes() int { return 0 }

// MinFooterBytes implements serialize.PacketSerializer.MinFooterBytes.
func (*IPv4Serializer) MinFooterBytes() int { return 0 }

// MinBodyAndPaddingBytes implements
// serialize.PacketSerializer.MinBodyAndPaddingBytes.
func (*IPv4Serializer) MinBodyAndPaddingBytes() int { return 0 }

// Serialize implements serialize.PacketSerializer.Serialize. It panics if the
// packet would be longer than the total length field can describe.
func (s *IPv4Serializer) Serialize(buf *buffer.ByteRange) {
	hdrLen := s.headerLength()
	length := hdrLen + buf.Len()
	if length > 0xffff {
		panic(fmt.Sprintf("IPv4 packet of %d bytes is too long", length))
	}
	fields := s.Fields
	fields.TotalLength = uint16(length)
	fields.Checksum = 0
	ip := IPv4(buf.Prepend(hdrLen))
	ip.Encode(&fields)
	ip.SetChecksum(ip.CalculateChecksum())
}

// ParseIPv4 validates the IPv4 header at the front of r, including its
// checksum and options, and narrows r to the packet's payload. Link layer
// padding after the total length is dropped. The returned IPv4 covers the
// whole packet.
func ParseIPv4(r *buffer.ByteRange) (IPv4, options.Options[IPv4Option], error) {
	var opts options.Options[IPv4Option]
	if r.Len() < IPv4MinimumSize {
		return nil, opts, fmt.Errorf("IPv4 packet of %d bytes: %w", r.Len(), ErrTruncated)
	}
	ip := IPv4(r.Bytes())
	if v := IPVersion(ip); v != IPv4Version {
		return nil, opts, fmt.Errorf("IP version %d: %w", v, ErrInvalidVersion)
	}
	hlen := int(ip.HeaderLength())
	if hlen < IPv4MinimumSize {
		return nil, opts, fmt.Errorf("IPv4 header length %d: %w", hlen, ErrInvalidHeaderLength)
	}
	if hlen > r.Len() {
		return nil, opts, fmt.Errorf("IPv4 header length %d with %d bytes: %w", hlen, r.Len(), ErrTruncated)
	}
	if tlen := int(ip.TotalLength()); tlen < hlen || tlen > r.Len() {
		return nil, opts, fmt.Errorf("IPv4 total length %d with header length %d and %d bytes: %w", tlen, hlen, r.Len(), ErrInvalidLength)
	}
	if !ip.IsChecksumValid() {
		return nil, opts, fmt.Errorf("IPv4 header checksum %#04x: %w", ip.Checksum(), ErrBadChecksum)
	}
	opts, err := options.Parse[IPv4Option](ip.Options(), IPv4OptionImpl{})
	if err != nil {
		return nil, opts, fmt.Errorf("IPv4 options: %w", err)
	}
	ip = ip[:ip.TotalLength()]
	r.CapLength(len(ip))
	r.TrimFront(hlen)
	return ip, opts, nil
}
