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

// These constants are the offsets of the respective fields in the TCP header.
const (
	TCPSrcPortOffset   = 0
	TCPDstPortOffset   = 2
	TCPSeqNumOffset    = 4
	TCPAckNumOffset    = 8
	TCPDataOffset      = 12
	TCPFlagsOffset     = 13
	TCPWinSizeOffset   = 14
	TCPChecksumOffset  = 16
	TCPUrgentPtrOffset = 18
)

// TCPFlags is the dedicated type for TCP flags.
type TCPFlags uint8

// Intersects returns true iff there are flags common to both f and o.
func (f TCPFlags) Intersects(o TCPFlags) bool {
	return f&o != 0
}

// Contains returns true iff all the flags in o are contained within f.
func (f TCPFlags) Contains(o TCPFlags) bool {
	return f&o == o
}

// String implements Stringer.String.
func (f TCPFlags) String() string {
	flagsStr := []byte("FSRPAU")
	for i := range flagsStr {
		if f&(1<<uint(i)) == 0 {
			flagsStr[i] = ' '
		}
	}
	return string(flagsStr)
}

// Flags that may be set in a TCP segment.
const (
	TCPFlagFin TCPFlags = 1 << iota
	TCPFlagSyn
	TCPFlagRst
	TCPFlagPsh
	TCPFlagAck
	TCPFlagUrg
)

// TCPFields contains the fields of a TCP packet. It is used to describe the
// fields of a packet that needs to be encoded.
type TCPFields struct {
	// SrcPort is the "source port" field of a TCP packet.
	SrcPort uint16

	// DstPort is the "destination port" field of a TCP packet.
	DstPort uint16

	// SeqNum is the "sequence number" field of a TCP packet.
	SeqNum uint32

	// AckNum is the "acknowledgement number" field of a TCP packet.
	AckNum uint32

	// DataOffset is the "data offset" field of a TCP packet. It is the length of
	// the TCP header in bytes.
	DataOffset uint8

	// Flags is the "flags" field of a TCP packet.
	Flags TCPFlags

	// WindowSize is the "window size" field of a TCP packet.
	WindowSize uint16

	// Checksum is the "checksum" field of a TCP packet.
	Checksum uint16

	// UrgentPointer is the "urgent pointer" field of a TCP packet.
	UrgentPointer uint16
}

// TCP represents a TCP header stored in a byte array.
type TCP []byte

const (
	// TCPMinimumSize is the minimum size of a valid TCP packet.
	TCPMinimumSize = 20

	// TCPHeaderMaximumSize is the maximum header size of a TCP packet.
	TCPHeaderMaximumSize = TCPMinimumSize + TCPOptionsMaximumSize

	// TCPOptionsMaximumSize is the maximum size of TCP options.
	TCPOptionsMaximumSize = 40

	// TCPProtocolNumber is TCP's transport protocol number.
	TCPProtocolNumber tcpip.TransportProtocolNumber = 6
)

// SourcePort returns the "source port" field of the TCP header.
func (b TCP) SourcePort() uint16 {
	return binary.BigEndian.Uint16(b[TCPSrcPortOffset:])
}

// DestinationPort returns the "destination port" field of the TCP header.
func (b TCP) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(b[TCPDstPortOffset:])
}

// SequenceNumber returns the "sequence number" field of the TCP header.
func (b TCP) SequenceNumber() uint32 {
	return binary.BigEndian.Uint32(b[TCPSeqNumOffset:])
}

// AckNumber returns the "ack number" field of the TCP header.
func (b TCP) AckNumber() uint32 {
	return binary.BigEndian.Uint32(b[TCPAckNumOffset:])
}

// DataOffset returns the "data offset" field of the TCP header. The return
// value is the length of the TCP header in bytes.
func (b TCP) DataOffset() uint8 {
	return (b[TCPDataOffset] >> 4) * 4
}

// Payload returns the data in the TCP packet.
func (b TCP) Payload() []byte {
	return b[b.DataOffset():]
}

// Flags returns the flags field of the TCP header.
func (b TCP) Flags() TCPFlags {
	return TCPFlags(b[TCPFlagsOffset])
}

// WindowSize returns the "window size" field of the TCP header.
func (b TCP) WindowSize() uint16 {
	return binary.BigEndian.Uint16(b[TCPWinSizeOffset:])
}

// Checksum returns the "checksum" field of the TCP header.
func (b TCP) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[TCPChecksumOffset:])
}

// UrgentPointer returns the "urgent pointer" field of the TCP header.
func (b TCP) UrgentPointer() uint16 {
	return binary.BigEndian.Uint16(b[TCPUrgentPtrOffset:])
}

// Options returns a slice that holds the unparsed TCP options in the segment.
func (b TCP) Options() []byte {
	return b[TCPMinimumSize:b.DataOffset()]
}

// SetChecksum sets the checksum field of the TCP header.
func (b TCP) SetChecksum(xsum uint16) {
	checksum.Put(b[TCPChecksumOffset:], xsum)
}

// SetDataOffset sets the data offset field of the TCP header. headerLen should
// be the length of the TCP header in bytes.
func (b TCP) SetDataOffset(headerLen uint8) {
	b[TCPDataOffset] = (headerLen / 4) << 4
}

// CalculateChecksum returns the checksum of the TCP segment b, which must span
// the whole segment, given the source and destination IPv4 addresses. The
// checksum field is skipped.
func (b TCP) CalculateChecksum(src, dst tcpip.Address) uint16 {
	xsum := PseudoHeaderChecksum(TCPProtocolNumber, src, dst, uint16(len(b)))
	xsum.Add(b[:TCPChecksumOffset])
	xsum.Add(b[TCPChecksumOffset+checksum.Size:])
	return xsum.Checksum()
}

// IsChecksumValid returns true iff the TCP segment's checksum is valid. b must
// span the whole segment.
func (b TCP) IsChecksumValid(src, dst tcpip.Address) bool {
	xsum := PseudoHeaderChecksum(TCPProtocolNumber, src, dst, uint16(len(b)))
	xsum.Add(b)
	return xsum.Checksum() == 0
}

// encodeSubset encodes the fields of the TCP header that are common to Encode
// and EncodePartial.
func (b TCP) encodeSubset(seq, ack uint32, flags TCPFlags, rcvwnd uint16) {
	binary.BigEndian.PutUint32(b[TCPSeqNumOffset:], seq)
	binary.BigEndian.PutUint32(b[TCPAckNumOffset:], ack)
	b[TCPFlagsOffset] = uint8(flags)
	binary.BigEndian.PutUint16(b[TCPWinSizeOffset:], rcvwnd)
}

// Encode encodes all the fields of the TCP header.
func (b TCP) Encode(t *TCPFields) {
	b.encodeSubset(t.SeqNum, t.AckNum, t.Flags, t.WindowSize)
	binary.BigEndian.PutUint16(b[TCPSrcPortOffset:], t.SrcPort)
	binary.BigEndian.PutUint16(b[TCPDstPortOffset:], t.DstPort)
	b.SetDataOffset(t.DataOffset)
	b.SetChecksum(t.Checksum)
	binary.BigEndian.PutUint16(b[TCPUrgentPtrOffset:], t.UrgentPointer)
}

// EncodePartial updates a subset of the fields of the TCP header. It is useful
// in cases when similar segments are produced. The checksum is updated
// incrementally.
func (b TCP) EncodePartial(seq, ack uint32, flags TCPFlags, rcvwnd uint16) {
	var old [TCPChecksumOffset - TCPSeqNumOffset]byte
	copy(old[:], b[TCPSeqNumOffset:TCPChecksumOffset])
	b.encodeSubset(seq, ack, flags, rcvwnd)
	b.SetChecksum(checksum.Update(b.Checksum(), old[:], b[TCPSeqNumOffset:TCPChecksumOffset]))
}

// TCPSerializer encapsulates a body in a TCP header. The data offset and
// checksum are computed; the other fields are taken from Fields.
type TCPSerializer struct {
	SrcAddr tcpip.Address
	DstAddr tcpip.Address
	Fields  TCPFields
	Options []TCPOption
}

func (s *TCPSerializer) headerLength() int {
	return TCPMinimumSize + TCPOptionsLength(s.Options)
}

// MaxHeaderBytes implements serialize.PacketSerializer.MaxHeaderBytes.
func (s *TCPSerializer) MaxHeaderBytes() int { return s.headerLength() }

// MinHeaderBytes implements serialize.PacketSerializer.MinHeaderBytes.
func (s *TCPSerializer) MinHeaderBytes() int { return s.headerLength() }

// MaxFooterBytes implements serialize.PacketSerializer.MaxFooterBytes.
func (*TCPSerializer) MaxFooterBytes() int { return 0 }

// MinFooterBytes implements serialize.PacketSerializer.MinFooterBytes.
func (*TCPSerializer) MinFooterBytes() int { return 0 }

// MinBodyAndPaddingBytes implements
// serialize.PacketSerializer.MinBodyAndPaddingBytes.
func (*TCPSerializer) MinBodyAndPaddingBytes() int { return 0 }

// Serialize implements serialize.PacketSerializer.Serialize. It panics if the
// segment is too long for the pseudo-header length field.
func (s *TCPSerializer) Serialize(buf *buffer.ByteRange) {
	hdrLen := s.headerLength()
	if l := hdrLen + buf.Len(); l > 0xffff {
		panic(fmt.Sprintf("TCP segment of %d bytes is too long", l))
	}
	fields := s.Fields
	fields.DataOffset = uint8(hdrLen)
	fields.Checksum = 0
	hdr := TCP(buf.Prepend(hdrLen))
	hdr.Encode(&fields)
	EncodeTCPOptions(s.Options, hdr[TCPMinimumSize:hdrLen])
	seg := TCP(buf.Bytes())
	seg.SetChecksum(seg.CalculateChecksum(s.SrcAddr, s.DstAddr))
}

// ParseTCP validates the TCP header at the front of r, whose segment was
// carried between the IPv4 addresses src and dst, and narrows r to the
// segment's payload. r must end where the segment ends.
func ParseTCP(r *buffer.ByteRange, src, dst tcpip.Address) (TCP, options.Options[TCPOption], error) {
	var opts options.Options[TCPOption]
	if r.Len() < TCPMinimumSize {
		return nil, opts, fmt.Errorf("TCP segment of %d bytes: %w", r.Len(), ErrTruncated)
	}
	seg := TCP(r.Bytes())
	off := int(seg.DataOffset())
	if off < TCPMinimumSize {
		return nil, opts, fmt.Errorf("TCP data offset %d: %w", off, ErrInvalidHeaderLength)
	}
	if off > r.Len() {
		return nil, opts, fmt.Errorf("TCP data offset %d with %d bytes: %w", off, r.Len(), ErrTruncated)
	}
	if r.Len() > 0xffff {
		return nil, opts, fmt.Errorf("TCP segment of %d bytes: %w", r.Len(), ErrInvalidLength)
	}
	if !seg.IsChecksumValid(src, dst) {
		return nil, opts, fmt.Errorf("TCP checksum %#04x: %w", seg.Checksum(), ErrBadChecksum)
	}
	opts, err := options.Parse[TCPOption](seg.Options(), TCPOptionImpl{})
	if err != nil {
		return nil, opts, fmt.Errorf("TCP options: %w", err)
	}
	r.TrimFront(off)
	return seg, opts, nil
}
