// Copyright 2018 Google LLC
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

// Package header provides the implementation of the encoding and decoding of
// network protocol headers.
//
// Every protocol has a byte slice type with field accessors (Ethernet, IPv4,
// UDP, TCP), a serializer that plugs into package serialize to write the
// header in front of a body, and a Parse function that validates a header at
// the front of a buffer.ByteRange and narrows the range to its payload.
package header

import (
	"encoding/binary"
	"errors"

	"github.com/netpkt/netpkt/pkg/tcpip"
	"github.com/netpkt/netpkt/pkg/tcpip/checksum"
)

var (
	// ErrTruncated is returned when a buffer is too short to hold the header
	// it is being parsed as.
	ErrTruncated = errors.New("truncated header")

	// ErrInvalidVersion is returned for an IP header with the wrong version.
	ErrInvalidVersion = errors.New("invalid IP version")

	// ErrInvalidHeaderLength is returned when a header length field is
	// smaller than the fixed part of the header.
	ErrInvalidHeaderLength = errors.New("invalid header length")

	// ErrInvalidLength is returned when a packet length field disagrees with
	// the buffer.
	ErrInvalidLength = errors.New("invalid packet length")

	// ErrBadChecksum is returned when a header or packet fails checksum
	// validation.
	ErrBadChecksum = errors.New("bad checksum")

	// ErrInvalidOption is returned by the option implementations for a
	// recognized option with an invalid length or value.
	ErrInvalidOption = errors.New("invalid option")
)

// PseudoHeaderChecksum returns a checksum accumulator seeded with the IPv4
// pseudo-header for a transport segment of the given protocol and length
// (RFC 768, RFC 9293 section 3.1).
//
// The transport layer adds its header, with the checksum field zeroed, and its
// payload to the result.
func PseudoHeaderChecksum(protocol tcpip.TransportProtocolNumber, srcAddr, dstAddr tcpip.Address, totalLen uint16) checksum.Checksum {
	var b [4]byte
	xsum := checksum.New()
	xsum.Add([]byte(srcAddr))
	xsum.Add([]byte(dstAddr))
	b[1] = uint8(protocol)
	binary.BigEndian.PutUint16(b[2:], totalLen)
	xsum.Add(b[:])
	return xsum
}
