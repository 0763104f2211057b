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

	"github.com/netpkt/netpkt/pkg/tcpip/options"
)

// Options that may be present in a TCP segment.
const (
	TCPOptionEOL           = options.EndOfOptions
	TCPOptionNOP           = options.NoOperation
	TCPOptionMSS           = 2
	TCPOptionWS            = 3
	TCPOptionSACKPermitted = 4
	TCPOptionSACK          = 5
	TCPOptionTS            = 8
)

// Option Lengths.
const (
	TCPOptionMSSLength           = 4
	TCPOptionTSLength            = 10
	TCPOptionWSLength            = 3
	TCPOptionSackPermittedLength = 2
)

const (
	// TCPMaxSACKBlocks is the maximum number of SACK blocks that can
	// be encoded in a TCP option field.
	TCPMaxSACKBlocks = 4

	// tcpSACKBlockSize is the size of one encoded SACK block.
	tcpSACKBlockSize = 8

	// TCPMaxWindowScale is the largest window scale shift allowed by RFC
	// 7323 section 2.3.
	TCPMaxWindowScale = 14
)

// SACKBlock represents a single contiguous SACK block.
type SACKBlock struct {
	// Start indicates the lowest sequence number in the block.
	Start uint32

	// End indicates the sequence number immediately following the last
	// sequence number of this block.
	End uint32
}

// TCPOption is a TCP option. It is implemented by TCPMSSOption,
// TCPWindowScaleOption, TCPSACKPermittedOption, TCPSACKOption,
// TCPSACKBlocksView and TCPTimestampOption.
type TCPOption interface {
	// Kind returns the option kind.
	Kind() uint8

	// encodedLength returns the length of the encoded option, including the
	// kind and length bytes.
	encodedLength() int

	// encode writes the option into b, which is encodedLength() bytes.
	encode(b []byte)
}

// TCPMSSOption is the Maximum Segment Size option.
type TCPMSSOption uint16

// Kind implements TCPOption.Kind.
func (TCPMSSOption) Kind() uint8 { return TCPOptionMSS }

func (TCPMSSOption) encodedLength() int { return TCPOptionMSSLength }

func (o TCPMSSOption) encode(b []byte) {
	b[0] = TCPOptionMSS
	b[1] = TCPOptionMSSLength
	binary.BigEndian.PutUint16(b[2:], uint16(o))
}

// TCPWindowScaleOption is the Window Scale option. Its value is the shift
// count.
type TCPWindowScaleOption uint8

// Kind implements TCPOption.Kind.
func (TCPWindowScaleOption) Kind() uint8 { return TCPOptionWS }

func (TCPWindowScaleOption) encodedLength() int { return TCPOptionWSLength }

func (o TCPWindowScaleOption) encode(b []byte) {
	b[0] = TCPOptionWS
	b[1] = TCPOptionWSLength
	b[2] = uint8(o)
}

// TCPSACKPermittedOption is the SACK Permitted option.
type TCPSACKPermittedOption struct{}

// Kind implements TCPOption.Kind.
func (TCPSACKPermittedOption) Kind() uint8 { return TCPOptionSACKPermitted }

func (TCPSACKPermittedOption) encodedLength() int { return TCPOptionSackPermittedLength }

func (TCPSACKPermittedOption) encode(b []byte) {
	b[0] = TCPOptionSACKPermitted
	b[1] = TCPOptionSackPermittedLength
}

// TCPSACKOption is the SACK option. At most TCPMaxSACKBlocks blocks are
// encoded, and an empty TCPSACKOption encodes to nothing.
type TCPSACKOption []SACKBlock

// Kind implements TCPOption.Kind.
func (TCPSACKOption) Kind() uint8 { return TCPOptionSACK }

func (o TCPSACKOption) encodedLength() int {
	if len(o) == 0 {
		return 0
	}
	return 2 + min(len(o), TCPMaxSACKBlocks)*tcpSACKBlockSize
}

func (o TCPSACKOption) encode(b []byte) {
	EncodeSACKBlocks(o, b)
}

// TCPSACKBlocksView is a parsed SACK option. It holds the option's data
// bytes, a whole number of blocks, without copying them out.
type TCPSACKBlocksView []byte

// Kind implements TCPOption.Kind.
func (TCPSACKBlocksView) Kind() uint8 { return TCPOptionSACK }

func (v TCPSACKBlocksView) encodedLength() int { return 2 + len(v) }

func (v TCPSACKBlocksView) encode(b []byte) {
	b[0] = TCPOptionSACK
	b[1] = uint8(2 + len(v))
	copy(b[2:], v)
}

// Len returns the number of blocks.
func (v TCPSACKBlocksView) Len() int { return len(v) / tcpSACKBlockSize }

// Block returns the i-th block.
func (v TCPSACKBlocksView) Block(i int) SACKBlock {
	b := v[i*tcpSACKBlockSize:]
	return SACKBlock{
		Start: binary.BigEndian.Uint32(b),
		End:   binary.BigEndian.Uint32(b[4:]),
	}
}

// Blocks returns a copy of the blocks.
func (v TCPSACKBlocksView) Blocks() TCPSACKOption {
	blocks := make(TCPSACKOption, v.Len())
	for i := range blocks {
		blocks[i] = v.Block(i)
	}
	return blocks
}

// TCPTimestampOption is the Timestamps option.
type TCPTimestampOption struct {
	// TSVal is the timestamp value.
	TSVal uint32

	// TSEcr is the timestamp echo reply.
	TSEcr uint32
}

// Kind implements TCPOption.Kind.
func (TCPTimestampOption) Kind() uint8 { return TCPOptionTS }

func (TCPTimestampOption) encodedLength() int { return TCPOptionTSLength }

func (o TCPTimestampOption) encode(b []byte) {
	EncodeTSOption(o.TSVal, o.TSEcr, b)
}

// EncodeTSOption encodes the provided tsVal and tsEcr values as a TCP timestamp
// option into the provided buffer. If the buffer is smaller than expected it
// just panics as it's a programming error.
func EncodeTSOption(tsVal, tsEcr uint32, b []byte) int {
	if len(b) < TCPOptionTSLength {
		panic("buffer too small")
	}
	b[0], b[1] = TCPOptionTS, TCPOptionTSLength
	binary.BigEndian.PutUint32(b[2:], tsVal)
	binary.BigEndian.PutUint32(b[6:], tsEcr)
	return int(b[1])
}

// EncodeSACKBlocks encodes the provided SACK blocks as a TCP SACK option block
// in the provided slice. It tries to fit in as many blocks as possible based on
// number of bytes available in the provided buffer. It returns the number of
// bytes written to the provided buffer.
func EncodeSACKBlocks(sackBlocks []SACKBlock, b []byte) int {
	if len(sackBlocks) == 0 {
		return 0
	}
	l := len(sackBlocks)
	if l > TCPMaxSACKBlocks {
		l = TCPMaxSACKBlocks
	}
	if ll := (len(b) - 2) / tcpSACKBlockSize; ll < l {
		l = ll
	}
	if l == 0 {
		// There is not enough space in the provided buffer to add
		// any SACK blocks.
		return 0
	}
	b[0] = TCPOptionSACK
	b[1] = byte(l*tcpSACKBlockSize + 2)
	for i := 0; i < l; i++ {
		binary.BigEndian.PutUint32(b[i*tcpSACKBlockSize+2:], sackBlocks[i].Start)
		binary.BigEndian.PutUint32(b[i*tcpSACKBlockSize+6:], sackBlocks[i].End)
	}
	return int(b[1])
}

// TCPOptionsLength returns the number of bytes opts take up in a TCP header,
// padded to a multiple of 4. It panics if they do not fit.
func TCPOptionsLength(opts []TCPOption) int {
	var l int
	for _, opt := range opts {
		l += opt.encodedLength()
	}
	l = (l + 3) &^ 3
	if l > TCPOptionsMaximumSize {
		panic(fmt.Sprintf("TCP options of %d bytes exceed the maximum of %d", l, TCPOptionsMaximumSize))
	}
	return l
}

// EncodeTCPOptions writes opts into b, which must be TCPOptionsLength(opts)
// bytes, padding with End of Option List bytes.
func EncodeTCPOptions(opts []TCPOption, b []byte) {
	off := 0
	for _, opt := range opts {
		l := opt.encodedLength()
		opt.encode(b[off:][:l])
		off += l
	}
	clear(b[off:])
}

// TCPOptionImpl implements options.OptionImpl for TCP options (RFC 9293,
// RFC 2018, RFC 7323). Unknown kinds are skipped.
type TCPOptionImpl struct{}

// Parse implements options.OptionImpl.Parse.
func (TCPOptionImpl) Parse(kind uint8, data []byte) (TCPOption, bool, error) {
	switch kind {
	case TCPOptionMSS:
		if len(data) != TCPOptionMSSLength-2 {
			return nil, false, fmt.Errorf("MSS with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		return TCPMSSOption(binary.BigEndian.Uint16(data)), true, nil
	case TCPOptionWS:
		if len(data) != TCPOptionWSLength-2 {
			return nil, false, fmt.Errorf("window scale with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		// RFC 7323 section 2.3 says a shift above 14 is used as 14, so it
		// is not an error.
		return TCPWindowScaleOption(min(data[0], TCPMaxWindowScale)), true, nil
	case TCPOptionSACKPermitted:
		if len(data) != TCPOptionSackPermittedLength-2 {
			return nil, false, fmt.Errorf("SACK permitted with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		return TCPSACKPermittedOption{}, true, nil
	case TCPOptionSACK:
		if len(data) == 0 || len(data)%tcpSACKBlockSize != 0 || len(data)/tcpSACKBlockSize > TCPMaxSACKBlocks {
			return nil, false, fmt.Errorf("SACK with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		return TCPSACKBlocksView(data), true, nil
	case TCPOptionTS:
		if len(data) != TCPOptionTSLength-2 {
			return nil, false, fmt.Errorf("timestamp with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		return TCPTimestampOption{
			TSVal: binary.BigEndian.Uint32(data),
			TSEcr: binary.BigEndian.Uint32(data[4:]),
		}, true, nil
	default:
		return nil, false, nil
	}
}
