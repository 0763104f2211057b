// Copyright 2020 The gVisor Authors.
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

// IPv4OptionType represents the type of an IPv4 option.
type IPv4OptionType = uint8

// The IPv4 option kinds recognized by IPv4OptionImpl, plus the two
// single-byte options.
const (
	IPv4OptionListEndType     IPv4OptionType = options.EndOfOptions
	IPv4OptionNOPType         IPv4OptionType = options.NoOperation
	IPv4OptionRecordRouteType IPv4OptionType = 7
	IPv4OptionTimestampType   IPv4OptionType = 68
	IPv4OptionRouterAlertType IPv4OptionType = 148
)

const (
	// IPv4OptionRouterAlertLength is the length of a Router Alert option,
	// including the kind and length bytes.
	IPv4OptionRouterAlertLength = 4

	// ipv4OptionRoutePointerMin is the smallest valid pointer in a Record
	// Route option; it is relative to the start of the option.
	ipv4OptionRoutePointerMin = 4

	// ipv4OptionTimestampPointerMin is the smallest valid pointer in a
	// Timestamp option.
	ipv4OptionTimestampPointerMin = 5
)

// IPv4Option is an IPv4 option recognized by IPv4OptionImpl.
type IPv4Option struct {
	// Kind is the option kind.
	Kind IPv4OptionType

	// Data is the option data, excluding the kind and length bytes. It
	// aliases the packet.
	Data []byte
}

// RouterAlertValue returns the value of a Router Alert option.
func (o IPv4Option) RouterAlertValue() uint16 {
	return binary.BigEndian.Uint16(o.Data)
}

// IPv4OptionImpl implements options.OptionImpl for IPv4 options.
//
// Record Route, Timestamp and Router Alert options are recognized and their
// framing validated (RFC 791 section 3.1, RFC 2113). Other kinds are skipped.
type IPv4OptionImpl struct{}

// Parse implements options.OptionImpl.Parse.
func (IPv4OptionImpl) Parse(kind uint8, data []byte) (IPv4Option, bool, error) {
	opt := IPv4Option{Kind: kind, Data: data}
	switch kind {
	case IPv4OptionRouterAlertType:
		if len(data) != IPv4OptionRouterAlertLength-2 {
			return IPv4Option{}, false, fmt.Errorf("router alert with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		return opt, true, nil
	case IPv4OptionRecordRouteType:
		if len(data) < 1 || (len(data)-1)%IPv4AddressSize != 0 {
			return IPv4Option{}, false, fmt.Errorf("record route with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		if data[0] < ipv4OptionRoutePointerMin {
			return IPv4Option{}, false, fmt.Errorf("record route pointer %d: %w", data[0], ErrInvalidOption)
		}
		return opt, true, nil
	case IPv4OptionTimestampType:
		if len(data) < 2 {
			return IPv4Option{}, false, fmt.Errorf("timestamp with %d data bytes: %w", len(data), ErrInvalidOption)
		}
		if data[0] < ipv4OptionTimestampPointerMin {
			return IPv4Option{}, false, fmt.Errorf("timestamp pointer %d: %w", data[0], ErrInvalidOption)
		}
		return opt, true, nil
	default:
		return IPv4Option{}, false, nil
	}
}

// IPv4SerializableOption is an IPv4 option that can be encoded into an IPv4
// header.
type IPv4SerializableOption interface {
	// optionKind returns the option kind.
	optionKind() IPv4OptionType

	// length returns the encoded length of the option, including the kind
	// and length bytes if the option has them.
	length() uint8

	// serializeInto writes the option into b, which is length() bytes.
	serializeInto(b []byte)
}

// IPv4SerializableNOPOption is the No Operation option.
type IPv4SerializableNOPOption struct{}

func (*IPv4SerializableNOPOption) optionKind() IPv4OptionType { return IPv4OptionNOPType }
func (*IPv4SerializableNOPOption) length() uint8              { return 1 }
func (*IPv4SerializableNOPOption) serializeInto(b []byte)     { b[0] = IPv4OptionNOPType }

// IPv4SerializableListEndOption is the End of Options List option.
type IPv4SerializableListEndOption struct{}

func (*IPv4SerializableListEndOption) optionKind() IPv4OptionType { return IPv4OptionListEndType }
func (*IPv4SerializableListEndOption) length() uint8              { return 1 }
func (*IPv4SerializableListEndOption) serializeInto(b []byte)     { b[0] = IPv4OptionListEndType }

// IPv4SerializableRouterAlertOption is the Router Alert option (RFC 2113).
// A zero Value means every router examines the packet.
type IPv4SerializableRouterAlertOption struct {
	Value uint16
}

func (*IPv4SerializableRouterAlertOption) optionKind() IPv4OptionType {
	return IPv4OptionRouterAlertType
}

func (*IPv4SerializableRouterAlertOption) length() uint8 { return IPv4OptionRouterAlertLength }

func (o *IPv4SerializableRouterAlertOption) serializeInto(b []byte) {
	b[0] = IPv4OptionRouterAlertType
	b[1] = IPv4OptionRouterAlertLength
	binary.BigEndian.PutUint16(b[2:], o.Value)
}

// IPv4SerializableRawOption is an option of any kind with caller supplied
// data.
type IPv4SerializableRawOption struct {
	Kind IPv4OptionType
	Data []byte
}

func (o *IPv4SerializableRawOption) optionKind() IPv4OptionType { return o.Kind }

func (o *IPv4SerializableRawOption) length() uint8 {
	if len(o.Data) > IPv4MaximumOptionsSize-2 {
		panic(fmt.Sprintf("IPv4 option of kind %d has %d data bytes, at most %d fit", o.Kind, len(o.Data), IPv4MaximumOptionsSize-2))
	}
	return uint8(2 + len(o.Data))
}

func (o *IPv4SerializableRawOption) serializeInto(b []byte) {
	b[0] = o.Kind
	b[1] = o.length()
	copy(b[2:], o.Data)
}

// IPv4OptionsSerializer is a serializer for IPv4 options.
type IPv4OptionsSerializer []IPv4SerializableOption

// Length returns the total number of bytes required to serialize the options,
// padded to a multiple of 4.
func (s IPv4OptionsSerializer) Length() uint8 {
	var total int
	for _, opt := range s {
		total += int(opt.length())
	}
	total = (total + 3) &^ 3
	if total > IPv4MaximumOptionsSize {
		panic(fmt.Sprintf("IPv4 options of %d bytes exceed the maximum of %d", total, IPv4MaximumOptionsSize))
	}
	return uint8(total)
}

// Serialize serializes the provided list of IPV4 options into b, padding the
// result with End of Options List bytes to a multiple of 4.
//
// Returns the number of bytes written, which is s.Length().
func (s IPv4OptionsSerializer) Serialize(b []byte) uint8 {
	var total uint8
	for _, opt := range s {
		l := opt.length()
		opt.serializeInto(b[total:][:l])
		total += l
	}
	// According to RFC 791:
	//
	//  The internet header padding is used to ensure that the internet
	//  header ends on a 32 bit boundary. The padding is zero.
	padded := s.Length()
	clear(b[total:padded])
	return padded
}
