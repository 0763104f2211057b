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

package header_test

import (
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
	"github.com/netpkt/netpkt/pkg/tcpip/header"
	"github.com/netpkt/netpkt/pkg/tcpip/options"
	"github.com/netpkt/netpkt/pkg/tcpip/serialize"
	"golang.org/x/net/ipv4"
)

func TestIPv4OptionsSerializer(t *testing.T) {
	optCases := []struct {
		name   string
		option []header.IPv4SerializableOption
		expect []byte
	}{
		{
			name: "NOP",
			option: []header.IPv4SerializableOption{
				&header.IPv4SerializableNOPOption{},
			},
			expect: []byte{1, 0, 0, 0},
		},
		{
			name: "ListEnd",
			option: []header.IPv4SerializableOption{
				&header.IPv4SerializableListEndOption{},
			},
			expect: []byte{0, 0, 0, 0},
		},
		{
			name: "RouterAlert",
			option: []header.IPv4SerializableOption{
				&header.IPv4SerializableRouterAlertOption{},
			},
			expect: []byte{148, 4, 0, 0},
		}, {
			name: "NOP and RouterAlert",
			option: []header.IPv4SerializableOption{
				&header.IPv4SerializableNOPOption{},
				&header.IPv4SerializableRouterAlertOption{},
			},
			expect: []byte{1, 148, 4, 0, 0, 0, 0, 0},
		}, {
			name: "Raw",
			option: []header.IPv4SerializableOption{
				&header.IPv4SerializableRawOption{Kind: 130, Data: []byte{1, 2, 3}},
			},
			expect: []byte{130, 5, 1, 2, 3, 0, 0, 0},
		},
	}

	for _, opt := range optCases {
		t.Run(opt.name, func(t *testing.T) {
			s := header.IPv4OptionsSerializer(opt.option)
			l := s.Length()
			if got := len(opt.expect); got != int(l) {
				t.Fatalf("s.Length() = %d, want = %d", got, l)
			}
			b := make([]byte, l)
			for i := range b {
				// Fill the buffer with full bytes to ensure padding is being set
				// correctly.
				b[i] = 0xFF
			}
			if serializedLength := s.Serialize(b); serializedLength != l {
				t.Fatalf("s.Serialize(_) = %d, want %d", serializedLength, l)
			}
			if diff := cmp.Diff(opt.expect, b); diff != "" {
				t.Errorf("mismatched serialized option (-want +got):\n%s", diff)
			}
		})
	}
}

// TestIPv4EncodeOptions checks that ipv4.Encode correctly fills out the
// requested fields when options are supplied.
func TestIPv4EncodeOptions(t *testing.T) {
	tests := []struct {
		name           string
		numberOfNops   int
		encodedOptions []byte // reply should look like this
		wantIHL        int
	}{
		{
			name:    "valid no options",
			wantIHL: header.IPv4MinimumSize,
		},
		{
			name:           "one byte options",
			numberOfNops:   1,
			encodedOptions: []byte{1, 0, 0, 0},
			wantIHL:        header.IPv4MinimumSize + 4,
		},
		{
			name:           "three byte options",
			numberOfNops:   3,
			encodedOptions: []byte{1, 1, 1, 0},
			wantIHL:        header.IPv4MinimumSize + 4,
		},
		{
			name:           "four byte options",
			numberOfNops:   4,
			encodedOptions: []byte{1, 1, 1, 1},
			wantIHL:        header.IPv4MinimumSize + 4,
		},
		{
			name:           "five byte options",
			numberOfNops:   5,
			encodedOptions: []byte{1, 1, 1, 1, 1, 0, 0, 0},
			wantIHL:        header.IPv4MinimumSize + 8,
		},
		{
			name:         "thirty nine byte options",
			numberOfNops: 39,
			encodedOptions: []byte{
				1, 1, 1, 1, 1, 1, 1, 1,
				1, 1, 1, 1, 1, 1, 1, 1,
				1, 1, 1, 1, 1, 1, 1, 1,
				1, 1, 1, 1, 1, 1, 1, 1,
				1, 1, 1, 1, 1, 1, 1, 0,
			},
			wantIHL: header.IPv4MinimumSize + 40,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			serializeOpts := header.IPv4OptionsSerializer(make([]header.IPv4SerializableOption, test.numberOfNops))
			for i := range serializeOpts {
				serializeOpts[i] = &header.IPv4SerializableNOPOption{}
			}
			ipHeaderLength := header.IPv4MinimumSize + int(serializeOpts.Length())
			if ipHeaderLength > header.IPv4MaximumHeaderSize {
				t.Fatalf("IP header length too large: got = %d, want <= %d ", ipHeaderLength, header.IPv4MaximumHeaderSize)
			}
			ip := header.IPv4(make([]byte, ipHeaderLength))
			// To check the padding works, poison the options space.
			for i := header.IPv4MinimumSize; i < len(ip); i++ {
				ip[i] = 0xff
			}
			ip.Encode(&header.IPv4Fields{
				Options: serializeOpts,
			})
			if got, want := int(ip.HeaderLength()), test.wantIHL; got != want {
				t.Errorf("got IHL of %d, want %d", got, want)
			}
			opts := ip.Options()
			// cmp.Diff does not consider nil slices equal to empty slices, but we do.
			if len(test.encodedOptions) == 0 && len(opts) == 0 {
				return
			}
			if diff := cmp.Diff(test.encodedOptions, opts); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIPv4OptionsTooLongPanics(t *testing.T) {
	s := make(header.IPv4OptionsSerializer, 41)
	for i := range s {
		s[i] = &header.IPv4SerializableNOPOption{}
	}
	defer func() {
		if recover() == nil {
			t.Errorf("s.Length() did not panic for 41 bytes of options")
		}
	}()
	s.Length()
}

func TestIPv4RawOptionTooLongPanics(t *testing.T) {
	for _, n := range []int{header.IPv4MaximumOptionsSize - 1, 254, 300} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			s := header.IPv4OptionsSerializer{&header.IPv4SerializableRawOption{Kind: 30, Data: make([]byte, n)}}
			defer func() {
				if recover() == nil {
					t.Errorf("s.Length() did not panic for a raw option with %d data bytes", n)
				}
			}()
			s.Length()
		})
	}

	// The largest raw option fills the options area exactly.
	s := header.IPv4OptionsSerializer{&header.IPv4SerializableRawOption{Kind: 30, Data: make([]byte, header.IPv4MaximumOptionsSize-2)}}
	if got := s.Length(); got != header.IPv4MaximumOptionsSize {
		t.Errorf("s.Length() = %d, want %d", got, header.IPv4MaximumOptionsSize)
	}
}

// testIPv4Packet returns an IPv4 packet with a Router Alert option carrying
// the given payload.
func testIPv4Packet(t *testing.T, payload string) []byte {
	t.Helper()
	ip := &header.IPv4Serializer{Fields: header.IPv4Fields{
		TOS:      0x10,
		ID:       0x1234,
		Flags:    header.IPv4FlagDontFragment,
		TTL:      64,
		Protocol: uint8(header.UDPProtocolNumber),
		SrcAddr:  testSrcAddr,
		DstAddr:  testDstAddr,
		Options: header.IPv4OptionsSerializer{
			&header.IPv4SerializableRouterAlertOption{},
		},
	}}
	return serialize.SerializeOuter(serialize.Bytes(payload).Encapsulate(ip)).Bytes()
}

func TestIPv4SerializerMatchesXNet(t *testing.T) {
	pkt := testIPv4Packet(t, "payload")

	h, err := ipv4.ParseHeader(pkt)
	if err != nil {
		t.Fatalf("ipv4.ParseHeader(_) = _, %s", err)
	}
	if h.Version != 4 || h.Len != 24 || h.TOS != 0x10 || h.TotalLen != 31 || h.ID != 0x1234 || h.TTL != 64 || h.Protocol != 17 {
		t.Errorf("ipv4.ParseHeader(_) = %+v", h)
	}
	if h.Flags != ipv4.DontFragment || h.FragOff != 0 {
		t.Errorf("got flags %#x and fragment offset %d, want DF and 0", h.Flags, h.FragOff)
	}
	if !h.Src.Equal(net.IP(testSrcAddr)) || !h.Dst.Equal(net.IP(testDstAddr)) {
		t.Errorf("got addresses %s -> %s, want %s -> %s", h.Src, h.Dst, testSrcAddr, testDstAddr)
	}
	if diff := cmp.Diff([]byte{148, 4, 0, 0}, h.Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if got, want := h.Checksum, int(header.IPv4(pkt).CalculateChecksum()); got != want {
		t.Errorf("h.Checksum = %#x, want %#x", got, want)
	}
	if !header.IPv4(pkt).IsChecksumValid() {
		t.Errorf("serialized header checksum is not valid")
	}
}

func TestParseIPv4(t *testing.T) {
	// Trailing link layer padding is dropped.
	frame := append(testIPv4Packet(t, "payload"), 0, 0, 0)
	r := buffer.FromBytes(frame)
	ip, opts, err := header.ParseIPv4(r)
	if err != nil {
		t.Fatalf("header.ParseIPv4(_) = _, _, %s", err)
	}
	if got, want := string(r.Bytes()), "payload"; got != want {
		t.Errorf("payload = %q, want %q", got, want)
	}
	if got, want := string(ip.Payload()), "payload"; got != want {
		t.Errorf("ip.Payload() = %q, want %q", got, want)
	}
	if got := ip.SourceAddress(); got != testSrcAddr {
		t.Errorf("ip.SourceAddress() = %s, want %s", got, testSrcAddr)
	}
	if got := ip.DestinationAddress(); got != testDstAddr {
		t.Errorf("ip.DestinationAddress() = %s, want %s", got, testDstAddr)
	}
	if got := ip.Flags(); got != header.IPv4FlagDontFragment {
		t.Errorf("ip.Flags() = %d, want %d", got, header.IPv4FlagDontFragment)
	}

	var got []header.IPv4Option
	for opt := range opts.All() {
		got = append(got, opt)
	}
	want := []header.IPv4Option{{Kind: header.IPv4OptionRouterAlertType, Data: []byte{0, 0}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if v := got[0].RouterAlertValue(); v != 0 {
		t.Errorf("RouterAlertValue() = %d, want 0", v)
	}
}

func TestParseIPv4Errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		// mutate changes the packet. The header checksum is recomputed
		// afterwards if fix is set.
		mutate  func(b []byte) []byte
		fix     bool
		wantErr error
	}{
		{
			name:    "truncated",
			mutate:  func(b []byte) []byte { return b[:header.IPv4MinimumSize-1] },
			wantErr: header.ErrTruncated,
		},
		{
			name:    "version",
			mutate:  func(b []byte) []byte { b[0] = 0x66; return b },
			wantErr: header.ErrInvalidVersion,
		},
		{
			name:    "header length too small",
			mutate:  func(b []byte) []byte { b[0] = 0x44; return b },
			wantErr: header.ErrInvalidHeaderLength,
		},
		{
			name:    "header length past end",
			mutate:  func(b []byte) []byte { b[0] = 0x4f; return b },
			wantErr: header.ErrTruncated,
		},
		{
			name:    "total length past end",
			mutate:  func(b []byte) []byte { header.IPv4(b).SetTotalLength(100); return b },
			fix:     true,
			wantErr: header.ErrInvalidLength,
		},
		{
			name:    "total length inside header",
			mutate:  func(b []byte) []byte { header.IPv4(b).SetTotalLength(20); return b },
			fix:     true,
			wantErr: header.ErrInvalidLength,
		},
		{
			name:    "checksum",
			mutate:  func(b []byte) []byte { b[8]++; return b },
			wantErr: header.ErrBadChecksum,
		},
		{
			name:    "malformed options",
			mutate:  func(b []byte) []byte { b[21] = 9; return b },
			fix:     true,
			wantErr: options.ErrMalformed,
		},
		{
			name:    "invalid router alert",
			mutate:  func(b []byte) []byte { b[21] = 3; return b },
			fix:     true,
			wantErr: header.ErrInvalidOption,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.mutate(testIPv4Packet(t, "payload"))
			if tc.fix {
				ip := header.IPv4(b)
				ip.SetChecksum(ip.CalculateChecksum())
			}
			r := buffer.FromBytes(b)
			if _, _, err := header.ParseIPv4(r); !errors.Is(err, tc.wantErr) {
				t.Fatalf("header.ParseIPv4(_) = _, _, %v, want %v", err, tc.wantErr)
			}
			if got, want := r.Len(), len(b); got != want {
				t.Errorf("r.Len() = %d after failed parse, want %d", got, want)
			}
		})
	}
}

func TestIPv4OptionImpl(t *testing.T) {
	for _, tc := range []struct {
		name    string
		kind    uint8
		data    []byte
		wantOK  bool
		wantErr bool
	}{
		{"router alert", header.IPv4OptionRouterAlertType, []byte{0, 0}, true, false},
		{"router alert short", header.IPv4OptionRouterAlertType, []byte{0}, false, true},
		{"record route", header.IPv4OptionRecordRouteType, []byte{4, 0, 0, 0, 0}, true, false},
		{"record route empty", header.IPv4OptionRecordRouteType, []byte{4}, true, false},
		{"record route pointer", header.IPv4OptionRecordRouteType, []byte{3, 0, 0, 0, 0}, false, true},
		{"record route ragged", header.IPv4OptionRecordRouteType, []byte{4, 1, 2}, false, true},
		{"timestamp", header.IPv4OptionTimestampType, []byte{5, 0}, true, false},
		{"timestamp pointer", header.IPv4OptionTimestampType, []byte{4, 0}, false, true},
		{"timestamp short", header.IPv4OptionTimestampType, []byte{5}, false, true},
		{"unknown", 130, []byte{1, 2, 3}, false, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, ok, err := header.IPv4OptionImpl{}.Parse(tc.kind, tc.data)
			if ok != tc.wantOK {
				t.Errorf("Parse(%d, %v) ok = %t, want %t", tc.kind, tc.data, ok, tc.wantOK)
			}
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Errorf("Parse(%d, %v) err = %v, want error: %t", tc.kind, tc.data, err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, header.ErrInvalidOption) {
				t.Errorf("Parse(%d, %v) err = %v, want %v", tc.kind, tc.data, err, header.ErrInvalidOption)
			}
		})
	}
}

func TestSetTTLWithChecksumUpdate(t *testing.T) {
	for _, newTTL := range []uint8{0, 1, 63, 255} {
		ip := header.IPv4(testIPv4Packet(t, "payload"))
		ip.SetTTLWithChecksumUpdate(newTTL)
		if got := ip.TTL(); got != newTTL {
			t.Errorf("ip.TTL() = %d, want %d", got, newTTL)
		}
		if !ip.IsChecksumValid() {
			t.Errorf("checksum %#04x invalid after SetTTLWithChecksumUpdate(%d)", ip.Checksum(), newTTL)
		}
	}
}
