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

package header_test

import (
	"errors"
	"testing"

	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
	"github.com/netpkt/netpkt/pkg/tcpip/header"
	"github.com/netpkt/netpkt/pkg/tcpip/serialize"
)

func testUDPDatagram(payload string, noChecksum bool) []byte {
	udp := &header.UDPSerializer{
		SrcAddr:    testSrcAddr,
		DstAddr:    testDstAddr,
		SrcPort:    1234,
		DstPort:    53,
		NoChecksum: noChecksum,
	}
	return serialize.SerializeOuter(serialize.Bytes(payload).Encapsulate(udp)).Bytes()
}

func TestUDPSerializeParse(t *testing.T) {
	for _, payload := range []string{"", "a", "hello", "an odd length payload"} {
		d := testUDPDatagram(payload, false)
		u := header.UDP(d)
		if got, want := int(u.Length()), header.UDPMinimumSize+len(payload); got != want {
			t.Errorf("%q: u.Length() = %d, want %d", payload, got, want)
		}
		if u.Checksum() == 0 {
			t.Errorf("%q: checksum not computed", payload)
		}
		if got, want := u.Checksum(), u.CalculateChecksum(testSrcAddr, testDstAddr); got != want {
			t.Errorf("%q: u.Checksum() = %#04x, want %#04x", payload, got, want)
		}

		// Bytes after the datagram are dropped.
		r := buffer.FromBytes(append(d, 0xde, 0xad))
		parsed, err := header.ParseUDP(r, testSrcAddr, testDstAddr)
		if err != nil {
			t.Fatalf("%q: header.ParseUDP(_) = _, %s", payload, err)
		}
		if got := string(r.Bytes()); got != payload {
			t.Errorf("%q: payload = %q", payload, got)
		}
		if got, want := parsed.SourcePort(), uint16(1234); got != want {
			t.Errorf("%q: SourcePort() = %d, want %d", payload, got, want)
		}
		if got, want := parsed.DestinationPort(), uint16(53); got != want {
			t.Errorf("%q: DestinationPort() = %d, want %d", payload, got, want)
		}
		if got := string(parsed.Payload()); got != payload {
			t.Errorf("%q: parsed.Payload() = %q", payload, got)
		}
	}
}

func TestUDPNoChecksum(t *testing.T) {
	d := testUDPDatagram("hello", true)
	if got := header.UDP(d).Checksum(); got != 0 {
		t.Fatalf("checksum = %#04x, want 0", got)
	}
	// A zero checksum is accepted whatever the addresses.
	if _, err := header.ParseUDP(buffer.FromBytes(d), testDstAddr, testDstAddr); err != nil {
		t.Errorf("header.ParseUDP(_) = _, %s", err)
	}
}

func TestParseUDPErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(b []byte) []byte
		src     bool
		wantErr error
	}{
		{
			name:    "truncated",
			mutate:  func(b []byte) []byte { return b[:header.UDPMinimumSize-1] },
			wantErr: header.ErrTruncated,
		},
		{
			name:    "length too small",
			mutate:  func(b []byte) []byte { header.UDP(b).SetLength(7); return b },
			wantErr: header.ErrInvalidLength,
		},
		{
			name:    "length past end",
			mutate:  func(b []byte) []byte { header.UDP(b).SetLength(uint16(len(b) + 1)); return b },
			wantErr: header.ErrInvalidLength,
		},
		{
			name:    "corrupt payload",
			mutate:  func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b },
			wantErr: header.ErrBadChecksum,
		},
		{
			name:    "wrong addresses",
			mutate:  func(b []byte) []byte { return b },
			src:     true,
			wantErr: header.ErrBadChecksum,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.mutate(testUDPDatagram("hello", false))
			dst := testDstAddr
			if tc.src {
				dst = testSrcAddr
			}
			if _, err := header.ParseUDP(buffer.FromBytes(b), testSrcAddr, dst); !errors.Is(err, tc.wantErr) {
				t.Fatalf("header.ParseUDP(_) = _, %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestUDPPortChecksumUpdate(t *testing.T) {
	for _, port := range []uint16{0, 1, 4321, 0xffff} {
		u := header.UDP(testUDPDatagram("hello", false))
		u.SetSourcePortWithChecksumUpdate(port)
		u.SetDestinationPortWithChecksumUpdate(port ^ 0x5555)
		if got := u.SourcePort(); got != port {
			t.Errorf("SourcePort() = %d, want %d", got, port)
		}
		if !u.IsChecksumValid(testSrcAddr, testDstAddr) {
			t.Errorf("checksum %#04x invalid after updating ports to %d", u.Checksum(), port)
		}
	}
}
