// Copyright 2019 The gVisor Authors.
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

	"github.com/google/go-cmp/cmp"
	"github.com/netpkt/netpkt/pkg/tcpip"
	"github.com/netpkt/netpkt/pkg/tcpip/buffer"
	"github.com/netpkt/netpkt/pkg/tcpip/header"
	"github.com/netpkt/netpkt/pkg/tcpip/serialize"
)

const (
	testSrcMAC = tcpip.LinkAddress("\x02\x00\x00\x00\x00\x01")
	testDstMAC = tcpip.LinkAddress("\x02\x00\x00\x00\x00\x02")

	testSrcAddr = tcpip.Address("\x0a\x00\x00\x01")
	testDstAddr = tcpip.Address("\x0a\x00\x00\x02")
)

func TestEthernetEncode(t *testing.T) {
	b := header.Ethernet(make([]byte, header.EthernetMinimumSize))
	b.Encode(&header.EthernetFields{
		SrcAddr: testSrcMAC,
		DstAddr: testDstMAC,
		Type:    header.IPv4ProtocolNumber,
	})
	want := []byte{
		0x02, 0x00, 0x00, 0x00, 0x00, 0x02,
		0x02, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x00,
	}
	if diff := cmp.Diff(want, []byte(b)); diff != "" {
		t.Errorf("encoded header mismatch (-want +got):\n%s", diff)
	}
	if got := b.SourceAddress(); got != testSrcMAC {
		t.Errorf("b.SourceAddress() = %s, want %s", got, testSrcMAC)
	}
	if got := b.DestinationAddress(); got != testDstMAC {
		t.Errorf("b.DestinationAddress() = %s, want %s", got, testDstMAC)
	}
	if got := b.Type(); got != header.IPv4ProtocolNumber {
		t.Errorf("b.Type() = %#x, want %#x", got, header.IPv4ProtocolNumber)
	}
}

func TestEthernetSerializerPadsToMinimumFrame(t *testing.T) {
	for _, tc := range []struct {
		name    string
		body    int
		wantLen int
	}{
		{"empty", 0, 60},
		{"short", 10, 60},
		{"exact", header.EthernetMinimumBodySize, 60},
		{"long", 100, 114},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body := make([]byte, tc.body)
			for i := range body {
				body[i] = 0xaa
			}
			eth := &header.EthernetSerializer{Fields: header.EthernetFields{
				SrcAddr: testSrcMAC,
				DstAddr: testDstMAC,
				Type:    header.IPv4ProtocolNumber,
			}}
			r := serialize.SerializeOuter(serialize.Bytes(body).Encapsulate(eth))
			frame := r.Bytes()
			if got := len(frame); got != tc.wantLen {
				t.Fatalf("len(frame) = %d, want %d", got, tc.wantLen)
			}
			if diff := cmp.Diff(body, frame[header.EthernetMinimumSize:][:tc.body]); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			for i, v := range frame[header.EthernetMinimumSize+tc.body:] {
				if v != 0 {
					t.Fatalf("padding byte %d = %#x, want 0", i, v)
				}
			}
		})
	}
}

func TestParseEthernet(t *testing.T) {
	frame := make([]byte, 20)
	header.Ethernet(frame).Encode(&header.EthernetFields{SrcAddr: testSrcMAC, DstAddr: testDstMAC, Type: 0x86dd})
	copy(frame[header.EthernetMinimumSize:], "body!!")

	r := buffer.FromBytes(frame)
	eth, err := header.ParseEthernet(r)
	if err != nil {
		t.Fatalf("header.ParseEthernet(_) = _, %s", err)
	}
	if got := eth.Type(); got != 0x86dd {
		t.Errorf("eth.Type() = %#x, want 0x86dd", got)
	}
	if got, want := string(r.Bytes()), "body!!"; got != want {
		t.Errorf("payload = %q, want %q", got, want)
	}

	if _, err := header.ParseEthernet(buffer.FromBytes(frame[:13])); !errors.Is(err, header.ErrTruncated) {
		t.Errorf("header.ParseEthernet(13 bytes) = _, %v, want %v", err, header.ErrTruncated)
	}
}
