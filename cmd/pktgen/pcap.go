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

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapSnaplen is the snapshot length written to pcap file headers.
const pcapSnaplen = 65536

// linkType returns the pcap link type of packets built from c.
func linkType(c *config) layers.LinkType {
	if c.Ethernet != nil {
		return layers.LinkTypeEthernet
	}
	return layers.LinkTypeRaw
}

// writePCAP writes pkts to w as a pcap file. All packets are stamped with
// now, and must share a link type since a pcap file has only one.
func writePCAP(w io.Writer, now time.Time, pkts []builtPacket) error {
	if len(pkts) == 0 {
		return fmt.Errorf("no packets to write")
	}
	lt := pkts[0].linkType
	for i, pkt := range pkts[1:] {
		if pkt.linkType != lt {
			return fmt.Errorf("packet %d has link type %s, packet 0 has %s", i+1, pkt.linkType, lt)
		}
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(pcapSnaplen, lt); err != nil {
		return err
	}
	for _, pkt := range pkts {
		ci := gopacket.CaptureInfo{
			Timestamp:     now,
			CaptureLength: len(pkt.data),
			Length:        len(pkt.data),
		}
		if err := pw.WritePacket(ci, pkt.data); err != nil {
			return err
		}
	}
	return nil
}

// writePCAPFile writes pkts to f and closes it, reporting an error from
// Close as well.
func writePCAPFile(f io.WriteCloser, now time.Time, pkts []builtPacket) error {
	if err := writePCAP(f, now, pkts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
