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
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/subcommands"
	"github.com/netpkt/netpkt/pkg/tcpip"
	"github.com/netpkt/netpkt/pkg/tcpip/header"
	"github.com/netpkt/netpkt/pkg/tcpip/serialize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Build implements subcommands.Command for the "build" command.
type Build struct {
	configPaths string
	pcapPath    string
}

// Name implements subcommands.Command.Name.
func (*Build) Name() string {
	return "build"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Build) Synopsis() string {
	return "build packets from TOML or YAML descriptions"
}

// Usage implements subcommands.Command.Usage.
func (*Build) Usage() string {
	return `build -config <file>[,<file>...] [-pcap <file>] - build packets and print them in hex, one per line.

The format of each description is picked from the file extension (.toml,
.yaml or .yml). Each layer has its own section:

    payload = "hello"

    [ethernet]
    src = "02:00:00:00:00:01"
    dst = "02:00:00:00:00:02"

    [ipv4]
    src = "10.0.0.1"
    dst = "10.0.0.2"
    ttl = 64

    [udp]
    src_port = 1234
    dst_port = 53

`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Build) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.configPaths, "config", "", "comma-separated paths to packet descriptions")
	f.StringVar(&b.pcapPath, "pcap", "", "also write the packets to this pcap file")
}

// Execute implements subcommands.Command.Execute.
func (b *Build) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if b.configPaths == "" || f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	pkts, err := buildFiles(ctx, strings.Split(b.configPaths, ","))
	if err != nil {
		logrus.WithError(err).Error("building packets")
		return subcommands.ExitFailure
	}
	for _, pkt := range pkts {
		fmt.Println(hex.EncodeToString(pkt.data))
	}

	if b.pcapPath != "" {
		f, err := os.Create(b.pcapPath)
		if err != nil {
			logrus.WithError(err).Error("creating pcap file")
			return subcommands.ExitFailure
		}
		if err := writePCAPFile(f, time.Now(), pkts); err != nil {
			logrus.WithError(err).Errorf("writing %q", b.pcapPath)
			return subcommands.ExitFailure
		}
		logrus.WithFields(logrus.Fields{
			"path":    b.pcapPath,
			"packets": len(pkts),
		}).Debug("wrote pcap file")
	}
	return subcommands.ExitSuccess
}

// builtPacket is a serialized packet and the link type it starts with.
type builtPacket struct {
	data     []byte
	linkType layers.LinkType
}

// buildFiles loads and builds the packet descriptions in paths concurrently.
// The packets are returned in the order of paths.
func buildFiles(ctx context.Context, paths []string) ([]builtPacket, error) {
	pkts := make([]builtPacket, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := loadConfig(path)
			if err != nil {
				return err
			}
			data, err := buildPacket(c)
			if err != nil {
				return fmt.Errorf("building packet from %q: %w", path, err)
			}
			pkts[i] = builtPacket{data: data, linkType: linkType(c)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pkts, nil
}

var errLayers = errors.New("invalid layer combination")

// buildPacket serializes the packet described by c.
func buildPacket(c *config) ([]byte, error) {
	req, err := packetRequest(c)
	if err != nil {
		return nil, err
	}
	r := serialize.SerializeOuter(req)
	logrus.WithFields(logrus.Fields{
		"length": r.Len(),
		"owned":  r.Owned(),
	}).Debug("built packet")
	return r.Bytes(), nil
}

// packetRequest turns c into a serialization request, innermost layer first.
func packetRequest(c *config) (serialize.Request, error) {
	transports := 0
	for _, present := range []bool{c.UDP != nil, c.TCP != nil, c.ICMP != nil} {
		if present {
			transports++
		}
	}
	if transports > 1 {
		return nil, fmt.Errorf("more than one of udp, tcp and icmp: %w", errLayers)
	}
	if transports == 1 && c.IPv4 == nil {
		return nil, fmt.Errorf("transport section without ipv4: %w", errLayers)
	}
	if c.VLAN != nil && c.Ethernet == nil {
		return nil, fmt.Errorf("vlan section without ethernet: %w", errLayers)
	}

	payload := []byte(c.Payload)
	if c.PayloadHex != "" {
		if c.Payload != "" {
			return nil, errors.New("both payload and payload_hex are set")
		}
		var err error
		if payload, err = decodeHex(c.PayloadHex); err != nil {
			return nil, fmt.Errorf("payload_hex: %w", err)
		}
	}

	var stack []serialize.PacketSerializer
	var proto tcpip.TransportProtocolNumber
	var src, dst tcpip.Address

	if c.IPv4 != nil {
		var err error
		if src, err = tcpip.ParseAddress(c.IPv4.Src); err != nil {
			return nil, fmt.Errorf("ipv4 src: %w", err)
		}
		if dst, err = tcpip.ParseAddress(c.IPv4.Dst); err != nil {
			return nil, fmt.Errorf("ipv4 dst: %w", err)
		}
		if len(src) != header.IPv4AddressSize || len(dst) != header.IPv4AddressSize {
			return nil, fmt.Errorf("ipv4 addresses %s and %s are not both IPv4", src, dst)
		}
	}

	var inner serialize.Request = serialize.Bytes(payload)
	var transport serialize.PacketSerializer
	switch {
	case c.UDP != nil:
		proto = header.UDPProtocolNumber
		transport = &header.UDPSerializer{
			SrcAddr:    src,
			DstAddr:    dst,
			SrcPort:    c.UDP.SrcPort,
			DstPort:    c.UDP.DstPort,
			NoChecksum: c.UDP.NoChecksum,
		}
	case c.TCP != nil:
		proto = header.TCPProtocolNumber
		tcp, err := tcpSerializer(c.TCP, src, dst)
		if err != nil {
			return nil, err
		}
		transport = tcp
	case c.ICMP != nil:
		proto = header.ICMPv4ProtocolNumber
		inner = serialize.NewInner(&header.ICMPv4EchoMessage{
			Reply:    c.ICMP.Reply,
			Ident:    c.ICMP.Ident,
			Sequence: c.ICMP.Sequence,
			Data:     payload,
		}, nil)
	}

	if c.Ethernet != nil {
		eth, err := ethernetSerializer(c)
		if err != nil {
			return nil, err
		}
		stack = append(stack, eth)
	}
	if c.VLAN != nil {
		vlan, err := vlanSerializer(c)
		if err != nil {
			return nil, err
		}
		stack = append(stack, vlan)
	}
	if c.IPv4 != nil {
		fields := header.IPv4Fields{
			TOS:      c.IPv4.TOS,
			ID:       c.IPv4.ID,
			TTL:      c.IPv4.TTL,
			Protocol: uint8(proto),
			SrcAddr:  src,
			DstAddr:  dst,
		}
		if c.IPv4.Protocol != 0 {
			fields.Protocol = c.IPv4.Protocol
		}
		if c.IPv4.DontFragment {
			fields.Flags = header.IPv4FlagDontFragment
		}
		if c.IPv4.RouterAlert {
			fields.Options = header.IPv4OptionsSerializer{&header.IPv4SerializableRouterAlertOption{}}
		}
		stack = append(stack, &header.IPv4Serializer{Fields: fields})
	}
	if transport != nil {
		stack = append(stack, transport)
	}
	return serialize.Chain(inner, stack...), nil
}

func ethernetSerializer(c *config) (*header.EthernetSerializer, error) {
	src, err := tcpip.ParseMACAddress(c.Ethernet.Src)
	if err != nil {
		return nil, fmt.Errorf("ethernet src: %w", err)
	}
	dst, err := tcpip.ParseMACAddress(c.Ethernet.Dst)
	if err != nil {
		return nil, fmt.Errorf("ethernet dst: %w", err)
	}
	typ := tcpip.NetworkProtocolNumber(c.Ethernet.Type)
	if typ == 0 {
		switch {
		case c.VLAN != nil:
			typ = header.EthernetTypeVLAN
		case c.IPv4 != nil:
			typ = header.IPv4ProtocolNumber
		default:
			return nil, fmt.Errorf("ethernet type must be set when nothing follows it: %w", errLayers)
		}
	}
	return &header.EthernetSerializer{Fields: header.EthernetFields{
		SrcAddr: src,
		DstAddr: dst,
		Type:    typ,
	}}, nil
}

// vlanSerializer returns the 802.1Q tag layer.
func vlanSerializer(c *config) (*header.LayerSerializer, error) {
	typ := layers.EthernetType(c.VLAN.Type)
	if typ == 0 {
		if c.IPv4 == nil {
			return nil, fmt.Errorf("vlan type must be set when nothing follows it: %w", errLayers)
		}
		typ = layers.EthernetTypeIPv4
	}
	return &header.LayerSerializer{
		Layer: &layers.Dot1Q{
			Priority:       c.VLAN.Priority,
			VLANIdentifier: c.VLAN.ID,
			Type:           typ,
		},
		HeaderBytes: 4,
	}, nil
}

func tcpSerializer(c *tcpConfig, src, dst tcpip.Address) (*header.TCPSerializer, error) {
	flags, err := parseTCPFlags(c.Flags)
	if err != nil {
		return nil, err
	}
	var opts []header.TCPOption
	if c.MSS != 0 {
		opts = append(opts, header.TCPMSSOption(c.MSS))
	}
	if c.SACKPermitted {
		opts = append(opts, header.TCPSACKPermittedOption{})
	}
	if c.Timestamp != nil {
		opts = append(opts, header.TCPTimestampOption{TSVal: c.Timestamp.Val, TSEcr: c.Timestamp.Ecr})
	}
	if c.WindowScale != nil {
		opts = append(opts, header.TCPWindowScaleOption(*c.WindowScale))
	}
	if len(c.SACK) > 0 {
		if len(c.SACK) > header.TCPMaxSACKBlocks {
			return nil, fmt.Errorf("%d SACK blocks, at most %d fit", len(c.SACK), header.TCPMaxSACKBlocks)
		}
		blocks := make(header.TCPSACKOption, len(c.SACK))
		for i, b := range c.SACK {
			blocks[i] = header.SACKBlock{Start: b.Start, End: b.End}
		}
		opts = append(opts, blocks)
	}
	if n := tcpOptionsSize(opts); n > header.TCPOptionsMaximumSize {
		return nil, fmt.Errorf("%d bytes of TCP options, at most %d fit", n, header.TCPOptionsMaximumSize)
	}
	return &header.TCPSerializer{
		SrcAddr: src,
		DstAddr: dst,
		Fields: header.TCPFields{
			SrcPort:    c.SrcPort,
			DstPort:    c.DstPort,
			SeqNum:     c.Seq,
			AckNum:     c.Ack,
			Flags:      flags,
			WindowSize: c.Window,
		},
		Options: opts,
	}, nil
}

// tcpOptionsSize returns the unpadded size of opts without panicking when
// they do not fit.
func tcpOptionsSize(opts []header.TCPOption) int {
	n := 0
	for _, opt := range opts {
		switch o := opt.(type) {
		case header.TCPMSSOption:
			n += header.TCPOptionMSSLength
		case header.TCPWindowScaleOption:
			n += header.TCPOptionWSLength
		case header.TCPSACKPermittedOption:
			n += header.TCPOptionSackPermittedLength
		case header.TCPTimestampOption:
			n += header.TCPOptionTSLength
		case header.TCPSACKOption:
			if len(o) > 0 {
				n += 2 + 8*len(o)
			}
		}
	}
	return n
}

const tcpFlagLetters = "FSRPAU"

// parseTCPFlags parses flags written the way TCPFlags.String writes them.
// Spaces are ignored and letters may be lower case.
func parseTCPFlags(s string) (header.TCPFlags, error) {
	var flags header.TCPFlags
	for _, c := range strings.ToUpper(s) {
		if c == ' ' {
			continue
		}
		i := strings.IndexRune(tcpFlagLetters, c)
		if i < 0 {
			return 0, fmt.Errorf("unknown TCP flag %q in %q", c, s)
		}
		flags |= 1 << i
	}
	return flags, nil
}

// decodeHex decodes hex ignoring whitespace and the ':' and '-' separators.
func decodeHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-':
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}
