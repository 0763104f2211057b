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
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// config describes a packet, one optional section per layer. Sections that
// are present are stacked from ethernet inwards.
type config struct {
	Ethernet *ethernetConfig `toml:"ethernet" yaml:"ethernet"`
	VLAN     *vlanConfig     `toml:"vlan" yaml:"vlan"`
	IPv4     *ipv4Config     `toml:"ipv4" yaml:"ipv4"`
	UDP      *udpConfig      `toml:"udp" yaml:"udp"`
	TCP      *tcpConfig      `toml:"tcp" yaml:"tcp"`
	ICMP     *icmpConfig     `toml:"icmp" yaml:"icmp"`

	// Payload is the innermost body. PayloadHex gives it in hex instead;
	// at most one of them may be set.
	Payload    string `toml:"payload" yaml:"payload"`
	PayloadHex string `toml:"payload_hex" yaml:"payload_hex"`
}

type ethernetConfig struct {
	Src string `toml:"src" yaml:"src"`
	Dst string `toml:"dst" yaml:"dst"`

	// Type is the ethertype. It defaults to the type of the next layer.
	Type uint16 `toml:"type" yaml:"type"`
}

type vlanConfig struct {
	ID       uint16 `toml:"id" yaml:"id"`
	Priority uint8  `toml:"priority" yaml:"priority"`
	// Type is the ethertype of the tagged frame. It defaults to the type of
	// the next layer.
	Type uint16 `toml:"type" yaml:"type"`
}

type ipv4Config struct {
	Src          string `toml:"src" yaml:"src"`
	Dst          string `toml:"dst" yaml:"dst"`
	TOS          uint8  `toml:"tos" yaml:"tos"`
	ID           uint16 `toml:"id" yaml:"id"`
	TTL          uint8  `toml:"ttl" yaml:"ttl"`
	DontFragment bool   `toml:"dont_fragment" yaml:"dont_fragment"`
	RouterAlert  bool   `toml:"router_alert" yaml:"router_alert"`

	// Protocol defaults to the protocol of the transport section.
	Protocol uint8 `toml:"protocol" yaml:"protocol"`
}

type udpConfig struct {
	SrcPort    uint16 `toml:"src_port" yaml:"src_port"`
	DstPort    uint16 `toml:"dst_port" yaml:"dst_port"`
	NoChecksum bool   `toml:"no_checksum" yaml:"no_checksum"`
}

type tcpConfig struct {
	SrcPort uint16 `toml:"src_port" yaml:"src_port"`
	DstPort uint16 `toml:"dst_port" yaml:"dst_port"`
	Seq     uint32 `toml:"seq" yaml:"seq"`
	Ack     uint32 `toml:"ack" yaml:"ack"`
	Window  uint16 `toml:"window" yaml:"window"`

	// Flags uses the letters of TCPFlags.String, e.g. "SA" for SYN|ACK.
	Flags string `toml:"flags" yaml:"flags"`

	MSS           uint16           `toml:"mss" yaml:"mss"`
	WindowScale   *uint8           `toml:"window_scale" yaml:"window_scale"`
	SACKPermitted bool             `toml:"sack_permitted" yaml:"sack_permitted"`
	SACK          []sackConfig     `toml:"sack" yaml:"sack"`
	Timestamp     *timestampConfig `toml:"timestamp" yaml:"timestamp"`
}

type sackConfig struct {
	Start uint32 `toml:"start" yaml:"start"`
	End   uint32 `toml:"end" yaml:"end"`
}

type timestampConfig struct {
	Val uint32 `toml:"val" yaml:"val"`
	Ecr uint32 `toml:"ecr" yaml:"ecr"`
}

type icmpConfig struct {
	Reply    bool   `toml:"reply" yaml:"reply"`
	Ident    uint16 `toml:"ident" yaml:"ident"`
	Sequence uint16 `toml:"sequence" yaml:"sequence"`
}

// configFormat returns the format of a config file from its extension.
func configFormat(path string) (string, error) {
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		return "toml", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unknown config format %q, want .toml, .yaml or .yml", ext)
	}
}

// loadConfig loads a packet description from path.
func loadConfig(path string) (*config, error) {
	format, err := configFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open config: %w", err)
	}
	defer f.Close()
	c, err := decodeConfig(f, format)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %q: %w", path, err)
	}
	return c, nil
}

// decodeConfig decodes a packet description. Unknown keys are errors in both
// formats.
func decodeConfig(r io.Reader, format string) (*config, error) {
	var c config
	switch format {
	case "toml":
		md, err := toml.NewDecoder(r).Decode(&c)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys %v", undecoded)
		}
	case "yaml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && err != io.EOF {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
	return &c, nil
}
