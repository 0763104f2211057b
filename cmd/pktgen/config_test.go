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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const tomlConfig = `
payload = "hello"

[ethernet]
src = "02:00:00:00:00:01"
dst = "02:00:00:00:00:02"

[vlan]
id = 100
priority = 3

[ipv4]
src = "10.0.0.1"
dst = "10.0.0.2"
ttl = 64
dont_fragment = true

[tcp]
src_port = 40000
dst_port = 80
flags = "SA"
mss = 1460
window_scale = 7
sack = [{start = 1, end = 10}]

[tcp.timestamp]
val = 1
ecr = 2
`

const yamlConfig = `
payload: hello
ethernet:
  src: "02:00:00:00:00:01"
  dst: "02:00:00:00:00:02"
vlan:
  id: 100
  priority: 3
ipv4:
  src: 10.0.0.1
  dst: 10.0.0.2
  ttl: 64
  dont_fragment: true
tcp:
  src_port: 40000
  dst_port: 80
  flags: SA
  mss: 1460
  window_scale: 7
  sack:
    - start: 1
      end: 10
  timestamp:
    val: 1
    ecr: 2
`

func wantConfig() *config {
	ws := uint8(7)
	return &config{
		Ethernet: &ethernetConfig{Src: "02:00:00:00:00:01", Dst: "02:00:00:00:00:02"},
		VLAN:     &vlanConfig{ID: 100, Priority: 3},
		IPv4:     &ipv4Config{Src: "10.0.0.1", Dst: "10.0.0.2", TTL: 64, DontFragment: true},
		TCP: &tcpConfig{
			SrcPort:     40000,
			DstPort:     80,
			Flags:       "SA",
			MSS:         1460,
			WindowScale: &ws,
			SACK:        []sackConfig{{Start: 1, End: 10}},
			Timestamp:   &timestampConfig{Val: 1, Ecr: 2},
		},
		Payload: "hello",
	}
}

func TestDecodeConfig(t *testing.T) {
	for _, tc := range []struct {
		format string
		input  string
	}{
		{"toml", tomlConfig},
		{"yaml", yamlConfig},
	} {
		t.Run(tc.format, func(t *testing.T) {
			got, err := decodeConfig(strings.NewReader(tc.input), tc.format)
			if err != nil {
				t.Fatalf("decodeConfig(_, %q) = _, %s", tc.format, err)
			}
			if diff := cmp.Diff(wantConfig(), got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeConfigUnknownKeys(t *testing.T) {
	for _, tc := range []struct {
		format string
		input  string
	}{
		{"toml", "[udp]\nsrc_prot = 1\n"},
		{"yaml", "udp:\n  src_prot: 1\n"},
		{"json", "{}"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			if _, err := decodeConfig(strings.NewReader(tc.input), tc.format); err == nil {
				t.Errorf("decodeConfig(%q, %q) succeeded", tc.input, tc.format)
			}
		})
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	got, err := decodeConfig(strings.NewReader(""), "yaml")
	if err != nil {
		t.Fatalf("decodeConfig(\"\", yaml) = _, %s", err)
	}
	if diff := cmp.Diff(&config{}, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	for name, contents := range map[string]string{
		"packet.toml": tomlConfig,
		"packet.yaml": yamlConfig,
		"packet.yml":  yamlConfig,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig(%q) = _, %s", name, err)
		}
		if diff := cmp.Diff(wantConfig(), got); diff != "" {
			t.Errorf("loadConfig(%q) mismatch (-want +got):\n%s", name, diff)
		}
	}

	if _, err := loadConfig(filepath.Join(dir, "packet.json")); err == nil {
		t.Errorf("loadConfig accepted a .json file")
	}
	if _, err := loadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("loadConfig accepted a missing file")
	}
}
