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
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/netpkt/netpkt/pkg/tcpip/header"
	"github.com/netpkt/netpkt/pkg/tcpip/options"
	"github.com/sirupsen/logrus"
)

// Options implements subcommands.Command for the "options" command.
type Options struct {
	proto string
}

// Name implements subcommands.Command.Name.
func (*Options) Name() string {
	return "options"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Options) Synopsis() string {
	return "decode TCP or IPv4 options"
}

// Usage implements subcommands.Command.Usage.
func (*Options) Usage() string {
	return `options -proto tcp|ipv4 <hex> - validate and print the options encoded in hex.

EXAMPLE:
    $ pktgen options -proto tcp 020405b4 0103 0307
    mss 1460
    window-scale 7

`
}

// SetFlags implements subcommands.Command.SetFlags.
func (o *Options) SetFlags(f *flag.FlagSet) {
	f.StringVar(&o.proto, "proto", "tcp", "protocol of the options: tcp or ipv4")
}

// Execute implements subcommands.Command.Execute.
func (o *Options) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	b, err := decodeHex(strings.Join(f.Args(), ""))
	if err != nil {
		logrus.WithError(err).Error("decoding options")
		return subcommands.ExitFailure
	}
	if err := printOptions(os.Stdout, o.proto, b); err != nil {
		logrus.WithError(err).Errorf("%s options %x", o.proto, b)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printOptions validates b as options of proto and writes one line per
// recognized option.
func printOptions(w io.Writer, proto string, b []byte) error {
	switch proto {
	case "tcp":
		opts, err := options.Parse[header.TCPOption](b, header.TCPOptionImpl{})
		if err != nil {
			return err
		}
		for opt := range opts.All() {
			fmt.Fprintln(w, formatTCPOption(opt))
		}
	case "ipv4":
		opts, err := options.Parse[header.IPv4Option](b, header.IPv4OptionImpl{})
		if err != nil {
			return err
		}
		for opt := range opts.All() {
			fmt.Fprintln(w, formatIPv4Option(opt))
		}
	default:
		return fmt.Errorf("unknown protocol %q, want tcp or ipv4", proto)
	}
	return nil
}

func formatTCPOption(opt header.TCPOption) string {
	switch o := opt.(type) {
	case header.TCPMSSOption:
		return fmt.Sprintf("mss %d", o)
	case header.TCPWindowScaleOption:
		return fmt.Sprintf("window-scale %d", o)
	case header.TCPSACKPermittedOption:
		return "sack-permitted"
	case header.TCPSACKOption:
		blocks := make([]string, len(o))
		for i, b := range o {
			blocks[i] = fmt.Sprintf("%d-%d", b.Start, b.End)
		}
		return "sack " + strings.Join(blocks, " ")
	case header.TCPSACKBlocksView:
		return formatTCPOption(o.Blocks())
	case header.TCPTimestampOption:
		return fmt.Sprintf("timestamp val=%d ecr=%d", o.TSVal, o.TSEcr)
	default:
		return fmt.Sprintf("kind %d", opt.Kind())
	}
}

func formatIPv4Option(opt header.IPv4Option) string {
	switch opt.Kind {
	case header.IPv4OptionRouterAlertType:
		return fmt.Sprintf("router-alert %d", opt.RouterAlertValue())
	case header.IPv4OptionRecordRouteType:
		return fmt.Sprintf("record-route %x", opt.Data)
	case header.IPv4OptionTimestampType:
		return fmt.Sprintf("timestamp %x", opt.Data)
	default:
		return fmt.Sprintf("kind %d %x", opt.Kind, opt.Data)
	}
}
