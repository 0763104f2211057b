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
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/netpkt/netpkt/pkg/tcpip/checksum"
	"github.com/sirupsen/logrus"
)

// Checksum implements subcommands.Command for the "checksum" command.
type Checksum struct {
	update string
}

// Name implements subcommands.Command.Name.
func (*Checksum) Name() string {
	return "checksum"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Checksum) Synopsis() string {
	return "compute or incrementally update an internet checksum"
}

// Usage implements subcommands.Command.Usage.
func (*Checksum) Usage() string {
	return `checksum <hex>... - print the internet checksum of the concatenated bytes.
checksum -update <old>:<new>:<checksum> - print the checksum after old is replaced by new.

EXAMPLE:
    $ pktgen checksum 4500 0073 0000 4000 4011 0000 c0a8 0001 c0a8 00c7
    0xb861
    $ pktgen checksum -update 4011:3f11:b861
    0xb961

`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Checksum) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.update, "update", "", "old:new:checksum, all in hex, to update a checksum instead of computing one")
}

// Execute implements subcommands.Command.Execute.
func (c *Checksum) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var (
		xsum uint16
		err  error
	)
	switch {
	case c.update != "" && f.NArg() == 0:
		xsum, err = updateChecksum(c.update)
	case c.update == "" && f.NArg() > 0:
		xsum, err = computeChecksum(f.Args())
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err != nil {
		logrus.WithError(err).Error("checksum")
		return subcommands.ExitFailure
	}
	fmt.Printf("%#04x\n", xsum)
	return subcommands.ExitSuccess
}

// computeChecksum checksums the concatenation of the hex args. Each arg is
// added separately, so odd-length args exercise the trailing byte carry.
func computeChecksum(args []string) (uint16, error) {
	xsum := checksum.New()
	for _, arg := range args {
		b, err := decodeHex(arg)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", arg, err)
		}
		xsum.Add(b)
	}
	return xsum.Checksum(), nil
}

// updateChecksum parses "old:new:checksum" and applies the update.
func updateChecksum(s string) (uint16, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("update %q is not of the form old:new:checksum", s)
	}
	old, err := decodeHex(parts[0])
	if err != nil {
		return 0, fmt.Errorf("old bytes %q: %w", parts[0], err)
	}
	new, err := decodeHex(parts[1])
	if err != nil {
		return 0, fmt.Errorf("new bytes %q: %w", parts[1], err)
	}
	if len(old) != len(new) {
		return 0, fmt.Errorf("old and new bytes differ in length: %d != %d", len(old), len(new))
	}
	xsum, err := strconv.ParseUint(strings.TrimPrefix(parts[2], "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("checksum %q: %w", parts[2], err)
	}
	return checksum.Update(uint16(xsum), old, new), nil
}
