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

// Package options parses the kind/length/data option encoding shared by the
// IPv4 and TCP headers (RFC 791 section 3.1, RFC 9293 section 3.1).
//
// Options are validated exactly once, by Parse. Iterating over a parsed
// Options value never fails: every option has already been checked, so the
// per-option hot path needs no error handling. If iteration does run into
// an option that does not decode, the OptionImpl is not deterministic or the
// bytes were modified after Parse, and the iterator panics.
package options

import (
	"errors"
	"fmt"
	"iter"
)

const (
	// EndOfOptions is the kind of the End of Option List option. It
	// terminates the options; any bytes following it are ignored.
	EndOfOptions = 0

	// NoOperation is the kind of the No-Operation option. It is a single
	// byte with no length field, used for alignment.
	NoOperation = 1

	// minLength is the smallest valid value for the length field, which
	// counts the kind and length bytes themselves.
	minLength = 2
)

// ErrMalformed is returned by Parse when the option encoding itself is
// broken: a missing length byte, or a length that is too small or runs past
// the end of the options.
var ErrMalformed = errors.New("malformed option")

// OptionError is returned by Parse when an OptionImpl rejects an option it
// recognizes.
type OptionError struct {
	// Kind is the kind of the rejected option.
	Kind uint8

	// Offset is the offset of the rejected option's kind byte.
	Offset int

	// Err is the error returned by the OptionImpl.
	Err error
}

// Error implements error.Error.
func (e *OptionError) Error() string {
	return fmt.Sprintf("option kind %d at offset %d: %v", e.Kind, e.Offset, e.Err)
}

// Unwrap returns the error returned by the OptionImpl.
func (e *OptionError) Unwrap() error {
	return e.Err
}

// OptionImpl decodes the options of a particular protocol.
//
// Parse is given the kind and data (excluding the kind and length bytes) of
// every option other than End of Option List and No-Operation. It returns
// ok == false for kinds it does not recognize, which are skipped, and an
// error for recognized options that are invalid.
//
// Parse must be deterministic: given the same kind and data it must always
// produce the same result.
type OptionImpl[T any] interface {
	Parse(kind uint8, data []byte) (opt T, ok bool, err error)
}

// OptionImplFunc adapts a function to an OptionImpl.
type OptionImplFunc[T any] func(kind uint8, data []byte) (T, bool, error)

// Parse implements OptionImpl.Parse.
func (f OptionImplFunc[T]) Parse(kind uint8, data []byte) (T, bool, error) {
	return f(kind, data)
}

// Options is a validated sequence of options.
type Options[T any] struct {
	bytes []byte
	impl  OptionImpl[T]
}

// Parse validates b as a sequence of options decoded by impl.
//
// It returns an error wrapping ErrMalformed if the encoding is broken, or an
// *OptionError if impl rejects an option. On success, the returned Options
// can be iterated any number of times without errors.
//
// b is retained, and must not be modified while the Options is in use.
func Parse[T any](b []byte, impl OptionImpl[T]) (Options[T], error) {
	rest := b
	for {
		offset := len(b) - len(rest)
		kind, data, next, done, err := nextRaw(rest)
		if err != nil {
			return Options[T]{}, fmt.Errorf("at offset %d: %w", offset, err)
		}
		if done {
			return Options[T]{bytes: b, impl: impl}, nil
		}
		if _, _, err := impl.Parse(kind, data); err != nil {
			return Options[T]{}, &OptionError{Kind: kind, Offset: len(b) - len(next) - len(data) - minLength, Err: err}
		}
		rest = next
	}
}

// nextRaw returns the kind and data of the first option in b that is not a
// No-Operation option, along with the bytes that follow it. done is true if
// there are no more options, either because b is exhausted or because an
// End of Option List option was found.
func nextRaw(b []byte) (kind uint8, data, rest []byte, done bool, err error) {
	for len(b) > 0 && b[0] == NoOperation {
		b = b[1:]
	}
	if len(b) == 0 || b[0] == EndOfOptions {
		return 0, nil, nil, true, nil
	}
	kind = b[0]
	if len(b) < minLength {
		return 0, nil, nil, true, fmt.Errorf("option kind %d has no length byte: %w", kind, ErrMalformed)
	}
	length := int(b[1])
	if length < minLength || length > len(b) {
		return 0, nil, nil, true, fmt.Errorf("option kind %d has length %d with %d bytes remaining: %w", kind, length, len(b), ErrMalformed)
	}
	return kind, b[minLength:length:length], b[length:], false, nil
}

// Bytes returns the raw option bytes.
func (o Options[T]) Bytes() []byte {
	return o.bytes
}

// Iter returns a new iterator over the options recognized by the
// OptionImpl. Iterators are independent of each other.
func (o Options[T]) Iter() OptionIter[T] {
	return OptionIter[T]{rest: o.bytes, impl: o.impl}
}

// All returns the options recognized by the OptionImpl, in order.
func (o Options[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		it := o.Iter()
		for {
			opt, ok := it.Next()
			if !ok || !yield(opt) {
				return
			}
		}
	}
}

// OptionIter iterates over a validated sequence of options.
type OptionIter[T any] struct {
	rest []byte
	impl OptionImpl[T]
}

// Next returns the next recognized option. ok is false once there are no
// more options.
//
// Next panics if an option fails to decode, since Parse has already
// validated all of them.
func (it *OptionIter[T]) Next() (opt T, ok bool) {
	for {
		kind, data, rest, done, err := nextRaw(it.rest)
		if err != nil {
			panic(fmt.Sprintf("options changed after validation: %v", err))
		}
		if done {
			it.rest = nil
			var zero T
			return zero, false
		}
		it.rest = rest
		opt, ok, err = it.impl.Parse(kind, data)
		if err != nil {
			panic(fmt.Sprintf("option kind %d was accepted by Parse but now fails: %v", kind, err))
		}
		if ok {
			return opt, true
		}
	}
}
