// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package typedstream

import "errors"

var (
	// ErrNotTypedStream reports that the buffer does not begin with
	// the typedstream signature. This is the expected outcome for
	// bodies written in the older streamtyped layout; callers fall
	// back to that decoder instead of treating it as a failure.
	ErrNotTypedStream = errors.New("typedstream: not a typedstream archive")

	// ErrTruncated reports that a read would advance past the end of
	// the buffer. The cursor never reads out of bounds; it fails with
	// this error instead.
	ErrTruncated = errors.New("typedstream: truncated input")

	// ErrBadBackreference reports a reference token whose index is
	// outside the table it points into. Tables only ever grow during a
	// decode, so an out-of-range index means the archive is malformed.
	ErrBadBackreference = errors.New("typedstream: back-reference out of range")

	// ErrBadMarker reports an event byte that is not valid in its
	// position (for example a value where a type signature is
	// required).
	ErrBadMarker = errors.New("typedstream: unexpected marker byte")

	// ErrUnsupportedType reports a type encoding character the decoder
	// does not understand. The archive may be a newer variant; the
	// whole decode is abandoned rather than guessing at field widths.
	ErrUnsupportedType = errors.New("typedstream: unsupported type encoding")

	// ErrInvalidString reports a length-prefixed string that is not
	// valid UTF-8.
	ErrInvalidString = errors.New("typedstream: invalid UTF-8 string")
)
