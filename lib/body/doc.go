// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package body turns a raw attributedBody blob into renderable
// message content: a plain string, an ordered list of attributed text
// runs, and the positions of inline placeholders.
//
// Decoding is a two-step tagged chain, not exception-based control
// flow: [Decode] tries the typedstream archive decoder first and falls
// back to the legacy streamtyped pattern decoder, recording which path
// produced the text so callers can distinguish "fully decoded" from
// "used fallback" for diagnostics. The fallback path recovers unstyled
// text only.
//
// [Reconstruct] interprets the decoded node sequence as attribute
// ranges over the plain string. Unrecognized node shapes are skipped
// and unrecognized attribute keys are preserved as EffectUnknown;
// partial rich-text recovery beats refusing to render a message. The
// only hard error is a range that
// would run past the end of the text, which indicates a decoder bug
// rather than unusual input.
//
// All offsets, run boundaries and placeholder positions alike, are
// UTF-16 code units, matching the offset convention of the archive
// producer.
package body
