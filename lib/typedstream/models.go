// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package typedstream

// NodeKind discriminates the two decoded node variants.
type NodeKind int

const (
	// NodeObject is an archived instance: a class descriptor chain
	// plus nested field values.
	NodeObject NodeKind = iota
	// NodeValues is a run of primitive leaves decoded together as one
	// on-wire record.
	NodeValues
)

// Class is a named, versioned type tag attached to an archived object.
type Class struct {
	Name    string `json:"name" cbor:"name"`
	Version uint64 `json:"version" cbor:"version"`
}

// Node is one decoded unit of the archive. For NodeObject, Classes
// holds the descriptor chain (oldest ancestor first) and Fields the
// nested values; for NodeValues, Values holds the primitive leaves.
// Nodes are immutable after Parse returns.
type Node struct {
	Kind    NodeKind `json:"kind" cbor:"kind"`
	Classes []Class  `json:"classes,omitempty" cbor:"classes,omitempty"`
	Fields  []Node   `json:"fields,omitempty" cbor:"fields,omitempty"`
	Values  []Value  `json:"values,omitempty" cbor:"values,omitempty"`
}

// ClassName returns the most-derived class name of an object node, or
// "" for value runs.
func (n *Node) ClassName() string {
	if n.Kind != NodeObject || len(n.Classes) == 0 {
		return ""
	}
	return n.Classes[len(n.Classes)-1].Name
}

// IsClass reports whether any entry of the object's descriptor chain
// has the given name. Archive producers vary the concrete class
// (NSString vs NSMutableString), so matching on the chain rather than
// the leaf avoids caring which one was written.
func (n *Node) IsClass(name string) bool {
	for _, c := range n.Classes {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Text returns the node's string payload: for an object, the first
// string among its immediate field values (an NSString archives its
// text this way); for a value run, the first string leaf. The second
// return is false when the node carries no string.
func (n *Node) Text() (string, bool) {
	if n.Kind == NodeValues {
		return firstString(n.Values)
	}
	for i := range n.Fields {
		if n.Fields[i].Kind == NodeValues {
			if s, ok := firstString(n.Fields[i].Values); ok {
				return s, true
			}
		}
	}
	return "", false
}

// Int returns the node's first integer payload (signed or unsigned),
// searching immediate field values for objects. The second return is
// false when the node carries no integer.
func (n *Node) Int() (int64, bool) {
	if n.Kind == NodeValues {
		return firstInt(n.Values)
	}
	for i := range n.Fields {
		if n.Fields[i].Kind == NodeValues {
			if v, ok := firstInt(n.Fields[i].Values); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func firstString(values []Value) (string, bool) {
	for _, v := range values {
		if v.Kind == ValueString {
			return v.Str, true
		}
	}
	return "", false
}

func firstInt(values []Value) (int64, bool) {
	for _, v := range values {
		switch v.Kind {
		case ValueSigned:
			return v.Int, true
		case ValueUnsigned:
			return int64(v.Uint), true
		}
	}
	return 0, false
}

// ValueKind discriminates primitive leaves.
type ValueKind int

const (
	ValueSigned   ValueKind = iota // signed integer, 64-bit range
	ValueUnsigned                  // unsigned integer, 64-bit range
	ValueFloat                     // IEEE 754 value
	ValueString                    // UTF-8 string
	ValueBytes                     // raw byte array (opaque downstream)
)

// Value is a single primitive leaf. Only the field matching Kind is
// meaningful.
type Value struct {
	Kind  ValueKind `json:"kind" cbor:"kind"`
	Int   int64     `json:"int,omitempty" cbor:"int,omitempty"`
	Uint  uint64    `json:"uint,omitempty" cbor:"uint,omitempty"`
	Float float64   `json:"float,omitempty" cbor:"float,omitempty"`
	Str   string    `json:"str,omitempty" cbor:"str,omitempty"`
	Bytes []byte    `json:"bytes,omitempty" cbor:"bytes,omitempty"`
}
