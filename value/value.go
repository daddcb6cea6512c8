// Package value defines the tagged union stored under every key in the
// keyspace: a byte string, an integer (a string that parses as one), or a
// list backed by a ziplist.
package value

import (
	"github.com/rpcpool/kvcore/numeric"
	"github.com/rpcpool/kvcore/ziplist"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindString holds an arbitrary byte string that does not classify as
	// an integer.
	KindString Kind = iota
	// KindInteger holds a byte string whose contents parse as a canonical
	// int64 decimal per numeric.Classify.
	KindInteger
	// KindList holds an ordered sequence of byte strings in a ziplist.
	KindList
)

// String renders the kind the way TYPE replies render it.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is the unit stored under a key. The zero value is not meaningful;
// construct with NewString, NewInteger or NewList.
type Value struct {
	kind Kind
	str  []byte
	i    int64
	list *ziplist.ZipList
}

// NewString classifies raw and returns either a KindInteger or KindString
// value, mirroring the classification SET applies when a key is written.
func NewString(raw []byte) Value {
	if n, ok := numeric.Classify(raw); ok {
		return Value{kind: KindInteger, i: n}
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Value{kind: KindString, str: cp}
}

// NewList returns an empty KindList value.
func NewList() Value {
	return Value{kind: KindList, list: ziplist.New()}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Bytes renders v's content as a byte string: the stored bytes for
// KindString, the canonical decimal digits for KindInteger. Not valid for
// KindList.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KindInteger:
		return numeric.FormatInt(v.i)
	case KindString:
		return v.str
	default:
		return nil
	}
}

// List returns the underlying ziplist. Only meaningful for KindList.
func (v Value) List() *ziplist.ZipList { return v.list }

// IsList reports whether v holds a list.
func (v Value) IsList() bool { return v.kind == KindList }
