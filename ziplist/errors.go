package ziplist

import "fmt"

// Error is the ziplist package's error type; every failure case compares
// with errors.Is against one of the sentinel instances below.
type Error struct {
	kind kind
	msg  string
}

type kind int

const (
	kindIndexOutOfRange kind = iota
	kindEntryTooLarge
	kindCorruptEncoding
)

var (
	// ErrIndexOutOfRange is returned by Get, InsertAt and DeleteAt when the
	// index is not within [0, Len()) (or, for InsertAt, [0, Len()]). Get
	// first maps a negative index to index+Len().
	ErrIndexOutOfRange = &Error{kind: kindIndexOutOfRange, msg: "ziplist: index out of range"}
	// ErrEntryTooLarge is returned when a string entry exceeds the 32-bit
	// length encoding, i.e. len(data) > math.MaxUint32.
	ErrEntryTooLarge = &Error{kind: kindEntryTooLarge, msg: "ziplist: entry too large"}
	// ErrCorruptEncoding is returned when an encoding tag byte does not
	// match any of the layouts in the format; it should never be reachable
	// through the public API against a ziplist this package built.
	ErrCorruptEncoding = &Error{kind: kindCorruptEncoding, msg: "ziplist: corrupt entry encoding"}
)

func (e *Error) Error() string {
	if e == nil {
		return "nil"
	}
	return e.msg
}

func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.kind == e.kind
}

func indexOutOfRange(index, len int) error {
	return fmt.Errorf("%w: index %d, len %d", ErrIndexOutOfRange, index, len)
}
