package ziplist

import (
	"encoding/binary"
	"math"

	"github.com/rpcpool/kvcore/numeric"
)

// Encoding tag bytes, see spec §4's entry layout table.
const (
	strLenMask = 0xC0 // mask isolating the top two tag bits for string entries
	tagStr6    = 0x00 // top two bits 00: 6-bit string length in low 6 bits
	tagStr14   = 0x40 // top two bits 01: 14-bit string length
	tagStr32   = 0x80 // exact byte: 10000000, 32-bit length follows
	tagInt16   = 0xC0
	tagInt32   = 0xD0
	tagInt64   = 0xE0
	tagInt24   = 0xF0 // also the high nibble of the immediates 0xF1..0xFD
	tagInt8    = 0xFE
	Terminator = 0xFF
)

const (
	immediateMin = 0xF1 // nibble 1 -> value 0
	immediateMax = 0xFD // nibble 13 -> value 12
)

// Element is a decoded ziplist entry value: either an integer or a byte
// string, never both.
type Element struct {
	IsInt bool
	Int   int64
	Str   []byte
}

// Bytes renders the element the way RESP replies render list entries:
// integers as their canonical decimal digits, strings verbatim.
func (e Element) Bytes() []byte {
	if e.IsInt {
		return numeric.FormatInt(e.Int)
	}
	return e.Str
}

// entryHeader describes one decoded entry's layout without copying its
// payload.
type entryHeader struct {
	prevLen     uint32
	prevLenSize int
	tagSize     int
	payloadLen  int
	isInt       bool
}

func (h entryHeader) total() int {
	return h.prevLenSize + h.tagSize + h.payloadLen
}

func decodePrevLen(buf []byte, offset int) (value uint32, size int) {
	if buf[offset] < 0xFE {
		return uint32(buf[offset]), 1
	}
	return binary.LittleEndian.Uint32(buf[offset+1 : offset+5]), 5
}

func encodePrevLen(n uint32) []byte {
	if n < 254 {
		return []byte{byte(n)}
	}
	b := make([]byte, 5)
	b[0] = 0xFE
	binary.LittleEndian.PutUint32(b[1:5], n)
	return b
}

// decodeEntryHeader reads the prevlen and encoding tag at offset, without
// touching the payload bytes.
func decodeEntryHeader(buf []byte, offset int) (entryHeader, error) {
	prevLen, prevLenSize := decodePrevLen(buf, offset)
	tagPos := offset + prevLenSize
	tagByte := buf[tagPos]

	switch {
	case tagByte&strLenMask == tagStr6:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: int(tagByte & 0x3F)}, nil
	case tagByte&strLenMask == tagStr14:
		length := (int(tagByte&0x3F) << 8) | int(buf[tagPos+1])
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 2, payloadLen: length}, nil
	case tagByte == tagStr32:
		length := binary.BigEndian.Uint32(buf[tagPos+1 : tagPos+5])
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 5, payloadLen: int(length)}, nil
	case tagByte == tagInt16:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: 2, isInt: true}, nil
	case tagByte == tagInt32:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: 4, isInt: true}, nil
	case tagByte == tagInt64:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: 8, isInt: true}, nil
	case tagByte == tagInt24:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: 3, isInt: true}, nil
	case tagByte == tagInt8:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: 1, isInt: true}, nil
	case tagByte >= immediateMin && tagByte <= immediateMax:
		return entryHeader{prevLen: prevLen, prevLenSize: prevLenSize, tagSize: 1, payloadLen: 0, isInt: true}, nil
	default:
		return entryHeader{}, ErrCorruptEncoding
	}
}

// decodeEntryValue decodes the full entry (header + payload) at offset.
func decodeEntryValue(buf []byte, offset int) (Element, int, error) {
	h, err := decodeEntryHeader(buf, offset)
	if err != nil {
		return Element{}, 0, err
	}
	tagPos := offset + h.prevLenSize
	tagByte := buf[tagPos]
	payloadStart := tagPos + h.tagSize

	if !h.isInt {
		str := make([]byte, h.payloadLen)
		copy(str, buf[payloadStart:payloadStart+h.payloadLen])
		return Element{Str: str}, h.total(), nil
	}

	var v int64
	switch {
	case tagByte == tagInt8:
		v = int64(int8(buf[payloadStart]))
	case tagByte == tagInt16:
		v = int64(int16(binary.LittleEndian.Uint16(buf[payloadStart : payloadStart+2])))
	case tagByte == tagInt24:
		v = decodeInt24(buf[payloadStart : payloadStart+3])
	case tagByte == tagInt32:
		v = int64(int32(binary.LittleEndian.Uint32(buf[payloadStart : payloadStart+4])))
	case tagByte == tagInt64:
		v = int64(binary.LittleEndian.Uint64(buf[payloadStart : payloadStart+8]))
	default: // immediate
		nibble := tagByte & 0x0F
		v = int64(nibble) - 1
	}
	return Element{IsInt: true, Int: v}, h.total(), nil
}

func decodeInt24(b []byte) int64 {
	u := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	if u&0x800000 != 0 {
		u |= 0xFF000000
	}
	return int64(int32(u))
}

// selectIntEncoding picks the narrowest integer encoding for v: the
// 4-bit immediate for 0..12, then i8, i16, i24, i32, i64 in that order.
func selectIntEncoding(v int64) (tagByte byte, payload []byte) {
	switch {
	case v >= 0 && v <= 12:
		return tagInt24 | byte(v+1), nil
	case v >= -128 && v <= 127:
		return tagInt8, []byte{byte(int8(v))}
	case v >= -32768 && v <= 32767:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		return tagInt16, b
	case v >= -8388608 && v <= 8388607:
		u := uint32(int32(v)) & 0xFFFFFF
		return tagInt24, []byte{byte(u), byte(u >> 8), byte(u >> 16)}
	case v >= -2147483648 && v <= 2147483647:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return tagInt32, b
	default:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return tagInt64, b
	}
}

// selectStrEncoding picks the narrowest string length class for data,
// returning the encoding tag bytes (not including the payload itself).
func selectStrEncoding(data []byte) ([]byte, error) {
	n := len(data)
	switch {
	case n <= 63:
		return []byte{byte(n)}, nil
	case n <= 16383:
		return []byte{tagStr14 | byte(n>>8), byte(n)}, nil
	case uint64(n) <= math.MaxUint32:
		b := make([]byte, 5)
		b[0] = tagStr32
		binary.BigEndian.PutUint32(b[1:5], uint32(n))
		return b, nil
	default:
		return nil, ErrEntryTooLarge
	}
}

// buildEncoded classifies data and returns the encoding tag plus payload
// bytes for a new entry, not including its prevlen.
func buildEncoded(data []byte) ([]byte, error) {
	if n, ok := numeric.Classify(data); ok {
		tagByte, payload := selectIntEncoding(n)
		encoded := make([]byte, 0, 1+len(payload))
		encoded = append(encoded, tagByte)
		encoded = append(encoded, payload...)
		return encoded, nil
	}
	tag, err := selectStrEncoding(data)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, 0, len(tag)+len(data))
	encoded = append(encoded, tag...)
	encoded = append(encoded, data...)
	return encoded, nil
}
