// Package ziplist implements the packed, single-buffer list encoding: a
// sequence of mixed integer/string entries with variable-length per-entry
// headers, supporting push/insert/delete/indexed-get with bidirectional
// traversal.
package ziplist

import "encoding/binary"

const (
	headerSize = 10 // zl_bytes(4) + zl_tail_offset(4) + zl_len(2)
	lenSaturated = 0xFFFF
)

// ZipList is a packed sequence of entries in one contiguous byte buffer.
// The zero value is not usable; construct with New.
type ZipList struct {
	buf []byte
}

// New returns an empty ziplist: header + terminator, no entries.
func New() *ZipList {
	buf := make([]byte, headerSize+1)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[4:8], headerSize)
	binary.LittleEndian.PutUint16(buf[8:10], 0)
	buf[headerSize] = Terminator
	return &ZipList{buf: buf}
}

func (zl *ZipList) zlBytes() uint32      { return binary.LittleEndian.Uint32(zl.buf[0:4]) }
func (zl *ZipList) setZlBytes(v uint32)  { binary.LittleEndian.PutUint32(zl.buf[0:4], v) }
func (zl *ZipList) zlTail() uint32       { return binary.LittleEndian.Uint32(zl.buf[4:8]) }
func (zl *ZipList) setZlTail(v uint32)   { binary.LittleEndian.PutUint32(zl.buf[4:8], v) }
func (zl *ZipList) zlLenRaw() uint16     { return binary.LittleEndian.Uint16(zl.buf[8:10]) }
func (zl *ZipList) setZlLenRaw(v uint16) { binary.LittleEndian.PutUint16(zl.buf[8:10], v) }

// Bytes returns the raw packed buffer, for layout-integrity assertions in
// tests. Callers must not mutate the returned slice.
func (zl *ZipList) Bytes() []byte { return zl.buf }

// Len returns the number of entries. zl_len saturates at 0xFFFF per the
// classical ziplist contract; when saturated, Len walks the buffer to
// report the exact count (see DESIGN.md for this Open Question's resolution).
func (zl *ZipList) Len() int {
	raw := zl.zlLenRaw()
	if raw < lenSaturated {
		return int(raw)
	}
	return len(zl.forwardOffsets())
}

func (zl *ZipList) incLen() {
	raw := zl.zlLenRaw()
	if raw < lenSaturated {
		zl.setZlLenRaw(raw + 1)
	}
}

// decLen recomputes the cached length after a deletion. Call only after
// zl.buf already reflects the removal.
func (zl *ZipList) decLen() {
	raw := zl.zlLenRaw()
	if raw < lenSaturated {
		zl.setZlLenRaw(raw - 1)
		return
	}
	actual := len(zl.forwardOffsets())
	if actual < lenSaturated {
		zl.setZlLenRaw(uint16(actual))
	} else {
		zl.setZlLenRaw(lenSaturated)
	}
}

// forwardOffsets walks the buffer from the first entry to the terminator,
// returning the buffer offset of each entry's prevlen field in order.
func (zl *ZipList) forwardOffsets() []int {
	var offs []int
	pos := headerSize
	for zl.buf[pos] != Terminator {
		offs = append(offs, pos)
		h, err := decodeEntryHeader(zl.buf, pos)
		if err != nil {
			break
		}
		pos += h.total()
	}
	return offs
}

// backwardOffsets walks the buffer from the tail entry to the first,
// following the prevlen chain, returning offsets in tail-to-head order.
func (zl *ZipList) backwardOffsets() []int {
	if zl.zlLenRaw() == 0 && zl.zlTail() == headerSize {
		return nil
	}
	var offs []int
	pos := int(zl.zlTail())
	for {
		offs = append(offs, pos)
		if pos == headerSize {
			break
		}
		prevLen, _ := decodePrevLen(zl.buf, pos)
		pos -= int(prevLen)
	}
	return offs
}

// ForwardIter returns every element in push/insert order.
func (zl *ZipList) ForwardIter() []Element {
	offs := zl.forwardOffsets()
	elems := make([]Element, len(offs))
	for i, off := range offs {
		el, _, _ := decodeEntryValue(zl.buf, off)
		elems[i] = el
	}
	return elems
}

// ReverseIter returns every element in tail-to-head order, walking the
// prevlen chain rather than reversing ForwardIter's result.
func (zl *ZipList) ReverseIter() []Element {
	offs := zl.backwardOffsets()
	elems := make([]Element, len(offs))
	for i, off := range offs {
		el, _, _ := decodeEntryValue(zl.buf, off)
		elems[i] = el
	}
	return elems
}

// Get returns the element at index, 0-based from the head. A negative
// index counts from the tail: -1 is the last element.
func (zl *ZipList) Get(index int) (Element, error) {
	offs := zl.forwardOffsets()
	if index < 0 {
		index += len(offs)
	}
	if index < 0 || index >= len(offs) {
		return Element{}, indexOutOfRange(index, len(offs))
	}
	el, _, err := decodeEntryValue(zl.buf, offs[index])
	return el, err
}

// Push appends data as a new tail entry.
func (zl *ZipList) Push(data []byte) error {
	encoded, err := buildEncoded(data)
	if err != nil {
		return err
	}
	oldTermPos := int(zl.zlBytes()) - 1

	var predLen uint32
	if zl.Len() > 0 {
		predLen = uint32(oldTermPos) - zl.zlTail()
	}

	newEntry := append(encodePrevLen(predLen), encoded...)

	newBuf := make([]byte, 0, len(zl.buf)+len(newEntry))
	newBuf = append(newBuf, zl.buf[:oldTermPos]...)
	newBuf = append(newBuf, newEntry...)
	newBuf = append(newBuf, Terminator)

	zl.buf = newBuf
	zl.setZlBytes(uint32(len(zl.buf)))
	zl.setZlTail(uint32(oldTermPos))
	zl.incLen()
	return nil
}

// InsertAt inserts data before the current element at index. index == Len()
// is equivalent to Push.
func (zl *ZipList) InsertAt(index int, data []byte) error {
	offs := zl.forwardOffsets()
	if index < 0 || index > len(offs) {
		return indexOutOfRange(index, len(offs))
	}
	if index == len(offs) {
		return zl.Push(data)
	}

	encoded, err := buildEncoded(data)
	if err != nil {
		return err
	}

	var predLen uint32
	if index > 0 {
		predH, err := decodeEntryHeader(zl.buf, offs[index-1])
		if err != nil {
			return err
		}
		predLen = uint32(predH.total())
	}
	newEntry := append(encodePrevLen(predLen), encoded...)

	insertOffset := offs[index]
	succH, err := decodeEntryHeader(zl.buf, insertOffset)
	if err != nil {
		return err
	}
	newSuccPrevLen := encodePrevLen(uint32(len(newEntry)))
	tailStart := insertOffset + succH.prevLenSize

	newBuf := make([]byte, 0, len(zl.buf)+len(newEntry)+len(newSuccPrevLen))
	newBuf = append(newBuf, zl.buf[:insertOffset]...)
	newBuf = append(newBuf, newEntry...)
	newBuf = append(newBuf, newSuccPrevLen...)
	newBuf = append(newBuf, zl.buf[tailStart:]...)

	// The successor itself moves by len(newEntry); only entries after it
	// also move by the change in its prevlen field size.
	shift := len(newEntry)
	if index < len(offs)-1 {
		shift += len(newSuccPrevLen) - succH.prevLenSize
	}
	zl.buf = newBuf
	zl.setZlBytes(uint32(len(zl.buf)))
	zl.setZlTail(uint32(int(zl.zlTail()) + shift))
	zl.incLen()
	return nil
}

// DeleteAt removes the element at index, shifting subsequent indices down.
func (zl *ZipList) DeleteAt(index int) error {
	offs := zl.forwardOffsets()
	if index < 0 || index >= len(offs) {
		return indexOutOfRange(index, len(offs))
	}

	delOffset := offs[index]
	delH, err := decodeEntryHeader(zl.buf, delOffset)
	if err != nil {
		return err
	}

	if index == len(offs)-1 {
		// Deleting the tail entry: truncate and retag the terminator.
		newBuf := append(append([]byte{}, zl.buf[:delOffset]...), Terminator)
		zl.buf = newBuf
		zl.setZlBytes(uint32(len(zl.buf)))
		if index == 0 {
			zl.setZlTail(headerSize)
		} else {
			zl.setZlTail(uint32(offs[index-1]))
		}
		zl.decLen()
		return nil
	}

	var newPredLen uint32
	if index > 0 {
		predH, err := decodeEntryHeader(zl.buf, offs[index-1])
		if err != nil {
			return err
		}
		newPredLen = uint32(predH.total())
	}
	newSuccPrevLen := encodePrevLen(newPredLen)

	succOffset := offs[index+1]
	succH, err := decodeEntryHeader(zl.buf, succOffset)
	if err != nil {
		return err
	}
	succTagStart := succOffset + succH.prevLenSize

	newBuf := make([]byte, 0, len(zl.buf))
	newBuf = append(newBuf, zl.buf[:delOffset]...)
	newBuf = append(newBuf, newSuccPrevLen...)
	newBuf = append(newBuf, zl.buf[succTagStart:]...)

	// The successor itself moves back by delH.total(); only entries after
	// it also move by the change in its prevlen field size.
	removed := delH.total()
	if index+1 < len(offs)-1 {
		removed += succH.prevLenSize - len(newSuccPrevLen)
	}
	zl.buf = newBuf
	zl.setZlBytes(uint32(len(zl.buf)))
	zl.setZlTail(uint32(int(zl.zlTail()) - removed))
	zl.decLen()
	return nil
}

// PopHead removes and returns the first element.
func (zl *ZipList) PopHead() (Element, error) {
	el, err := zl.Get(0)
	if err != nil {
		return Element{}, err
	}
	if err := zl.DeleteAt(0); err != nil {
		return Element{}, err
	}
	return el, nil
}

// PopTail removes and returns the last element.
func (zl *ZipList) PopTail() (Element, error) {
	n := zl.Len()
	if n == 0 {
		return Element{}, indexOutOfRange(0, 0)
	}
	el, err := zl.Get(n - 1)
	if err != nil {
		return Element{}, err
	}
	if err := zl.DeleteAt(n - 1); err != nil {
		return Element{}, err
	}
	return el, nil
}
