package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// LengthLen is the width of a reserved length slot.
const LengthLen = 4

var (
	ErrUnderrun = errors.New("buffer: read past end")
	ErrOverrun  = errors.New("buffer: write exceeds limit")
	ErrSeek     = errors.New("buffer: seek out of range")
	ErrBadSlot  = errors.New("buffer: invalid length slot")
)

// Limits constrains writer growth.
type Limits struct {
	MaxBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: 8 * 1024 * 1024}
}

// Writer is an append-only, growable byte buffer owned by a single encode pass.
type Writer struct {
	buf    []byte
	limits Limits
}

func NewWriter(limits Limits) *Writer {
	return &Writer{limits: limits}
}

// Len returns the current write position.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the written bytes. The slice aliases the writer until the next write.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Truncate drops everything written after position n.
func (w *Writer) Truncate(n int) {
	if n >= 0 && n < len(w.buf) {
		w.buf = w.buf[:n]
	}
}

func (w *Writer) grow(n int) error {
	if w.limits.MaxBytes > 0 && len(w.buf)+n > w.limits.MaxBytes {
		return fmt.Errorf("%w: have %d need %d max %d", ErrOverrun, len(w.buf), n, w.limits.MaxBytes)
	}
	return nil
}

// ReserveLength appends a zeroed 4-byte slot and returns its position for PatchLength.
func (w *Writer) ReserveLength() (int, error) {
	if err := w.grow(LengthLen); err != nil {
		return 0, err
	}
	slot := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	return slot, nil
}

// PatchLength back-fills a slot returned by ReserveLength.
func (w *Writer) PatchLength(slot int, n uint32) error {
	if slot < 0 || slot+LengthLen > len(w.buf) {
		return fmt.Errorf("%w: slot=%d len=%d", ErrBadSlot, slot, len(w.buf))
	}
	binary.LittleEndian.PutUint32(w.buf[slot:slot+LengthLen], n)
	return nil
}

func (w *Writer) WriteByte(b byte) error {
	if err := w.grow(1); err != nil {
		return err
	}
	w.buf = append(w.buf, b)
	return nil
}

func (w *Writer) WriteUint32(v uint32) error {
	if err := w.grow(4); err != nil {
		return err
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return nil
}

func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

func (w *Writer) WriteFloat64(v float64) error {
	if err := w.grow(8); err != nil {
		return err
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
	return nil
}

// Reader is a cursor over an encoded byte slice owned by a single decode pass.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Pos returns the cursor offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the total size of the underlying slice.
func (r *Reader) Len() int {
	return len(r.buf)
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Seek moves the cursor to an absolute offset in [0, Len()].
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: pos=%d len=%d", ErrSeek, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("%w: at=%d need %d have %d", ErrUnderrun, r.pos, n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return math.Float64frombits(v), nil
}
