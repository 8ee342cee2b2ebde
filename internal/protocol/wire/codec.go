package wire

import (
	"errors"
	"fmt"

	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilRecord      = errors.New("wire: nil record")
	ErrLengthMismatch = errors.New("wire: record length does not match consumed bytes")
)

// Codec encodes and decodes records of type R using a tag-ordered field table.
type Codec[R any] struct {
	shape  *schema.Shape
	fields []Field[R]
	// slot maps a tag to its index in fields plus one; zero marks an unknown tag.
	slot [256]int
}

// NewCodec builds a codec from field declarations given in any order.
func NewCodec[R any](name string, fields ...Field[R]) (*Codec[R], error) {
	defs := make([]schema.Field, len(fields))
	for i, f := range fields {
		defs[i] = f.def
	}
	shape, err := schema.NewShape(name, defs...)
	if err != nil {
		return nil, err
	}

	c := &Codec[R]{shape: shape, fields: make([]Field[R], 0, len(fields))}
	for _, def := range shape.Fields {
		for _, f := range fields {
			if f.def.Tag == def.Tag {
				c.fields = append(c.fields, f)
				c.slot[def.Tag] = len(c.fields)
				break
			}
		}
	}
	return c, nil
}

// MustCodec is NewCodec for package-level declarations.
func MustCodec[R any](name string, fields ...Field[R]) *Codec[R] {
	c, err := NewCodec(name, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Codec[R]) Shape() *schema.Shape {
	return c.shape
}

func (c *Codec[R]) Name() string {
	return c.shape.Name
}

// Encode appends rec to w as a length-prefixed record and returns the bytes written,
// prefix included. On error w is rolled back to its length before the call.
func (c *Codec[R]) Encode(w *buffer.Writer, rec *R) (int, error) {
	if rec == nil {
		return 0, ErrNilRecord
	}
	start := w.Len()
	n, err := c.encode(w, rec)
	if err != nil {
		w.Truncate(start)
		return 0, err
	}
	return n, nil
}

func (c *Codec[R]) encode(w *buffer.Writer, rec *R) (int, error) {
	start := w.Len()
	slot, err := w.ReserveLength()
	if err != nil {
		return 0, fmt.Errorf("wire: encode %s length: %w", c.shape.Name, err)
	}
	for i := range c.fields {
		f := &c.fields[i]
		if !f.present(rec) {
			continue
		}
		if err := w.WriteByte(f.def.Tag); err != nil {
			return 0, fmt.Errorf("wire: encode %s.%s tag: %w", c.shape.Name, f.def.Name, err)
		}
		if err := f.encode(w, rec); err != nil {
			return 0, fmt.Errorf("wire: encode %s.%s: %w", c.shape.Name, f.def.Name, err)
		}
	}
	if err := w.WriteByte(schema.EndTag); err != nil {
		return 0, fmt.Errorf("wire: encode %s end tag: %w", c.shape.Name, err)
	}
	body := w.Len() - slot - buffer.LengthLen
	if err := w.PatchLength(slot, uint32(body)); err != nil {
		return 0, fmt.Errorf("wire: encode %s length: %w", c.shape.Name, err)
	}
	return w.Len() - start, nil
}

// Decode reads one record. An unknown tag ends the record early: the reader jumps to
// the end offset given by the length prefix and the fields read so far are returned.
// A stated end that lies behind the unknown tag is ErrLengthMismatch; the reader never moves back.
func (c *Codec[R]) Decode(r *buffer.Reader) (R, error) {
	return c.decode(r, false)
}

// DecodeStrict is Decode plus a check that a record ending on its end tag consumed
// exactly the number of bytes stated by its length prefix, nested records included.
func (c *Codec[R]) DecodeStrict(r *buffer.Reader) (R, error) {
	return c.decode(r, true)
}

func (c *Codec[R]) decode(r *buffer.Reader, strict bool) (R, error) {
	var rec, zero R
	length, err := r.ReadUint32()
	if err != nil {
		return zero, fmt.Errorf("wire: decode %s length: %w", c.shape.Name, err)
	}
	end := r.Pos() + int(length)

	for {
		at := r.Pos()
		tag, err := r.ReadByte()
		if err != nil {
			return zero, fmt.Errorf("wire: decode %s tag: %w", c.shape.Name, err)
		}

		switch i := c.slot[tag]; {
		case tag == schema.EndTag:
			if strict && r.Pos() != end {
				return zero, fmt.Errorf("%w: shape=%s stated_end=%d actual_end=%d",
					ErrLengthMismatch, c.shape.Name, end, r.Pos())
			}
			return rec, nil
		case i == 0:
			log.Debug().
				Str("shape", c.shape.Name).
				Uint8("tag", tag).
				Int("offset", at).
				Int("end", end).
				Msg("wire.Decode unknown tag, skipping to record end")
			if end < r.Pos() {
				return zero, fmt.Errorf("%w: shape=%s stated_end=%d behind unknown tag %d at %d",
					ErrLengthMismatch, c.shape.Name, end, tag, at)
			}
			if end > r.Len() {
				return zero, fmt.Errorf("wire: decode %s skip tag %d to %d: %w",
					c.shape.Name, tag, end, buffer.ErrUnderrun)
			}
			if err := r.Seek(end); err != nil {
				return zero, fmt.Errorf("wire: decode %s skip tag %d: %w", c.shape.Name, tag, err)
			}
			return rec, nil
		default:
			f := &c.fields[i-1]
			if err := f.decode(r, &rec, strict); err != nil {
				return zero, fmt.Errorf("wire: decode %s.%s: %w", c.shape.Name, f.def.Name, err)
			}
		}
	}
}

// Marshal encodes rec into a fresh buffer with default limits.
func (c *Codec[R]) Marshal(rec *R) ([]byte, error) {
	w := buffer.NewWriter(buffer.DefaultLimits())
	if _, err := c.Encode(w, rec); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes the first record in data.
func (c *Codec[R]) Unmarshal(data []byte) (R, error) {
	return c.Decode(buffer.NewReader(data))
}

// ToValue renders the present fields of rec as an untyped object. Absent fields are omitted.
func (c *Codec[R]) ToValue(rec *R) map[string]any {
	out := make(map[string]any, len(c.fields))
	for i := range c.fields {
		f := &c.fields[i]
		if f.present(rec) {
			out[f.def.Name] = f.value(rec)
		}
	}
	return out
}

// FromValue builds a record from an untyped object without validating it.
// Declared keys holding values of the wrong kind are left absent.
func (c *Codec[R]) FromValue(v map[string]any) R {
	var rec R
	for i := range c.fields {
		f := &c.fields[i]
		if raw, ok := v[f.def.Name]; ok && raw != nil {
			f.assign(&rec, raw)
		}
	}
	return rec
}

// Equal compares presence and values field by field; floats compare bit-for-bit.
func (c *Codec[R]) Equal(a, b *R) bool {
	if a == nil || b == nil {
		return a == b
	}
	for i := range c.fields {
		if !c.fields[i].equal(a, b) {
			return false
		}
	}
	return true
}

// Skip advances r past one whole record using only its length prefix and
// returns the number of bytes skipped, prefix included.
func Skip(r *buffer.Reader) (int, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return 0, fmt.Errorf("wire: skip length: %w", err)
	}
	end := r.Pos() + int(length)
	if end > r.Len() {
		return 0, fmt.Errorf("wire: skip to %d: %w", end, buffer.ErrUnderrun)
	}
	if err := r.Seek(end); err != nil {
		return 0, fmt.Errorf("wire: skip: %w", err)
	}
	return buffer.LengthLen + int(length), nil
}
