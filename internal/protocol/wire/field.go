package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/schema"
)

// Smallest encodings per element kind, used to cap sequence pre-sizing.
const (
	minRecordLen  = buffer.LengthLen + 1
	minInt32Len   = 4
	minFloat64Len = 8
)

// Field binds one declared field to its storage in record type R.
type Field[R any] struct {
	def     schema.Field
	present func(*R) bool
	encode  func(*buffer.Writer, *R) error
	decode  func(*buffer.Reader, *R, bool) error
	value   func(*R) any
	assign  func(*R, any)
	equal   func(a, b *R) bool
}

// Def returns the field's shape declaration.
func (f Field[R]) Def() schema.Field {
	return f.def
}

// Int32 declares an int32 field stored at the Opt returned by at.
func Int32[R any](tag uint8, name string, at func(*R) *Opt[int32]) Field[R] {
	return scalar(schema.Field{Tag: tag, Name: name, Kind: schema.Int32}, at,
		(*buffer.Writer).WriteInt32, (*buffer.Reader).ReadInt32, toInt32, eqInt32)
}

// Float64 declares a float64 field stored at the Opt returned by at.
func Float64[R any](tag uint8, name string, at func(*R) *Opt[float64]) Field[R] {
	return scalar(schema.Field{Tag: tag, Name: name, Kind: schema.Float64}, at,
		(*buffer.Writer).WriteFloat64, (*buffer.Reader).ReadFloat64, toFloat64, eqFloat64)
}

// Int32s declares a sequence<int32> field.
func Int32s[R any](tag uint8, name string, at func(*R) *Opt[[]int32]) Field[R] {
	return scalars(schema.Field{Tag: tag, Name: name, Kind: schema.Sequence, Elem: schema.Int32}, at,
		(*buffer.Writer).WriteInt32, (*buffer.Reader).ReadInt32, toInt32, eqInt32, minInt32Len)
}

// Float64s declares a sequence<float64> field.
func Float64s[R any](tag uint8, name string, at func(*R) *Opt[[]float64]) Field[R] {
	return scalars(schema.Field{Tag: tag, Name: name, Kind: schema.Sequence, Elem: schema.Float64}, at,
		(*buffer.Writer).WriteFloat64, (*buffer.Reader).ReadFloat64, toFloat64, eqFloat64, minFloat64Len)
}

// Nested declares a field holding one record encoded by c.
func Nested[R, N any](tag uint8, name string, c *Codec[N], at func(*R) *Opt[N]) Field[R] {
	return Field[R]{
		def:     schema.Field{Tag: tag, Name: name, Kind: schema.Record, Shape: c.Shape()},
		present: func(r *R) bool { return at(r).ok },
		encode: func(w *buffer.Writer, r *R) error {
			_, err := c.Encode(w, &at(r).v)
			return err
		},
		decode: func(rd *buffer.Reader, r *R, strict bool) error {
			n, err := c.decode(rd, strict)
			if err != nil {
				return err
			}
			at(r).Set(n)
			return nil
		},
		value: func(r *R) any { return c.ToValue(&at(r).v) },
		assign: func(r *R, v any) {
			if m, ok := v.(map[string]any); ok {
				at(r).Set(c.FromValue(m))
			}
		},
		equal: func(a, b *R) bool {
			oa, ob := at(a), at(b)
			if oa.ok != ob.ok {
				return false
			}
			return !oa.ok || c.Equal(&oa.v, &ob.v)
		},
	}
}

// Sequence declares a sequence<N> field whose elements are encoded by c.
func Sequence[R, N any](tag uint8, name string, c *Codec[N], at func(*R) *Opt[[]N]) Field[R] {
	return Field[R]{
		def:     schema.Field{Tag: tag, Name: name, Kind: schema.Sequence, Elem: schema.Record, Shape: c.Shape()},
		present: func(r *R) bool { return at(r).ok },
		encode: func(w *buffer.Writer, r *R) error {
			items := at(r).v
			if err := w.WriteUint32(uint32(len(items))); err != nil {
				return err
			}
			for i := range items {
				if _, err := c.Encode(w, &items[i]); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
			return nil
		},
		decode: func(rd *buffer.Reader, r *R, strict bool) error {
			count, err := rd.ReadUint32()
			if err != nil {
				return err
			}
			items := make([]N, 0, presize(count, rd.Remaining(), minRecordLen))
			for i := uint32(0); i < count; i++ {
				n, err := c.decode(rd, strict)
				if err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
				items = append(items, n)
			}
			at(r).Set(items)
			return nil
		},
		value: func(r *R) any {
			items := at(r).v
			out := make([]any, len(items))
			for i := range items {
				out[i] = c.ToValue(&items[i])
			}
			return out
		},
		assign: func(r *R, v any) {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return
			}
			items := make([]N, rv.Len())
			for i := range items {
				if m, ok := rv.Index(i).Interface().(map[string]any); ok {
					items[i] = c.FromValue(m)
				}
			}
			at(r).Set(items)
		},
		equal: func(a, b *R) bool {
			oa, ob := at(a), at(b)
			if oa.ok != ob.ok || len(oa.v) != len(ob.v) {
				return false
			}
			for i := range oa.v {
				if !c.Equal(&oa.v[i], &ob.v[i]) {
					return false
				}
			}
			return true
		},
	}
}

func scalar[R, T any](
	def schema.Field,
	at func(*R) *Opt[T],
	write func(*buffer.Writer, T) error,
	read func(*buffer.Reader) (T, error),
	conv func(any) (T, bool),
	eq func(a, b T) bool,
) Field[R] {
	return Field[R]{
		def:     def,
		present: func(r *R) bool { return at(r).ok },
		encode:  func(w *buffer.Writer, r *R) error { return write(w, at(r).v) },
		decode: func(rd *buffer.Reader, r *R, _ bool) error {
			v, err := read(rd)
			if err != nil {
				return err
			}
			at(r).Set(v)
			return nil
		},
		value: func(r *R) any { return at(r).v },
		assign: func(r *R, v any) {
			if t, ok := conv(v); ok {
				at(r).Set(t)
			}
		},
		equal: func(a, b *R) bool {
			oa, ob := at(a), at(b)
			if oa.ok != ob.ok {
				return false
			}
			return !oa.ok || eq(oa.v, ob.v)
		},
	}
}

func scalars[R, T any](
	def schema.Field,
	at func(*R) *Opt[[]T],
	write func(*buffer.Writer, T) error,
	read func(*buffer.Reader) (T, error),
	conv func(any) (T, bool),
	eq func(a, b T) bool,
	minLen int,
) Field[R] {
	return Field[R]{
		def:     def,
		present: func(r *R) bool { return at(r).ok },
		encode: func(w *buffer.Writer, r *R) error {
			items := at(r).v
			if err := w.WriteUint32(uint32(len(items))); err != nil {
				return err
			}
			for _, v := range items {
				if err := write(w, v); err != nil {
					return err
				}
			}
			return nil
		},
		decode: func(rd *buffer.Reader, r *R, _ bool) error {
			count, err := rd.ReadUint32()
			if err != nil {
				return err
			}
			items := make([]T, 0, presize(count, rd.Remaining(), minLen))
			for i := uint32(0); i < count; i++ {
				v, err := read(rd)
				if err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
				items = append(items, v)
			}
			at(r).Set(items)
			return nil
		},
		value: func(r *R) any {
			items := at(r).v
			out := make([]any, len(items))
			for i, v := range items {
				out[i] = v
			}
			return out
		},
		assign: func(r *R, v any) {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return
			}
			items := make([]T, rv.Len())
			for i := range items {
				items[i], _ = conv(rv.Index(i).Interface())
			}
			at(r).Set(items)
		},
		equal: func(a, b *R) bool {
			oa, ob := at(a), at(b)
			if oa.ok != ob.ok || len(oa.v) != len(ob.v) {
				return false
			}
			for i := range oa.v {
				if !eq(oa.v[i], ob.v[i]) {
					return false
				}
			}
			return true
		},
	}
}

// presize trusts count but never reserves more elements than the remaining bytes can hold.
func presize(count uint32, remaining, minLen int) int {
	limit := remaining / minLen
	if int64(count) < int64(limit) {
		return int(count)
	}
	return limit
}

func eqInt32(a, b int32) bool { return a == b }

func eqFloat64(a, b float64) bool { return math.Float64bits(a) == math.Float64bits(b) }

// toInt32 converts an untyped number without range checks.
func toInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int:
		return int32(n), true
	case int8:
		return int32(n), true
	case int16:
		return int32(n), true
	case int32:
		return n, true
	case int64:
		return int32(n), true
	case uint:
		return int32(n), true
	case uint8:
		return int32(n), true
	case uint16:
		return int32(n), true
	case uint32:
		return int32(n), true
	case uint64:
		return int32(n), true
	case float32:
		return int32(n), true
	case float64:
		return int32(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int32(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int32(f), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
