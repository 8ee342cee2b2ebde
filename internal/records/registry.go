package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/tagwire/internal/observability"
	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/schema"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownType = errors.New("records: unknown type")
	// ErrTrailingBytes is returned by strict decodes of input holding more than one record.
	ErrTrailingBytes = errors.New("records: trailing bytes after record")
)

// Options tune one registry operation.
type Options struct {
	Text   text.Transcoder
	Limits buffer.Limits
	// Strict checks every length prefix against the bytes its record consumed.
	Strict bool
}

func DefaultOptions() Options {
	return Options{
		Text:   text.NewTranscoder(text.JSON(0)),
		Limits: buffer.DefaultLimits(),
	}
}

// Type is a record shape reachable by name, operating on untyped values, text and wire bytes.
type Type interface {
	Name() string
	Shape() *schema.Shape
	Validate(v any) error
	TextToWire(opts Options, input any) ([]byte, error)
	// WireToText decodes the first record in data and reports how many bytes it used.
	WireToText(opts Options, data []byte) (string, int, error)
	Skip(data []byte) (int, error)
}

type binding[R any] struct {
	codec *wire.Codec[R]
}

// Bind exposes a codec through the Type interface. Every operation is counted
// in the codec metrics under the codec's name.
func Bind[R any](c *wire.Codec[R]) Type {
	return binding[R]{codec: c}
}

func (b binding[R]) Name() string {
	return b.codec.Name()
}

func (b binding[R]) Shape() *schema.Shape {
	return b.codec.Shape()
}

func (b binding[R]) Validate(v any) error {
	err := b.codec.Shape().Validate(v)
	observability.RecordCodec(b.Name(), "validate", 0, err)
	return err
}

func (b binding[R]) TextToWire(opts Options, input any) ([]byte, error) {
	rec, err := text.FromText(opts.Text, b.codec, input)
	if err != nil {
		observability.RecordCodec(b.Name(), "encode", 0, err)
		return nil, err
	}
	w := buffer.NewWriter(opts.Limits)
	n, err := b.codec.Encode(w, &rec)
	observability.RecordCodec(b.Name(), "encode", n, err)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (b binding[R]) WireToText(opts Options, data []byte) (string, int, error) {
	r := buffer.NewReader(data)
	var (
		rec R
		err error
	)
	if opts.Strict {
		rec, err = b.codec.DecodeStrict(r)
	} else {
		rec, err = b.codec.Decode(r)
	}
	if err == nil && r.Remaining() > 0 {
		if opts.Strict {
			err = fmt.Errorf("%w: shape=%s used=%d trailing=%d", ErrTrailingBytes, b.Name(), r.Pos(), r.Remaining())
		} else {
			log.Warn().
				Str("type", b.Name()).
				Int("used", r.Pos()).
				Int("trailing", r.Remaining()).
				Msg("records.WireToText ignoring trailing bytes")
		}
	}
	observability.RecordCodec(b.Name(), "decode", r.Pos(), err)
	if err != nil {
		return "", 0, err
	}
	s, err := text.ToText(opts.Text, b.codec, &rec)
	if err != nil {
		return "", 0, err
	}
	return s, r.Pos(), nil
}

func (b binding[R]) Skip(data []byte) (int, error) {
	n, err := wire.Skip(buffer.NewReader(data))
	observability.RecordCodec(b.Name(), "skip", n, err)
	return n, err
}

var registry = func() map[string]Type {
	m := make(map[string]Type)
	for _, t := range []Type{Bind(itemCodec), Bind(dataCodec)} {
		m[strings.ToLower(t.Name())] = t
	}
	return m
}()

// Lookup finds a registered type by name, ignoring case.
func Lookup(name string) (Type, error) {
	t, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Types lists registered types ordered by name.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
