package text

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/danmuck/tagwire/internal/protocol/schema"
	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/danmuck/tagwire/internal/testutil/testlog"
)

type point struct {
	X wire.Opt[int32]
	Y wire.Opt[float64]
}

type path struct {
	Points wire.Opt[[]point]
}

var (
	pointCodec = wire.MustCodec("Point",
		wire.Int32(1, "x", func(p *point) *wire.Opt[int32] { return &p.X }),
		wire.Float64(2, "y", func(p *point) *wire.Opt[float64] { return &p.Y }),
	)
	pathCodec = wire.MustCodec("Path",
		wire.Sequence(1, "points", pointCodec, func(p *path) *wire.Opt[[]point] { return &p.Points }),
	)
)

func TestToTextOmitsAbsentFieldsAndSortsKeys(t *testing.T) {
	testlog.Start(t)
	tc := NewTranscoder(JSON(0))

	got, err := ToText(tc, pointCodec, &point{Y: wire.Some(2.5), X: wire.Some[int32](1)})
	if err != nil {
		t.Fatalf("to text: %v", err)
	}
	if got != `{"x":1,"y":2.5}` {
		t.Fatalf("unexpected text: %s", got)
	}

	got, err = ToText(tc, pointCodec, &point{Y: wire.Some(-0.25)})
	if err != nil {
		t.Fatalf("to text: %v", err)
	}
	if strings.Contains(got, "x") || strings.Contains(got, "null") {
		t.Fatalf("absent field rendered: %s", got)
	}

	if _, err := ToText(tc, pointCodec, nil); !errors.Is(err, wire.ErrNilRecord) {
		t.Fatalf("expected ErrNilRecord, got %v", err)
	}
}

func TestFromTextRejectsMalformedInputBeforeParsing(t *testing.T) {
	testlog.Start(t)
	tc := NewTranscoder(JSON(0))
	cases := []any{"", "   ", "\n\t", []byte(" "), 42, nil, map[string]any{"x": 1}}
	for _, in := range cases {
		_, err := FromText(tc, pointCodec, in)
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("input %#v: expected ErrFormat, got %v", in, err)
		}
		var fe FormatError
		if !errors.As(err, &fe) || fe.Err != nil {
			t.Fatalf("input %#v: expected pre-parse FormatError, got %#v", in, err)
		}
	}
}

func TestFromTextParseFailureIsFormatError(t *testing.T) {
	testlog.Start(t)
	for _, tc := range []Transcoder{NewTranscoder(JSON(0)), NewTranscoder(YAML())} {
		_, err := FromText(tc, pointCodec, "{")
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("%s: expected ErrFormat, got %v", tc.Engine.Name(), err)
		}
		var fe FormatError
		if !errors.As(err, &fe) || fe.Err == nil {
			t.Fatalf("%s: expected wrapped parser error, got %#v", tc.Engine.Name(), err)
		}
	}
}

func TestFromTextRejectsTrailingData(t *testing.T) {
	testlog.Start(t)
	jsonTC := NewTranscoder(JSON(0))
	for _, in := range []string{`{"x":1} garbage`, `{"x":1}{"x":2}`, `{"x":1}]`, `{"x":1},`} {
		_, err := FromText(jsonTC, pointCodec, in)
		var fe FormatError
		if !errors.As(err, &fe) || fe.Err == nil {
			t.Fatalf("input %q: expected parse FormatError, got %v", in, err)
		}
	}
	if got, err := FromText(jsonTC, pointCodec, " {\"x\":1} \n"); err != nil || got.X.Or(0) != 1 {
		t.Fatalf("surrounding whitespace must be accepted: %+v %v", got, err)
	}

	yamlTC := NewTranscoder(YAML())
	for _, in := range []string{"x: 1\n---\nx: 2\n", "---\nx: 1\n---\ny: 2\n"} {
		_, err := FromText(yamlTC, pointCodec, in)
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("input %q: expected ErrFormat, got %v", in, err)
		}
	}
	if _, err := FromText(yamlTC, pointCodec, "# only a comment\n"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for a document-less input, got %v", err)
	}
	if got, err := FromText(yamlTC, pointCodec, "---\nx: 1\n"); err != nil || got.X.Or(0) != 1 {
		t.Fatalf("single explicit document must parse: %+v %v", got, err)
	}
}

func TestToTextRejectsNonFiniteFloats(t *testing.T) {
	testlog.Start(t)
	for _, e := range []Engine{JSON(0), YAML()} {
		tc := NewTranscoder(e)
		_, err := ToText(tc, pointCodec, &point{Y: wire.Some(math.NaN())})
		if !errors.Is(err, ErrNonFinite) || !strings.Contains(err.Error(), "field y") {
			t.Fatalf("%s: expected ErrNonFinite on y, got %v", e.Name(), err)
		}
		in := path{Points: wire.Some([]point{{Y: wire.Some(1.0)}, {Y: wire.Some(math.Inf(-1))}})}
		_, err = ToText(tc, pathCodec, &in)
		if !errors.Is(err, ErrNonFinite) || !strings.Contains(err.Error(), "points[1].y") {
			t.Fatalf("%s: expected ErrNonFinite at points[1].y, got %v", e.Name(), err)
		}
	}

	// Finite extremes still round-trip.
	tc := NewTranscoder(JSON(0))
	in := point{Y: wire.Some(math.MaxFloat64), X: wire.Some[int32](math.MinInt32)}
	s, err := ToText(tc, pointCodec, &in)
	if err != nil {
		t.Fatalf("to text: %v", err)
	}
	out, err := FromText(tc, pointCodec, s)
	if err != nil || !pointCodec.Equal(&in, &out) {
		t.Fatalf("round-trip of %q: %+v %v", s, out, err)
	}
}

func TestFromTextValidatesShape(t *testing.T) {
	testlog.Start(t)
	tc := NewTranscoder(JSON(0))

	_, err := FromText(tc, pointCodec, `{"x":"1"}`)
	var se schema.ShapeError
	if !errors.As(err, &se) || se.Field != "x" {
		t.Fatalf("expected shape error on x, got %v", err)
	}

	_, err = FromText(tc, pathCodec, `{"points":[{"x":1},{"x":2.5}]}`)
	if !errors.As(err, &se) || se.Path != "points[1].x" {
		t.Fatalf("expected shape error at points[1].x, got %v", err)
	}

	_, err = FromText(tc, pointCodec, `[1,2]`)
	if !errors.Is(err, schema.ErrShape) {
		t.Fatalf("expected ErrShape for non-object, got %v", err)
	}
}

func TestFromTextNullAndExtraKeys(t *testing.T) {
	testlog.Start(t)
	tc := NewTranscoder(JSON(0))
	got, err := FromText(tc, pointCodec, `{"x":null,"y":3,"note":"ignored"}`)
	if err != nil {
		t.Fatalf("from text: %v", err)
	}
	if got.X.IsSet() {
		t.Fatalf("null must read as absent: %+v", got)
	}
	if y, ok := got.Y.Get(); !ok || y != 3 {
		t.Fatalf("unexpected y: %+v", got.Y)
	}
}

func TestTextRoundTripBothEngines(t *testing.T) {
	testlog.Start(t)
	records := []path{
		{},
		{Points: wire.Some([]point{})},
		{Points: wire.Some([]point{{X: wire.Some[int32](-7)}, {Y: wire.Some(1e-3)}, {}})},
		{Points: wire.Some([]point{{X: wire.Some[int32](2147483647), Y: wire.Some(2.0)}})},
	}
	for _, e := range []Engine{JSON(0), JSON(2), YAML()} {
		tc := NewTranscoder(e)
		for _, in := range records {
			s, err := ToText(tc, pathCodec, &in)
			if err != nil {
				t.Fatalf("%s to text: %v", e.Name(), err)
			}
			out, err := FromText(tc, pathCodec, s)
			if err != nil {
				t.Fatalf("%s from text %q: %v", e.Name(), s, err)
			}
			if !pathCodec.Equal(&in, &out) {
				t.Fatalf("%s round-trip mismatch for %q: in=%+v out=%+v", e.Name(), s, in, out)
			}
		}
	}
}

func TestFromTextAcceptsBytes(t *testing.T) {
	testlog.Start(t)
	got, err := FromText(NewTranscoder(YAML()), pointCodec, []byte("x: 4\ny: 0.5\n"))
	if err != nil {
		t.Fatalf("from text: %v", err)
	}
	if got.X.Or(0) != 4 || got.Y.Or(0) != 0.5 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestEngineFor(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{"": FormatJSON, "JSON": FormatJSON, "yaml": FormatYAML, " yml ": FormatYAML}
	for in, want := range cases {
		e, err := EngineFor(in)
		if err != nil {
			t.Fatalf("engine for %q: %v", in, err)
		}
		if e.Name() != want {
			t.Fatalf("engine for %q: got %s want %s", in, e.Name(), want)
		}
	}
	if _, err := EngineFor("toml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestZeroTranscoderDefaultsToJSON(t *testing.T) {
	testlog.Start(t)
	var tc Transcoder
	got, err := ToText(tc, pointCodec, &point{X: wire.Some[int32](0)})
	if err != nil {
		t.Fatalf("to text: %v", err)
	}
	if got != `{"x":0}` {
		t.Fatalf("unexpected text: %s", got)
	}
}
