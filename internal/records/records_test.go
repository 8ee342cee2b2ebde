package records

import (
	"math"
	"testing"

	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/schema"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/danmuck/tagwire/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, enc interface {
	Encode(*buffer.Writer) (int, error)
}) []byte {
	t.Helper()
	w := buffer.NewWriter(buffer.DefaultLimits())
	n, err := enc.Encode(w)
	require.NoError(t, err)
	require.Equal(t, w.Len(), n)
	return w.Bytes()
}

func TestEmptyItemEncoding(t *testing.T) {
	testlog.Start(t)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x00}, encode(t, &Item{}))
}

func TestItemRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Item{X: wire.Some[int32](-12), Z: wire.Some(6.25)}
	out, err := DecodeItem(buffer.NewReader(encode(t, &in)))
	require.NoError(t, err)
	assert.True(t, in.Equal(&out), "in=%+v out=%+v", in, out)
	assert.False(t, out.Y.IsSet())
}

func TestItemDecodeSkipsFieldsFromNewerWriters(t *testing.T) {
	testlog.Start(t)
	// x=1, then an int32 under tag 4 this reader does not know.
	newer := []byte{11, 0, 0, 0, 1, 1, 0, 0, 0, 4, 9, 0, 0, 0, 0}
	r := buffer.NewReader(newer)
	got, err := DecodeItem(r)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.X.Or(0))
	assert.False(t, got.Y.IsSet())
	assert.Equal(t, len(newer), r.Pos())
}

func TestDataSequenceRoundTripAndEmptyVersusAbsent(t *testing.T) {
	testlog.Start(t)
	in := Data{Items: wire.Some([]Item{{X: wire.Some[int32](1)}, {Y: wire.Some(2.5)}})}
	out, err := DecodeData(buffer.NewReader(encode(t, &in)))
	require.NoError(t, err)
	require.True(t, in.Equal(&out))
	items, ok := out.Items.Get()
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, int32(1), items[0].X.Or(0))
	assert.Equal(t, 2.5, items[1].Y.Or(0))

	empty := Data{Items: wire.Some([]Item{})}
	absent := Data{}
	assert.NotEqual(t, encode(t, &empty), encode(t, &absent))

	decoded, err := DecodeData(buffer.NewReader(encode(t, &empty)))
	require.NoError(t, err)
	assert.True(t, decoded.Items.IsSet())
	assert.False(t, decoded.Equal(&absent))
}

func TestDecodeTruncatedData(t *testing.T) {
	testlog.Start(t)
	in := Data{Items: wire.Some([]Item{{X: wire.Some[int32](1)}})}
	b := encode(t, &in)
	_, err := DecodeData(buffer.NewReader(b[:len(b)-3]))
	assert.ErrorIs(t, err, buffer.ErrUnderrun)
}

func TestTextRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Data{Items: wire.Some([]Item{{X: wire.Some[int32](3), Y: wire.Some(0.5)}, {}})}
	s, err := in.ToText()
	require.NoError(t, err)
	assert.Equal(t, `{"items":[{"x":3,"y":0.5},{}]}`, s)

	out, err := DataFromText(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(&out))

	item := Item{Z: wire.Some(-1.0)}
	s, err = item.ToText()
	require.NoError(t, err)
	back, err := ItemFromText(s)
	require.NoError(t, err)
	assert.True(t, item.Equal(&back))
}

func TestFromTextRejectsBlankAndNonText(t *testing.T) {
	testlog.Start(t)
	for _, in := range []any{"", "   ", 17} {
		_, err := ItemFromText(in)
		assert.ErrorIs(t, err, text.ErrFormat, "input %#v", in)
	}
	_, err := DataFromText(`{"items": [`)
	assert.ErrorIs(t, err, text.ErrFormat)
}

func TestValidateReportsOffendingField(t *testing.T) {
	testlog.Start(t)
	require.NoError(t, ValidateItem(map[string]any{"x": 1, "w": "extra"}))
	require.NoError(t, ValidateData(map[string]any{}))

	var se schema.ShapeError
	err := ValidateItem(map[string]any{"x": "1"})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "x", se.Field)

	err = ValidateData(map[string]any{"items": []any{map[string]any{"x": 1}, map[string]any{"x": "bad"}}})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "items[1].x", se.Path)

	_, err = DataFromText(`{"items":[{"y":"nope"}]}`)
	assert.ErrorIs(t, err, schema.ErrShape)
}

func TestUnsafeFromValueSkipsValidation(t *testing.T) {
	testlog.Start(t)
	it := UnsafeItemFromValue(map[string]any{"x": 4.0, "y": "wrong", "z": int64(2)})
	assert.Equal(t, int32(4), it.X.Or(0))
	assert.False(t, it.Y.IsSet())
	assert.Equal(t, 2.0, it.Z.Or(0))

	d := UnsafeDataFromValue(map[string]any{"items": []any{map[string]any{"x": 1}}})
	items, ok := d.Items.Get()
	require.True(t, ok)
	assert.Equal(t, int32(1), items[0].X.Or(0))
}

func TestRegistryLookupAndTypes(t *testing.T) {
	testlog.Start(t)
	typ, err := Lookup("item")
	require.NoError(t, err)
	assert.Equal(t, "Item", typ.Name())
	assert.Equal(t, "Item", typ.Shape().Name)

	_, err = Lookup("Nope")
	assert.ErrorIs(t, err, ErrUnknownType)

	var names []string
	for _, registered := range Types() {
		names = append(names, registered.Name())
	}
	assert.Equal(t, []string{"Data", "Item"}, names)
}

func TestRegistryTextWireRoundTrip(t *testing.T) {
	testlog.Start(t)
	typ, err := Lookup("Data")
	require.NoError(t, err)
	opts := DefaultOptions()

	b, err := typ.TextToWire(opts, `{"items":[{"x":1},{"z":2.5}]}`)
	require.NoError(t, err)

	n, err := typ.Skip(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)

	s, used, err := typ.WireToText(opts, b)
	require.NoError(t, err)
	assert.Equal(t, len(b), used)
	assert.Equal(t, `{"items":[{"x":1},{"z":2.5}]}`, s)

	opts.Text = text.NewTranscoder(text.YAML())
	s, _, err = typ.WireToText(opts, b)
	require.NoError(t, err)
	assert.Contains(t, s, "items:")

	_, err = typ.TextToWire(opts, "items: [{x: oops}]")
	assert.ErrorIs(t, err, schema.ErrShape)
}

func TestRegistryStrictAndLimits(t *testing.T) {
	testlog.Start(t)
	typ, err := Lookup("Item")
	require.NoError(t, err)

	tampered := []byte{7, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0xEE}
	opts := DefaultOptions()
	_, _, err = typ.WireToText(opts, tampered)
	require.NoError(t, err)
	opts.Strict = true
	_, _, err = typ.WireToText(opts, tampered)
	assert.ErrorIs(t, err, wire.ErrLengthMismatch)

	opts = DefaultOptions()
	opts.Limits = buffer.Limits{MaxBytes: 8}
	_, err = typ.TextToWire(opts, `{"x":1,"y":2}`)
	assert.ErrorIs(t, err, buffer.ErrOverrun)
}

func TestWireToTextTrailingBytes(t *testing.T) {
	testlog.Start(t)
	typ, err := Lookup("Item")
	require.NoError(t, err)
	data := append(encode(t, &Item{X: wire.Some[int32](5)}), 0x01, 0x00, 0x00, 0x00, 0x00)

	opts := DefaultOptions()
	s, used, err := typ.WireToText(opts, data)
	require.NoError(t, err)
	assert.Equal(t, `{"x":5}`, s)
	assert.Equal(t, len(data)-5, used)

	opts.Strict = true
	_, _, err = typ.WireToText(opts, data)
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestItemFromTextRejectsTrailingInput(t *testing.T) {
	testlog.Start(t)
	for _, in := range []string{`{"x":1} garbage`, `{"x":1}{"x":2}`, `{"x":1}]`} {
		_, err := ItemFromText(in)
		assert.ErrorIs(t, err, text.ErrFormat, "input %q", in)
	}
	got, err := ItemFromText("  {\"x\":1}\n\t")
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.X.Or(0))
}

func TestNonFiniteItemHasNoTextForm(t *testing.T) {
	testlog.Start(t)
	it := Item{Y: wire.Some(math.NaN()), Z: wire.Some(math.Inf(1))}
	_, err := it.ToText()
	assert.ErrorIs(t, err, text.ErrNonFinite)

	back, err := DecodeItem(buffer.NewReader(encode(t, &it)))
	require.NoError(t, err)
	assert.True(t, it.Equal(&back))
}
