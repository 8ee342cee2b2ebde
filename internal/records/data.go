package records

import (
	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/protocol/wire"
)

// Data carries an optional sequence of items. An empty sequence is distinct from an absent one.
type Data struct {
	Items wire.Opt[[]Item]
}

var dataCodec = wire.MustCodec("Data",
	wire.Sequence(1, "items", itemCodec, func(d *Data) *wire.Opt[[]Item] { return &d.Items }),
)

func DataCodec() *wire.Codec[Data] {
	return dataCodec
}

func (d *Data) Encode(w *buffer.Writer) (int, error) {
	return dataCodec.Encode(w, d)
}

func DecodeData(r *buffer.Reader) (Data, error) {
	return dataCodec.Decode(r)
}

func (d *Data) ToText() (string, error) {
	return text.ToText(defaultText, dataCodec, d)
}

func DataFromText(input any) (Data, error) {
	return text.FromText(defaultText, dataCodec, input)
}

func ValidateData(v any) error {
	return dataCodec.Shape().Validate(v)
}

func UnsafeDataFromValue(v map[string]any) Data {
	return dataCodec.FromValue(v)
}

func (d *Data) Equal(other *Data) bool {
	return dataCodec.Equal(d, other)
}
