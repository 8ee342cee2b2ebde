// Package records holds the concrete record shapes exchanged over the tagged
// wire format and a name registry that exposes them without their Go types.
package records

import (
	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/protocol/wire"
)

// Item is a flat record with one int32 and two float64 coordinates.
type Item struct {
	X wire.Opt[int32]
	Y wire.Opt[float64]
	Z wire.Opt[float64]
}

var itemCodec = wire.MustCodec("Item",
	wire.Int32(1, "x", func(it *Item) *wire.Opt[int32] { return &it.X }),
	wire.Float64(2, "y", func(it *Item) *wire.Opt[float64] { return &it.Y }),
	wire.Float64(3, "z", func(it *Item) *wire.Opt[float64] { return &it.Z }),
)

var defaultText = text.NewTranscoder(text.JSON(0))

func ItemCodec() *wire.Codec[Item] {
	return itemCodec
}

func (it *Item) Encode(w *buffer.Writer) (int, error) {
	return itemCodec.Encode(w, it)
}

func DecodeItem(r *buffer.Reader) (Item, error) {
	return itemCodec.Decode(r)
}

// ToText renders the item as compact JSON.
func (it *Item) ToText() (string, error) {
	return text.ToText(defaultText, itemCodec, it)
}

// ItemFromText parses JSON text and validates it before building the item.
func ItemFromText(input any) (Item, error) {
	return text.FromText(defaultText, itemCodec, input)
}

func ValidateItem(v any) error {
	return itemCodec.Shape().Validate(v)
}

// UnsafeItemFromValue builds an item without validation.
func UnsafeItemFromValue(v map[string]any) Item {
	return itemCodec.FromValue(v)
}

func (it *Item) Equal(other *Item) bool {
	return itemCodec.Equal(it, other)
}
