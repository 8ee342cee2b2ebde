package wire_test

import (
	"fmt"

	"github.com/danmuck/tagwire/internal/protocol/wire"
)

type sample struct {
	Count wire.Opt[int32]
	Ratio wire.Opt[float64]
}

var sampleCodec = wire.MustCodec("Sample",
	wire.Int32(1, "count", func(s *sample) *wire.Opt[int32] { return &s.Count }),
	wire.Float64(2, "ratio", func(s *sample) *wire.Opt[float64] { return &s.Ratio }),
)

func ExampleCodec_Marshal() {
	b, _ := sampleCodec.Marshal(&sample{Count: wire.Some[int32](3)})
	fmt.Printf("% x\n", b)

	empty, _ := sampleCodec.Marshal(&sample{})
	fmt.Printf("% x\n", empty)
	// Output:
	// 06 00 00 00 01 03 00 00 00 00
	// 01 00 00 00 00
}

func ExampleCodec_Unmarshal() {
	rec, err := sampleCodec.Unmarshal([]byte{0x0a, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0xf8, 0x3f, 0})
	if err != nil {
		fmt.Println(err)
		return
	}
	ratio, ok := rec.Ratio.Get()
	fmt.Println(rec.Count.IsSet(), ratio, ok)
	// Output: false 1.5 true
}
