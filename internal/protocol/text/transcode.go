package text

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

var (
	ErrFormat = errors.New("text: malformed input")
	// ErrNonFinite rejects NaN and infinities, which text formats would render as null.
	ErrNonFinite = errors.New("text: non-finite float")
)

// FormatError reports text input that is not text, is blank, or does not parse.
type FormatError struct {
	Reason string
	Err    error
}

func (e FormatError) Error() string {
	if e.Err != nil {
		return "text: " + e.Reason + ": " + e.Err.Error()
	}
	return "text: " + e.Reason
}

func (e FormatError) Unwrap() error {
	return e.Err
}

func (e FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Transcoder moves records between their typed form and text through an Engine.
type Transcoder struct {
	Engine Engine
}

func NewTranscoder(e Engine) Transcoder {
	if e == nil {
		e = JSON(0)
	}
	return Transcoder{Engine: e}
}

func (tc Transcoder) engine() Engine {
	if tc.Engine == nil {
		return JSON(0)
	}
	return tc.Engine
}

// ToText renders the present fields of rec. Absent fields are omitted, never null.
func ToText[R any](tc Transcoder, c *wire.Codec[R], rec *R) (string, error) {
	if rec == nil {
		return "", wire.ErrNilRecord
	}
	v := c.ToValue(rec)
	if err := checkFinite("", v); err != nil {
		return "", fmt.Errorf("text: render %s: %w", c.Name(), err)
	}
	out, err := tc.engine().Stringify(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Parse checks that input is non-blank text and parses it into an untyped value.
func (tc Transcoder) Parse(input any) (any, error) {
	var raw []byte
	switch in := input.(type) {
	case string:
		raw = []byte(in)
	case []byte:
		raw = in
	default:
		return nil, FormatError{Reason: fmt.Sprintf("input is %T, not text", input)}
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, FormatError{Reason: "input is blank"}
	}
	v, err := tc.engine().Parse(raw)
	if err != nil {
		log.Debug().Str("engine", tc.engine().Name()).Err(err).Msg("text.Parse failed")
		return nil, FormatError{Reason: tc.engine().Name() + " parse failed", Err: err}
	}
	return v, nil
}

// FromText parses input and validates it against c's shape before building a record.
func FromText[R any](tc Transcoder, c *wire.Codec[R], input any) (R, error) {
	var zero R
	v, err := tc.Parse(input)
	if err != nil {
		return zero, err
	}
	if err := c.Shape().Validate(v); err != nil {
		return zero, err
	}
	obj, _ := v.(map[string]any)
	return c.FromValue(obj), nil
}

func checkFinite(path string, v any) error {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("%w in field %s", ErrNonFinite, path)
		}
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if path != "" {
				p = path + "." + k
			}
			if err := checkFinite(p, n[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, e := range n {
			if err := checkFinite(path+"["+strconv.Itoa(i)+"]", e); err != nil {
				return err
			}
		}
	}
	return nil
}
