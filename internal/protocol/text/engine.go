package text

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v3"
)

// Engine stringifies untyped values and parses text back into them.
// Parsed objects must come back as map[string]any and arrays as []any.
type Engine interface {
	Name() string
	Stringify(v any) ([]byte, error)
	Parse(data []byte) (any, error)
}

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	errTrailingData      = errors.New("trailing data after value")
	errMultipleDocuments = errors.New("more than one document")
)

type jsonEngine struct {
	h *codec.JsonHandle
}

// JSON returns an engine producing canonical (key-sorted) JSON. indent > 0 pretty-prints
// with that many spaces; zero emits a single line.
func JSON(indent int) Engine {
	h := &codec.JsonHandle{}
	h.Canonical = true
	h.SignedInteger = true
	h.HTMLCharsAsIs = true
	h.MapType = reflect.TypeOf(map[string]any(nil))
	h.SliceType = reflect.TypeOf([]any(nil))
	if indent > 0 {
		if indent > 16 {
			indent = 16
		}
		h.Indent = int8(indent)
	}
	return jsonEngine{h: h}
}

func (jsonEngine) Name() string {
	return FormatJSON
}

func (e jsonEngine) Stringify(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, e.h).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse reads exactly one JSON value. Anything but whitespace after it is an error.
func (e jsonEngine) Parse(data []byte) (any, error) {
	var v any
	dec := codec.NewDecoderBytes(data, e.h)
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n := dec.NumBytesRead(); n < len(data) && len(bytes.TrimSpace(data[n:])) > 0 {
		return nil, fmt.Errorf("%w at offset %d", errTrailingData, n)
	}
	return v, nil
}

type yamlEngine struct{}

// YAML returns a yaml.v3 engine. Mapping keys are emitted sorted.
func YAML() Engine {
	return yamlEngine{}
}

func (yamlEngine) Name() string {
	return FormatYAML
}

func (yamlEngine) Stringify(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Parse reads exactly one YAML document.
func (yamlEngine) Parse(data []byte) (any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no yaml document")
		}
		return nil, err
	}
	var extra any
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return v, nil
	case err != nil:
		return nil, err
	default:
		return nil, errMultipleDocuments
	}
}

// EngineFor resolves a format name. An empty name selects compact JSON.
func EngineFor(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatJSON:
		return JSON(0), nil
	case FormatYAML, "yml":
		return YAML(), nil
	default:
		return nil, fmt.Errorf("text: unknown format %q", name)
	}
}
