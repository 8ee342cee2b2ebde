package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrShape = errors.New("schema: shape mismatch")

// ShapeError identifies the first present field whose value does not match its declared kind.
type ShapeError struct {
	Shape    string
	Path     string
	Field    string
	Expected string
	Reason   string
}

func (e ShapeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema: shape=%s: %s", e.Shape, e.Reason)
	}
	return fmt.Sprintf("schema: shape=%s field=%s: expected %s: %s", e.Shape, e.Path, e.Expected, e.Reason)
}

func (e ShapeError) Is(target error) bool {
	return target == ErrShape
}

// Validate checks every present, declared field of value against the shape.
// Absent fields (missing or nil) and undeclared extra keys are accepted.
func (s *Shape) Validate(value any) error {
	log.Debug().Str("shape", s.Name).Msg("schema.Validate")
	if err := s.validateObject(s.Name, "", value); err != nil {
		var se ShapeError
		if errors.As(err, &se) {
			log.Error().
				Str("shape", se.Shape).
				Str("field", se.Path).
				Str("expected", se.Expected).
				Str("reason", se.Reason).
				Msg("schema.Validate mismatch")
		}
		return err
	}
	return nil
}

func (s *Shape) validateObject(root, path string, value any) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return ShapeError{
			Shape:    root,
			Path:     path,
			Field:    fieldName(path),
			Expected: s.Name,
			Reason:   "expected object, got " + describe(value),
		}
	}
	for _, f := range s.Fields {
		v, present := obj[f.Name]
		if !present || v == nil {
			continue
		}
		if err := f.validate(root, join(path, f.Name), v); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) validate(root, path string, v any) error {
	mismatch := func(reason string) error {
		return ShapeError{Shape: root, Path: path, Field: f.Name, Expected: f.TypeName(), Reason: reason}
	}
	switch f.Kind {
	case Int32:
		if reason := checkInt32(v); reason != "" {
			return mismatch(reason)
		}
	case Float64:
		if reason := checkFloat64(v); reason != "" {
			return mismatch(reason)
		}
	case Record:
		return f.Shape.validateObject(root, path, v)
	case Sequence:
		rv := reflect.ValueOf(v)
		if !isSequence(rv) {
			return mismatch("expected sequence, got " + describe(v))
		}
		for i := 0; i < rv.Len(); i++ {
			elemPath := path + "[" + strconv.Itoa(i) + "]"
			elem := rv.Index(i).Interface()
			switch f.Elem {
			case Record:
				if err := f.Shape.validateObject(root, elemPath, elem); err != nil {
					return err
				}
			case Int32:
				if reason := checkInt32(elem); reason != "" {
					return ShapeError{Shape: root, Path: elemPath, Field: f.Name, Expected: f.TypeName(), Reason: reason}
				}
			case Float64:
				if reason := checkFloat64(elem); reason != "" {
					return ShapeError{Shape: root, Path: elemPath, Field: f.Name, Expected: f.TypeName(), Reason: reason}
				}
			}
		}
	}
	return nil
}

func isSequence(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

func checkInt32(v any) string {
	switch n := v.(type) {
	case int:
		return int64InRange(int64(n))
	case int8, int16, int32:
		return ""
	case int64:
		return int64InRange(n)
	case uint8, uint16:
		return ""
	case uint:
		return uint64InRange(uint64(n))
	case uint32:
		return uint64InRange(uint64(n))
	case uint64:
		return uint64InRange(n)
	case float32:
		return floatIsInt32(float64(n))
	case float64:
		return floatIsInt32(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int64InRange(i)
		}
		f, err := n.Float64()
		if err != nil {
			return "invalid number " + n.String()
		}
		return floatIsInt32(f)
	default:
		return "got " + describe(v)
	}
}

func int64InRange(n int64) string {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return fmt.Sprintf("value %d outside int32 range", n)
	}
	return ""
}

func uint64InRange(n uint64) string {
	if n > math.MaxInt32 {
		return fmt.Sprintf("value %d outside int32 range", n)
	}
	return ""
}

func floatIsInt32(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "value is not finite"
	}
	if math.Trunc(f) != f {
		return fmt.Sprintf("value %v is not integral", f)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return fmt.Sprintf("value %v outside int32 range", f)
	}
	return ""
}

func checkFloat64(v any) string {
	switch n := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return ""
	case json.Number:
		if _, err := n.Float64(); err != nil {
			return "invalid number " + n.String()
		}
		return ""
	default:
		return "got " + describe(v)
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case map[string]any:
		return "object"
	case []byte:
		return "bytes"
	}
	return reflect.TypeOf(v).String()
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// fieldName is the declared name of the last path segment, without element indexes.
func fieldName(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}
