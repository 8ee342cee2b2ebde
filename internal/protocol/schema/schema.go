package schema

import (
	"errors"
	"fmt"
	"sort"
)

// EndTag terminates every encoded record and is never a field tag.
const EndTag uint8 = 0

// Kind is the declared wire kind of a field.
type Kind uint8

const (
	Int32    Kind = 1
	Float64  Kind = 2
	Record   Kind = 3
	Sequence Kind = 4
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Float64:
		return "float64"
	case Record:
		return "record"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrReservedTag   = errors.New("schema: tag 0 is reserved")
	ErrDuplicateTag  = errors.New("schema: duplicate tag")
	ErrDuplicateName = errors.New("schema: duplicate field name")
	ErrMissingShape  = errors.New("schema: record field without shape")
	ErrUnknownKind   = errors.New("schema: unknown kind")
)

// Field declares one tagged, optional field of a record.
// Sequences carry their element kind in Elem; record elements also set Shape.
type Field struct {
	Tag   uint8
	Name  string
	Kind  Kind
	Elem  Kind
	Shape *Shape
}

// TypeName renders the declared kind, e.g. "sequence<Item>".
func (f Field) TypeName() string {
	switch f.Kind {
	case Record:
		return f.Shape.Name
	case Sequence:
		if f.Elem == Record {
			return "sequence<" + f.Shape.Name + ">"
		}
		return "sequence<" + f.Elem.String() + ">"
	default:
		return f.Kind.String()
	}
}

// Shape is the declared field set of a record type, ordered by ascending tag.
type Shape struct {
	Name   string
	Fields []Field
}

// DefinitionError reports an invalid shape declaration.
type DefinitionError struct {
	Shape string
	Tag   uint8
	Err   error
}

func (e DefinitionError) Error() string {
	return fmt.Sprintf("%v: shape=%s tag=%d", e.Err, e.Shape, e.Tag)
}

func (e DefinitionError) Unwrap() error {
	return e.Err
}

// NewShape checks a field declaration and returns it sorted by tag.
func NewShape(name string, fields ...Field) (*Shape, error) {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	tags := make(map[uint8]struct{}, len(sorted))
	names := make(map[string]struct{}, len(sorted))
	for _, f := range sorted {
		if err := checkField(f); err != nil {
			return nil, DefinitionError{Shape: name, Tag: f.Tag, Err: err}
		}
		if _, dup := tags[f.Tag]; dup {
			return nil, DefinitionError{Shape: name, Tag: f.Tag, Err: ErrDuplicateTag}
		}
		if _, dup := names[f.Name]; dup {
			return nil, DefinitionError{Shape: name, Tag: f.Tag, Err: ErrDuplicateName}
		}
		tags[f.Tag] = struct{}{}
		names[f.Name] = struct{}{}
	}
	return &Shape{Name: name, Fields: sorted}, nil
}

func checkField(f Field) error {
	if f.Tag == EndTag {
		return ErrReservedTag
	}
	switch f.Kind {
	case Int32, Float64:
		return nil
	case Record:
		if f.Shape == nil {
			return ErrMissingShape
		}
		return nil
	case Sequence:
		switch f.Elem {
		case Int32, Float64:
			return nil
		case Record:
			if f.Shape == nil {
				return ErrMissingShape
			}
			return nil
		default:
			return fmt.Errorf("%w: sequence element %s", ErrUnknownKind, f.Elem)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, f.Kind)
	}
}

// Lookup returns the field declared for tag.
func (s *Shape) Lookup(tag uint8) (Field, bool) {
	i := sort.Search(len(s.Fields), func(i int) bool { return s.Fields[i].Tag >= tag })
	if i < len(s.Fields) && s.Fields[i].Tag == tag {
		return s.Fields[i], true
	}
	return Field{}, false
}

// ByName returns the field declared under name.
func (s *Shape) ByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
