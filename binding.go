package wirebind

import (
	"fmt"

	"github.com/creachadair/mds/mapset"
)

// A Location says where on the HTTP exchange a bound field travels.
type Location int

const (
	// Payload places the field in the request or response body. It is
	// the zero Location.
	Payload Location = iota
	// Query places the field in the request query string.
	Query
	// Header places the field in the HTTP headers.
	Header
	// Path substitutes the field into a placeholder of the
	// operation's URI template.
	Path
	// StatusCode binds the field to the HTTP response status. Status
	// bindings are response-only.
	StatusCode
)

var locationNames = map[Location]string{
	Payload:    "payload",
	Query:      "query",
	Header:     "header",
	Path:       "path",
	StatusCode: "status",
}

func (l Location) String() string {
	if n, ok := locationNames[l]; ok {
		return n
	}
	return fmt.Sprintf("Location(%d)", int(l))
}

// A Type is the wire type of a bound field. It fixes how the field's
// value is rendered and parsed, independent of the payload encoding
// in use.
type Type int

const (
	typeInvalid Type = iota

	// TypeString is UTF-8 text.
	TypeString
	// TypeInt is a 32-bit signed integer.
	TypeInt
	// TypeLong is a 64-bit signed integer.
	TypeLong
	// TypeDouble is a 64-bit float.
	TypeDouble
	// TypeBool is a boolean.
	TypeBool
	// TypeDate is a timestamp. Date bindings must declare a
	// TimeFormat.
	TypeDate
	// TypeBlob is opaque bytes, carried as base64 text.
	TypeBlob
	// TypeList is an ordered sequence. The element binding is Elem.
	TypeList
	// TypeMap is a string-keyed map. The value binding is Value.
	TypeMap
	// TypeStructured is a nested shape, either described by Shape or
	// able to marshal itself.
	TypeStructured
)

var typeNames = map[Type]string{
	TypeString:     "string",
	TypeInt:        "int",
	TypeLong:       "long",
	TypeDouble:     "double",
	TypeBool:       "bool",
	TypeDate:       "date",
	TypeBlob:       "blob",
	TypeList:       "list",
	TypeMap:        "map",
	TypeStructured: "structured",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// scalar reports whether t renders as a single text value, which is
// what non-payload locations require.
func (t Type) scalar() bool {
	switch t {
	case TypeString, TypeInt, TypeLong, TypeDouble, TypeBool, TypeDate, TypeBlob:
		return true
	}
	return false
}

// A TimeFormat is the rendering of a date binding. The zero value is
// unset; date bindings must pick a format explicitly.
type TimeFormat int

const (
	formatUnset TimeFormat = iota

	// ISO8601 renders as e.g. 2006-01-02T15:04:05.000Z, in UTC.
	ISO8601
	// UnixSeconds renders as integer seconds since the epoch.
	UnixSeconds
	// UnixMillis renders as integer milliseconds since the epoch.
	UnixMillis
	// RFC822 renders in the RFC 1123 form HTTP headers use, in GMT.
	RFC822
)

var timeFormatNames = map[TimeFormat]string{
	formatUnset: "unset",
	ISO8601:     "iso8601",
	UnixSeconds: "unixsec",
	UnixMillis:  "unixms",
	RFC822:      "rfc822",
}

func (f TimeFormat) String() string {
	if n, ok := timeFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("TimeFormat(%d)", int(f))
}

// A Binding describes one value's place on the wire: where it
// travels, the name it travels under, and its wire type.
//
// Bindings are plain data. Once a Shape using them is in service they
// must not be mutated; the drivers read them concurrently without
// locks.
type Binding struct {
	// Loc is where the value travels.
	Loc Location
	// Name is the wire name: the payload field name, query parameter,
	// header name, or path placeholder.
	Name string
	// Type is the wire type.
	Type Type

	// Format is the date rendering. Required when Type is TypeDate,
	// unused otherwise.
	Format TimeFormat
	// Elem is the element binding of a TypeList.
	Elem *Binding
	// Value is the value binding of a TypeMap. Map keys are always
	// strings.
	Value *Binding
	// Shape is the nested shape of a TypeStructured. It may be nil
	// for values that implement Marshaler and Unmarshaler themselves.
	Shape *Shape
}

// A Field is one named member of a Shape.
type Field struct {
	// Key is the Go-side name: the struct field or Record key the
	// value lives under.
	Key string
	Binding
}

// A Shape is the binding table of one structured value: the ordered
// list of its fields' bindings. Field order drives marshalling order.
//
// Shapes are built once, at startup or by struct-tag derivation, and
// are then immutable and safe for concurrent use.
type Shape struct {
	// Name is the wire name of the shape itself. It names the XML
	// payload root; elsewhere it is informational.
	Name string
	// Fields are the shape's members, in marshalling order.
	Fields []Field
}

// field returns the payload field with the given wire name, or nil.
func (s *Shape) field(name string) *Field {
	for i := range s.Fields {
		if f := &s.Fields[i]; f.Name == name && f.Loc == Payload {
			return f
		}
	}
	return nil
}

// Validate checks that the shape is internally consistent: every
// field has a name and a wire type, dates declare a format,
// containers declare their element bindings, and each field's type is
// usable at its location. Fields of shapes nested inside a payload
// must themselves bind to the payload. Validate does not consult any
// Go values; pairing the shape with a value happens at marshal time.
func (s *Shape) Validate() error {
	return s.validate(false, mapset.New[*Shape]())
}

func (s *Shape) validate(nested bool, seen mapset.Set[*Shape]) error {
	if s == nil {
		return typeErr(nil, "nil shape")
	}
	if seen.Has(s) {
		// Self-referential shapes are fine; each one is checked once.
		return nil
	}
	seen.Add(s)
	names := mapset.New[string]()
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Key == "" {
			return typeErr(nil, "shape %s: field %d has no key", s.Name, i)
		}
		if nested && f.Loc != Payload {
			return typeErr(nil, "shape %s: field %s binds to the %v inside a payload", s.Name, f.Key, f.Loc)
		}
		if err := f.Binding.validate(f.Key, true, seen); err != nil {
			return err
		}
		if f.Loc == Payload {
			if names.Has(f.Name) {
				return typeErr(nil, "shape %s: duplicate payload field %q", s.Name, f.Name)
			}
			names.Add(f.Name)
		}
	}
	return nil
}

func (b *Binding) validate(key string, top bool, seen mapset.Set[*Shape]) error {
	if top && b.Name == "" {
		// Inner bindings are anonymous; lists and maps name their
		// entries themselves.
		return typeErr(nil, "field %s: no wire name", key)
	}
	switch b.Type {
	case typeInvalid:
		return typeErr(nil, "field %s: no wire type", key)
	case TypeDate:
		if b.Format == formatUnset {
			return typeErr(nil, "field %s: date binding needs a time format", key)
		}
	case TypeList:
		if b.Elem == nil {
			return typeErr(nil, "field %s: list binding needs an element binding", key)
		}
		if err := b.Elem.validate(key, false, seen); err != nil {
			return err
		}
	case TypeMap:
		if b.Value == nil {
			return typeErr(nil, "field %s: map binding needs a value binding", key)
		}
		if err := b.Value.validate(key, false, seen); err != nil {
			return err
		}
	case TypeStructured:
		if b.Shape != nil {
			if err := b.Shape.validate(true, seen); err != nil {
				return err
			}
		}
	}
	if !top {
		// Inner bindings always travel with their container's
		// payload; their Loc is ignored.
		return nil
	}
	switch b.Loc {
	case Payload:
	case Query:
		ok := b.Type.scalar() ||
			(b.Type == TypeList && b.Elem.Type.scalar()) ||
			(b.Type == TypeMap && b.Value.Type.scalar())
		if !ok {
			return typeErr(nil, "field %s: %v cannot be bound to the query string", key, b.Type)
		}
	case Header:
		if !b.Type.scalar() && !(b.Type == TypeList && b.Elem.Type.scalar()) {
			return typeErr(nil, "field %s: %v cannot be bound to a header", key, b.Type)
		}
	case Path:
		if !b.Type.scalar() {
			return typeErr(nil, "field %s: %v cannot be bound to the request path", key, b.Type)
		}
	case StatusCode:
		if b.Type != TypeInt {
			return typeErr(nil, "field %s: status binding must be int, not %v", key, b.Type)
		}
	default:
		return typeErr(nil, "field %s: unknown location %v", key, b.Loc)
	}
	return nil
}
