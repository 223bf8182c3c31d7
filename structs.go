package wirebind

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"strings"
)

// structField is the access path to one bound field of a struct.
type structField struct {
	// Key is the Go field name, for use in diagnostics.
	Key string
	// Type is the field's declared type, pointer included.
	Type reflect.Type
	// Index is the field's traversal path, partitioned at embedded
	// struct pointers that might be nil.
	Index [][]int
}

// GetWithZero loads the struct field from structVal. If loading
// requires traversing a nil pointer into an embedded struct,
// GetWithZero returns a non-settable zero value of the field.
func (f *structField) GetWithZero(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				return reflect.Zero(f.Type)
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// GetWithAlloc loads the struct field from structVal. If loading
// requires traversing a nil pointer into an embedded struct,
// GetWithAlloc allocates zero values appropriately. The returned
// [reflect.Value] is settable.
func (f *structField) GetWithAlloc(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// structInfo is the compiled form of a struct type: its derived
// binding table, and the access path for each bound field. Fields is
// parallel to Shape.Fields.
type structInfo struct {
	Type   reflect.Type
	Shape  *Shape
	Fields []*structField
}

// ShapeOf returns the binding table derived from v's struct tags. v
// may be a struct or a pointer to one. The result is cached; callers
// must not mutate it.
func ShapeOf(v any) (*Shape, error) {
	if v == nil {
		return nil, ErrInvalidArgument
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	si, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}
	return si.Shape, nil
}

var infos cache[*structInfo]

// getStructInfo compiles t's binding table, consulting the cache
// first.
func getStructInfo(t reflect.Type) (*structInfo, error) {
	if si, err := infos.Get(t); err == nil {
		return si, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	si, err := compileStructInfo(t, make(map[reflect.Type]*structInfo))
	if err != nil {
		infos.SetErr(t, err)
		return nil, err
	}
	infos.Set(t, si)
	return si, nil
}

// compileStructInfo builds the structInfo for t. seen carries the
// in-progress compilations, so self-referential structs resolve to
// their own (still filling) shape instead of recursing forever.
func compileStructInfo(t reflect.Type, seen map[reflect.Type]*structInfo) (*structInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, typeErr(t, "not a struct")
	}
	if si := seen[t]; si != nil {
		return si, nil
	}

	si := &structInfo{
		Type:  t,
		Shape: &Shape{Name: t.Name()},
	}
	seen[t] = si

	for field := range structFields(t, nil) {
		if !field.IsExported() {
			continue
		}
		name, loc, format, skip, err := parseFieldTag(field)
		if err != nil {
			return nil, typeErr(t, "field %s: %w", field.Name, err)
		}
		if skip {
			continue
		}

		b, err := bindingForType(field.Type, seen)
		if err != nil {
			return nil, typeErr(t, "field %s: %w", field.Name, err)
		}
		b.Name = name
		b.Loc = loc
		if format != formatUnset {
			if b.Type != TypeDate {
				return nil, typeErr(t, "field %s: time format on a %v field", field.Name, b.Type)
			}
			b.Format = format
		}
		if b.Type == TypeDate && b.Format == formatUnset {
			return nil, typeErr(t, "field %s: date field needs a time format tag (iso8601, unixsec, unixms or rfc822)", field.Name)
		}

		si.Shape.Fields = append(si.Shape.Fields, Field{Key: field.Name, Binding: b})
		si.Fields = append(si.Fields, &structField{
			Key:   field.Name,
			Type:  field.Type,
			Index: allocSteps(t, field.Index),
		})
	}

	if err := si.Shape.Validate(); err != nil {
		return nil, err
	}
	return si, nil
}

// bindingForType derives the wire binding of one Go type. The
// caller fills in Name and Loc.
func bindingForType(t reflect.Type, seen map[reflect.Type]*structInfo) (Binding, error) {
	// A pointer marks the value optional; the binding describes the
	// pointee.
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		if t.Kind() == reflect.Pointer {
			return Binding{}, fmt.Errorf("multiple pointer indirections")
		}
	}

	if t == timeType {
		// The format comes from the tag; compileStructInfo enforces
		// its presence.
		return Binding{Type: TypeDate}, nil
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return Binding{Type: TypeBlob}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return Binding{Type: TypeString}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return Binding{Type: TypeInt}, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return Binding{Type: TypeLong}, nil
	case reflect.Float32, reflect.Float64:
		return Binding{Type: TypeDouble}, nil
	case reflect.Bool:
		return Binding{Type: TypeBool}, nil
	case reflect.Slice, reflect.Array:
		elem, err := bindingForType(t.Elem(), seen)
		if err != nil {
			return Binding{}, err
		}
		return Binding{Type: TypeList, Elem: &elem}, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return Binding{}, fmt.Errorf("map key must be a string, not %s", t.Key())
		}
		val, err := bindingForType(t.Elem(), seen)
		if err != nil {
			return Binding{}, err
		}
		return Binding{Type: TypeMap, Value: &val}, nil
	case reflect.Struct:
		if selfCoding(t) {
			// The value owns its own wire schema.
			return Binding{Type: TypeStructured}, nil
		}
		si, err := compileStructInfo(t, seen)
		if err != nil {
			return Binding{}, err
		}
		return Binding{Type: TypeStructured, Shape: si.Shape}, nil
	}
	return Binding{}, fmt.Errorf("unsupported type %s", t)
}

// selfCoding reports whether t or *t implements Marshaler or
// Unmarshaler, taking charge of its own wire fields.
func selfCoding(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return t.Implements(marshalerType) || pt.Implements(marshalerType) ||
		t.Implements(unmarshalerType) || pt.Implements(unmarshalerType)
}

var tagLocations = map[string]Location{
	"payload": Payload,
	"query":   Query,
	"header":  Header,
	"path":    Path,
	"status":  StatusCode,
}

var tagFormats = map[string]TimeFormat{
	"iso8601": ISO8601,
	"unixsec": UnixSeconds,
	"unixms":  UnixMillis,
	"rfc822":  RFC822,
}

// parseFieldTag returns the information contained in field's "wire"
// struct tag: `wire:"name[,location][,format]"`. An absent tag binds
// the field to the payload under its Go name; a tag of "-" skips the
// field.
func parseFieldTag(field reflect.StructField) (name string, loc Location, format TimeFormat, skip bool, err error) {
	tag, ok := field.Tag.Lookup("wire")
	if !ok {
		return field.Name, Payload, formatUnset, false, nil
	}
	if tag == "-" {
		return "", Payload, formatUnset, true, nil
	}

	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, p := range parts[1:] {
		if l, ok := tagLocations[p]; ok {
			loc = l
			continue
		}
		if f, ok := tagFormats[p]; ok {
			if format != formatUnset {
				return "", 0, 0, false, fmt.Errorf("conflicting time formats %v and %s", format, p)
			}
			format = f
			continue
		}
		return "", 0, 0, false, fmt.Errorf("unknown tag option %q", p)
	}
	return name, loc, format, false, nil
}

// allocSteps partitions a multi-hop traversal of struct fields into
// segments that end at either the final value, or at a struct pointer
// that might be nil.
//
// This partition is used by [structField.GetWithZero] and
// [structField.GetWithAlloc] to load embedded struct fields that
// require traversing a nil pointer.
func allocSteps(t reflect.Type, idx []int) [][]int {
	var ret [][]int
	prev := 0
	t = t.Field(idx[0]).Type
	for i := 1; i < len(idx); i++ {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
			// Hop through a struct pointer that might be nil, cut.
			ret = append(ret, idx[prev:i])
			prev = i
			t = t.Elem()
		}
		t = t.Field(idx[i]).Type
	}
	ret = append(ret, idx[prev:])
	return ret
}

// structFields iterates t's fields in declaration order, flattening
// embedded structs.
func structFields(t reflect.Type, idx []int) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			f := t.Field(i)
			idx = append(idx, i)
			if f.Anonymous {
				at := f.Type
				if at.Kind() == reflect.Pointer {
					at = at.Elem()
				}
				if at.Kind() == reflect.Struct {
					for af := range structFields(at, idx) {
						if !yield(af) {
							return
						}
					}
					idx = idx[:len(idx)-1]
					continue
				}
			}
			f.Index = append([]int(nil), idx...)
			if !yield(f) {
				return
			}
			idx = idx[:len(idx)-1]
		}
	}
}
