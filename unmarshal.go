package wirebind

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/creachadair/mds/mapset"
	"github.com/danderson/wirebind/tokens"
)

// ResponseMeta carries the out-of-band parts of an HTTP response:
// the pieces that header and status bindings decode from.
type ResponseMeta struct {
	// StatusCode is the HTTP status. Zero means unknown, and leaves
	// status-bound fields untouched.
	StatusCode int
	// Header is the response's header set. It may be nil.
	Header http.Header
}

// Unmarshal decodes a response into the value pointed to by out.
// Envelope metadata comes from meta, and the payload is read from
// src. out must be a non-nil pointer to a struct, or to a slice for
// operations whose result is a bare collection; anything else returns
// [ErrInvalidArgument].
//
// Unmarshal applies the inverse of the rules used by [Marshal]. If an
// encountered value implements [Unmarshaler], Unmarshal calls
// UnmarshalWire to decode it. Types implementing [Unmarshaler] must do
// so with a pointer receiver; a value receiver would silently discard
// the decoded state, so Unmarshal refuses it with a [TypeError].
//
// Otherwise, fields decode according to their "wire" struct tag.
// Fields bound to a header parse from meta.Header in their text form;
// status-bound fields receive meta.StatusCode. Query and path bindings
// are request-only and fail with a [ParseError].
//
// The payload must be a single object, or empty. Payload fields match
// the incoming object's names exactly; names with no binding are
// skipped in full, including nested containers, and are not an
// error. An explicit null leaves the field at its zero value.
//
// When decoding into a slice, the incoming elements replace the
// slice's contents. When decoding into a map, the map is cleared
// first, or allocated if nil. A truncated payload returns a
// [ParseError] wrapping [io.ErrUnexpectedEOF].
func Unmarshal(out any, meta ResponseMeta, src tokens.Source) error {
	if out == nil {
		return fmt.Errorf("%w: nil output", ErrInvalidArgument)
	}
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return fmt.Errorf("%w: output must be a non-nil pointer to a struct", ErrInvalidArgument)
	}
	val = val.Elem()
	if val.Kind() == reflect.Slice {
		return unmarshalCollection(val, src)
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("%w: output must point to a struct or slice, not %s", ErrInvalidArgument, val.Type())
	}

	prog, err := responseProgramFor(val.Type())
	if err != nil {
		return err
	}
	for _, env := range prog.envelope {
		if err := env(meta, val); err != nil {
			return err
		}
	}

	tok, err := src.Next()
	if errors.Is(err, io.EOF) {
		// No payload at all is fine; only envelope bindings apply.
		return nil
	}
	if err != nil {
		return parseErr("", err)
	}
	if tok.Kind != tokens.ObjectStart {
		return parseErr("", fmt.Errorf("payload must be an object, got %v", tok.Kind))
	}
	for {
		tok, err := next(src)
		if err != nil {
			return parseErr("", err)
		}
		if tok.Kind == tokens.ObjectEnd {
			return nil
		}
		if tok.Kind != tokens.Name {
			return parseErr("", fmt.Errorf("got %v, want a field name", tok.Kind))
		}
		pf := prog.payload[tok.Str]
		if pf == nil {
			if err := tokens.Skip(src); err != nil {
				return parseErr(tok.Str, err)
			}
			continue
		}
		name := tok.Str
		tok, err = next(src)
		if err != nil {
			return parseErr(name, err)
		}
		if err := pf.dec(src, tok, pf.sf.GetWithAlloc(val)); err != nil {
			return parseErr(name, err)
		}
	}
}

// unmarshalCollection decodes a payload that is a bare array into the
// slice val, for operations whose result is a list rather than an
// object. A slice has no field bindings, so the response metadata does
// not apply.
func unmarshalCollection(val reflect.Value, src tokens.Source) error {
	dec, err := collectionDecoderFor(val.Type())
	if err != nil {
		return err
	}
	tok, err := src.Next()
	if errors.Is(err, io.EOF) {
		// No payload leaves the slice as it was.
		return nil
	}
	if err != nil {
		return parseErr("", err)
	}
	if err := dec(src, tok, val); err != nil {
		return parseErr("", err)
	}
	return nil
}

// UnmarshalShape decodes a response against an explicit binding
// table, returning the decoded fields as a [Record] keyed by each
// field's Key. Scalars come back as string, int32, int64, float64,
// bool, time.Time or []byte; lists as []any; maps as map[string]any;
// and nested shapes as nested Records. Absent and null fields have no
// entry.
func UnmarshalShape(shape *Shape, meta ResponseMeta, src tokens.Source) (Record, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	rec := Record{}
	for i := range shape.Fields {
		f := &shape.Fields[i]
		switch f.Loc {
		case Payload:
		case Header:
			if err := headerIntoRecord(rec, f, meta.Header); err != nil {
				return nil, err
			}
		case StatusCode:
			if meta.StatusCode != 0 {
				rec[f.Key] = int32(meta.StatusCode)
			}
		default:
			return nil, parseErr(f.Name, fmt.Errorf("%v bindings are request-only", f.Loc))
		}
	}

	tok, err := src.Next()
	if errors.Is(err, io.EOF) {
		return rec, nil
	}
	if err != nil {
		return nil, parseErr("", err)
	}
	if tok.Kind != tokens.ObjectStart {
		return nil, parseErr("", fmt.Errorf("payload must be an object, got %v", tok.Kind))
	}
	for {
		tok, err := next(src)
		if err != nil {
			return nil, parseErr("", err)
		}
		if tok.Kind == tokens.ObjectEnd {
			return rec, nil
		}
		if tok.Kind != tokens.Name {
			return nil, parseErr("", fmt.Errorf("got %v, want a field name", tok.Kind))
		}
		f := shape.field(tok.Str)
		if f == nil {
			if err := tokens.Skip(src); err != nil {
				return nil, parseErr(tok.Str, err)
			}
			continue
		}
		tok, err = next(src)
		if err != nil {
			return nil, parseErr(f.Name, err)
		}
		got, err := decodeBoundValue(src, tok, &f.Binding)
		if err != nil {
			return nil, parseErr(f.Name, err)
		}
		if got != nil {
			rec[f.Key] = got
		}
	}
}

// UnmarshalShapeList decodes a response whose payload is a bare array
// of values described by shape, returning one [Record] per element in
// stream order. Null elements decode as nil Records. A collection
// carries no envelope to bind response metadata to, so every field of
// shape must bind to the payload. An empty or null payload returns a
// nil list.
func UnmarshalShapeList(shape *Shape, src tokens.Source) ([]Record, error) {
	if err := shape.validate(true, mapset.New[*Shape]()); err != nil {
		return nil, err
	}
	elem := &Binding{Type: TypeStructured, Shape: shape}
	tok, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, parseErr("", err)
	}
	if tok.Kind == tokens.Null {
		return nil, nil
	}
	if tok.Kind != tokens.ArrayStart {
		return nil, parseErr("", fmt.Errorf("got %v, want an array", tok.Kind))
	}
	out := []Record{}
	for {
		tok, err := next(src)
		if err != nil {
			return nil, parseErr("", err)
		}
		if tok.Kind == tokens.ArrayEnd {
			return out, nil
		}
		ev, err := decodeBoundValue(src, tok, elem)
		if err != nil {
			return nil, parseErr("", err)
		}
		if ev == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, ev.(Record))
	}
}

// ParseResponse decodes resp into out according to op's protocol,
// reading the body as the payload. Only the JSON protocols carry
// self-describing payloads; for the others, parse the body yourself
// and hand [Unmarshal] a token source.
func ParseResponse(op *Operation, resp *http.Response, out any) error {
	if err := op.Validate(); err != nil {
		return err
	}
	var src tokens.Source
	switch op.Protocol {
	case RestJSON, JSONRPC:
		src = tokens.NewJSONSource(resp.Body)
	default:
		return fmt.Errorf("%w: no response decoder for %v", ErrInvalidArgument, op.Protocol)
	}
	meta := ResponseMeta{StatusCode: resp.StatusCode, Header: resp.Header}
	return Unmarshal(out, meta, src)
}

// Unmarshaler is the interface implemented by types that decode their
// own payload fields.
//
// UnmarshalWire must consume exactly one complete value from src. It
// must have a pointer receiver; Unmarshal refuses value-receiver
// implementations.
type Unmarshaler interface {
	UnmarshalWire(src tokens.Source) error
}

var unmarshalerType = reflect.TypeFor[Unmarshaler]()

// A decodeFunc decodes one complete value into v. tok is the value's
// first token; the rest are read from src.
type decodeFunc func(src tokens.Source, tok tokens.Token, v reflect.Value) error

// An envelopeFunc populates one field of the output struct from
// response metadata.
type envelopeFunc func(meta ResponseMeta, structVal reflect.Value) error

// A responseProgram is the compiled decode plan for one output struct
// type: payload field decoders by wire name, and envelope setters.
type responseProgram struct {
	payload  map[string]*payloadField
	envelope []envelopeFunc
}

type payloadField struct {
	sf  *structField
	dec decodeFunc
}

var decoders cache[*responseProgram]

// responseProgramFor returns the compiled decode plan for struct type
// t, building and caching it on first use.
func responseProgramFor(t reflect.Type) (ret *responseProgram, err error) {
	if ret, err := decoders.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	defer func(t reflect.Type) {
		if err != nil {
			decoders.SetErr(t, err)
		} else {
			decoders.Set(t, ret)
		}
	}(t)

	si, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}
	c := &decCompiler{seen: make(map[reflect.Type]*decodeFunc)}
	prog := &responseProgram{payload: make(map[string]*payloadField)}
	for i := range si.Shape.Fields {
		f := &si.Shape.Fields[i]
		sf := si.Fields[i]
		switch f.Loc {
		case Payload:
			dec, err := c.valueDecoder(&f.Binding, sf.Type)
			if err != nil {
				return nil, err
			}
			prog.payload[f.Name] = &payloadField{sf, dec}
		case Header:
			prog.envelope = append(prog.envelope, headerSetter(f, sf))
		case StatusCode:
			prog.envelope = append(prog.envelope, statusSetter(f, sf))
		default:
			loc, name := f.Loc, f.Name
			prog.envelope = append(prog.envelope, func(ResponseMeta, reflect.Value) error {
				return parseErr(name, fmt.Errorf("%v bindings are request-only", loc))
			})
		}
	}
	return prog, nil
}

var collections cache[decodeFunc]

// collectionDecoderFor returns the compiled decoder for slice type t,
// building and caching it on first use.
func collectionDecoderFor(t reflect.Type) (dec decodeFunc, err error) {
	if dec, err := collections.Get(t); err == nil {
		return dec, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	defer func(t reflect.Type) {
		if err != nil {
			collections.SetErr(t, err)
		} else {
			collections.Set(t, dec)
		}
	}(t)

	b, err := bindingForType(t, make(map[reflect.Type]*structInfo))
	if err != nil {
		return nil, typeErr(t, "%w", err)
	}
	// Struct elements were validated during compilation; this catches
	// bare date elements, which have no tag to carry a time format.
	if err := b.validate(t.String(), false, mapset.New[*Shape]()); err != nil {
		return nil, err
	}
	c := &decCompiler{seen: make(map[reflect.Type]*decodeFunc)}
	return c.valueDecoder(&b, t)
}

// decCompiler compiles payload value decoders. seen carries the
// in-progress struct types, so self-referential types resolve to an
// indirect call through the finished decoder.
type decCompiler struct {
	seen map[reflect.Type]*decodeFunc
}

func (c *decCompiler) valueDecoder(b *Binding, t reflect.Type) (decodeFunc, error) {
	// Only Unmarshalers with pointer receivers are usable: a value
	// receiver would decode into a copy and silently drop the result.
	// A pointer type whose pointed-to type also implements the
	// interface means the method has a value receiver.
	isPtr := t.Kind() == reflect.Pointer
	if t.Implements(unmarshalerType) {
		if !isPtr || t.Elem().Implements(unmarshalerType) {
			return nil, typeErr(t, "refusing to use wirebind.Unmarshaler implementation with value receiver, Unmarshalers must use pointer receivers.")
		}
		return newUnmarshalDecoder(t), nil
	} else if !isPtr && reflect.PointerTo(t).Implements(unmarshalerType) {
		return newAddrUnmarshalDecoder(t), nil
	}

	if isPtr {
		return c.newPtrDecoder(b, t)
	}
	switch b.Type {
	case TypeString, TypeInt, TypeLong, TypeDouble, TypeBool, TypeDate, TypeBlob:
		bind := b
		return func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
			if tok.Kind == tokens.Null {
				v.SetZero()
				return nil
			}
			got, err := scalarFromToken(bind, tok)
			if err != nil {
				return err
			}
			return assignScalar(v, got)
		}, nil
	case TypeList:
		return c.newSliceDecoder(b, t)
	case TypeMap:
		return c.newMapDecoder(b, t)
	case TypeStructured:
		return c.newStructDecoder(t)
	}
	return nil, typeErr(t, "no wire mapping for %v", b.Type)
}

func newAddrUnmarshalDecoder(t reflect.Type) decodeFunc {
	ptr := newUnmarshalDecoder(reflect.PointerTo(t))
	return func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
		return ptr(src, tok, v.Addr())
	}
}

func newUnmarshalDecoder(t reflect.Type) decodeFunc {
	return func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
		if tok.Kind == tokens.Null {
			v.SetZero()
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(t.Elem()))
		}
		m := v.Interface().(Unmarshaler)
		return m.UnmarshalWire(&replaySource{tok: tok, ok: true, src: src})
	}
}

func (c *decCompiler) newPtrDecoder(b *Binding, t reflect.Type) (decodeFunc, error) {
	elem := t.Elem()
	elemDec, err := c.valueDecoder(b, elem)
	if err != nil {
		return nil, err
	}
	fn := func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
		if tok.Kind == tokens.Null {
			v.SetZero()
			return nil
		}
		if v.IsNil() {
			p := reflect.New(elem)
			if err := elemDec(src, tok, p.Elem()); err != nil {
				return err
			}
			v.Set(p)
			return nil
		}
		return elemDec(src, tok, v.Elem())
	}
	return fn, nil
}

func (c *decCompiler) newSliceDecoder(b *Binding, t reflect.Type) (decodeFunc, error) {
	elemDec, err := c.valueDecoder(b.Elem, t.Elem())
	if err != nil {
		return nil, err
	}

	if t.Kind() == reflect.Array {
		n := t.Len()
		fn := func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
			if tok.Kind == tokens.Null {
				v.SetZero()
				return nil
			}
			if tok.Kind != tokens.ArrayStart {
				return fmt.Errorf("got %v, want an array", tok.Kind)
			}
			v.SetZero()
			for i := 0; ; i++ {
				tok, err := next(src)
				if err != nil {
					return err
				}
				if tok.Kind == tokens.ArrayEnd {
					return nil
				}
				if i >= n {
					return fmt.Errorf("too many elements for %s", t)
				}
				if err := elemDec(src, tok, v.Index(i)); err != nil {
					return err
				}
			}
		}
		return fn, nil
	}

	fn := func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
		if tok.Kind == tokens.Null {
			v.SetZero()
			return nil
		}
		if tok.Kind != tokens.ArrayStart {
			return fmt.Errorf("got %v, want an array", tok.Kind)
		}
		// An empty incoming list must decode to an empty slice, not
		// nil, to stay distinguishable from an absent field.
		v.Set(reflect.MakeSlice(t, 0, 0))
		for i := 0; ; i++ {
			tok, err := next(src)
			if err != nil {
				return err
			}
			if tok.Kind == tokens.ArrayEnd {
				return nil
			}
			v.Grow(1)
			v.Set(v.Slice(0, i+1))
			if err := elemDec(src, tok, v.Index(i)); err != nil {
				return err
			}
		}
	}
	return fn, nil
}

func (c *decCompiler) newMapDecoder(b *Binding, t reflect.Type) (decodeFunc, error) {
	kt := t.Key()
	if kt.Kind() != reflect.String {
		return nil, typeErr(t, "map key must be a string, not %s", kt)
	}
	vt := t.Elem()
	valDec, err := c.valueDecoder(b.Value, vt)
	if err != nil {
		return nil, err
	}

	fn := func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
		if tok.Kind == tokens.Null {
			v.SetZero()
			return nil
		}
		if tok.Kind != tokens.ObjectStart {
			return fmt.Errorf("got %v, want an object", tok.Kind)
		}
		if v.IsNil() {
			v.Set(reflect.MakeMap(t))
		} else {
			v.Clear()
		}
		val := reflect.New(vt)
		for {
			tok, err := next(src)
			if err != nil {
				return err
			}
			if tok.Kind == tokens.ObjectEnd {
				return nil
			}
			if tok.Kind != tokens.Name {
				return fmt.Errorf("got %v, want a field name", tok.Kind)
			}
			key := tok.Str
			tok, err = next(src)
			if err != nil {
				return err
			}
			val.Elem().SetZero()
			if err := valDec(src, tok, val.Elem()); err != nil {
				return parseErr(key, err)
			}
			v.SetMapIndex(reflect.ValueOf(key).Convert(kt), val.Elem())
		}
	}
	return fn, nil
}

func (c *decCompiler) newStructDecoder(t reflect.Type) (decodeFunc, error) {
	if t.Kind() != reflect.Struct {
		return nil, typeErr(t, "structured binding needs a struct, or an Unmarshaler")
	}
	if p := c.seen[t]; p != nil {
		return func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
			return (*p)(src, tok, v)
		}, nil
	}
	p := new(decodeFunc)
	c.seen[t] = p

	si, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]*payloadField, len(si.Fields))
	for i := range si.Shape.Fields {
		f := &si.Shape.Fields[i]
		if f.Loc != Payload {
			return nil, typeErr(t, "field %s binds to the %v inside a payload", f.Key, f.Loc)
		}
		dec, err := c.valueDecoder(&f.Binding, si.Fields[i].Type)
		if err != nil {
			return nil, err
		}
		fields[f.Name] = &payloadField{si.Fields[i], dec}
	}

	fn := decodeFunc(func(src tokens.Source, tok tokens.Token, v reflect.Value) error {
		if tok.Kind == tokens.Null {
			v.SetZero()
			return nil
		}
		if tok.Kind != tokens.ObjectStart {
			return fmt.Errorf("got %v, want an object", tok.Kind)
		}
		for {
			tok, err := next(src)
			if err != nil {
				return err
			}
			if tok.Kind == tokens.ObjectEnd {
				return nil
			}
			if tok.Kind != tokens.Name {
				return fmt.Errorf("got %v, want a field name", tok.Kind)
			}
			fd := fields[tok.Str]
			if fd == nil {
				if err := tokens.Skip(src); err != nil {
					return err
				}
				continue
			}
			name := tok.Str
			tok, err = next(src)
			if err != nil {
				return err
			}
			if err := fd.dec(src, tok, fd.sf.GetWithAlloc(v)); err != nil {
				return parseErr(name, err)
			}
		}
	})
	*p = fn
	return fn, nil
}

// decodeBoundValue reads one complete value bound by b into its
// native form: scalars as [scalarFromToken] leaves them, lists as
// []any, maps as map[string]any and structured values as [Record].
// Null decodes to nil.
func decodeBoundValue(src tokens.Source, tok tokens.Token, b *Binding) (any, error) {
	if tok.Kind == tokens.Null {
		return nil, nil
	}
	switch b.Type {
	case TypeString, TypeInt, TypeLong, TypeDouble, TypeBool, TypeDate, TypeBlob:
		return scalarFromToken(b, tok)
	case TypeList:
		if tok.Kind != tokens.ArrayStart {
			return nil, fmt.Errorf("got %v, want an array", tok.Kind)
		}
		out := []any{}
		for {
			tok, err := next(src)
			if err != nil {
				return nil, err
			}
			if tok.Kind == tokens.ArrayEnd {
				return out, nil
			}
			ev, err := decodeBoundValue(src, tok, b.Elem)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
	case TypeMap:
		if tok.Kind != tokens.ObjectStart {
			return nil, fmt.Errorf("got %v, want an object", tok.Kind)
		}
		out := map[string]any{}
		for {
			tok, err := next(src)
			if err != nil {
				return nil, err
			}
			if tok.Kind == tokens.ObjectEnd {
				return out, nil
			}
			if tok.Kind != tokens.Name {
				return nil, fmt.Errorf("got %v, want a field name", tok.Kind)
			}
			key := tok.Str
			tok, err = next(src)
			if err != nil {
				return nil, err
			}
			mv, err := decodeBoundValue(src, tok, b.Value)
			if err != nil {
				return nil, parseErr(key, err)
			}
			out[key] = mv
		}
	case TypeStructured:
		if b.Shape == nil {
			return nil, fmt.Errorf("structured value needs a shape")
		}
		if tok.Kind != tokens.ObjectStart {
			return nil, fmt.Errorf("got %v, want an object", tok.Kind)
		}
		rec := Record{}
		for {
			tok, err := next(src)
			if err != nil {
				return nil, err
			}
			if tok.Kind == tokens.ObjectEnd {
				return rec, nil
			}
			if tok.Kind != tokens.Name {
				return nil, fmt.Errorf("got %v, want a field name", tok.Kind)
			}
			f := b.Shape.field(tok.Str)
			if f == nil {
				if err := tokens.Skip(src); err != nil {
					return nil, err
				}
				continue
			}
			tok, err = next(src)
			if err != nil {
				return nil, err
			}
			fv, err := decodeBoundValue(src, tok, &f.Binding)
			if err != nil {
				return nil, parseErr(f.Name, err)
			}
			if fv != nil {
				rec[f.Key] = fv
			}
		}
	}
	return nil, fmt.Errorf("no wire mapping for %v", b.Type)
}

// headerSetter compiles the envelope setter for one header-bound
// field.
func headerSetter(f *Field, sf *structField) envelopeFunc {
	name := f.Name
	if f.Type == TypeList {
		elemBind := f.Elem
		return func(meta ResponseMeta, structVal reflect.Value) error {
			parts := headerTexts(meta.Header, name)
			if len(parts) == 0 {
				return nil
			}
			fv := settable(sf.GetWithAlloc(structVal))
			out := reflect.MakeSlice(fv.Type(), 0, len(parts))
			for _, part := range parts {
				got, err := scalarFromText(elemBind, part)
				if err != nil {
					return parseErr(name, err)
				}
				ev := reflect.New(fv.Type().Elem()).Elem()
				if err := assignScalar(settable(ev), got); err != nil {
					return parseErr(name, err)
				}
				out = reflect.Append(out, ev)
			}
			fv.Set(out)
			return nil
		}
	}

	bind := &f.Binding
	return func(meta ResponseMeta, structVal reflect.Value) error {
		text := meta.Header.Get(name)
		if text == "" {
			return nil
		}
		got, err := scalarFromText(bind, text)
		if err != nil {
			return parseErr(name, err)
		}
		fv := settable(sf.GetWithAlloc(structVal))
		if err := assignScalar(fv, got); err != nil {
			return parseErr(name, err)
		}
		return nil
	}
}

// statusSetter compiles the envelope setter for a status-bound field.
func statusSetter(f *Field, sf *structField) envelopeFunc {
	name := f.Name
	return func(meta ResponseMeta, structVal reflect.Value) error {
		if meta.StatusCode == 0 {
			return nil
		}
		fv := settable(sf.GetWithAlloc(structVal))
		if err := assignScalar(fv, int32(meta.StatusCode)); err != nil {
			return parseErr(name, err)
		}
		return nil
	}
}

// headerIntoRecord decodes one header-bound shape field into rec.
func headerIntoRecord(rec Record, f *Field, h http.Header) error {
	if f.Type == TypeList {
		parts := headerTexts(h, f.Name)
		if len(parts) == 0 {
			return nil
		}
		vals := make([]any, 0, len(parts))
		for _, part := range parts {
			got, err := scalarFromText(f.Elem, part)
			if err != nil {
				return parseErr(f.Name, err)
			}
			vals = append(vals, got)
		}
		rec[f.Key] = vals
		return nil
	}
	text := h.Get(f.Name)
	if text == "" {
		return nil
	}
	got, err := scalarFromText(&f.Binding, text)
	if err != nil {
		return parseErr(f.Name, err)
	}
	rec[f.Key] = got
	return nil
}

// headerTexts collects the values of one header, splitting
// comma-joined lists the way they were marshalled.
func headerTexts(h http.Header, name string) []string {
	var out []string
	for _, hv := range h.Values(name) {
		for _, part := range strings.Split(hv, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// settable dereferences fv down to its pointed-to value, allocating
// nil pointers on the way, so envelope scalars can land in optional
// fields.
func settable(fv reflect.Value) reflect.Value {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	return fv
}

// next reads the following token of a value in progress, turning a
// clean end of input into io.ErrUnexpectedEOF.
func next(src tokens.Source) (tokens.Token, error) {
	tok, err := src.Next()
	if errors.Is(err, io.EOF) {
		return tokens.Token{}, io.ErrUnexpectedEOF
	}
	return tok, err
}

// replaySource hands back an already-read token before resuming the
// underlying source, so self-decoding values see their complete token
// stream.
type replaySource struct {
	tok tokens.Token
	ok  bool
	src tokens.Source
}

func (r *replaySource) Next() (tokens.Token, error) {
	if r.ok {
		r.ok = false
		return r.tok, nil
	}
	return r.src.Next()
}
