package wirebind

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/danderson/wirebind/tokens"
)

// Marshal renders in as an HTTP request for op.
//
// Marshal traverses in's fields recursively. If an encountered value
// implements [Marshaler], Marshal calls MarshalWire on it to produce
// its payload encoding.
//
// Otherwise, fields marshal according to their "wire" struct tag,
// `wire:"name[,location][,format]"`. The name is the field's wire
// name; an absent tag binds the field to the payload under its Go
// name, and a tag of "-" skips the field. The location is one of
// payload (the default), query, header, path or status. time.Time
// fields must declare one of the formats iso8601, unixsec, unixms or
// rfc822.
//
// string, integer, float and bool fields encode as the corresponding
// wire scalar. []byte fields encode as base64 text. Slices encode as
// lists, preserving order. Maps encode as string-keyed objects, keys
// sorted. Nested structs encode as objects; embedded structs are
// flattened into their outer struct.
//
// Pointer fields mark optional values: a nil pointer, slice or map is
// absent and emits nothing, anywhere on the request. Non-pointer
// fields always emit, zero or not.
//
// Fields bound to query, header and path render in their text form
// on the envelope. Path fields fill the {name} placeholders of the
// operation's RequestURI and are required; status fields are
// response-only and fail with a [MarshalError].
//
// in must be a struct or non-nil pointer to one; anything else
// returns [ErrInvalidArgument]. Unsupported field types (channels,
// functions, complex numbers, non-string-keyed maps) return a
// [TypeError].
func Marshal(op *Operation, in any) (*Request, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("%w: nil input", ErrInvalidArgument)
	}
	val := reflect.ValueOf(in)
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil, fmt.Errorf("%w: nil input", ErrInvalidArgument)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: input must be a struct, not %s", ErrInvalidArgument, val.Type())
	}

	encs, err := fieldEncodersFor(val.Type())
	if err != nil {
		return nil, err
	}
	a := newAssembly(op)
	for _, enc := range encs {
		if err := enc(a, val); err != nil {
			return nil, err
		}
	}
	return a.finish()
}

// MarshalShape renders rec as an HTTP request for op, using an
// explicit binding table instead of struct tags. Record entries are
// looked up by each field's Key; a missing or nil entry is absent and
// emits nothing. Value types are checked at marshal time.
func MarshalShape(op *Operation, shape *Shape, rec Record) (*Request, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidArgument)
	}

	a := newAssembly(op)
	for i := range shape.Fields {
		f := &shape.Fields[i]
		val, ok := rec[f.Key]
		if !ok || val == nil {
			continue
		}
		if err := marshalRecordField(a, f, reflect.ValueOf(val)); err != nil {
			return nil, err
		}
	}
	return a.finish()
}

// Marshaler is the interface implemented by types that render their
// own payload fields.
//
// MarshalWire must write exactly one complete value to w, normally an
// object carrying the value's fields.
type Marshaler interface {
	MarshalWire(w tokens.Writer) error
}

var marshalerType = reflect.TypeFor[Marshaler]()

// An assembly accumulates the parts of one request as field encoders
// run.
type assembly struct {
	op       *Operation
	req      *Request
	w        tokens.Writer
	began    bool
	pathVals map[string]string
}

func newAssembly(op *Operation) *assembly {
	a := &assembly{
		op:       op,
		req:      newRequest(op.method()),
		pathVals: make(map[string]string),
	}
	switch op.Protocol {
	case RestXML:
		root := op.PayloadName
		if root == "" {
			root = op.Name
		}
		a.w = tokens.NewXMLWriter(root)
	case QueryForm:
		a.w = new(tokens.FormWriter)
	default:
		a.w = new(tokens.JSONWriter)
	}
	return a
}

// payload returns the payload writer, opening the top-level object on
// first use. QueryForm bodies lead with the operation's Action pair.
func (a *assembly) payload() tokens.Writer {
	if !a.began {
		a.began = true
		a.w.BeginObject()
		if a.op.Protocol == QueryForm && a.op.Target != "" {
			a.w.Name("Action")
			a.w.String(a.op.Target)
		}
	}
	return a.w
}

// needsBody reports whether the finished request carries a payload
// body even when every payload field was absent.
func (a *assembly) needsBody() bool {
	switch a.op.Protocol {
	case JSONRPC, QueryForm:
		return true
	}
	return a.op.HasPayload
}

func (a *assembly) finish() (*Request, error) {
	path, err := substitutePath(a.op.requestURI(), a.pathVals)
	if err != nil {
		return nil, MarshalError{Reason: err}
	}
	a.req.Path = path

	if a.began || a.needsBody() {
		w := a.payload()
		w.EndObject()
		a.req.Body = w.Bytes()
		switch a.op.Protocol {
		case RestXML:
			a.req.Header.Set("Content-Type", "application/xml")
		case QueryForm:
			a.req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		default:
			a.req.Header.Set("Content-Type", "application/json")
		}
	}
	if a.op.Protocol == JSONRPC {
		a.req.Header.Set(TargetHeader, a.op.Target)
	}
	return a.req, nil
}

// routeText places one rendered scalar onto the envelope.
func (a *assembly) routeText(f *Field, text string) {
	switch f.Loc {
	case Query:
		a.req.AddQuery(f.Name, text)
	case Header:
		a.req.Header.Add(f.Name, text)
	case Path:
		a.pathVals[f.Name] = text
	}
}

// A fieldEncoderFunc renders one field of the input struct into the
// assembly. It receives the whole struct, not the field.
type fieldEncoderFunc func(a *assembly, structVal reflect.Value) error

var encoders cache[[]fieldEncoderFunc]

// fieldEncodersFor returns the compiled field encoders for struct
// type t, building and caching them on first use.
func fieldEncodersFor(t reflect.Type) (ret []fieldEncoderFunc, err error) {
	if ret, err := encoders.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	defer func(t reflect.Type) {
		if err != nil {
			encoders.SetErr(t, err)
		} else {
			encoders.Set(t, ret)
		}
	}(t)

	si, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}
	c := &encCompiler{seen: make(map[reflect.Type]*encoderFunc)}
	for i := range si.Shape.Fields {
		enc, err := c.fieldEncoder(si.Fields[i], &si.Shape.Fields[i])
		if err != nil {
			return nil, err
		}
		ret = append(ret, enc)
	}
	return ret, nil
}

// An encoderFunc renders one payload value into w.
type encoderFunc func(w tokens.Writer, v reflect.Value) error

// encCompiler compiles payload value encoders. seen carries the
// in-progress struct types, so self-referential types resolve to an
// indirect call through the finished encoder.
type encCompiler struct {
	seen map[reflect.Type]*encoderFunc
}

// fieldEncoder compiles the encoder for one top-level field: the
// absence check, then rendering at the field's location.
func (c *encCompiler) fieldEncoder(sf *structField, f *Field) (fieldEncoderFunc, error) {
	if f.Loc == StatusCode {
		name := f.Name
		return func(a *assembly, structVal reflect.Value) error {
			return marshalErr(name, "status bindings are response-only")
		}, nil
	}

	if f.Loc == Payload {
		enc, err := c.valueEncoder(&f.Binding, sf.Type)
		if err != nil {
			return nil, err
		}
		name := f.Name
		return func(a *assembly, structVal reflect.Value) error {
			fv := sf.GetWithZero(structVal)
			if absent(fv) {
				return nil
			}
			w := a.payload()
			w.Name(name)
			if err := enc(w, fv); err != nil {
				return MarshalError{Field: name, Reason: err}
			}
			return nil
		}, nil
	}

	// Envelope locations render text.
	return func(a *assembly, structVal reflect.Value) error {
		fv := sf.GetWithZero(structVal)
		if absent(fv) {
			return nil
		}
		if fv.Kind() == reflect.Pointer {
			fv = fv.Elem()
		}
		return marshalEnvelopeValue(a, f, fv)
	}, nil
}

// marshalEnvelopeValue renders a query, header or path field in text
// form. Lists fan out to one entry per element (joined with ", " for
// headers); map keys become parameter names.
func marshalEnvelopeValue(a *assembly, f *Field, v reflect.Value) error {
	switch f.Type {
	case TypeList:
		var texts []string
		for i := 0; i < v.Len(); i++ {
			ev := v.Index(i)
			if ev.Kind() == reflect.Pointer {
				if ev.IsNil() {
					continue
				}
				ev = ev.Elem()
			}
			text, err := scalarText(f.Elem, ev)
			if err != nil {
				return MarshalError{Field: f.Name, Reason: err}
			}
			texts = append(texts, text)
		}
		if f.Loc == Header {
			if len(texts) > 0 {
				a.req.Header.Add(f.Name, strings.Join(texts, ", "))
			}
			return nil
		}
		for _, t := range texts {
			a.routeText(f, t)
		}
		return nil
	case TypeMap:
		for _, k := range sortedKeys(v) {
			mv := v.MapIndex(k)
			if mv.Kind() == reflect.Pointer {
				if mv.IsNil() {
					continue
				}
				mv = mv.Elem()
			}
			text, err := scalarText(f.Value, mv)
			if err != nil {
				return MarshalError{Field: f.Name, Reason: err}
			}
			a.req.AddQuery(k.String(), text)
		}
		return nil
	}

	text, err := scalarText(&f.Binding, v)
	if err != nil {
		return MarshalError{Field: f.Name, Reason: err}
	}
	a.routeText(f, text)
	return nil
}

// valueEncoder compiles the payload encoder for one value of type t
// bound by b.
func (c *encCompiler) valueEncoder(b *Binding, t reflect.Type) (encoderFunc, error) {
	if t.Kind() == reflect.Pointer {
		elemEnc, err := c.valueEncoder(b, t.Elem())
		if err != nil {
			return nil, err
		}
		return func(w tokens.Writer, v reflect.Value) error {
			if v.IsNil() {
				w.Null()
				return nil
			}
			return elemEnc(w, v.Elem())
		}, nil
	}

	// If a value's pointer type implements Marshaler, use it when the
	// value is addressable; that needs a runtime check.
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(marshalerType) {
		return newCondAddrMarshalEncoder(t), nil
	} else if t.Implements(marshalerType) {
		return newMarshalEncoder(), nil
	}

	switch b.Type {
	case TypeString, TypeInt, TypeLong, TypeDouble, TypeBool, TypeDate, TypeBlob:
		bind := b
		return func(w tokens.Writer, v reflect.Value) error {
			return writeScalar(w, bind, v)
		}, nil
	case TypeList:
		return c.newSliceEncoder(b, t)
	case TypeMap:
		return c.newMapEncoder(b, t)
	case TypeStructured:
		return c.newStructEncoder(t)
	}
	return nil, typeErr(t, "no wire mapping for %v", b.Type)
}

func newCondAddrMarshalEncoder(t reflect.Type) encoderFunc {
	ptr := newMarshalEncoder()
	if t.Implements(marshalerType) {
		val := newMarshalEncoder()
		return func(w tokens.Writer, v reflect.Value) error {
			if v.CanAddr() {
				return ptr(w, v.Addr())
			}
			return val(w, v)
		}
	}
	return func(w tokens.Writer, v reflect.Value) error {
		if !v.CanAddr() {
			return typeErr(t, "Marshaler is only implemented on pointer receiver, and cannot take the address of given value")
		}
		return ptr(w, v.Addr())
	}
}

func newMarshalEncoder() encoderFunc {
	return func(w tokens.Writer, v reflect.Value) error {
		m := v.Interface().(Marshaler)
		return m.MarshalWire(w)
	}
}

func (c *encCompiler) newSliceEncoder(b *Binding, t reflect.Type) (encoderFunc, error) {
	elemEnc, err := c.valueEncoder(b.Elem, t.Elem())
	if err != nil {
		return nil, err
	}
	return func(w tokens.Writer, v reflect.Value) error {
		w.BeginArray()
		for i := 0; i < v.Len(); i++ {
			if err := elemEnc(w, v.Index(i)); err != nil {
				return err
			}
		}
		w.EndArray()
		return nil
	}, nil
}

func (c *encCompiler) newMapEncoder(b *Binding, t reflect.Type) (encoderFunc, error) {
	if t.Key().Kind() != reflect.String {
		return nil, typeErr(t, "map key must be a string, not %s", t.Key())
	}
	valEnc, err := c.valueEncoder(b.Value, t.Elem())
	if err != nil {
		return nil, err
	}
	return func(w tokens.Writer, v reflect.Value) error {
		w.BeginObject()
		for _, k := range sortedKeys(v) {
			w.Name(k.String())
			if err := valEnc(w, v.MapIndex(k)); err != nil {
				return err
			}
		}
		w.EndObject()
		return nil
	}, nil
}

// newStructEncoder compiles the payload object encoder for a nested
// struct: every bound field emits under its wire name, absent fields
// emit nothing.
func (c *encCompiler) newStructEncoder(t reflect.Type) (encoderFunc, error) {
	if t.Kind() != reflect.Struct {
		return nil, typeErr(t, "structured binding needs a struct, or a Marshaler")
	}
	if p := c.seen[t]; p != nil {
		return func(w tokens.Writer, v reflect.Value) error {
			return (*p)(w, v)
		}, nil
	}
	p := new(encoderFunc)
	c.seen[t] = p

	si, err := getStructInfo(t)
	if err != nil {
		return nil, err
	}
	type fieldEnc struct {
		name string
		sf   *structField
		enc  encoderFunc
	}
	var fields []fieldEnc
	for i := range si.Shape.Fields {
		f := &si.Shape.Fields[i]
		if f.Loc != Payload {
			return nil, typeErr(t, "field %s binds to the %v inside a payload", f.Key, f.Loc)
		}
		enc, err := c.valueEncoder(&f.Binding, si.Fields[i].Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fieldEnc{f.Name, si.Fields[i], enc})
	}

	fn := encoderFunc(func(w tokens.Writer, v reflect.Value) error {
		w.BeginObject()
		for _, f := range fields {
			fv := f.sf.GetWithZero(v)
			if absent(fv) {
				continue
			}
			w.Name(f.name)
			if err := f.enc(w, fv); err != nil {
				return MarshalError{Field: f.name, Reason: err}
			}
		}
		w.EndObject()
		return nil
	})
	*p = fn
	return fn, nil
}

// marshalRecordField renders one Record entry at its bound location.
func marshalRecordField(a *assembly, f *Field, v reflect.Value) error {
	if absent(v) {
		return nil
	}
	switch f.Loc {
	case StatusCode:
		return marshalErr(f.Name, "status bindings are response-only")
	case Payload:
		w := a.payload()
		w.Name(f.Name)
		if err := emitBoundValue(w, &f.Binding, v); err != nil {
			return MarshalError{Field: f.Name, Reason: err}
		}
		return nil
	}
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return marshalEnvelopeValue(a, f, v)
}

// emitBoundValue renders a dynamically typed payload value bound by
// b. It is the runtime twin of the compiled encoders, for Record
// values whose types are only known per call.
func emitBoundValue(w tokens.Writer, b *Binding, v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			w.Null()
			return nil
		}
		return emitBoundValue(w, b, v.Elem())
	}
	if v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			w.Null()
			return nil
		}
		return v.Interface().(Marshaler).MarshalWire(w)
	}
	if v.CanAddr() && reflect.PointerTo(v.Type()).Implements(marshalerType) {
		return v.Addr().Interface().(Marshaler).MarshalWire(w)
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			w.Null()
			return nil
		}
		return emitBoundValue(w, b, v.Elem())
	}

	switch b.Type {
	case TypeString, TypeInt, TypeLong, TypeDouble, TypeBool, TypeDate, TypeBlob:
		return writeScalar(w, b, v)
	case TypeList:
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return fmt.Errorf("cannot render %s as a list", v.Type())
		}
		w.BeginArray()
		for i := 0; i < v.Len(); i++ {
			if err := emitBoundValue(w, b.Elem, v.Index(i)); err != nil {
				return err
			}
		}
		w.EndArray()
		return nil
	case TypeMap:
		if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("cannot render %s as a string-keyed map", v.Type())
		}
		w.BeginObject()
		for _, k := range sortedKeys(v) {
			w.Name(k.String())
			if err := emitBoundValue(w, b.Value, v.MapIndex(k)); err != nil {
				return err
			}
		}
		w.EndObject()
		return nil
	case TypeStructured:
		return emitBoundStruct(w, b, v)
	}
	return fmt.Errorf("no wire mapping for %v", b.Type)
}

// emitBoundStruct renders a structured value: a nested Record (or any
// string-keyed map) walked against the binding's shape, or a tagged
// struct walked against its own derived shape.
func emitBoundStruct(w tokens.Writer, b *Binding, v reflect.Value) error {
	switch {
	case v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String:
		if b.Shape == nil {
			return fmt.Errorf("structured value needs a shape or a Marshaler")
		}
		w.BeginObject()
		for i := range b.Shape.Fields {
			f := &b.Shape.Fields[i]
			mv := v.MapIndex(reflect.ValueOf(f.Key))
			if !mv.IsValid() || absentDynamic(mv) {
				continue
			}
			w.Name(f.Name)
			if err := emitBoundValue(w, &f.Binding, mv); err != nil {
				return MarshalError{Field: f.Name, Reason: err}
			}
		}
		w.EndObject()
		return nil
	case v.Kind() == reflect.Struct:
		si, err := getStructInfo(v.Type())
		if err != nil {
			return err
		}
		w.BeginObject()
		for i, sf := range si.Fields {
			f := &si.Shape.Fields[i]
			if f.Loc != Payload {
				return fmt.Errorf("field %s binds to the %v inside a payload", f.Key, f.Loc)
			}
			fv := sf.GetWithZero(v)
			if absent(fv) {
				continue
			}
			w.Name(f.Name)
			if err := emitBoundValue(w, &f.Binding, fv); err != nil {
				return MarshalError{Field: f.Name, Reason: err}
			}
		}
		w.EndObject()
		return nil
	}
	return fmt.Errorf("cannot render %s as a structured value", v.Type())
}

// absent reports whether v is an unset optional value: a nil pointer,
// slice or map.
func absent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

// absentDynamic is absent for values still wrapped in an interface,
// as map lookups on Record produce.
func absentDynamic(v reflect.Value) bool {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return absent(v)
}

// sortedKeys returns v's map keys in sorted order, for deterministic
// output.
func sortedKeys(v reflect.Value) []reflect.Value {
	ks := v.MapKeys()
	slices.SortFunc(ks, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	return ks
}
