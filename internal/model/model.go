// Package model loads service catalogs: JSON documents that describe
// a service's operations and the wire shapes of their inputs and
// outputs. A catalog is the data-file counterpart of wire struct
// tags, for tooling that drives operations it has no Go types for.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danderson/wirebind"
)

// A Catalog is one service model document.
type Catalog struct {
	// Service names the service. It is informational.
	Service    string   `json:"service,omitempty"`
	Operations []*OpDef `json:"operations"`
}

// An OpDef describes one operation: its protocol, the static parts of
// its HTTP mapping, and its input and output shapes.
type OpDef struct {
	Name        string    `json:"name"`
	Protocol    string    `json:"protocol"`
	Method      string    `json:"method,omitempty"`
	RequestURI  string    `json:"requestUri,omitempty"`
	Target      string    `json:"target,omitempty"`
	PayloadName string    `json:"payloadName,omitempty"`
	Input       *ShapeDef `json:"input,omitempty"`
	Output      *ShapeDef `json:"output,omitempty"`
}

// A ShapeDef lists the bound fields of one shape, in wire order.
type ShapeDef struct {
	Name   string      `json:"name,omitempty"`
	Fields []*FieldDef `json:"fields"`
}

// A FieldDef binds one field of a shape. Key is the Go-side field
// key, Name the wire name, defaulting to Key. An empty location
// means the payload. The location, type and format vocabularies are
// those of the wire struct tag.
type FieldDef struct {
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
	// Optional marks a field whose absence is meaningful. Generated
	// Go types use a pointer for it.
	Optional bool `json:"optional,omitempty"`
	MemberDef
}

// A MemberDef is the type half of a binding: the wire type, plus the
// element, value or shape description that list, map and structured
// types carry.
type MemberDef struct {
	Type   string     `json:"type"`
	Format string     `json:"format,omitempty"`
	Elem   *MemberDef `json:"elem,omitempty"`
	Value  *MemberDef `json:"value,omitempty"`
	Shape  *ShapeDef  `json:"shape,omitempty"`
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a catalog document. Unknown JSON fields are an error,
// so a misspelled binding option cannot silently change a field's
// meaning.
func Parse(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// An Op is one built catalog entry: the operation and the binding
// tables of its input and output. Either shape may be nil when the
// definition carries no bound fields on that side.
type Op struct {
	Operation *wirebind.Operation
	Input     *wirebind.Shape
	Output    *wirebind.Shape
}

// Build validates the catalog and returns its operations, built, in
// document order.
func (c *Catalog) Build() ([]*Op, error) {
	seen := make(map[string]bool)
	ret := make([]*Op, 0, len(c.Operations))
	for i, od := range c.Operations {
		if od == nil || od.Name == "" {
			return nil, fmt.Errorf("operation %d has no name", i)
		}
		if seen[od.Name] {
			return nil, fmt.Errorf("duplicate operation %s", od.Name)
		}
		seen[od.Name] = true
		op, err := od.Build()
		if err != nil {
			return nil, err
		}
		ret = append(ret, op)
	}
	return ret, nil
}

// Build translates the definition into a validated operation.
func (o *OpDef) Build() (*Op, error) {
	proto, ok := protocols[o.Protocol]
	if !ok {
		return nil, fmt.Errorf("operation %s: unknown protocol %q", o.Name, o.Protocol)
	}
	op := &wirebind.Operation{
		Name:        o.Name,
		Protocol:    proto,
		Method:      o.Method,
		RequestURI:  o.RequestURI,
		Target:      o.Target,
		PayloadName: o.PayloadName,
	}
	ret := &Op{Operation: op}
	if o.Input != nil {
		in, err := o.Input.Build()
		if err != nil {
			return nil, fmt.Errorf("operation %s: input: %w", o.Name, err)
		}
		ret.Input = in
		for _, f := range in.Fields {
			if f.Loc == wirebind.Payload {
				op.HasPayload = true
				break
			}
		}
	}
	if o.Output != nil {
		out, err := o.Output.Build()
		if err != nil {
			return nil, fmt.Errorf("operation %s: output: %w", o.Name, err)
		}
		ret.Output = out
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Build translates the definition into a validated Shape.
func (s *ShapeDef) Build() (*wirebind.Shape, error) {
	sh, err := s.shape()
	if err != nil {
		return nil, err
	}
	if err := sh.Validate(); err != nil {
		return nil, err
	}
	return sh, nil
}

// shape builds without validating. Validation runs once on the
// outermost shape and recurses from there.
func (s *ShapeDef) shape() (*wirebind.Shape, error) {
	ret := &wirebind.Shape{Name: s.Name}
	for i, f := range s.Fields {
		if f == nil || f.Key == "" {
			return nil, fmt.Errorf("shape %s: field %d has no key", s.Name, i)
		}
		b, err := f.binding()
		if err != nil {
			return nil, fmt.Errorf("shape %s: field %s: %w", s.Name, f.Key, err)
		}
		ret.Fields = append(ret.Fields, wirebind.Field{Key: f.Key, Binding: b})
	}
	return ret, nil
}

func (f *FieldDef) binding() (wirebind.Binding, error) {
	loc, ok := locations[f.Location]
	if !ok {
		return wirebind.Binding{}, fmt.Errorf("unknown location %q", f.Location)
	}
	b, err := f.MemberDef.binding()
	if err != nil {
		return wirebind.Binding{}, err
	}
	b.Loc = loc
	b.Name = f.Name
	if b.Name == "" {
		b.Name = f.Key
	}
	return b, nil
}

func (m *MemberDef) binding() (wirebind.Binding, error) {
	t, ok := wireTypes[m.Type]
	if !ok {
		return wirebind.Binding{}, fmt.Errorf("unknown wire type %q", m.Type)
	}
	b := wirebind.Binding{Type: t}
	if m.Format != "" {
		format, ok := timeFormats[m.Format]
		if !ok {
			return wirebind.Binding{}, fmt.Errorf("unknown time format %q", m.Format)
		}
		b.Format = format
	}
	if m.Elem != nil {
		elem, err := m.Elem.binding()
		if err != nil {
			return wirebind.Binding{}, fmt.Errorf("elem: %w", err)
		}
		b.Elem = &elem
	}
	if m.Value != nil {
		val, err := m.Value.binding()
		if err != nil {
			return wirebind.Binding{}, fmt.Errorf("value: %w", err)
		}
		b.Value = &val
	}
	if m.Shape != nil {
		sh, err := m.Shape.shape()
		if err != nil {
			return wirebind.Binding{}, err
		}
		b.Shape = sh
	}
	if b.Type == wirebind.TypeStructured && b.Shape == nil {
		// Self-coding Go types have no catalog equivalent.
		return wirebind.Binding{}, errors.New("structured member needs a shape")
	}
	return b, nil
}

var protocols = map[string]wirebind.Protocol{
	"rest-json": wirebind.RestJSON,
	"json-rpc":  wirebind.JSONRPC,
	"rest-xml":  wirebind.RestXML,
	"query":     wirebind.QueryForm,
}

var locations = map[string]wirebind.Location{
	"":        wirebind.Payload,
	"payload": wirebind.Payload,
	"query":   wirebind.Query,
	"header":  wirebind.Header,
	"path":    wirebind.Path,
	"status":  wirebind.StatusCode,
}

var wireTypes = map[string]wirebind.Type{
	"string":     wirebind.TypeString,
	"int":        wirebind.TypeInt,
	"long":       wirebind.TypeLong,
	"double":     wirebind.TypeDouble,
	"bool":       wirebind.TypeBool,
	"date":       wirebind.TypeDate,
	"blob":       wirebind.TypeBlob,
	"list":       wirebind.TypeList,
	"map":        wirebind.TypeMap,
	"structured": wirebind.TypeStructured,
}

var timeFormats = map[string]wirebind.TimeFormat{
	"iso8601": wirebind.ISO8601,
	"unixsec": wirebind.UnixSeconds,
	"unixms":  wirebind.UnixMillis,
	"rfc822":  wirebind.RFC822,
}
