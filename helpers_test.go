package wirebind

import (
	"fmt"
	"time"

	"github.com/danderson/wirebind/tokens"
	"github.com/google/go-cmp/cmp"
)

// refTime is the timestamp most tests render and parse. Its day of
// week matters to the rfc822 cases.
var refTime = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// timeComparer compares instants, so a date parsed into a fixed GMT
// zone still matches its UTC twin.
var timeComparer = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

// Flat is a struct with one field of each scalar wire type, all bound
// to the payload.
type Flat struct {
	Label string  `wire:"label"`
	Count int32   `wire:"count"`
	Total int64   `wire:"total"`
	Ratio float64 `wire:"ratio"`
	Ready bool    `wire:"ready"`
}

// Optionals is a struct whose fields are all optional: pointers,
// slices and maps, absent when nil.
type Optionals struct {
	Note  *string           `wire:"note"`
	Limit *int32            `wire:"limit"`
	Tags  []string          `wire:"tags"`
	Attrs map[string]string `wire:"attrs"`
}

// Sparse is a struct with a list whose elements may be null without
// the list itself being absent.
type Sparse struct {
	Vals []*string `wire:"vals"`
}

// Stamps is a struct with one date field per time format.
type Stamps struct {
	ISO   time.Time `wire:"iso,iso8601"`
	Epoch time.Time `wire:"epoch,unixsec"`
	Milli time.Time `wire:"milli,unixms"`
	HTTP  time.Time `wire:"http,rfc822"`
}

// Upload is a struct with a blob field.
type Upload struct {
	Data []byte `wire:"data"`
}

// Widget is a struct with a nested struct field.
type Widget struct {
	Name string     `wire:"name"`
	Spec WidgetSpec `wire:"spec"`
}

// WidgetSpec is the nested half of Widget.
type WidgetSpec struct {
	Size  int32    `wire:"size"`
	Color string   `wire:"color"`
	Tags  []string `wire:"tags"`
}

// TreeNode is a self-referential struct.
type TreeNode struct {
	Label string      `wire:"label"`
	Kids  []*TreeNode `wire:"kids"`
}

// Custom implements Marshaler and Unmarshaler with pointer receivers.
// It encodes as an object with a single "custom" member.
type Custom struct {
	Val string
}

func (c *Custom) MarshalWire(w tokens.Writer) error {
	w.BeginObject()
	w.Name("custom")
	w.String(c.Val)
	w.EndObject()
	return nil
}

func (c *Custom) UnmarshalWire(src tokens.Source) error {
	tok, err := src.Next()
	if err != nil {
		return err
	}
	if tok.Kind != tokens.ObjectStart {
		return fmt.Errorf("got %v, want an object", tok.Kind)
	}
	for {
		tok, err := src.Next()
		if err != nil {
			return err
		}
		if tok.Kind == tokens.ObjectEnd {
			return nil
		}
		if tok.Kind != tokens.Name {
			return fmt.Errorf("got %v, want a field name", tok.Kind)
		}
		name := tok.Str
		tok, err = src.Next()
		if err != nil {
			return err
		}
		if name == "custom" && tok.Kind == tokens.String {
			c.Val = tok.Str
		}
	}
}

// HasCustom is a struct with a self-coding field held by value, so
// marshalling it needs an addressable struct.
type HasCustom struct {
	Item Custom `wire:"item"`
}

// LooseCoder implements Marshaler and Unmarshaler with value
// receivers. Marshalling works and renders a bare string; the
// Unmarshaler implementation is deliberately unusable, because
// UnmarshalWire must have a pointer receiver.
type LooseCoder struct {
	Val string
}

func (l LooseCoder) MarshalWire(w tokens.Writer) error {
	w.String(l.Val)
	return nil
}

func (l LooseCoder) UnmarshalWire(src tokens.Source) error {
	tok, err := src.Next()
	if err != nil {
		return err
	}
	l.Val = tok.Str
	return nil
}

// HasLoose is a struct with a LooseCoder field.
type HasLoose struct {
	Item LooseCoder `wire:"item"`
}

func ptr[T any](v T) *T {
	return &v
}
