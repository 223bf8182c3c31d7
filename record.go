package wirebind

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// A Record is a generic data object, a key-value view of one
// structured value. Records pair with a [Shape] where no Go struct
// type exists: [MarshalShape] reads field values out of a Record, and
// [UnmarshalShape] produces one.
//
// Record keys are the Go-side field keys of the shape, not the wire
// names.
type Record map[string]any

// Fill populates the exported fields of the given struct pointer from
// the record. Keys match struct fields by their json tag, or their
// name when untagged, with the usual encoding/json conversions.
//
// container must be a non-nil pointer to a struct.
func (r Record) Fill(container any) error {
	val := reflect.ValueOf(container)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return fmt.Errorf("%w: container must be a non-nil pointer to a struct", ErrInvalidArgument)
	}
	if val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: container must point to a struct", ErrInvalidArgument)
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, container)
}

// FromStruct merges obj's exported fields into the record, keyed by
// json tag or field name. Numbers arrive as json.Number, so integer
// values survive the trip intact.
func (r Record) FromStruct(obj any) error {
	if obj == nil {
		return nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		r[k] = v
	}
	return nil
}
