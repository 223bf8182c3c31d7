package wirebind

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

var (
	opsMu     sync.Mutex
	opsByName = map[string]*RegisteredOperation{}
)

// A RegisteredOperation is one entry of the package's operation
// registry: an operation plus the shapes of its input and output.
// Either shape may be nil when the operation carries nothing in that
// direction.
type RegisteredOperation struct {
	Op  *Operation
	In  *Shape
	Out *Shape
}

// RegisterOperation records op in the package registry under its
// name. Tooling built on the registry, like the wirebind CLI, can
// then enumerate and describe it.
//
// RegisterOperation panics if the operation or either shape is
// invalid, or if the name is already registered. Registration happens
// at startup; lookups afterward are read-only.
func RegisterOperation(op *Operation, in, out *Shape) {
	if op == nil || op.Name == "" {
		panic(fmt.Errorf("cannot register an unnamed operation"))
	}
	if err := op.Validate(); err != nil {
		panic(fmt.Errorf("cannot register operation %s: %w", op.Name, err))
	}
	if in != nil {
		if err := in.Validate(); err != nil {
			panic(fmt.Errorf("cannot register operation %s: input: %w", op.Name, err))
		}
	}
	if out != nil {
		if err := out.Validate(); err != nil {
			panic(fmt.Errorf("cannot register operation %s: output: %w", op.Name, err))
		}
	}
	opsMu.Lock()
	defer opsMu.Unlock()
	if prev := opsByName[op.Name]; prev != nil {
		panic(fmt.Errorf("duplicate operation registration for %s", op.Name))
	}
	opsByName[op.Name] = &RegisteredOperation{Op: op, In: in, Out: out}
}

// RegisterOperationFor records op with input and output shapes
// derived from the struct tags of In and Out. Use struct{} for a
// direction the operation doesn't carry.
func RegisterOperationFor[In, Out any](op *Operation) {
	RegisterOperation(op, shapeForRegistration[In](op), shapeForRegistration[Out](op))
}

func shapeForRegistration[T any](op *Operation) *Shape {
	t := reflect.TypeFor[T]()
	if t == reflect.TypeFor[struct{}]() {
		return nil
	}
	si, err := getStructInfo(t)
	if err != nil {
		name := "?"
		if op != nil {
			name = op.Name
		}
		panic(fmt.Errorf("cannot use %s with operation %s: %w", t, name, err))
	}
	return si.Shape
}

// LookupOperation returns the registered operation with the given
// name, or nil.
func LookupOperation(name string) *RegisteredOperation {
	opsMu.Lock()
	defer opsMu.Unlock()
	return opsByName[name]
}

// Operations returns a snapshot of the registry, sorted by operation
// name.
func Operations() []*RegisteredOperation {
	opsMu.Lock()
	defer opsMu.Unlock()
	ret := make([]*RegisteredOperation, 0, len(opsByName))
	for _, ro := range opsByName {
		ret = append(ret, ro)
	}
	slices.SortFunc(ret, func(a, b *RegisteredOperation) int {
		return strings.Compare(a.Op.Name, b.Op.Name)
	})
	return ret
}
