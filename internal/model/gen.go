package model

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"strings"
	"unicode"
)

type generator struct {
	out     bytes.Buffer
	inits   bytes.Buffer
	pending []pendingShape
	emitted map[string]bool
}

type pendingShape struct {
	name string
	def  *ShapeDef
}

// Generate renders Go source for the catalog's operations: a typed
// input and output struct per operation, the Operation values, and an
// init that registers them. The output is a file fragment; the caller
// writes the package clause and imports. On error the fragment
// rendered so far is returned alongside, for inspection.
func Generate(cat *Catalog) (string, error) {
	if cat == nil || len(cat.Operations) == 0 {
		return "", errors.New("no operations in catalog")
	}
	ops, err := cat.Build()
	if err != nil {
		return "", err
	}
	for _, od := range cat.Operations {
		if err := checkTaggable(od.Input); err != nil {
			return "", fmt.Errorf("operation %s: input: %w", od.Name, err)
		}
		if err := checkTaggable(od.Output); err != nil {
			return "", fmt.Errorf("operation %s: output: %w", od.Name, err)
		}
	}

	g := &generator{emitted: make(map[string]bool)}
	for i, od := range cat.Operations {
		g.Op(od, ops[i])
	}
	if inits := g.inits.String(); len(inits) > 0 {
		g.f(`func init() {
%s
}`, strings.TrimSpace(inits))
	}

	ret, err := format.Source(g.out.Bytes())
	if err != nil {
		return g.out.String(), err
	}
	return string(ret), nil
}

func (g *generator) s(s string) {
	g.out.WriteString(s)
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

func (g *generator) init(msg string, args ...any) {
	fmt.Fprintf(&g.inits, msg, args...)
}

func (g *generator) Op(od *OpDef, op *Op) {
	name := publicIdentifier(od.Name)
	inType := g.shapeType(name+"Input", od.Input)
	outType := g.shapeType(name+"Output", od.Output)

	g.f(`
// %[1]sOp describes the wire form of the %[2]q operation.
var %[1]sOp = &wirebind.Operation{
Name: %[2]q,
Protocol: wirebind.%[3]s,
`, name, od.Name, protocolIdents[od.Protocol])
	if od.Method != "" {
		g.f("Method: %q,\n", od.Method)
	}
	if od.RequestURI != "" {
		g.f("RequestURI: %q,\n", od.RequestURI)
	}
	if od.Target != "" {
		g.f("Target: %q,\n", od.Target)
	}
	if od.PayloadName != "" {
		g.f("PayloadName: %q,\n", od.PayloadName)
	}
	if op.Operation.HasPayload {
		g.s("HasPayload: true,\n")
	}
	g.s("}\n\n")

	g.init("wirebind.RegisterOperationFor[%s, %s](%sOp)\n", inType, outType, name)
}

// shapeType emits a struct type for the shape and returns its name. A
// nil or empty shape becomes struct{}, which registers as "no bound
// fields".
func (g *generator) shapeType(name string, s *ShapeDef) string {
	if s == nil || len(s.Fields) == 0 {
		return "struct{}"
	}
	g.writeStruct(name, s)
	for len(g.pending) > 0 {
		p := g.pending[0]
		g.pending = g.pending[1:]
		if g.emitted[p.name] {
			continue
		}
		g.writeStruct(p.name, p.def)
	}
	return name
}

func (g *generator) writeStruct(name string, s *ShapeDef) {
	g.emitted[name] = true
	g.f("type %s struct {\n", name)
	for _, f := range s.Fields {
		g.f("%s %s %s\n", publicIdentifier(f.Key), g.fieldType(f), fieldTag(f))
	}
	g.s("}\n\n")
}

func (g *generator) fieldType(f *FieldDef) string {
	t := g.memberType(&f.MemberDef)
	// Slices, maps and blobs are already nilable; a pointer would add
	// nothing.
	if f.Optional && !strings.HasPrefix(t, "[]") && !strings.HasPrefix(t, "map[") {
		t = "*" + t
	}
	return t
}

func (g *generator) memberType(m *MemberDef) string {
	switch m.Type {
	case "string":
		return "string"
	case "int":
		return "int32"
	case "long":
		return "int64"
	case "double":
		return "float64"
	case "bool":
		return "bool"
	case "date":
		return "time.Time"
	case "blob":
		return "[]byte"
	case "list":
		return "[]" + g.memberType(m.Elem)
	case "map":
		return "map[string]" + g.memberType(m.Value)
	case "structured":
		return g.structType(m.Shape)
	}
	// Build rejected unknown types before generation began.
	panic(fmt.Errorf("unknown wire type %q", m.Type))
}

// structType returns the Go type of a nested shape: a reference to a
// named type, emitted after the enclosing struct, or an inline struct
// for anonymous shapes.
func (g *generator) structType(s *ShapeDef) string {
	if s.Name != "" {
		name := publicIdentifier(s.Name)
		if !g.emitted[name] {
			g.pending = append(g.pending, pendingShape{name, s})
		}
		return name
	}
	var b strings.Builder
	b.WriteString("struct {\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "%s %s %s\n", publicIdentifier(f.Key), g.fieldType(f), fieldTag(f))
	}
	b.WriteString("}")
	return b.String()
}

// fieldTag renders the field's wire tag, in the tag vocabulary of the
// root package.
func fieldTag(f *FieldDef) string {
	tag := f.Name
	if tag == "" {
		tag = f.Key
	}
	if f.Location != "" && f.Location != "payload" {
		tag += "," + f.Location
	}
	if f.Format != "" {
		tag += "," + f.Format
	}
	return fmt.Sprintf("`wire:%q`", tag)
}

// checkTaggable rejects shapes that struct tags cannot express. A
// date inside a list or map member has nowhere to carry its time
// format; tags put formats on fields only.
func checkTaggable(s *ShapeDef) error {
	if s == nil {
		return nil
	}
	for _, f := range s.Fields {
		if err := checkMember(&f.MemberDef, f.Key, false); err != nil {
			return err
		}
	}
	return nil
}

func checkMember(m *MemberDef, key string, inner bool) error {
	if inner && m.Type == "date" {
		return fmt.Errorf("field %s: a date inside a list or map cannot carry its time format in a struct tag", key)
	}
	if m.Elem != nil {
		if err := checkMember(m.Elem, key, true); err != nil {
			return err
		}
	}
	if m.Value != nil {
		if err := checkMember(m.Value, key, true); err != nil {
			return err
		}
	}
	if m.Shape != nil {
		return checkTaggable(m.Shape)
	}
	return nil
}

// UsesTime reports whether generated code for the catalog mentions
// time.Time, so the caller can write the right import block.
func UsesTime(cat *Catalog) bool {
	if cat == nil {
		return false
	}
	for _, od := range cat.Operations {
		if od == nil {
			continue
		}
		if shapeUsesTime(od.Input) || shapeUsesTime(od.Output) {
			return true
		}
	}
	return false
}

func shapeUsesTime(s *ShapeDef) bool {
	if s == nil {
		return false
	}
	for _, f := range s.Fields {
		if f != nil && memberUsesTime(&f.MemberDef) {
			return true
		}
	}
	return false
}

func memberUsesTime(m *MemberDef) bool {
	if m.Type == "date" {
		return true
	}
	if m.Elem != nil && memberUsesTime(m.Elem) {
		return true
	}
	if m.Value != nil && memberUsesTime(m.Value) {
		return true
	}
	return shapeUsesTime(m.Shape)
}

var protocolIdents = map[string]string{
	"rest-json": "RestJSON",
	"json-rpc":  "JSONRPC",
	"rest-xml":  "RestXML",
	"query":     "QueryForm",
}

func identifier(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	fs := strings.Split(s, "_")
	for i := range fs {
		if i == 0 {
			fst := true
			fs[i] = strings.Map(func(r rune) rune {
				if fst {
					fst = false
					return unicode.ToLower(r)
				}
				return r
			}, fs[i])
		} else {
			switch fs[i] {
			case "id":
				fs[i] = "ID"
			case "url":
				fs[i] = "URL"
			case "uri":
				fs[i] = "URI"
			default:
				fs[i] = strings.Title(fs[i])
			}
		}
	}
	return strings.Join(fs, "")
}

func publicIdentifier(s string) string {
	return strings.Title(identifier(s))
}
