package wirebind

import "testing"

func TestShapeValidate(t *testing.T) {
	scalar := func(key, name string, typ Type) Field {
		return Field{Key: key, Binding: Binding{Name: name, Type: typ}}
	}
	at := func(loc Location, key, name string, typ Type) Field {
		return Field{Key: key, Binding: Binding{Loc: loc, Name: name, Type: typ}}
	}

	node := &Shape{Name: "node"}
	node.Fields = []Field{
		scalar("label", "label", TypeString),
		{Key: "kids", Binding: Binding{Name: "kids", Type: TypeList,
			Elem: &Binding{Type: TypeStructured, Shape: node}}},
	}

	tests := []struct {
		name  string
		shape *Shape
		ok    bool
	}{
		{"nil shape", nil, false},
		{"empty", &Shape{Name: "e"}, true},
		{"mixed locations", &Shape{Name: "m", Fields: []Field{
			at(Path, "id", "id", TypeString),
			at(Query, "verbose", "verbose", TypeBool),
			at(Header, "token", "X-Token", TypeString),
			at(StatusCode, "code", "code", TypeInt),
			scalar("label", "label", TypeString),
		}}, true},
		{"self-referential", node, true},

		{"no key", &Shape{Name: "k", Fields: []Field{
			{Binding: Binding{Name: "x", Type: TypeString}},
		}}, false},
		{"no wire name", &Shape{Name: "n", Fields: []Field{
			{Key: "x", Binding: Binding{Type: TypeString}},
		}}, false},
		{"no wire type", &Shape{Name: "t", Fields: []Field{
			{Key: "x", Binding: Binding{Name: "x"}},
		}}, false},
		{"date without format", &Shape{Name: "d", Fields: []Field{
			{Key: "when", Binding: Binding{Name: "when", Type: TypeDate}},
		}}, false},
		{"list element date without format", &Shape{Name: "ld", Fields: []Field{
			{Key: "whens", Binding: Binding{Name: "whens", Type: TypeList,
				Elem: &Binding{Type: TypeDate}}},
		}}, false},
		{"list element date with format", &Shape{Name: "ldf", Fields: []Field{
			{Key: "whens", Binding: Binding{Name: "whens", Type: TypeList,
				Elem: &Binding{Type: TypeDate, Format: ISO8601}}},
		}}, true},
		{"list without element", &Shape{Name: "l", Fields: []Field{
			{Key: "xs", Binding: Binding{Name: "xs", Type: TypeList}},
		}}, false},
		{"map without value", &Shape{Name: "mv", Fields: []Field{
			{Key: "m", Binding: Binding{Name: "m", Type: TypeMap}},
		}}, false},

		{"duplicate payload names", &Shape{Name: "dup", Fields: []Field{
			scalar("a", "x", TypeString),
			scalar("b", "x", TypeString),
		}}, false},
		{"payload and query may share a name", &Shape{Name: "share", Fields: []Field{
			scalar("a", "x", TypeString),
			at(Query, "b", "x", TypeString),
		}}, true},

		{"query list of scalars", &Shape{Name: "ql", Fields: []Field{
			{Key: "xs", Binding: Binding{Loc: Query, Name: "xs", Type: TypeList,
				Elem: &Binding{Type: TypeString}}},
		}}, true},
		{"query map of scalars", &Shape{Name: "qm", Fields: []Field{
			{Key: "m", Binding: Binding{Loc: Query, Name: "m", Type: TypeMap,
				Value: &Binding{Type: TypeInt}}},
		}}, true},
		{"query structured", &Shape{Name: "qs", Fields: []Field{
			{Key: "s", Binding: Binding{Loc: Query, Name: "s", Type: TypeStructured,
				Shape: &Shape{Name: "inner"}}},
		}}, false},
		{"query list of structured", &Shape{Name: "qls", Fields: []Field{
			{Key: "xs", Binding: Binding{Loc: Query, Name: "xs", Type: TypeList,
				Elem: &Binding{Type: TypeStructured, Shape: &Shape{Name: "inner"}}}},
		}}, false},
		{"header list of scalars", &Shape{Name: "hl", Fields: []Field{
			{Key: "xs", Binding: Binding{Loc: Header, Name: "X-Xs", Type: TypeList,
				Elem: &Binding{Type: TypeInt}}},
		}}, true},
		{"header map", &Shape{Name: "hm", Fields: []Field{
			{Key: "m", Binding: Binding{Loc: Header, Name: "X-M", Type: TypeMap,
				Value: &Binding{Type: TypeString}}},
		}}, false},
		{"path list", &Shape{Name: "pl", Fields: []Field{
			{Key: "xs", Binding: Binding{Loc: Path, Name: "xs", Type: TypeList,
				Elem: &Binding{Type: TypeString}}},
		}}, false},
		{"status non-int", &Shape{Name: "sni", Fields: []Field{
			at(StatusCode, "code", "code", TypeLong),
		}}, false},

		{"nested envelope binding", &Shape{Name: "ne", Fields: []Field{
			{Key: "spec", Binding: Binding{Name: "spec", Type: TypeStructured,
				Shape: &Shape{Name: "inner", Fields: []Field{
					at(Query, "q", "q", TypeString),
				}}}},
		}}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.shape.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Error("Validate succeeded, want error")
				} else if testing.Verbose() {
					t.Logf("Validate = err: %v", err)
				}
			}
		})
	}
}

func TestOperationValidate(t *testing.T) {
	tests := []struct {
		name string
		op   *Operation
		ok   bool
	}{
		{"nil", nil, false},
		{"zero", &Operation{}, false},
		{"rest-json", &Operation{Name: "A", Protocol: RestJSON, Method: "GET", RequestURI: "/a"}, true},
		{"rest-json no method", &Operation{Name: "A", Protocol: RestJSON, RequestURI: "/a"}, false},
		{"rest-json no uri", &Operation{Name: "A", Protocol: RestJSON, Method: "GET"}, false},
		{"json-rpc", &Operation{Name: "A", Protocol: JSONRPC, Target: "Svc.A"}, true},
		{"json-rpc no target", &Operation{Name: "A", Protocol: JSONRPC}, false},
		{"rest-xml with payload", &Operation{Name: "A", Protocol: RestXML, Method: "PUT", RequestURI: "/a", PayloadName: "A", HasPayload: true}, true},
		{"rest-xml payload without root", &Operation{Name: "A", Protocol: RestXML, Method: "PUT", RequestURI: "/a", HasPayload: true}, false},
		{"rest-xml bodyless without root", &Operation{Name: "A", Protocol: RestXML, Method: "DELETE", RequestURI: "/a"}, true},
		{"query form", &Operation{Name: "A", Protocol: QueryForm, Method: "POST", RequestURI: "/", Target: "A"}, true},
		{"query form no method", &Operation{Name: "A", Protocol: QueryForm, Target: "A"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Error("Validate succeeded, want error")
				} else if testing.Verbose() {
					t.Logf("Validate = err: %v", err)
				}
			}
		})
	}
}
