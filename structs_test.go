package wirebind

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danderson/wirebind/tokens"
	"github.com/google/go-cmp/cmp"
)

func TestShapeOf(t *testing.T) {
	got, err := ShapeOf(Flat{})
	if err != nil {
		t.Fatalf("ShapeOf(Flat) failed: %v", err)
	}
	want := &Shape{
		Name: "Flat",
		Fields: []Field{
			{Key: "Label", Binding: Binding{Name: "label", Type: TypeString}},
			{Key: "Count", Binding: Binding{Name: "count", Type: TypeInt}},
			{Key: "Total", Binding: Binding{Name: "total", Type: TypeLong}},
			{Key: "Ratio", Binding: Binding{Name: "ratio", Type: TypeDouble}},
			{Key: "Ready", Binding: Binding{Name: "ready", Type: TypeBool}},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("ShapeOf(Flat) wrong shape (-got+want):\n%s", diff)
	}
}

func TestShapeOfTags(t *testing.T) {
	type renames struct {
		Plain   string
		Named   string `wire:"named"`
		LocOnly string `wire:",header"`
		Skipped string `wire:"-"`
		hidden  string
	}

	got, err := ShapeOf(renames{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	want := &Shape{
		Name: "renames",
		Fields: []Field{
			{Key: "Plain", Binding: Binding{Name: "Plain", Type: TypeString}},
			{Key: "Named", Binding: Binding{Name: "named", Type: TypeString}},
			{Key: "LocOnly", Binding: Binding{Loc: Header, Name: "LocOnly", Type: TypeString}},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("wrong shape (-got+want):\n%s", diff)
	}
}

func TestShapeOfContainers(t *testing.T) {
	got, err := ShapeOf(&Optionals{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	want := &Shape{
		Name: "Optionals",
		Fields: []Field{
			{Key: "Note", Binding: Binding{Name: "note", Type: TypeString}},
			{Key: "Limit", Binding: Binding{Name: "limit", Type: TypeInt}},
			{Key: "Tags", Binding: Binding{Name: "tags", Type: TypeList, Elem: &Binding{Type: TypeString}}},
			{Key: "Attrs", Binding: Binding{Name: "attrs", Type: TypeMap, Value: &Binding{Type: TypeString}}},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("wrong shape (-got+want):\n%s", diff)
	}

	got, err = ShapeOf(Upload{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	if g := got.Fields[0].Type; g != TypeBlob {
		t.Errorf("[]byte binds as %v, want blob", g)
	}

	got, err = ShapeOf(Stamps{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	formats := []TimeFormat{ISO8601, UnixSeconds, UnixMillis, RFC822}
	for i, f := range got.Fields {
		if f.Type != TypeDate || f.Format != formats[i] {
			t.Errorf("field %s = %v/%v, want date/%v", f.Key, f.Type, f.Format, formats[i])
		}
	}

	// Self-coding types own their wire schema; the binding carries no
	// shape.
	got, err = ShapeOf(HasCustom{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	if f := got.Fields[0]; f.Type != TypeStructured || f.Shape != nil {
		t.Errorf("self-coding field = %v with shape %v, want structured with nil shape", f.Type, f.Shape)
	}
}

func TestShapeOfEmbedded(t *testing.T) {
	type Page struct {
		Limit  int32  `wire:"limit,query"`
		Cursor string `wire:"cursor,query"`
	}
	type listIn struct {
		Page
		Topic string `wire:"topic,query"`
	}
	got, err := ShapeOf(listIn{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	want := &Shape{
		Name: "listIn",
		Fields: []Field{
			{Key: "Limit", Binding: Binding{Loc: Query, Name: "limit", Type: TypeInt}},
			{Key: "Cursor", Binding: Binding{Loc: Query, Name: "cursor", Type: TypeString}},
			{Key: "Topic", Binding: Binding{Loc: Query, Name: "topic", Type: TypeString}},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("wrong shape (-got+want):\n%s", diff)
	}
}

func TestShapeOfSelfReferential(t *testing.T) {
	got, err := ShapeOf(TreeNode{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	kids := got.Fields[1]
	if kids.Type != TypeList || kids.Elem.Type != TypeStructured {
		t.Fatalf("Kids binds as %v, want a list of structured", kids.Type)
	}
	if kids.Elem.Shape != got {
		t.Errorf("self-referential shape does not point back to itself")
	}
}

func TestShapeOfCaching(t *testing.T) {
	a, err := ShapeOf(Flat{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	b, err := ShapeOf(&Flat{})
	if err != nil {
		t.Fatalf("ShapeOf failed: %v", err)
	}
	if a != b {
		t.Error("ShapeOf returned distinct shapes for the same type")
	}
}

func TestShapeOfErrors(t *testing.T) {
	type inner struct {
		Q string `wire:"q,query"`
	}
	tests := []struct {
		name string
		v    any
	}{
		{"nil", nil},
		{"not a struct", 42},
		{"date without format", struct {
			When time.Time `wire:"when"`
		}{}},
		{"format on non-date", struct {
			S string `wire:"s,iso8601"`
		}{}},
		{"conflicting formats", struct {
			When time.Time `wire:"when,iso8601,unixsec"`
		}{}},
		{"unknown tag option", struct {
			S string `wire:"s,frobnicate"`
		}{}},
		{"double pointer", struct {
			P **string `wire:"p"`
		}{}},
		{"non-string map key", struct {
			M map[int]string `wire:"m"`
		}{}},
		{"channel field", struct {
			C chan int `wire:"c"`
		}{}},
		{"envelope binding inside payload", struct {
			Spec inner `wire:"spec"`
		}{}},
		{"duplicate wire names", struct {
			A string `wire:"x"`
			B string `wire:"x"`
		}{}},
		{"status on long", struct {
			Code int64 `wire:"code,status"`
		}{}},
		{"structured in query", struct {
			S WidgetSpec `wire:"s,query"`
		}{}},
		{"map in header", struct {
			M map[string]string `wire:"m,header"`
		}{}},
		{"list in path", struct {
			L []string `wire:"l,path"`
		}{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shape, err := ShapeOf(tc.v)
			if err == nil {
				t.Fatalf("ShapeOf(%T) succeeded, want error\n  shape: %+v", tc.v, shape)
			}
			if testing.Verbose() {
				t.Logf("ShapeOf(%T) = err: %v", tc.v, err)
			}
			if tc.v == nil {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("got %v, want ErrInvalidArgument", err)
				}
				return
			}
			var te TypeError
			if !errors.As(err, &te) {
				t.Errorf("error %T is not a TypeError: %v", err, err)
			}
		})
	}
}

// Audit is an embedded half of noted, reached through a pointer that
// may be nil.
type Audit struct {
	By string `wire:"by"`
}

type noted struct {
	*Audit
	Name string `wire:"name"`
}

func TestEmbeddedPointer(t *testing.T) {
	op := &Operation{Name: "Note", Protocol: RestJSON, Method: "POST", RequestURI: "/notes", HasPayload: true}

	// Marshalling reads zero values through the nil embed.
	req, err := Marshal(op, &noted{Name: "n"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if want := `{"by":"","name":"n"}`; string(req.Body) != want {
		t.Errorf("body = %s, want %s", req.Body, want)
	}

	// Unmarshalling allocates the embed on first write.
	var out noted
	err = Unmarshal(&out, ResponseMeta{}, tokens.NewJSONSource(strings.NewReader(`{"by":"amy","name":"m"}`)))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Audit == nil || out.Audit.By != "amy" || out.Name != "m" {
		t.Errorf("got %+v with audit %+v, want By=amy Name=m", out, out.Audit)
	}
}
