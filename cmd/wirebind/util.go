package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/bndr/gotabulate"
	"github.com/danderson/wirebind"
	"github.com/danderson/wirebind/tokens"
)

func growTo(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}

// readInput returns the document to process: the --data literal when
// set, the named file when given, stdin otherwise. "-" also means
// stdin.
func readInput(data, path string) ([]byte, error) {
	if data != "" {
		return []byte(data), nil
	}
	if path != "" && path != "-" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

// parseRecord decodes a JSON object into a Record. Numbers stay
// json.Number, so 64-bit integers survive. Empty input is an empty
// record.
func parseRecord(data []byte) (wirebind.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return wirebind.Record{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec wirebind.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("parsing input document: %w", err)
	}
	return rec, nil
}

// parseHeaders parses "Name=value" pairs separated by semicolons.
// Values may contain commas, which header dates need.
func parseHeaders(s string) (http.Header, error) {
	ret := http.Header{}
	if s == "" {
		return ret, nil
	}
	for _, kv := range strings.Split(s, ";") {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("malformed header %q, want Name=value", kv)
		}
		ret.Add(strings.TrimSpace(name), strings.TrimSpace(val))
	}
	return ret, nil
}

// sourceFor returns a token source for the named encoding.
func sourceFor(format string, r io.Reader) (tokens.Source, error) {
	switch format {
	case "json":
		return tokens.NewJSONSource(r), nil
	case "msgpack":
		return tokens.NewMsgpackSource(r), nil
	}
	return nil, fmt.Errorf("unknown format %q (want json or msgpack)", format)
}

func printRequest(req *wirebind.Request) {
	fmt.Printf("%s %s\n", req.Method, req.URL(""))
	for _, k := range slices.Sorted(maps.Keys(req.Header)) {
		for _, v := range req.Header[k] {
			fmt.Printf("%s: %s\n", k, v)
		}
	}
	if len(req.Body) > 0 {
		fmt.Printf("\n%s\n", req.Body)
	}
}

// printShapeTables renders the shape as a table, followed by one
// table per nested structured shape, in field order.
func printShapeTables(title string, s *wirebind.Shape) {
	if s == nil || len(s.Fields) == 0 {
		fmt.Printf("%s: no bound fields\n\n", title)
		return
	}
	type entry struct {
		title string
		shape *wirebind.Shape
	}
	queue := []entry{{title, s}}
	seen := map[*wirebind.Shape]bool{s: true}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		rows := make([][]any, 0, len(e.shape.Fields))
		for i := range e.shape.Fields {
			f := &e.shape.Fields[i]
			rows = append(rows, []any{f.Key, f.Name, f.Loc.String(), typeString(&f.Binding)})
			if sub := nestedShape(&f.Binding); sub != nil && !seen[sub] {
				seen[sub] = true
				queue = append(queue, entry{e.title + "." + f.Key, sub})
			}
		}
		t := gotabulate.Create(rows)
		t.SetHeaders([]string{"KEY", "WIRE NAME", "LOCATION", "TYPE"})
		t.SetAlign("left")
		t.SetWrapStrings(true)
		t.SetMaxCellSize(85)
		fmt.Printf("%s:\n%s\n", e.title, t.Render("grid"))
	}
}

// nestedShape digs out the structured shape under b, looking through
// list and map wrappers.
func nestedShape(b *wirebind.Binding) *wirebind.Shape {
	switch b.Type {
	case wirebind.TypeStructured:
		return b.Shape
	case wirebind.TypeList:
		return nestedShape(b.Elem)
	case wirebind.TypeMap:
		return nestedShape(b.Value)
	}
	return nil
}

// typeString renders a binding's type, compound shapes included.
func typeString(b *wirebind.Binding) string {
	switch b.Type {
	case wirebind.TypeDate:
		return fmt.Sprintf("date(%v)", b.Format)
	case wirebind.TypeList:
		return fmt.Sprintf("list<%s>", typeString(b.Elem))
	case wirebind.TypeMap:
		return fmt.Sprintf("map<%s>", typeString(b.Value))
	case wirebind.TypeStructured:
		if b.Shape != nil && b.Shape.Name != "" {
			return b.Shape.Name
		}
		return "structured"
	}
	return b.Type.String()
}
