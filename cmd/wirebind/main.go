package main

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/bndr/gotabulate"
	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/wirebind"
	"github.com/danderson/wirebind/internal/model"
	"github.com/danderson/wirebind/tokens"
	"github.com/kr/pretty"
)

var globalArgs struct {
	Defs string `flag:"defs,default=model.json,Path to the service model catalog"`
}

func loadCatalog() (*model.Catalog, []*model.Op, error) {
	cat, err := model.Load(globalArgs.Defs)
	if err != nil {
		return nil, nil, err
	}
	ops, err := cat.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("building %s: %w", globalArgs.Defs, err)
	}
	return cat, ops, nil
}

func findOp(ops []*model.Op, name string) (*model.Op, error) {
	for _, o := range ops {
		if o.Operation.Name == name {
			return o, nil
		}
	}
	return nil, fmt.Errorf("no operation %q in %s", name, globalArgs.Defs)
}

func main() {
	root := &command.C{
		Name:     "wirebind",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "list",
				Usage: "list args...",
				Commands: []*command.C{
					{
						Name:  "ops",
						Usage: "list ops",
						Help:  "List the operations in the model catalog.",
						Run:   command.Adapt(runListOps),
					},
					{
						Name:  "shapes",
						Usage: "list shapes",
						Help:  "List the named shapes in the model catalog and the operations that use them.",
						Run:   command.Adapt(runListShapes),
					},
				},
			},
			{
				Name:  "describe",
				Usage: "describe operation",
				Help:  "Show an operation's HTTP mapping and binding tables.",
				Run:   command.Adapt(runDescribe),
			},
			{
				Name:  "marshal",
				Usage: "marshal operation [input.json]",
				Help: `Marshal an input document into an HTTP request.

The input is a JSON object keyed by the operation's field keys, read
from --data, the named file, or stdin. The assembled request is
printed without being sent.`,
				SetFlags: command.Flags(flax.MustBind, &marshalArgs),
				Run:      runMarshal,
			},
			{
				Name:  "parse",
				Usage: "parse operation [body]",
				Help: `Parse a response body against an operation's output shape.

The body is read from the named file or stdin. Envelope fields come
from --status and --headers. The parsed record is printed.`,
				SetFlags: command.Flags(flax.MustBind, &parseArgs),
				Run:      runParse,
			},
			{
				Name:  "call",
				Usage: "call operation [input.json]",
				Help: `Marshal an input document, send the request, and parse the response.

The request goes to the endpoint given by --base.`,
				SetFlags: command.Flags(flax.MustBind, &callArgs),
				Run:      runCall,
			},
			{
				Name:     "tokens",
				Usage:    "tokens [file]",
				Help:     "Dump the token stream of a JSON or msgpack document.",
				SetFlags: command.Flags(flax.MustBind, &tokensArgs),
				Run:      runTokens,
			},
			{
				Name:     "generate",
				Usage:    "generate",
				Help:     "Generate Go types and registrations from the model catalog",
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      command.Adapt(runGenerate),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func runListOps(env *command.Env) error {
	_, ops, err := loadCatalog()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		fmt.Println("no operations in catalog")
		return nil
	}
	slices.SortFunc(ops, func(a, b *model.Op) int {
		return cmp.Compare(a.Operation.Name, b.Operation.Name)
	})

	rows := make([][]any, 0, len(ops))
	for _, o := range ops {
		op := o.Operation
		rows = append(rows, []any{op.Name, op.Protocol.String(), op.Method, op.RequestURI, op.Target})
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"NAME", "PROTOCOL", "METHOD", "URI", "TARGET"})
	t.SetAlign("left")
	fmt.Println(t.Render("grid"))
	return nil
}

func runListShapes(env *command.Env) error {
	cat, _, err := loadCatalog()
	if err != nil {
		return err
	}

	type use struct {
		fields int
		ops    []string
	}
	shapes := map[string]*use{}
	var walkShape func(s *model.ShapeDef, op string)
	var walkMember func(m *model.MemberDef, op string)
	walkShape = func(s *model.ShapeDef, op string) {
		if s == nil {
			return
		}
		if s.Name != "" {
			u := shapes[s.Name]
			if u == nil {
				u = &use{fields: len(s.Fields)}
				shapes[s.Name] = u
			}
			if !slices.Contains(u.ops, op) {
				u.ops = append(u.ops, op)
			}
		}
		for _, f := range s.Fields {
			if f != nil {
				walkMember(&f.MemberDef, op)
			}
		}
	}
	walkMember = func(m *model.MemberDef, op string) {
		if m.Elem != nil {
			walkMember(m.Elem, op)
		}
		if m.Value != nil {
			walkMember(m.Value, op)
		}
		walkShape(m.Shape, op)
	}
	for _, od := range cat.Operations {
		walkShape(od.Input, od.Name)
		walkShape(od.Output, od.Name)
	}

	if len(shapes) == 0 {
		fmt.Println("no named shapes in catalog")
		return nil
	}
	names := slices.Sorted(maps.Keys(shapes))
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		u := shapes[n]
		rows = append(rows, []any{n, u.fields, strings.Join(u.ops, ", ")})
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"NAME", "FIELDS", "USED BY"})
	t.SetAlign("left")
	fmt.Println(t.Render("grid"))
	return nil
}

func runDescribe(env *command.Env, name string) error {
	_, ops, err := loadCatalog()
	if err != nil {
		return err
	}
	op, err := findOp(ops, name)
	if err != nil {
		return err
	}

	o := op.Operation
	fmt.Printf("%s, protocol %v\n", o.Name, o.Protocol)
	switch o.Protocol {
	case wirebind.JSONRPC:
		fmt.Printf("%s to target %s\n", cmp.Or(o.Method, "POST"), o.Target)
	case wirebind.QueryForm:
		fmt.Printf("%s %s, action %s\n", o.Method, o.RequestURI, o.Target)
	default:
		fmt.Printf("%s %s\n", o.Method, o.RequestURI)
	}
	if o.PayloadName != "" {
		fmt.Printf("payload root %s\n", o.PayloadName)
	}
	fmt.Println()
	printShapeTables("input", op.Input)
	printShapeTables("output", op.Output)
	return nil
}

var marshalArgs struct {
	Data string `flag:"data,Input document as a JSON literal"`
}

func runMarshal(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("marshal requires an operation name")
	}
	args := growTo(env.Args, 2)
	_, ops, err := loadCatalog()
	if err != nil {
		return err
	}
	op, err := findOp(ops, args[0])
	if err != nil {
		return err
	}

	req, err := marshalRequest(op, marshalArgs.Data, args[1])
	if err != nil {
		return err
	}
	printRequest(req)
	return nil
}

// marshalRequest reads an input document and marshals it against the
// operation. Operations without input accept an empty document.
func marshalRequest(op *model.Op, data, path string) (*wirebind.Request, error) {
	doc, err := readInput(data, path)
	if err != nil {
		return nil, err
	}
	rec, err := parseRecord(doc)
	if err != nil {
		return nil, err
	}
	shape := op.Input
	if shape == nil {
		shape = &wirebind.Shape{}
	}
	req, err := wirebind.MarshalShape(op.Operation, shape, rec)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", op.Operation.Name, err)
	}
	return req, nil
}

var parseArgs struct {
	Status  int    `flag:"status,default=200,HTTP status of the response"`
	Headers string `flag:"headers,Response headers, as 'Name=value' pairs separated by ';'"`
	Format  string `flag:"format,default=json,Body encoding (json or msgpack)"`
}

func runParse(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("parse requires an operation name")
	}
	args := growTo(env.Args, 2)
	_, ops, err := loadCatalog()
	if err != nil {
		return err
	}
	op, err := findOp(ops, args[0])
	if err != nil {
		return err
	}
	if op.Output == nil {
		return fmt.Errorf("operation %s has no output shape", args[0])
	}

	body, err := readInput("", args[1])
	if err != nil {
		return err
	}
	hdr, err := parseHeaders(parseArgs.Headers)
	if err != nil {
		return err
	}
	src, err := sourceFor(parseArgs.Format, bytes.NewReader(body))
	if err != nil {
		return err
	}
	meta := wirebind.ResponseMeta{StatusCode: parseArgs.Status, Header: hdr}
	rec, err := wirebind.UnmarshalShape(op.Output, meta, src)
	if err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Printf("%# v\n", pretty.Formatter(rec))
	return nil
}

var callArgs struct {
	Base string `flag:"base,default=http://localhost:8080,Service endpoint base URL"`
	Data string `flag:"data,Input document as a JSON literal"`
}

func runCall(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("call requires an operation name")
	}
	args := growTo(env.Args, 2)
	_, ops, err := loadCatalog()
	if err != nil {
		return err
	}
	op, err := findOp(ops, args[0])
	if err != nil {
		return err
	}

	req, err := marshalRequest(op, callArgs.Data, args[1])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(env.Context(), time.Minute)
	defer cancel()
	hreq, err := req.HTTPRequest(ctx, callArgs.Base)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(hreq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	fmt.Println(resp.Status)

	decodable := op.Operation.Protocol == wirebind.RestJSON || op.Operation.Protocol == wirebind.JSONRPC
	if op.Output == nil || !decodable {
		io.Copy(os.Stdout, resp.Body)
		fmt.Println()
		return nil
	}
	meta := wirebind.ResponseMeta{StatusCode: resp.StatusCode, Header: resp.Header}
	rec, err := wirebind.UnmarshalShape(op.Output, meta, tokens.NewJSONSource(resp.Body))
	if err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Printf("%# v\n", pretty.Formatter(rec))
	return nil
}

var tokensArgs struct {
	Format string `flag:"format,default=json,Input encoding (json or msgpack)"`
}

func runTokens(env *command.Env) error {
	args := growTo(env.Args, 1)
	data, err := readInput("", args[0])
	if err != nil {
		return err
	}
	src, err := sourceFor(tokensArgs.Format, bytes.NewReader(data))
	if err != nil {
		return err
	}

	depth := 0
	for {
		tok, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch tok.Kind {
		case tokens.ObjectEnd, tokens.ArrayEnd:
			depth--
		}
		fmt.Printf("%s%v\n", strings.Repeat("  ", depth), tok)
		switch tok.Kind {
		case tokens.ObjectStart, tokens.ArrayStart:
			depth++
		}
	}
}

var generateArgs struct {
	PackageName string `flag:"package,default=client,Package name to output"`
	OutFile     string `flag:"out,default=gen.go,Output file path"`
}

func runGenerate(env *command.Env) error {
	cat, err := model.Load(globalArgs.Defs)
	if err != nil {
		return err
	}
	code, genErr := model.Generate(cat)

	f, err := os.Create(generateArgs.OutFile)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", generateArgs.OutFile, err)
	}
	defer f.Close()
	hdr := `
package %s

import (
  "github.com/danderson/wirebind"
)
`
	if model.UsesTime(cat) {
		hdr = `
package %s

import (
  "time"

  "github.com/danderson/wirebind"
)
`
	}
	fmt.Fprintf(f, hdr, generateArgs.PackageName)
	if _, err := io.WriteString(f, code); err != nil {
		return fmt.Errorf("writing generated code: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing generated file: %w", err)
	}
	if genErr != nil {
		return fmt.Errorf("generating from %s: %w", globalArgs.Defs, genErr)
	}
	fmt.Printf("Wrote generated package to %s\n", generateArgs.OutFile)
	return nil
}
