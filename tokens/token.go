package tokens

import (
	"errors"
	"fmt"
	"io"
)

// A Kind identifies the structural or scalar meaning of a [Token].
type Kind int

const (
	// Invalid is the kind of the zero Token. No Source returns it.
	Invalid Kind = iota
	// ObjectStart and ObjectEnd delimit an object: a sequence of
	// (Name, value) pairs.
	ObjectStart
	ObjectEnd
	// ArrayStart and ArrayEnd delimit an array: a sequence of values.
	ArrayStart
	ArrayEnd
	// Name is the field name of the value that follows it. Names only
	// appear inside objects.
	Name
	// String is a text scalar. Binary values travel as base64 text.
	String
	// Number is a numeric scalar. The token carries the literal text
	// of the number, so that 64-bit integers survive undamaged.
	Number
	// Bool is a true/false scalar.
	Bool
	// Null is an explicit null scalar.
	Null
)

var kindNames = map[Kind]string{
	Invalid:     "invalid",
	ObjectStart: "object start",
	ObjectEnd:   "object end",
	ArrayStart:  "array start",
	ArrayEnd:    "array end",
	Name:        "name",
	String:      "string",
	Number:      "number",
	Bool:        "bool",
	Null:        "null",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A Token is one event of a token stream.
type Token struct {
	Kind Kind
	// Str is the text of Name and String tokens, and the literal text
	// of Number tokens.
	Str string
	// Bool is the value of Bool tokens.
	Bool bool
}

// IsScalar reports whether the token is a complete value by itself.
func (t Token) IsScalar() bool {
	switch t.Kind {
	case String, Number, Bool, Null:
		return true
	}
	return false
}

func (t Token) String() string {
	switch t.Kind {
	case Name:
		return fmt.Sprintf("name %q", t.Str)
	case String:
		return fmt.Sprintf("string %q", t.Str)
	case Number:
		return fmt.Sprintf("number %s", t.Str)
	case Bool:
		return fmt.Sprintf("bool %v", t.Bool)
	default:
		return t.Kind.String()
	}
}

// A Source is a forward-only stream of tokens describing one encoded
// document. Next returns [io.EOF] after the document's final token.
//
// Sources are not restartable and must not be shared between
// concurrent readers.
type Source interface {
	Next() (Token, error)
}

// Skip consumes one complete value from src and discards it: a single
// scalar, or a whole object or array including everything nested
// inside it.
func Skip(src Source) error {
	depth := 0
	for {
		tok, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch tok.Kind {
		case ObjectStart, ArrayStart:
			depth++
		case ObjectEnd, ArrayEnd:
			depth--
			if depth < 0 {
				return fmt.Errorf("unexpected %v while skipping value", tok.Kind)
			}
		case Name:
			if depth == 0 {
				return fmt.Errorf("unexpected field name %q while skipping value", tok.Str)
			}
		case String, Number, Bool, Null:
			// A scalar is complete by itself.
		default:
			return fmt.Errorf("unexpected %v while skipping value", tok.Kind)
		}
		if depth == 0 && tok.Kind != Name {
			return nil
		}
	}
}
