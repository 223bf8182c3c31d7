package tokens

import (
	"encoding/json"
	"io"
)

// A JSONSource reads a JSON document and yields its tokens.
//
// Numbers are delivered as their literal text, so integer values
// larger than a float64 mantissa survive intact. Object keys are
// delivered as Name tokens, string values as String tokens.
type JSONSource struct {
	dec   *json.Decoder
	stack []jsonFrame
}

type jsonFrame struct {
	object  bool
	keyNext bool
}

// NewJSONSource returns a JSONSource reading from r.
func NewJSONSource(r io.Reader) *JSONSource {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &JSONSource{dec: dec}
}

// Next implements Source. The underlying decoder reports truncated
// input as io.ErrUnexpectedEOF, and a clean end of input as io.EOF.
func (s *JSONSource) Next() (Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return Token{}, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, jsonFrame{object: true, keyNext: true})
			return Token{Kind: ObjectStart}, nil
		case '}':
			s.pop()
			return Token{Kind: ObjectEnd}, nil
		case '[':
			s.stack = append(s.stack, jsonFrame{})
			return Token{Kind: ArrayStart}, nil
		default: // ']', the only other delimiter
			s.pop()
			return Token{Kind: ArrayEnd}, nil
		}
	case string:
		if f := s.top(); f != nil && f.object && f.keyNext {
			f.keyNext = false
			return Token{Kind: Name, Str: v}, nil
		}
		s.endValue()
		return Token{Kind: String, Str: v}, nil
	case json.Number:
		s.endValue()
		return Token{Kind: Number, Str: v.String()}, nil
	case bool:
		s.endValue()
		return Token{Kind: Bool, Bool: v}, nil
	default: // nil, JSON null
		s.endValue()
		return Token{Kind: Null}, nil
	}
}

func (s *JSONSource) top() *jsonFrame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

func (s *JSONSource) pop() {
	s.stack = s.stack[:len(s.stack)-1]
	s.endValue()
}

// endValue records that the current value is complete, so the next
// string in an enclosing object is a key again.
func (s *JSONSource) endValue() {
	if f := s.top(); f != nil && f.object {
		f.keyNext = true
	}
}

// A JSONWriter renders a token stream as a compact JSON document.
//
// The zero value is ready to use.
type JSONWriter struct {
	buf       []byte
	stack     []byte // '{' or '[' per open container
	comma     []bool // per open container, comma needed before next element
	afterName bool
}

// BeginObject implements Writer.
func (w *JSONWriter) BeginObject() {
	w.beginValue()
	w.buf = append(w.buf, '{')
	w.stack = append(w.stack, '{')
	w.comma = append(w.comma, false)
}

// EndObject implements Writer.
func (w *JSONWriter) EndObject() {
	w.close('{')
	w.buf = append(w.buf, '}')
}

// BeginArray implements Writer.
func (w *JSONWriter) BeginArray() {
	w.beginValue()
	w.buf = append(w.buf, '[')
	w.stack = append(w.stack, '[')
	w.comma = append(w.comma, false)
}

// EndArray implements Writer.
func (w *JSONWriter) EndArray() {
	w.close('[')
	w.buf = append(w.buf, ']')
}

// Name implements Writer.
func (w *JSONWriter) Name(s string) {
	if w.afterName {
		panic("tokens: Name after Name")
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1] != '{' {
		panic("tokens: Name outside object")
	}
	if w.comma[len(w.comma)-1] {
		w.buf = append(w.buf, ',')
	}
	w.comma[len(w.comma)-1] = true
	w.buf = appendJSONString(w.buf, s)
	w.buf = append(w.buf, ':')
	w.afterName = true
}

// String implements Writer.
func (w *JSONWriter) String(s string) {
	w.beginValue()
	w.buf = appendJSONString(w.buf, s)
}

// Number implements Writer.
func (w *JSONWriter) Number(lit string) {
	w.beginValue()
	w.buf = append(w.buf, lit...)
}

// Bool implements Writer.
func (w *JSONWriter) Bool(b bool) {
	w.beginValue()
	if b {
		w.buf = append(w.buf, "true"...)
	} else {
		w.buf = append(w.buf, "false"...)
	}
}

// Null implements Writer.
func (w *JSONWriter) Null() {
	w.beginValue()
	w.buf = append(w.buf, "null"...)
}

// Bytes implements Writer.
func (w *JSONWriter) Bytes() []byte {
	if len(w.stack) != 0 {
		panic("tokens: Bytes with unclosed containers")
	}
	return w.buf
}

func (w *JSONWriter) beginValue() {
	if w.afterName {
		w.afterName = false
		return
	}
	if len(w.stack) == 0 {
		return
	}
	if w.stack[len(w.stack)-1] == '{' {
		panic("tokens: value in object without Name")
	}
	if w.comma[len(w.comma)-1] {
		w.buf = append(w.buf, ',')
	}
	w.comma[len(w.comma)-1] = true
}

func (w *JSONWriter) close(open byte) {
	if w.afterName {
		panic("tokens: container closed after dangling Name")
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1] != open {
		panic("tokens: mismatched container close")
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.comma = w.comma[:len(w.comma)-1]
}

const hexDigits = "0123456789abcdef"

// appendJSONString appends s as a quoted JSON string. Only the
// characters JSON cannot carry raw are escaped; valid UTF-8 passes
// through untouched.
func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		buf = append(buf, s[start:i]...)
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		start = i + 1
	}
	buf = append(buf, s[start:]...)
	return append(buf, '"')
}
