package tokens

import "strconv"

// A FormWriter renders a token stream as form-encoded key=value
// pairs, the body format of query-style APIs. Nesting flattens into
// dotted names: object members append their name as a path segment,
// and array entries append a 1-based index, so
//
//	Name("filters"), BeginArray, BeginObject, Name("key"), String("x"), ...
//
// renders as filters.1.key=x. Pairs keep the order in which they
// were written.
type FormWriter struct {
	pairs   [][2]string
	stack   []formFrame
	pending string
	hasName bool
}

type formFrame struct {
	segment string
	array   bool
	index   int // entries emitted so far, array scopes only
}

// BeginObject implements Writer.
func (w *FormWriter) BeginObject() {
	w.stack = append(w.stack, formFrame{segment: w.takeSegment()})
}

// EndObject implements Writer.
func (w *FormWriter) EndObject() { w.pop(false) }

// BeginArray implements Writer.
func (w *FormWriter) BeginArray() {
	w.stack = append(w.stack, formFrame{segment: w.takeSegment(), array: true})
}

// EndArray implements Writer.
func (w *FormWriter) EndArray() { w.pop(true) }

// Name implements Writer.
func (w *FormWriter) Name(s string) {
	if w.hasName {
		panic("tokens: Name after Name")
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].array {
		panic("tokens: Name outside object")
	}
	w.pending, w.hasName = s, true
}

// String implements Writer.
func (w *FormWriter) String(s string) { w.scalar(s) }

// Number implements Writer.
func (w *FormWriter) Number(lit string) { w.scalar(lit) }

// Bool implements Writer.
func (w *FormWriter) Bool(b bool) {
	if b {
		w.scalar("true")
	} else {
		w.scalar("false")
	}
}

// Null implements Writer. Form encodings have no null literal;
// nothing is emitted.
func (w *FormWriter) Null() { w.takeSegment() }

// Bytes implements Writer. Keys and values are percent-encoded, with
// space as %20.
func (w *FormWriter) Bytes() []byte {
	if len(w.stack) != 0 {
		panic("tokens: Bytes with unclosed containers")
	}
	var buf []byte
	for i, kv := range w.pairs {
		if i > 0 {
			buf = append(buf, '&')
		}
		buf = appendFormEscaped(buf, kv[0])
		buf = append(buf, '=')
		buf = appendFormEscaped(buf, kv[1])
	}
	return buf
}

func (w *FormWriter) scalar(v string) {
	seg := w.takeSegment()
	var key string
	for _, f := range w.stack {
		if f.segment == "" {
			continue
		}
		if key != "" {
			key += "."
		}
		key += f.segment
	}
	if key != "" && seg != "" {
		key += "."
	}
	key += seg
	w.pairs = append(w.pairs, [2]string{key, v})
}

// takeSegment returns the path segment for the next value: a pending
// Name, a fresh 1-based index inside an array scope, or nothing at
// top level.
func (w *FormWriter) takeSegment() string {
	if w.hasName {
		w.hasName = false
		return w.pending
	}
	if len(w.stack) == 0 {
		return ""
	}
	if f := &w.stack[len(w.stack)-1]; f.array {
		f.index++
		return strconv.Itoa(f.index)
	}
	panic("tokens: value in object without Name")
}

func (w *FormWriter) pop(array bool) {
	if w.hasName {
		panic("tokens: container closed after dangling Name")
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].array != array {
		panic("tokens: mismatched container close")
	}
	w.stack = w.stack[:len(w.stack)-1]
}

// appendFormEscaped percent-encodes s. Unreserved characters pass
// through; everything else, including space, is %XX-encoded.
func appendFormEscaped(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			buf = append(buf, c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			buf = append(buf, c)
		default:
			buf = append(buf, '%', hexUpper[c>>4], hexUpper[c&0xf])
		}
	}
	return buf
}

const hexUpper = "0123456789ABCDEF"
