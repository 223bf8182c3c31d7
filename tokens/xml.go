package tokens

// An XMLWriter renders a token stream as an XML document.
//
// XML has no anonymous containers, so every value needs an element
// name. Names inside objects come from Name tokens. The top-level
// value is wrapped in the root element given to NewXMLWriter, and
// array elements repeat the array's own name, one element per entry,
// in the flattened style REST XML services use:
//
//	Name("tag"), BeginArray, String("a"), String("b"), EndArray
//
// renders as <tag>a</tag><tag>b</tag>.
type XMLWriter struct {
	buf     []byte
	root    string
	stack   []xmlFrame
	pending string
	hasName bool
}

type xmlFrame struct {
	name    string
	element bool // open element (object), as opposed to an array scope
}

// NewXMLWriter returns an XMLWriter whose top-level value is wrapped
// in an element named root. root must be non-empty.
func NewXMLWriter(root string) *XMLWriter {
	if root == "" {
		panic("tokens: empty XML root name")
	}
	return &XMLWriter{root: root}
}

// BeginObject implements Writer.
func (w *XMLWriter) BeginObject() {
	n := w.takeName()
	w.buf = append(w.buf, '<')
	w.buf = append(w.buf, n...)
	w.buf = append(w.buf, '>')
	w.stack = append(w.stack, xmlFrame{name: n, element: true})
}

// EndObject implements Writer.
func (w *XMLWriter) EndObject() {
	f := w.pop(true)
	w.buf = append(w.buf, '<', '/')
	w.buf = append(w.buf, f.name...)
	w.buf = append(w.buf, '>')
}

// BeginArray implements Writer. Arrays emit no bytes of their own;
// each element is wrapped in the array's name.
func (w *XMLWriter) BeginArray() {
	w.stack = append(w.stack, xmlFrame{name: w.takeName()})
}

// EndArray implements Writer.
func (w *XMLWriter) EndArray() {
	w.pop(false)
}

// Name implements Writer.
func (w *XMLWriter) Name(s string) {
	if w.hasName {
		panic("tokens: Name after Name")
	}
	if len(w.stack) == 0 || !w.stack[len(w.stack)-1].element {
		panic("tokens: Name outside object")
	}
	w.pending, w.hasName = s, true
}

// String implements Writer.
func (w *XMLWriter) String(s string) { w.text(s) }

// Number implements Writer.
func (w *XMLWriter) Number(lit string) { w.text(lit) }

// Bool implements Writer.
func (w *XMLWriter) Bool(b bool) {
	if b {
		w.text("true")
	} else {
		w.text("false")
	}
}

// Null implements Writer. XML has no null literal, so it renders as
// an empty element.
func (w *XMLWriter) Null() {
	n := w.takeName()
	w.buf = append(w.buf, '<')
	w.buf = append(w.buf, n...)
	w.buf = append(w.buf, '/', '>')
}

// Bytes implements Writer.
func (w *XMLWriter) Bytes() []byte {
	if len(w.stack) != 0 {
		panic("tokens: Bytes with unclosed containers")
	}
	return w.buf
}

func (w *XMLWriter) text(s string) {
	n := w.takeName()
	w.buf = append(w.buf, '<')
	w.buf = append(w.buf, n...)
	w.buf = append(w.buf, '>')
	w.buf = appendXMLText(w.buf, s)
	w.buf = append(w.buf, '<', '/')
	w.buf = append(w.buf, n...)
	w.buf = append(w.buf, '>')
}

// takeName returns the element name for the next value: a pending
// Name if one was emitted, the array's name inside an array scope,
// or the root name at top level.
func (w *XMLWriter) takeName() string {
	if w.hasName {
		w.hasName = false
		return w.pending
	}
	if len(w.stack) == 0 {
		return w.root
	}
	if f := w.stack[len(w.stack)-1]; !f.element {
		return f.name
	}
	panic("tokens: value in object without Name")
}

func (w *XMLWriter) pop(element bool) xmlFrame {
	if w.hasName {
		panic("tokens: container closed after dangling Name")
	}
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].element != element {
		panic("tokens: mismatched container close")
	}
	f := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	return f
}

// appendXMLText appends s with the characters XML cannot carry in
// text content replaced by entities.
func appendXMLText(buf []byte, s string) []byte {
	start := 0
	for i := 0; i < len(s); i++ {
		var ent string
		switch s[i] {
		case '&':
			ent = "&amp;"
		case '<':
			ent = "&lt;"
		case '>':
			ent = "&gt;"
		default:
			continue
		}
		buf = append(buf, s[start:i]...)
		buf = append(buf, ent...)
		start = i + 1
	}
	return append(buf, s[start:]...)
}
