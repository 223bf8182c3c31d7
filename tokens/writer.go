package tokens

// A Writer renders a stream of structural and scalar events into one
// concrete payload encoding.
//
// Callers must produce a well-formed event sequence: names only
// directly inside objects, exactly one value after each name, at most
// one top-level value. Writers panic on sequences that cannot be
// represented; a panic always indicates a bug in the calling code,
// not bad input data.
//
// Writers are not safe for concurrent use.
type Writer interface {
	BeginObject()
	EndObject()
	BeginArray()
	EndArray()
	// Name emits the field name of the value that follows. It is only
	// valid directly inside an object.
	Name(s string)
	String(s string)
	// Number emits a numeric scalar from its literal text, which must
	// be a valid decimal number.
	Number(lit string)
	Bool(b bool)
	Null()
	// Bytes returns the rendered payload. The caller is responsible
	// for having closed everything it opened.
	Bytes() []byte
}
