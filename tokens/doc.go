// Package tokens provides the low-level token streams used by the
// wirebind drivers to read and write structured payloads.
//
// A [Source] yields the structural and scalar events of one encoded
// document, in document order. A [Writer] is the inverse: drivers emit
// structural and scalar events into it, and the writer renders them in
// a concrete payload format (JSON, XML, form encoding).
//
// The provided sources and writers are very low level, and do not
// enforce any binding semantics. You should not need this package at
// all, unless you are writing your own wirebind.Marshaler/
// wirebind.Unmarshaler implementations, in which case your code will
// be handed a [Writer]/[Source] and expected to produce or consume a
// single well-formed value with it.
package tokens
