// Package wirebind renders Go values into HTTP requests and decodes
// HTTP responses back into Go values, across several wire protocols.
//
// The core of the package is the binding model. A [Binding] says
// where one value travels on an HTTP exchange (the payload body, the
// query string, a header, a path placeholder or the status line) and
// what wire type carries it. A [Shape] is the ordered binding table
// of one structured value, and an [Operation] names the endpoint,
// protocol and URI template the exchange targets.
//
// Most callers never build bindings by hand: [Marshal] and
// [Unmarshal] derive them from "wire" struct tags, compile them once
// per type, and cache the result. Dynamic callers with no struct
// types use [MarshalShape] and [UnmarshalShape], which pair an
// explicit [Shape] with a [Record] of values.
//
// Payloads are carried as token streams. The tokens subpackage
// defines the stream model along with JSON, msgpack, XML and form
// renderings of it; response decoding consumes any [tokens.Source],
// so new payload encodings plug in without touching this package.
//
// Types that need full control of their wire form implement
// [Marshaler] and [Unmarshaler].
package wirebind
