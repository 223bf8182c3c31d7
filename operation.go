package wirebind

import "fmt"

// A Protocol is the wire convention an operation speaks. It decides
// how the request envelope is assembled and which payload encoding
// carries body fields.
type Protocol int

const (
	protocolInvalid Protocol = iota

	// RestJSON marshals path, query and header bindings onto the
	// HTTP envelope and payload bindings into a JSON body.
	RestJSON
	// JSONRPC posts every operation to a single endpoint: payload
	// bindings form a JSON body (always present, "{}" at minimum) and
	// the operation's target name travels in a header.
	JSONRPC
	// RestXML is RestJSON's envelope with an XML payload body.
	RestXML
	// QueryForm renders payload bindings as form-encoded key=value
	// pairs with dotted-path flattening, POSTed as the body.
	QueryForm
)

var protocolNames = map[Protocol]string{
	RestJSON:  "rest-json",
	JSONRPC:   "json-rpc",
	RestXML:   "rest-xml",
	QueryForm: "query",
}

func (p Protocol) String() string {
	if n, ok := protocolNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// TargetHeader is the header that carries an operation's target name
// on JSONRPC requests.
const TargetHeader = "X-Service-Target"

// An Operation describes one callable API operation: the protocol it
// speaks and the static parts of its HTTP mapping. Operations are
// built once and never mutated; the drivers read them concurrently.
type Operation struct {
	// Name identifies the operation in diagnostics and registries.
	Name string
	// Protocol is the wire convention.
	Protocol Protocol
	// Method is the HTTP method. JSONRPC operations may leave it
	// empty; they default to POST.
	Method string
	// RequestURI is the request path template. Segments of the form
	// {name} are placeholders filled by path bindings; {name+} is a
	// greedy placeholder whose value may span segments. JSONRPC
	// operations may leave it empty; they default to "/".
	RequestURI string
	// Target is the operation's wire identifier, sent in the
	// TargetHeader on JSONRPC requests and used as the Action on
	// QueryForm requests.
	Target string
	// PayloadName is the wire name of the payload root. RestXML
	// requests use it as the document's root element.
	PayloadName string
	// HasPayload says whether any of the operation's input fields
	// bind to the payload. When false, REST requests are sent
	// bodyless rather than with an empty document.
	HasPayload bool
}

// Validate checks the operation for the static mistakes the drivers
// would otherwise hit mid-marshal.
func (op *Operation) Validate() error {
	if op == nil {
		return typeErr(nil, "nil operation")
	}
	switch op.Protocol {
	case RestJSON, RestXML, QueryForm:
		if op.Method == "" {
			return typeErr(nil, "operation %s: no HTTP method", op.Name)
		}
		if op.RequestURI == "" {
			return typeErr(nil, "operation %s: no request URI", op.Name)
		}
	case JSONRPC:
		if op.Target == "" {
			return typeErr(nil, "operation %s: JSONRPC needs a target", op.Name)
		}
	default:
		return typeErr(nil, "operation %s: unknown protocol %v", op.Name, op.Protocol)
	}
	if op.Protocol == RestXML && op.HasPayload && op.PayloadName == "" {
		return typeErr(nil, "operation %s: XML payload needs a root name", op.Name)
	}
	return nil
}

// method returns the HTTP method with the JSONRPC default applied.
func (op *Operation) method() string {
	if op.Method == "" && op.Protocol == JSONRPC {
		return "POST"
	}
	return op.Method
}

// requestURI returns the path template with the JSONRPC default
// applied.
func (op *Operation) requestURI() string {
	if op.RequestURI == "" && op.Protocol == JSONRPC {
		return "/"
	}
	return op.RequestURI
}
