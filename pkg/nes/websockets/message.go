package websockets

// Message kind constants for the nes wire protocol.
// These correspond to the "k" (kind) field in wire messages.
const (
	// Client to Server message kinds
	MessageKindRequest = "q" // HTTP-like RPC request
	MessageKindAuth    = "a" // Authentication handshake (also the server's reply kind)

	// Server to Client message kinds
	MessageKindResponse  = "r" // Reply to a request, matched by id
	MessageKindBroadcast = "b" // Unsolicited broadcast, carries no id
)

// Message represents the JSON structure for nes wire messages. This is a
// tagged union over the message kinds with short field names for
// efficiency; which fields are meaningful depends on Kind.
//
// The Id field ties an outbound request or auth message to its inbound
// counterpart. Id zero means unassigned; broadcasts never carry one.
type Message struct {
	Kind       string            `json:"k,omitempty"` // Message kind (see MessageKind constants)
	Id         int64             `json:"i,omitempty"` // Correlation id for request/response matching
	Method     string            `json:"m,omitempty"` // Request method (GET, POST, ...)
	Path       string            `json:"p,omitempty"` // Request path
	Headers    map[string]string `json:"h,omitempty"` // Request or response headers
	StatusCode int               `json:"s,omitempty"` // Response status code
	Payload    any               `json:"d,omitempty"` // Request/response payload or broadcast message
	Token      string            `json:"t,omitempty"` // Credential (outbound auth only)
	Error      string            `json:"e,omitempty"` // Error indicator (inbound auth only)
}
