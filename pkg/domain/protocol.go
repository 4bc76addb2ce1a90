package domain

// User is the authenticated identity attached to every request. The token is
// opaque to bandkeeper and never interpreted.
type User struct {
	Login string `json:"login"`
	Token string `json:"token,omitempty"`
}

// Request is a single client invocation. It is built once and not mutated.
type Request struct {
	Command  string `json:"command"`
	Argument string `json:"argument,omitempty"`
	Payload  *Band  `json:"payload,omitempty"`
	User     User   `json:"user"`
}

// HasPayload reports whether the request carries an entity payload.
func (r Request) HasPayload() bool { return r.Payload != nil }

// Status is the outcome flag of a Response.
type Status string

// Response statuses.
const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the reply to a Request. Body holds a confirmation string for
// mutations or a structured result for queries.
type Response struct {
	Status    Status    `json:"status"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Body      any       `json:"body,omitempty"`
}

// OK builds a successful response.
func OK(body any) Response {
	return Response{Status: StatusOK, Body: body}
}

// Failure converts err into an error response, preserving its kind.
func Failure(err error) Response {
	return Response{Status: StatusError, ErrorKind: KindOf(err), Message: err.Error()}
}

// Failed reports whether the response carries an error.
func (r Response) Failed() bool { return r.Status == StatusError }
