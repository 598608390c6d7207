package types

// DataEnvelope wraps every successful JSON body.
type DataEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the client-facing half of a typed error. Details only appear
// for codes that allow them.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
