package domain

// MethodNewMessageRequest is the one direct-method name the edge handler
// recognizes. Any other name is answered with 404.
const MethodNewMessageRequest = "NewMessageRequest"

// RequestPayload is the JSON body of a NewMessageRequest call, built by the
// dispatcher and consumed by the edge handler.
type RequestPayload struct {
	CorrelationID string `json:"correlationId"`
	Text          string `json:"text"`
}

// ResponsePayload carries the handler's human-readable outcome. An empty
// ModuleResponse serializes to nothing.
type ResponsePayload struct {
	ModuleResponse string `json:"ModuleResponse,omitempty"`
}
