package tool

import "encoding/json"

// Result is the uniform outcome of a tool invocation fed back into the
// session as a tool-role message. Failures are data, not panics: schema
// violations, denied commands and execution errors all land here so the model
// can self-correct.
type Result struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Payload string `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Content renders the result as the text handed back to the model.
func (r Result) Content() string {
	if r.Success {
		if r.Payload == "" {
			return "(no output)"
		}
		return r.Payload
	}
	return "Error: " + r.Error
}

// successResult wraps an arbitrary tool return value, serializing non-string
// payloads as JSON.
func successResult(tool string, payload any) Result {
	switch v := payload.(type) {
	case nil:
		return Result{Tool: tool, Success: true}
	case string:
		return Result{Tool: tool, Success: true, Payload: v}
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return Result{Tool: tool, Success: false, Error: "unserializable tool result: " + err.Error()}
		}
		return Result{Tool: tool, Success: true, Payload: string(raw)}
	}
}

// failureResult wraps an error into a structured failure.
func failureResult(tool string, err error) Result {
	return Result{Tool: tool, Success: false, Error: err.Error()}
}
