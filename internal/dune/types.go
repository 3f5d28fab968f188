package dune

import "encoding/json"

// Execution states reported by the platform.
const (
	StatePending   = "QUERY_STATE_PENDING"
	StateExecuting = "QUERY_STATE_EXECUTING"
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCancelled = "QUERY_STATE_CANCELLED"
)

// QueryParameter is one bound parameter of a saved query.
type QueryParameter struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// TextParameter builds a text-typed query parameter.
func TextParameter(key, value string) QueryParameter {
	return QueryParameter{Key: key, Type: "text", Value: value}
}

// executeRequest is the body of POST /query/{id}/execute.
type executeRequest struct {
	Performance string           `json:"performance,omitempty"`
	Parameters  []QueryParameter `json:"parameters,omitempty"`
}

// ExecuteResponse is the response of POST /query/{id}/execute.
type ExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

// StatusResponse is the response of GET /execution/{id}/status.
type StatusResponse struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int64  `json:"query_id"`
	State       string `json:"state"`
}

// ResultsResponse is the response of GET /execution/{id}/results.
// Rows stay raw until a caller decodes them into a query-specific shape.
type ResultsResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Result      struct {
		Rows []json.RawMessage `json:"rows"`
	} `json:"result"`
}

// apiError is the error body the platform returns on non-2xx responses.
type apiError struct {
	Error string `json:"error"`
}
