package domain

import "time"

// ExecutionRequest is sent to an execution handler when a cell runs.
type ExecutionRequest struct {
	// Code is the text of the cell being executed.
	Code string `json:"code"`
	// AllCellContent is every Code cell up to and including the executed one,
	// each followed by a newline.
	AllCellContent string `json:"allCellContent,omitempty"`
	// Meta is free-form and currently unused by the handlers.
	Meta string `json:"meta,omitempty"`
}

// RawExecutionResponse is the wire shape of a handler response.
type RawExecutionResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Response type tags understood by the kernel.
const (
	ResponseTypeSuccess        = "success"
	ResponseTypeTransformation = "transformation"
)

// ExecutionResponse is the closed set of handler responses:
// SuccessResponse, TransformationResponse and FailureResponse.
type ExecutionResponse interface {
	// Kind returns the wire type tag.
	Kind() string
	isExecutionResponse()
}

// SuccessResponse reports a plain successful execution.
type SuccessResponse struct {
	Message string
}

// TransformationResponse reports success and carries replacement code to insert as a new cell.
type TransformationResponse struct {
	Message string
	Code    string
}

// FailureResponse is any response whose type tag is not recognised.
type FailureResponse struct {
	Type    string
	Message string
}

func (SuccessResponse) Kind() string        { return ResponseTypeSuccess }
func (TransformationResponse) Kind() string { return ResponseTypeTransformation }
func (r FailureResponse) Kind() string      { return r.Type }

func (SuccessResponse) isExecutionResponse()        {}
func (TransformationResponse) isExecutionResponse() {}
func (FailureResponse) isExecutionResponse()        {}

// Decode maps the wire shape onto the response variants.
func (r RawExecutionResponse) Decode() ExecutionResponse {
	switch r.Type {
	case ResponseTypeSuccess:
		return SuccessResponse{Message: r.Message}
	case ResponseTypeTransformation:
		return TransformationResponse{Message: r.Message, Code: r.Code}
	default:
		return FailureResponse{Type: r.Type, Message: r.Message}
	}
}

// EncodeResponse maps a response variant back onto the wire shape.
func EncodeResponse(resp ExecutionResponse) RawExecutionResponse {
	switch r := resp.(type) {
	case SuccessResponse:
		return RawExecutionResponse{Type: ResponseTypeSuccess, Message: r.Message}
	case TransformationResponse:
		return RawExecutionResponse{Type: ResponseTypeTransformation, Message: r.Message, Code: r.Code}
	case FailureResponse:
		return RawExecutionResponse{Type: r.Type, Message: r.Message}
	default:
		return RawExecutionResponse{}
	}
}

// ExecutionStatus is the lifecycle state of a single cell execution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CellExecution records the outcome of running one cell.
type CellExecution struct {
	CellID string          `json:"-"`
	Index  int             `json:"index"`
	Order  int             `json:"order"`
	Status ExecutionStatus `json:"status"`

	// ResponseKind is the type tag of the handler response, empty on dispatch failure.
	ResponseKind string `json:"response_kind,omitempty"`
	// Output is the text displayed as the cell output.
	Output string `json:"output"`
	// Error holds the dispatch error, if any.
	Error string `json:"error,omitempty"`
	// InsertedIndex is the index of the cell created by a transformation, or -1.
	InsertedIndex int `json:"inserted_index"`
	// Warnings collects non-fatal problems such as a rejected cell insertion.
	Warnings []string `json:"warnings,omitempty"`

	Request   ExecutionRequest `json:"-"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
}

// Duration returns the wall time spent executing.
func (e CellExecution) Duration() time.Duration {
	if e.EndedAt.IsZero() {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

// Succeeded reports whether the execution reached StatusSucceeded.
func (e CellExecution) Succeeded() bool {
	return e.Status == StatusSucceeded
}
