package judgeclient

import (
	"encoding/json"
)

// ExecuteInput is one submission to dispatch.
type ExecuteInput struct {
	SourceCode     string
	Language       string
	Stdin          string
	ExpectedOutput string
}

// submissionRequest is the backend's submission payload.
type submissionRequest struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
}

// submissionResponse is decoded loosely so shape problems can be reported precisely.
type submissionResponse struct {
	Token         string          `json:"token"`
	Stdout        *string         `json:"stdout"`
	Stderr        *string         `json:"stderr"`
	CompileOutput *string         `json:"compile_output"`
	Message       *string         `json:"message"`
	Status        *wireStatus     `json:"status"`
	Time          json.RawMessage `json:"time"`
	Memory        json.RawMessage `json:"memory"`
}

type wireStatus struct {
	ID          json.RawMessage `json:"id"`
	Description string          `json:"description"`
}

// errorBody covers the error shapes the backend and its proxies return.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
