package gateway

import (
	"errors"
	"fmt"
)

// Op names a Backend Gateway operation.
type Op string

const (
	OpUpload       Op = "upload"
	OpAsk          Op = "ask"
	OpListClauses  Op = "list_clauses"
	OpSuggest      Op = "suggest_clause"
	OpContractInfo Op = "contract_info"
	OpHealth       Op = "health"
)

// Sentinels matched with errors.Is against ValidationError and RemoteCallError.
var (
	ErrUpload       = errors.New("upload error")
	ErrQuery        = errors.New("query error")
	ErrFetch        = errors.New("fetch error")
	ErrSuggestion   = errors.New("suggestion error")
	ErrContractInfo = errors.New("contract info error")
	ErrHealth       = errors.New("health check error")
)

var opSentinels = map[Op]error{
	OpUpload:       ErrUpload,
	OpAsk:          ErrQuery,
	OpListClauses:  ErrFetch,
	OpSuggest:      ErrSuggestion,
	OpContractInfo: ErrContractInfo,
	OpHealth:       ErrHealth,
}

var fallbackMessages = map[Op]string{
	OpUpload:       "Upload failed. Please try again.",
	OpAsk:          "Failed to get answer. Please try again.",
	OpListClauses:  "Failed to load clauses. Please try again.",
	OpSuggest:      "Failed to draft clause suggestion. Please try again.",
	OpContractInfo: "Failed to load contract details. Please try again.",
	OpHealth:       "Backend is unavailable.",
}

// ValidationError is a client-side input check that blocked a call before it was made.
type ValidationError struct {
	Op      Op
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return opSentinels[e.Op] }

// RemoteCallError reports a failed call to the backend: a non-2xx answer (Status set)
// or a transport failure (Err set). Error returns the server detail verbatim when present.
type RemoteCallError struct {
	Op     Op
	Status int
	Detail string
	Err    error
}

func (e *RemoteCallError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallbackMessages[e.Op]
}

func (e *RemoteCallError) Unwrap() []error {
	errs := []error{opSentinels[e.Op]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Diagnostic returns a description suitable for logs rather than for users.
func (e *RemoteCallError) Diagnostic() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Error())
}
