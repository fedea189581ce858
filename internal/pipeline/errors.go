package pipeline

import "errors"

// Code classifies a pipeline failure for callers.
type Code string

const (
	// CodeExtraction means the content could not be fetched or held no usable
	// text. Unfetchable source URLs and failed parse steps also end here.
	CodeExtraction Code = "EXTRACTION_ERROR"
	// CodeParse means content was fetched but no schema-valid recipe could be
	// produced. Run failures report CodeExtraction instead.
	CodeParse Code = "PARSE_ERROR"
	// CodeStore is a non-fatal cache write failure.
	CodeStore Code = "STORE_ERROR"
)

// Stable caller-facing messages.
const (
	MsgFetchFailed = "Could not access post content"
	MsgNoContent   = "No content found in post"
	MsgParseFailed = "Could not parse recipe"
	MsgInvalidURL  = "Source URL must be an absolute http(s) URL"
	MsgStoreFailed = "Could not save recipe to cache"
)

// Error is the typed error returned across the pipeline boundary. Only Code
// and Message are meant for callers; Err keeps the cause for logs and
// errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
