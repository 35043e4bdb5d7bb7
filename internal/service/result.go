package service

import "errors"

// ErrInvalidInput is returned when there is no text to summarize
var ErrInvalidInput = errors.New("source text cannot be empty")

// FailureKind classifies why a generation attempt did not produce a summary
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureInvalidInput      FailureKind = "invalid_input"
	FailureTransport         FailureKind = "transport"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureRateLimited       FailureKind = "rate_limited"
)

// noSummaryReason is reported when the response lacks the candidate text path
const noSummaryReason = "No summary generated"

// GenerationResult holds either a generated text or the reason generation failed.
// Exactly one of Text or Reason is meaningful, selected by OK.
type GenerationResult struct {
	OK     bool
	Text   string
	Reason string
	Kind   FailureKind
}

// Success builds a successful result
func Success(text string) GenerationResult {
	return GenerationResult{OK: true, Text: text}
}

// Failure builds a failed result
func Failure(kind FailureKind, reason string) GenerationResult {
	return GenerationResult{Kind: kind, Reason: reason}
}

// Err returns the failure as an error, or nil on success
func (r GenerationResult) Err() error {
	if r.OK {
		return nil
	}
	return &GenerationError{Kind: r.Kind, Reason: r.Reason}
}

// GenerationError is the error form of a failed GenerationResult
type GenerationError struct {
	Kind   FailureKind
	Reason string
}

func (e *GenerationError) Error() string {
	return e.Reason
}

// Is reports InvalidInput failures as ErrInvalidInput
func (e *GenerationError) Is(target error) bool {
	return target == ErrInvalidInput && e.Kind == FailureInvalidInput
}
