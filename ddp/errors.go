package ddp

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSourceNotReady is returned by Trigger when the backend answers
// with a conflict: the media exists but its ingestion (e.g. downloading
// a linked video) has not finished. Retryable.
var ErrSourceNotReady = errors.New("media source not ready")

// SubmissionError is a non-2xx answer to an upload or link
// registration. Never retried at this layer.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("media submission failed (%d): %s", e.StatusCode, e.Body)
}

// TriggerError is a fatal, non-retryable trigger failure.
type TriggerError struct {
	StatusCode int
	Body       string
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("analysis trigger failed (%d): %s", e.StatusCode, e.Body)
}

// TriggerTimeoutError means the source stayed not-ready past the
// trigger retry budget.
type TriggerTimeoutError struct {
	Budget   time.Duration
	Attempts int
}

func (e *TriggerTimeoutError) Error() string {
	return fmt.Sprintf("media source still not ready after %s (%d attempts)", e.Budget, e.Attempts)
}

// AnalysisFailedError is a backend-reported terminal processing
// failure. Authoritative: it ends the completion race immediately.
type AnalysisFailedError struct {
	MediaID MediaID
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("backend reported failed analysis for media %s", e.MediaID)
}

// AnalysisTimeoutError means neither notification channel produced a
// result within the polling budget.
type AnalysisTimeoutError struct {
	Attempts int
}

func (e *AnalysisTimeoutError) Error() string {
	return fmt.Sprintf("analysis did not complete within %d status checks", e.Attempts)
}

// CancelledError means the caller abandoned the pipeline before it
// resolved.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("analysis cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// FetchError is a failed result retrieval after a result handle was
// already obtained. Treated as a hard failure, not retried.
type FetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("result fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("result fetch failed (%d): %s", e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReportError is a rejected report submission.
type ReportError struct {
	StatusCode int
	Detail     string
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report rejected (%d): %s", e.StatusCode, e.Detail)
}

// AlreadyReported matches the backend's duplicate-report answer so
// callers don't string-match themselves.
func (e *ReportError) AlreadyReported() bool {
	return strings.Contains(strings.ToLower(e.Detail), "already reported")
}
