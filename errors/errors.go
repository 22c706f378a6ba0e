package errors

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable summary.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional diagnostic context.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Fatal reports whether the error ends a job.
func (e *AppError) Fatal() bool { return IsFatalCode(e.Code) }

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Pipeline constructors ---

// InvalidInput creates an error for a rejected source or option.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates an INVALID_INPUT error carrying a pre-built message.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// DurationUnavailable creates an error for media whose length cannot be determined.
func DurationUnavailable(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDurationUnavailable, Message: "Could not determine media duration.",
		HTTPStatus: http.StatusUnprocessableEntity, Cause: cause,
		Details: map[string]any{"source": path},
	}
}

// NoAudioTrack creates an error for media without an audio stream.
func NoAudioTrack(path string) *AppError {
	return &AppError{
		Code: ErrCodeNoAudioTrack, Message: "The media file has no audio track.",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{"source": path},
	}
}

// ExtractionFailed aggregates the errors of every extraction attempt.
func ExtractionFailed(path string, attempts []error) *AppError {
	msgs := make([]string, 0, len(attempts))
	for i, err := range attempts {
		msgs = append(msgs, fmt.Sprintf("attempt %d: %v", i+1, err))
	}
	e := &AppError{
		Code: ErrCodeExtractionFailed, Message: "Audio extraction failed.",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{"source": path, "attempts": msgs},
	}
	if len(attempts) > 0 {
		e.Cause = attempts[len(attempts)-1]
	}
	return e
}

// TranscribeError creates an error for a failed engine transcription.
func TranscribeError(engine string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscribe, Message: fmt.Sprintf("The %s engine failed to transcribe audio.", engine),
		HTTPStatus: http.StatusBadGateway, Cause: cause,
		Details: map[string]any{"engine": engine},
	}
}

// EngineLoadFailed creates an error for an engine that could not load.
func EngineLoadFailed(engine string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeEngineLoadFailed, Message: fmt.Sprintf("The %s engine could not be loaded.", engine),
		HTTPStatus: http.StatusServiceUnavailable, Cause: cause,
		Details: map[string]any{"engine": engine},
	}
}

// NoEngineAvailable creates an error for an exhausted fallback chain.
// reasons maps each tried engine to why it was skipped.
func NoEngineAvailable(reasons map[string]string) *AppError {
	tried := make([]string, 0, len(reasons))
	for name := range reasons {
		tried = append(tried, name)
	}
	sort.Strings(tried)
	return &AppError{
		Code: ErrCodeNoEngineAvailable, Message: "No transcription engine is available.",
		HTTPStatus: http.StatusServiceUnavailable,
		Details: map[string]any{"tried": tried, "reasons": reasons},
	}
}

// EmptyTranscript creates an error for a job that produced no text.
func EmptyTranscript(segments, skipped int) *AppError {
	return &AppError{
		Code: ErrCodeEmptyTranscript, Message: "Transcription produced no text.",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{"segments": segments, "skipped": skipped},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a new AppError for an authenticated caller without the
// required scope.
func Forbidden(scope string) *AppError {
	return &AppError{
		Code: ErrCodeForbidden, Message: "The token does not grant " + scope + ".",
		HTTPStatus: http.StatusForbidden, Details: map[string]any{"scope": scope},
	}
}

// RateLimited creates a new AppError for a throttled caller.
func RateLimited() *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests, retry later.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
	}
}

// ServiceUnavailable creates a new AppError for a resource that is at capacity.
func ServiceUnavailable(resource string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is at capacity. Please try again.", resource),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"resource": resource},
	}
}

// Internal creates a new AppError for an unclassified failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a job history store failure.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// ExternalServiceError creates a new AppError for an error from a remote service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// Detail renders the full diagnostic text of an error: the code, message,
// sorted details and the cause chain.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := AsAppError(err)
	if !ok {
		return err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", appErr.Code, appErr.Message)
	keys := make([]string, 0, len(appErr.Details))
	for k := range appErr.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, appErr.Details[k])
	}
	for cause := appErr.Cause; cause != nil; {
		fmt.Fprintf(&b, "\n  caused by: %v", cause)
		u, ok := cause.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cause = u.Unwrap()
	}
	return b.String()
}

// Wrap converts any error into an *AppError. AppErrors anywhere in the chain
// pass through; foreign errors become INTERNAL_ERROR.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
