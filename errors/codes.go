package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Input errors. A job carrying one of these never reaches planning.
const (
	// ErrCodeInvalidInput indicates the source or options are invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeDurationUnavailable indicates the media duration could not be determined.
	ErrCodeDurationUnavailable ErrorCode = "DURATION_UNAVAILABLE"
	// ErrCodeNoAudioTrack indicates the source carries no audio stream.
	ErrCodeNoAudioTrack ErrorCode = "NO_AUDIO_TRACK"
)

// Per-segment errors, recovered locally by skipping the segment.
const (
	// ErrCodeExtractionFailed indicates every extraction attempt failed.
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	// ErrCodeTranscribe indicates an engine failed to transcribe an artifact.
	ErrCodeTranscribe ErrorCode = "TRANSCRIBE_ERROR"
)

// Engine errors
const (
	// ErrCodeEngineLoadFailed indicates an engine could not load its model.
	ErrCodeEngineLoadFailed ErrorCode = "ENGINE_LOAD_FAILED"
	// ErrCodeNoEngineAvailable indicates the fallback chain was exhausted.
	ErrCodeNoEngineAvailable ErrorCode = "NO_ENGINE_AVAILABLE"
)

// Assembly errors
const (
	// ErrCodeEmptyTranscript indicates no segment produced any text.
	ErrCodeEmptyTranscript ErrorCode = "EMPTY_TRANSCRIPT"
)

// API errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates the caller lacks the required scope.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeRateLimited indicates the caller exceeded the submission rate.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeServiceUnavailable indicates the server is at capacity.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unclassified failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a job history store failure.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from a remote engine endpoint.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeRateLimited:        true,
	ErrCodeServiceUnavailable: true,
}

// fatalCodes end a job when they reach the controller.
var fatalCodes = map[ErrorCode]bool{
	ErrCodeInvalidInput:        true,
	ErrCodeDurationUnavailable: true,
	ErrCodeNoAudioTrack:        true,
	ErrCodeNoEngineAvailable:   true,
	ErrCodeEmptyTranscript:     true,
	ErrCodeInternal:            true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// IsFatalCode reports whether a job must stop when it sees this code.
func IsFatalCode(code ErrorCode) bool {
	return fatalCodes[code]
}
