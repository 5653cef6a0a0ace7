package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-specific error type
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// wraps an error with a code and message
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Code returns the code of the outermost AppError in the chain, or CodeInternal
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether any AppError in the chain carries the given code.
// Services wrap lower-level errors, so the interesting code is not always the outermost one.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Error code constants
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInvalidArg = "INVALID_ARGUMENT"
	CodeExternal   = "EXTERNAL_ERROR"
	CodeConflict   = "CONFLICT"         // Resource already exists (UNIQUE violation)
	CodeDependency = "DEPENDENCY_ERROR" // Foreign key constraint violation

	CodePreparation         = "PREPARATION_ERROR"    // Upload session or resource could not be allocated
	CodeUploadFailure       = "UPLOAD_FAILURE"       // Provider reported an ingest/transcode failure
	CodeGenerationFailure   = "GENERATION_FAILURE"   // Transcription provider error, timeout or unsupported source
	CodeAlreadyInProgress   = "ALREADY_IN_PROGRESS"  // A transcript generation is already running for the lesson
	CodeValidationBlocked   = "VALIDATION_BLOCKED"   // Save refused by the consistency guard
	CodeMetadataUnavailable = "METADATA_UNAVAILABLE" // Best-effort metadata fetch failed
)
