package errors

import "errors"

// Codes shared across the service. Handlers map these onto HTTP statuses;
// domain code never imports net/http.
const (
	CodeInvalidInput         = "invalid_input"
	CodeNotFound             = "not_found"
	CodeUnauthorized         = "unauthorized"
	CodeStorageError         = "storage_error"
	CodeStaleResult          = "stale_result"
	CodeSubmissionFailed     = "submission_failed"
	CodeSubmissionInFlight   = "submission_in_flight"
	CodeAlreadySubmitted     = "already_submitted"
	CodeValidationInFlight   = "validation_in_flight"
	CodeFileValidationFailed = "file_validation_failed"
	CodePayloadInvalid       = "payload_invalid"
	CodeContractViolation    = "contract_violation"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode helps callers differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf extracts the code, or an empty string for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
