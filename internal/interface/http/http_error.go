package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/evigrid/assess-console/pkg/errors"
)

// HTTPError pairs a domain failure with the status and code it serializes as.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// statusForCode is the single place domain error codes become HTTP statuses.
// The 409 group covers every state-machine refusal: the request was well
// formed, the draft just was not in a state to accept it.
func statusForCode(code string) (int, string) {
	switch code {
	case apperrors.CodeInvalidInput, apperrors.CodePayloadInvalid, "invalid_request":
		return http.StatusBadRequest, "invalid_request"
	case apperrors.CodeNotFound:
		return http.StatusNotFound, code
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized, code
	case apperrors.CodeValidationInFlight, apperrors.CodeSubmissionInFlight,
		apperrors.CodeAlreadySubmitted, apperrors.CodeStaleResult:
		return http.StatusConflict, code
	case apperrors.CodeContractViolation, apperrors.CodeFileValidationFailed:
		return http.StatusUnprocessableEntity, code
	case apperrors.CodeSubmissionFailed:
		return http.StatusBadGateway, code
	case apperrors.CodeStorageError:
		return http.StatusInternalServerError, code
	}
	return http.StatusInternalServerError, "internal_error"
}

// abortWithDomainError translates an error carrying an AppError code.
func abortWithDomainError(c *gin.Context, err error) {
	status, outCode := statusForCode(apperrors.CodeOf(err))
	abortWithError(c, NewHTTPError(status, outCode, errMessage(err), err))
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
