package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidDelegate is returned when the normalizer is composed with a
	// serializer that cannot normalize and denormalize.
	ErrInvalidDelegate = errors.New("delegate serializer is not a normalizer")
	// ErrInvalidConfiguration is returned when configuration fails validation.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedType is returned when no normalizer handles a value or type.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrConstruction is returned when a model type cannot be default-constructed.
	ErrConstruction = errors.New("model cannot be constructed")

	// ErrMaxDepthExceeded is returned when a relation graph nests deeper than allowed.
	ErrMaxDepthExceeded = errors.New("maximum nesting depth exceeded")
	// ErrCircularReference is returned when a model graph references itself.
	ErrCircularReference = errors.New("circular reference detected")
	// ErrInvalidFormat is returned when a raw value cannot be coerced.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInvalidPropertyPath is returned when a property path cannot be read or written.
	ErrInvalidPropertyPath = errors.New("invalid property path")

	// ErrUnknownResource is returned when a resource name is not registered.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrUnknownRelation is returned when an eager load names an undeclared relation.
	ErrUnknownRelation = errors.New("unknown relation")
	// ErrRecordNotFound is returned when a record does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidToken is returned when a token is missing, expired or revoked.
	ErrInvalidToken = errors.New("invalid or revoked token")
	// ErrInvalidCredentials is returned when a client secret does not match.
	ErrInvalidCredentials = errors.New("invalid client credentials")
)

// NewUsageError reports a programming error such as copying a service that
// must not be copied. It is never meant to be handled.
func NewUsageError(format string, args ...interface{}) error {
	return errors.AssertionFailedf(format, args...)
}

// IsConfigurationError reports whether err comes from setup rather than input.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidDelegate) ||
		errors.Is(err, ErrInvalidConfiguration)
}

// IsInputError reports whether err was caused by the data handed in.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMaxDepthExceeded) ||
		errors.Is(err, ErrCircularReference) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrInvalidPropertyPath) ||
		errors.Is(err, ErrUnknownRelation)
}

// IsUsageError reports whether err signals a caller bug.
func IsUsageError(err error) bool {
	return errors.HasAssertionFailure(err) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrConstruction)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrUnknownResource):
		return NewHTTPError(http.StatusNotFound, ErrUnknownResource.Error(), "UNKNOWN_RESOURCE")
	case errors.Is(err, ErrRecordNotFound):
		return NewHTTPError(http.StatusNotFound, ErrRecordNotFound.Error(), "RECORD_NOT_FOUND")
	case errors.Is(err, ErrMaxDepthExceeded):
		return NewHTTPError(http.StatusUnprocessableEntity, err.Error(), "MAX_DEPTH_EXCEEDED")
	case errors.Is(err, ErrCircularReference):
		return NewHTTPError(http.StatusUnprocessableEntity, err.Error(), "CIRCULAR_REFERENCE")
	case errors.Is(err, ErrUnknownRelation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "UNKNOWN_RELATION")
	case errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrInvalidPropertyPath):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_FORMAT")
	case errors.Is(err, ErrUnsupportedType):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "UNSUPPORTED_TYPE")
	case errors.Is(err, ErrInvalidToken):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidToken.Error(), "INVALID_TOKEN")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
