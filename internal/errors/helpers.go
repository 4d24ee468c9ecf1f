package errors

import (
	"fmt"
	"net/http"
)

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewConflictError signals a lost optimistic-concurrency or uniqueness race.
// Conflicts are always retryable.
func NewConflictError(resource string, err error) *AppError {
	appErr := WrapRetryable(err, ErrCodeConflict, fmt.Sprintf("concurrent modification of %s", resource)).
		WithContext("resource", resource)
	return appErr
}

// NewOracleError classifies a threat oracle failure by HTTP status.
// A zero status means the request never produced a response.
func NewOracleError(endpoint string, statusCode int, err error) *AppError {
	if statusCode == 0 || statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		return WrapRetryable(err, ErrCodeOracleUnavailable, "threat oracle unavailable").
			WithContext("endpoint", endpoint).
			WithContext("status_code", statusCode)
	}
	return Wrap(err, ErrCodeOracleRejected, "threat oracle rejected request").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)
}

// NewCircuitOpenError is returned in place of an oracle call while the breaker is open.
func NewCircuitOpenError(name string, err error) *AppError {
	return WrapRetryable(err, ErrCodeCircuitOpen, fmt.Sprintf("circuit breaker %s is open", name)).
		WithContext("circuit_breaker", name)
}

// NewBrokerError wraps a message broker failure.
func NewBrokerError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeBroker, fmt.Sprintf("broker %s failed", operation)).
		WithContext("operation", operation)
}

// NewAuthError creates an authentication error
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Authentication failed")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeOracleUnavailable, ErrCodeCircuitOpen, ErrCodeBroker:
		return http.StatusBadGateway
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the error body written by the HTTP adapter
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{
		RequestID: requestID,
	}

	appErr, ok := As(err)
	if !ok {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = GetUserMessage(err)
		return response
	}

	response.Error.Code = appErr.Code
	response.Error.Message = GetUserMessage(err)
	if len(appErr.Context) > 0 {
		publicContext := make(map[string]interface{})
		for k, v := range appErr.Context {
			if k != "secret" && k != "api_key" && k != "value" {
				publicContext[k] = v
			}
		}
		if len(publicContext) > 0 {
			response.Error.Context = publicContext
		}
	}
	return response
}
