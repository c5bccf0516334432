package apierror

import "fmt"

// APIError carries an HTTP status alongside the client-facing message. The
// wire format only exposes Message; Code and Field exist for logs and tests.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, field string, status int) *APIError {
	return &APIError{Code: code, Message: message, Field: field, HTTPStatus: status}
}
