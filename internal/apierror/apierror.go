// Package apierror provides the error envelope returned by every 4xx/5xx
// response. Internal details (stack traces, SQL errors) never go through it.
package apierror

// APIError is the canonical error body: {"error": "...", "details": {...}}.
type APIError struct {
	Message string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Message: msg}
}

// WithDetails attaches structured context, e.g. the offending product.
func WithDetails(msg string, details map[string]interface{}) *APIError {
	return &APIError{Message: msg, Details: details}
}

// NewValidation wraps per-field validation failures.
func NewValidation(fields map[string]string) *APIError {
	details := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return &APIError{Message: "validation failed", Details: details}
}
