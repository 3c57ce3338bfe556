// Package apierror provides standardized error response structures for the API
// and the domain error taxonomy of the ledger. All errors returned to clients go
// through this package to ensure consistency and to prevent leaking internal
// details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
	Kind   Kind   `json:"kind,omitempty"`
	// Accion tells the client what to do next ("refrescar" for state errors).
	Accion string `json:"accion,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// FromDomain builds the envelope for a DomainError.
func FromDomain(e *DomainError) *APIError {
	resp := &APIError{Detail: e.Error(), Code: e.Code, Kind: e.Kind}
	if e.Kind == KindState {
		resp.Accion = "refrescar"
	}
	return resp
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
