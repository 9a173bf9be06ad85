package errors

import "fmt"

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict is returned when there's a conflict (e.g., duplicate delivery)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrUpstream is returned when the primary order-manager call fails;
// the order sync coordinator recovers from it via the fallback write path
type ErrUpstream struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *ErrUpstream) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s returned %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream %s failed: %s", e.Endpoint, e.Message)
}
