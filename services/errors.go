package services

import "fmt"

// InvalidTransitionError is returned when a transition trigger does not apply
// to the order's current status. The order is left untouched.
type InvalidTransitionError struct {
	Status  string
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %q is not allowed from status %q", e.Trigger, e.Status)
}

// ValidationError is returned when a transition payload omits a required field
// or carries a malformed value. It is raised before any store write happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "is required"}
}
