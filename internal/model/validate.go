package model

import (
	"encoding/json"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateEvent checks an event draft before persistence.
// It returns a *ValidationError if any rules fail, or nil if the event is valid.
func ValidateEvent(ev *Event) error {
	var ve ValidationError

	if strings.TrimSpace(ev.RoomID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "room_id", Message: "is required"})
	}

	// Type: must be non-empty (event types are extensible).
	if strings.TrimSpace(ev.Type) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "type", Message: "is required"})
	}

	if strings.TrimSpace(ev.Sender) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "sender", Message: "is required"})
	}

	// Content: must be valid JSON if present.
	if len(ev.Content) > 0 && !json.Valid(ev.Content) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "content",
			Message: "contains invalid JSON",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateRelationShape checks the relation rules that need no store
// access: the relation type must be present, and a reaction-style
// annotation must carry a non-empty key after trimming. Target
// eligibility (existence, membership, redaction) is checked against the
// store by the ingest path, in that order, before this rule set's key
// requirement ever persists anything.
func ValidateRelationShape(relType RelType, eventType, key string) error {
	if !relType.IsValid() {
		return InvalidRelationError("rel_type is required")
	}
	if relType == RelAnnotation && eventType == EventTypeReaction && strings.TrimSpace(key) == "" {
		return InvalidRelationError("annotation relations require a non-empty key")
	}
	return nil
}
