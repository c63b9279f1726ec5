package model

// The engine's error taxonomy. Each kind maps to one stable wire code;
// handlers match with errors.As. Validation errors surface before any
// mutation, so a failed submit never leaves partial state.

// NotFoundError means the target event does not resolve.
type NotFoundError string

func (e NotFoundError) Error() string { return string(e) }

// InvalidRelationError means the relation shape or target eligibility
// rules were violated (missing key, membership or redacted target, wrong
// relation type for aggregation).
type InvalidRelationError string

func (e InvalidRelationError) Error() string { return string(e) }

// InvalidCursorError means a pagination token was malformed or was issued
// by a different query. Clients recover by re-requesting without a token.
type InvalidCursorError string

func (e InvalidCursorError) Error() string { return string(e) }

// PermissionError carries a rejection from the membership collaborator;
// the engine never produces one on its own.
type PermissionError string

func (e PermissionError) Error() string { return string(e) }
