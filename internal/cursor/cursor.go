// Package cursor implements the opaque pagination tokens handed out by
// relation and aggregation queries. A token is versioned JSON wrapped in
// URL-safe base64, tagged with the shape of the query that issued it and a
// hash of that query's filters, so a token can never silently cross into a
// different query. Tokens are self-contained watermarks: the server keeps
// no per-client pagination state.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Version is the current token format version. Decode rejects anything else.
const Version = 1

// Shape identifies the query type a token belongs to.
type Shape string

const (
	// ShapeRelations paginates raw relation edges under one target.
	ShapeRelations Shape = "rel"
	// ShapeGroups paginates aggregation groups ranked by count.
	ShapeGroups Shape = "grp"
	// ShapeGroupEvents paginates the edges of one (event_type, key) group.
	ShapeGroupEvents Shape = "gev"
)

// IsValid reports whether s is a known query shape.
func (s Shape) IsValid() bool {
	switch s {
	case ShapeRelations, ShapeGroups, ShapeGroupEvents:
		return true
	}
	return false
}

// Cursor is the decoded form of a pagination token. Relation-shaped
// cursors carry the (topological, stream) watermark of the last returned
// edge; group-shaped cursors carry the (count, first stream) rank of the
// last returned group.
type Cursor struct {
	Version int    `json:"v"`
	Shape   Shape  `json:"shape"`
	Filter  string `json:"filter,omitempty"`

	Topological int64 `json:"topo,omitempty"`
	Stream      int64 `json:"stream,omitempty"`

	Count       int64 `json:"count,omitempty"`
	FirstStream int64 `json:"first,omitempty"`
}

// ForRelations builds a cursor resuming a raw relation page below the
// given edge position.
func ForRelations(filter string, topological, stream int64) *Cursor {
	return &Cursor{
		Version:     Version,
		Shape:       ShapeRelations,
		Filter:      filter,
		Topological: topological,
		Stream:      stream,
	}
}

// ForGroups builds a cursor resuming a group page after the given rank.
func ForGroups(filter string, count, firstStream int64) *Cursor {
	return &Cursor{
		Version:     Version,
		Shape:       ShapeGroups,
		Filter:      filter,
		Count:       count,
		FirstStream: firstStream,
	}
}

// ForGroupEvents builds a cursor resuming a within-group page below the
// given edge position.
func ForGroupEvents(filter string, topological, stream int64) *Cursor {
	return &Cursor{
		Version:     Version,
		Shape:       ShapeGroupEvents,
		Filter:      filter,
		Topological: topological,
		Stream:      stream,
	}
}

// Encode serializes the cursor to an opaque URL-safe token.
func (c *Cursor) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("cursor: encode: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode parses an opaque token. It rejects empty, non-base64, non-JSON,
// wrong-version, and unknown-shape tokens.
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, fmt.Errorf("cursor: empty token")
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid encoding: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid payload: %w", err)
	}
	if c.Version != Version {
		return nil, fmt.Errorf("cursor: unsupported version %d", c.Version)
	}
	if !c.Shape.IsValid() {
		return nil, fmt.Errorf("cursor: unknown shape %q", c.Shape)
	}
	return &c, nil
}

// ValidateShape rejects a token issued by a different query type.
func (c *Cursor) ValidateShape(want Shape) error {
	if c.Shape != want {
		return fmt.Errorf("cursor: token for %q used on %q query", c.Shape, want)
	}
	return nil
}

// ValidateFilter rejects a token issued under different query filters.
func (c *Cursor) ValidateFilter(hash string) error {
	if c.Filter != hash {
		return fmt.Errorf("cursor: token does not match query filters")
	}
	return nil
}

// HashFilter derives the filter fingerprint embedded in tokens from the
// identifying parts of a query (target, relation type, event type, key).
func HashFilter(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}
