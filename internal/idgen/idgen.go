// Package idgen mints Matrix-style identifiers: a sigil character followed
// by a URL-safe random string, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Sigils for the identifier classes knot mints itself.
const (
	EventSigil = "$"
	RoomSigil  = "!"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the sigil).
var Length = 21

// Generate returns a new event ID carrying the "$" sigil.
func Generate() (string, error) {
	return GenerateWithPrefix(EventSigil)
}

// GenerateWithPrefix returns a new ID with the given sigil prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
