package cursor

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		c    *Cursor
	}{
		{"Relations", ForRelations(HashFilter("$t", "m.annotation", "m.reaction", ""), 42, 99)},
		{"Groups", ForGroups(HashFilter("$t", "", "", ""), 7, 3)},
		{"GroupEvents", ForGroupEvents(HashFilter("$t", "m.annotation", "m.reaction", "👍"), 5, 5)},
		{"ZeroPositions", ForRelations("", 0, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			token, err := tc.c.Encode()
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			got, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", token, err)
			}
			if *got != *tc.c {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tc.c)
			}
		})
	}
}

func TestTokenIsOpaqueURLSafe(t *testing.T) {
	token, err := ForRelations(HashFilter("$t"), 1, 2).Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if strings.ContainsAny(token, "+/ \n") {
		t.Errorf("token %q contains characters unsafe in a query string", token)
	}
}

func TestDecodeErrors(t *testing.T) {
	badVersion, _ := (&Cursor{Version: 99, Shape: ShapeRelations}).Encode()
	badShape, _ := (&Cursor{Version: Version, Shape: Shape("bogus")}).Encode()
	notJSON := base64.URLEncoding.EncodeToString([]byte("not json"))

	for _, tc := range []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"NotBase64", "%%not-base64%%"},
		{"NotJSON", notJSON},
		{"WrongVersion", badVersion},
		{"UnknownShape", badShape},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.token); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tc.token)
			}
		})
	}
}

func TestValidateShape(t *testing.T) {
	c := ForGroups("f", 3, 1)
	if err := c.ValidateShape(ShapeGroups); err != nil {
		t.Errorf("matching shape rejected: %v", err)
	}
	if err := c.ValidateShape(ShapeRelations); err == nil {
		t.Error("groups token accepted by relations query")
	}
	if err := c.ValidateShape(ShapeGroupEvents); err == nil {
		t.Error("groups token accepted by group-events query")
	}
}

func TestValidateFilter(t *testing.T) {
	h := HashFilter("$target", "m.annotation", "m.reaction", "a")
	c := ForGroupEvents(h, 10, 10)
	if err := c.ValidateFilter(h); err != nil {
		t.Errorf("matching filter rejected: %v", err)
	}
	other := HashFilter("$target", "m.annotation", "m.reaction", "b")
	if err := c.ValidateFilter(other); err == nil {
		t.Error("token accepted under different filters")
	}
}

func TestHashFilter(t *testing.T) {
	a := HashFilter("$t", "m.annotation", "m.reaction", "a")
	if a != HashFilter("$t", "m.annotation", "m.reaction", "a") {
		t.Error("hash is not deterministic")
	}
	if a == HashFilter("$t", "m.annotation", "m.reaction", "b") {
		t.Error("different keys must hash differently")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16 hex chars", len(a))
	}
}

func TestDistinctPositionsDistinctTokens(t *testing.T) {
	t1, err := ForRelations("f", 10, 10).Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	t2, err := ForRelations("f", 9, 9).Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if t1 == t2 {
		t.Error("cursors at different positions produced the same token")
	}
}
