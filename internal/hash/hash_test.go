package hash

import (
	"strings"
	"testing"

	"schemavault/internal/core"
)

func TestSchema_Deterministic(t *testing.T) {
	entities := core.Entities{
		"User": map[string]any{
			"fields": map[string]any{"id": "uuid", "email": "string"},
		},
	}

	first, err := Schema(entities)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	second, err := Schema(entities)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if first != second {
		t.Errorf("Schema() not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("Schema() hash length = %d, want 64", len(first))
	}
	if first != strings.ToLower(first) {
		t.Errorf("Schema() hash not lowercase hex: %s", first)
	}
}

func TestSchema_KeyOrderIndependent(t *testing.T) {
	// Two maps with the same content hash identically; Go maps have no
	// stable iteration order, so this exercises canonical key sorting.
	a := core.Entities{
		"User": map[string]any{"email": "string", "id": "uuid", "name": "string"},
		"Post": map[string]any{"title": "string", "body": "text"},
	}
	b := core.Entities{
		"Post": map[string]any{"body": "text", "title": "string"},
		"User": map[string]any{"name": "string", "id": "uuid", "email": "string"},
	}

	hashA, err := Schema(a)
	if err != nil {
		t.Fatalf("Schema(a) error = %v", err)
	}
	hashB, err := Schema(b)
	if err != nil {
		t.Fatalf("Schema(b) error = %v", err)
	}
	if hashA != hashB {
		t.Errorf("Schema() differs for identical content: %s != %s", hashA, hashB)
	}
}

func TestSchema_ContentSensitive(t *testing.T) {
	base := core.Entities{
		"User": map[string]any{"fields": map[string]any{"id": "uuid"}},
	}
	baseHash, err := Schema(base)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}

	tests := []struct {
		name     string
		entities core.Entities
	}{
		{
			name: "changed field type",
			entities: core.Entities{
				"User": map[string]any{"fields": map[string]any{"id": "int"}},
			},
		},
		{
			name: "added field",
			entities: core.Entities{
				"User": map[string]any{"fields": map[string]any{"id": "uuid", "email": "string"}},
			},
		},
		{
			name: "added entity",
			entities: core.Entities{
				"User": map[string]any{"fields": map[string]any{"id": "uuid"}},
				"Post": map[string]any{"fields": map[string]any{"id": "uuid"}},
			},
		},
		{
			name:     "empty schema",
			entities: core.Entities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Schema(tt.entities)
			if err != nil {
				t.Fatalf("Schema() error = %v", err)
			}
			if got == baseHash {
				t.Errorf("Schema() = %s, want a hash different from base", got)
			}
		})
	}
}

func TestEntity_IndependentOfSiblings(t *testing.T) {
	userValue := map[string]any{"fields": map[string]any{"id": "uuid"}}

	alone, err := Entity(userValue)
	if err != nil {
		t.Fatalf("Entity() error = %v", err)
	}

	// The same value hashed again yields the same digest; entity digests
	// never depend on what else is in the schema.
	again, err := Entity(map[string]any{"fields": map[string]any{"id": "uuid"}})
	if err != nil {
		t.Fatalf("Entity() error = %v", err)
	}
	if alone != again {
		t.Errorf("Entity() = %s, want %s", again, alone)
	}
}

func TestCanonical(t *testing.T) {
	t.Run("sorts object keys", func(t *testing.T) {
		data, err := Canonical(map[string]any{"b": 1, "a": 2})
		if err != nil {
			t.Fatalf("Canonical() error = %v", err)
		}
		if got := string(data); got != `{"a":2,"b":1}` {
			t.Errorf("Canonical() = %s, want {\"a\":2,\"b\":1}", got)
		}
	})

	t.Run("no trailing newline", func(t *testing.T) {
		data, err := Canonical("x")
		if err != nil {
			t.Fatalf("Canonical() error = %v", err)
		}
		if strings.HasSuffix(string(data), "\n") {
			t.Errorf("Canonical() output ends with newline: %q", data)
		}
	})

	t.Run("does not escape HTML characters", func(t *testing.T) {
		data, err := Canonical("a<b>&c")
		if err != nil {
			t.Fatalf("Canonical() error = %v", err)
		}
		if got := string(data); got != `"a<b>&c"` {
			t.Errorf("Canonical() = %s, want %s", got, `"a<b>&c"`)
		}
	})

	t.Run("rejects unencodable values", func(t *testing.T) {
		if _, err := Canonical(map[string]any{"fn": func() {}}); err == nil {
			t.Error("Canonical() expected error for func value")
		}
	})
}
