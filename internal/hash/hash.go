// Package hash computes deterministic content digests of schema values.
//
// Values are canonicalized to JSON with object keys in sorted order before
// hashing, so two semantically identical schemas hash identically no matter
// how their keys were ordered by the loader. The digest is SHA-256,
// hex-encoded (64 characters).
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"schemavault/internal/core"
)

// Canonical returns the canonical JSON bytes of v: object keys sorted,
// no HTML escaping, no trailing newline.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonicalizing value: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Schema returns the content digest of a whole entities value.
// The digest depends only on the entities content, never on metadata.
func Schema(entities core.Entities) (string, error) {
	return digest(entities)
}

// Entity returns the content digest of a single top-level entity value.
// Used for entity-level change detection, independent of the whole-schema hash.
func Entity(value any) (string, error) {
	return digest(value)
}

func digest(v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
