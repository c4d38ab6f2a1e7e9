package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Bookkeeping fields that never count as content. is_deleted stays in:
// a tombstone and a live record with the same fields are different
// things and must be detected as a conflict.
var nonContentFields = []string{"local_updated_at", "created_at", "updated_at"}

// ContentHash returns a deterministic SHA256 hex digest over a record's
// substantive fields. Two records hash equal exactly when a sync cycle
// has nothing to reconcile between them.
//
// The record is serialized to JSON, the bookkeeping timestamps are
// stripped, and the remaining fields are re-serialized through a map so
// key order is canonical regardless of struct layout.
func ContentHash(rec any) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to serialize record: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("failed to normalize record: %w", err)
	}

	for _, f := range nonContentFields {
		delete(fields, f)
	}

	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize record: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SameContent reports whether two records carry identical substantive
// fields. Timestamp-only differences do not count.
func SameContent(a, b any) (bool, error) {
	hashA, err := ContentHash(a)
	if err != nil {
		return false, err
	}
	hashB, err := ContentHash(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}
