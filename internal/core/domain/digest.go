package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// DigestFields creates a deterministic hash from a field map. Used for the
// source hashes recorded in the lockfile, where the inputs are small and the
// digest must survive across machines and toolchain builds.
func DigestFields(fields map[string]string) string {
	// Sort keys for deterministic ordering
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var builder strings.Builder
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteString(":")
		builder.WriteString(fields[key])
		builder.WriteString(";")
	}

	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}
