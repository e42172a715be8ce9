package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the encoding
// to change without colliding with older hashes.
const (
	DomainDefinition = "noise/definition/v1"
	DomainSnapshot   = "noise/snapshot/v1"
)

// HashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null separator keeps domain and data boundaries unambiguous.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DefinitionHash computes the content id of a composition definition.
// Two definitions with identical ids, types, settings and child order hash
// identically.
func DefinitionHash(d NodeDef) (string, error) {
	canonical, err := MarshalCanonical(DefinitionObject(d))
	if err != nil {
		return "", fmt.Errorf("DefinitionHash: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainDefinition, canonical), nil
}
