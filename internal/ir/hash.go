package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainModule = "membrane/module/v1"
	DomainTrace  = "membrane/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModuleID computes the content-addressed ID of module metadata. meta is
// any canonical-marshalable tree (usually the frozen metadata record).
func ModuleID(meta any) (string, error) {
	canonical, err := MarshalCanonical(meta)
	if err != nil {
		return "", fmt.Errorf("ModuleID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModule, canonical), nil
}

// TraceHash computes the digest of a canonical trace document.
func TraceHash(trace any) (string, error) {
	canonical, err := MarshalCanonical(trace)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustModuleID is like ModuleID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustModuleID(meta any) string {
	id, err := ModuleID(meta)
	if err != nil {
		panic(err)
	}
	return id
}
