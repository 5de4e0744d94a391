package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainProgram prefixes program hashes. The version suffix enables future
// algorithm migration.
const DomainProgram = "tickloop/program/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes a content-addressed identity for a job set.
//
// Job order is significant: installation order decides registration order,
// which is visible in traces.
func ProgramHash(jobs []JobSpec) (string, error) {
	list := make([]any, len(jobs))
	for i, j := range jobs {
		list[i] = j.CanonicalMap()
	}

	canonical, err := MarshalCanonical(map[string]any{
		"engine_version": EngineVersion,
		"jobs":           list,
	})
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainProgram, canonical), nil
}
