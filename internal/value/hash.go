package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for checksum computation. Hashing different record
// shapes under distinct domains prevents a state document and, say, an
// input history that happen to serialize identically from colliding.
// The version suffix leaves room for algorithm migration.
const (
	DomainState  = "framecheck/state/v1"
	DomainInputs = "framecheck/inputs/v1"
	DomainScript = "framecheck/script/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum canonically serializes v and hashes it under the given
// domain. This is the helper host simulations use to implement their
// full-state checksum: build a map[string]any of the entire state
// (every field, not just registered debug variables) and hash it under
// DomainState.
func Checksum(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustChecksum is like Checksum but panics on error. Use only when the
// input is known to be canonically serializable, e.g. in tests.
func MustChecksum(domain string, v any) string {
	sum, err := Checksum(domain, v)
	if err != nil {
		panic(err)
	}
	return sum
}
