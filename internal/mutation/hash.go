package mutation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DomainMutation separates mutation hashes from any other SHA-256 use.
// The version suffix leaves room for a future normalization change.
const DomainMutation = "dmut/mutation/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize reduces src to the text that identifies it: plain comments are
// stripped, the text is NFC normalized and every whitespace run becomes a
// single space. Directive comments are kept since they change behavior.
func Normalize(src string) string {
	s := norm.NFC.String(stripComments(src))
	return strings.Join(strings.Fields(s), " ")
}

// HashSource returns the content hash of a mutation source.
func HashSource(src string) string {
	return hashWithDomain(DomainMutation, []byte(Normalize(src)))
}
