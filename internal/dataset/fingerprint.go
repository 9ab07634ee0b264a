package dataset

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// idLength is the number of hex characters of the fingerprint used as ID
const idLength = 16

// Fingerprint hashes the raw source bytes together with the selected columns.
// The same file read with a different column mapping yields a different dataset.
func Fingerprint(raw []byte, yearCol, levelCol string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(yearCol))
	h.Write([]byte{0})
	h.Write([]byte(levelCol))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// IDFromFingerprint shortens a fingerprint into a dataset ID
func IDFromFingerprint(fp string) string {
	if len(fp) <= idLength {
		return fp
	}
	return fp[:idLength]
}
