package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	raw := []byte("Year,Level\n2000,1\n")

	a := Fingerprint(raw, "Year", "Level")
	b := Fingerprint(raw, "Year", "Level")
	c := Fingerprint(raw, "Year", "Other")
	d := Fingerprint([]byte("Year,Level\n2000,2\n"), "Year", "Level")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	// column boundaries are unambiguous
	assert.NotEqual(t, Fingerprint(raw, "ab", "c"), Fingerprint(raw, "a", "bc"))
}

func TestIDFromFingerprint(t *testing.T) {
	assert.Equal(t, "0123456789abcdef", IDFromFingerprint("0123456789abcdef0123"))
	assert.Equal(t, "short", IDFromFingerprint("short"))
}
