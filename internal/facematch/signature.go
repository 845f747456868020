package facematch

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"
)

// Signature fingerprints a photo set together with the profile version it was scanned
// against. Equal signatures mean the cached results are still valid.
type Signature string

// ComputeSignature returns the signature of photos scanned against a profile at version
// profileVersion (the profile's UpdatedAt). Input order does not matter; duplicates do.
func ComputeSignature(photos []PhotoRecord, profileVersion time.Time) Signature {
	keys := make([]string, len(photos))
	for i, p := range photos {
		keys[i] = p.ID + "\x00" + p.UploadedAt.UTC().Format(time.RFC3339Nano)
	}
	slices.Sort(keys)

	h := sha256.New()
	h.Write([]byte("profile\x00" + profileVersion.UTC().Format(time.RFC3339Nano) + "\n"))
	h.Write([]byte(strings.Join(keys, "\n")))
	return Signature(hex.EncodeToString(h.Sum(nil)))
}

// Short returns an abbreviated form for logs.
func (s Signature) Short() string {
	if len(s) <= 12 {
		return string(s)
	}
	return string(s[:12])
}
