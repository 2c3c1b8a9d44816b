package resolve

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
)

// Fingerprint derives a stable, privacy-preserving visitor identity from the
// client IP and user agent. The raw IP never leaves the process; only the
// keyed hash is stored or logged.
func Fingerprint(secret []byte, ip, userAgent string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(ip))
	h.Write([]byte("|"))
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil))
}

// Bucket maps a fingerprint onto 0-99. The same fingerprint always lands in
// the same bucket, which is what makes A/B assignment reproducible without
// any stored per-visitor state.
func Bucket(fingerprint string) int {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	return int(h.Sum32() % 100)
}
