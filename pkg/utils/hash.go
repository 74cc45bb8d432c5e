package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// HashString returns the hex MD5 digest of input. It keys embedding
// cache entries and derives article ids from URLs; it is an identifier,
// not a security primitive.
func HashString(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
