package otp

import (
	"crypto/hmac"
	"crypto/sha1"
)

// SHA1 returns the 20-byte SHA-1 digest of data.
func SHA1(data []byte) []byte {
	sum := sha1.Sum(data)
	return sum[:]
}

// HMACSHA1 returns HMAC-SHA1(key, data) as defined in RFC 2104.
func HMACSHA1(key, data []byte) []byte {
	m := hmac.New(sha1.New, key)
	m.Write(data)
	return m.Sum(nil)
}
