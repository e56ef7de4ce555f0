// Package cuid2 generates collision-resistant row IDs with a typed prefix
// and a time-sortable head, e.g. "run_1rK5iqa8Xw0mPz3kTuVbN4cQ".
package cuid2

import (
	"crypto/rand"
	"time"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	timestampLen = 6
	randomLen    = 18
)

// New returns "<prefix>_<timestamp><random>": a six-character base62 Unix
// timestamp for B-tree index locality followed by eighteen random base62
// characters (about 107 bits of entropy).
func New(prefix string) string {
	buf := make([]byte, 0, len(prefix)+1+timestampLen+randomLen)
	buf = append(buf, prefix...)
	buf = append(buf, '_')
	buf = appendTimestamp(buf, time.Now().Unix())
	buf = appendRandom(buf, randomLen)
	return string(buf)
}

// appendTimestamp encodes seconds as fixed-width base62, most significant
// digit first, so later IDs sort after earlier ones. Six digits cover
// timestamps until roughly year 3800.
func appendTimestamp(buf []byte, seconds int64) []byte {
	var digits [timestampLen]byte
	for i := timestampLen - 1; i >= 0; i-- {
		digits[i] = alphabet[seconds%62]
		seconds /= 62
	}
	return append(buf, digits[:]...)
}

// appendRandom draws uniform base62 characters by rejection sampling random
// bytes. 248 is the largest multiple of 62 below 256; accepting bytes past
// it would skew the distribution toward the low end of the alphabet.
func appendRandom(buf []byte, n int) []byte {
	raw := make([]byte, 2*n)
	for n > 0 {
		if _, err := rand.Read(raw); err != nil {
			panic("cuid2: read random bytes: " + err.Error())
		}
		for _, b := range raw {
			if b >= 248 {
				continue
			}
			buf = append(buf, alphabet[int(b)%62])
			if n--; n == 0 {
				break
			}
		}
	}
	return buf
}
