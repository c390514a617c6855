// Package utils holds small shared helpers.
package utils

import "hash/fnv"

// Fingerprint hashes a SQL string to a stable 64-bit key. Used as the
// lookup key for per-connection prepared-statement caching.
func Fingerprint(sql string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sql))
	return h.Sum64()
}
