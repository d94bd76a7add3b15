package store

// IsExpired reports whether an entry expiring at expiresAtMs is gone at
// nowMs. Reaching the instant exactly counts as expired.
func IsExpired(expiresAtMs, nowMs int64) bool {
	return nowMs >= expiresAtMs
}

// ExpiresAt turns a relative TTL into an absolute instant.
func ExpiresAt(nowMs, ttlMs int64) int64 {
	return nowMs + ttlMs
}
