package loop

// IsExpired reports whether a loop started at startMs has run for at least
// totalDurationMs by nowMs. The boundary itself counts as expired.
func IsExpired(startMs, nowMs, totalDurationMs int64) bool {
	return nowMs >= startMs+totalDurationMs
}
