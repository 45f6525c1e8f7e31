package unleash

import "time"

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoffFactor times base.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}

	factor := 1
	for range failures {
		factor *= 2
		if factor >= maxBackoffFactor {
			factor = maxBackoffFactor
			break
		}
	}

	return time.Duration(factor) * base
}
