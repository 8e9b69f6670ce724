package config

import "time"

func durationValue(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func DrainIntervalDuration() time.Duration   { return durationValue(DrainInterval(), 30*time.Second) }
func CleanupIntervalDuration() time.Duration { return durationValue(CleanupInterval(), time.Hour) }
func LLMCallTimeoutDuration() time.Duration  { return durationValue(LLMCallTimeout(), 60*time.Second) }
