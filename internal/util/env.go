// Package util parses the optional environment settings of LineConcierge.
package util

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseBoolEnv reads key as a boolean. It accepts true/1/yes/on and
// false/0/no/off in any case; unset or invalid values return defaultValue.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: invalid boolean, using default", "key", key, "value", val, "default", defaultValue)
	return defaultValue
}

// ParseDurationEnv reads key with time.ParseDuration. Negative, unset or
// invalid values return defaultValue.
func ParseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		slog.Warn("ParseDurationEnv: invalid duration, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
	return d
}
