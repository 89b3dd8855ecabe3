package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses value, or fallback when value is blank. Zero and negative
// durations are rejected because every configured duration bounds a wait.
func DurationOrDefault(value, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	if raw == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return d, nil
}

// ServerTimeouts are the parsed HTTP server durations.
type ServerTimeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// Timeouts parses the server durations, naming the offending key on failure.
func (s ServerConfig) Timeouts() (ServerTimeouts, error) {
	var out ServerTimeouts
	fields := []struct {
		key      string
		value    string
		fallback string
		dst      *time.Duration
	}{
		{"server.read_timeout", s.ReadTimeout, DefaultServerReadTimeout, &out.Read},
		{"server.write_timeout", s.WriteTimeout, DefaultServerWriteTimeout, &out.Write},
		{"server.idle_timeout", s.IdleTimeout, DefaultServerIdleTimeout, &out.Idle},
		{"server.shutdown_timeout", s.ShutdownTimeout, DefaultServerShutdownTimeout, &out.Shutdown},
	}
	for _, f := range fields {
		d, err := DurationOrDefault(f.value, f.fallback)
		if err != nil {
			return ServerTimeouts{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = d
	}
	return out, nil
}
