package protocol

import "time"

// Telemetry goes stale fast; commands are resent by the adapter anyway.
var defaultTTLs = map[string]time.Duration{
	TypeFleetState: 5 * time.Second,

	TypePathRequest: 30 * time.Second,
	TypeModeRequest: 30 * time.Second,

	TypeLaneRequest: time.Minute,

	TypeClosedLanes: 10 * time.Minute,
	TypeRobotEvent:  10 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	if env.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
