package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}

// ParseOptionalTime parses an RFC3339 timestamp; empty input yields nil.
func ParseOptionalTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q, want RFC3339", s)
	}
	return &t, nil
}

// ClientIP picks the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(forwardedFor, realIP, peer string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return ip
	}
	return peer
}
