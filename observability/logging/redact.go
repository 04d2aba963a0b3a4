package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces string values logged under keys outside the safe set.
const Redacted = "[REDACTED]"

var safeKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"error":     {},
	"reason":    {},
	"component": {},
	"op":        {},
	"result":    {},
	"record":    {},
	"maker":     {},
	"taker":     {},
	"mint":      {},
	"holding":   {},
	"address":   {},
}

// Safe reports whether string values logged under key are emitted verbatim.
func Safe(key string) bool {
	_, ok := safeKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

func redact(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || Safe(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, Redacted)
}
