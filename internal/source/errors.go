package source

import "strings"

// ErrorCategory classifies pipeline failures for telemetry.
type ErrorCategory int

const (
	// ErrCategoryNetwork: connection, timeout, DNS
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec: decode or negotiation failures
	ErrCategoryCodec
	// ErrCategoryAuth: credentials rejected
	ErrCategoryAuth
	// ErrCategoryUnknown: unclassified
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// ErrorCategories lists every category in order.
func ErrorCategories() []ErrorCategory {
	return []ErrorCategory{ErrCategoryNetwork, ErrCategoryCodec, ErrCategoryAuth, ErrCategoryUnknown}
}

var (
	authKeywords = []string{
		"unauthorized", "401", "403", "forbidden", "authentication", "credentials",
	}
	codecKeywords = []string{
		"codec", "decode", "format", "negotiat", "caps", "h264", "h265",
		"no decoder", "missing plugin",
	}
	networkKeywords = []string{
		"connection", "timeout", "timed out", "unreachable", "network", "dns",
		"resolve", "socket", "tcp", "udp", "could not connect", "failed to connect",
		"not found",
	}
)

// ClassifyError categorizes a pipeline error from its message and debug
// string. Auth is checked first, then codec, then network.
func ClassifyError(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
