// Package mac normalizes and validates hardware addresses.
//
// Addresses arrive from antenna firmware in several shapes ("AA:BB:CC:DD:EE:FF",
// "aa-bb-cc-dd-ee-ff", bare hex). The canonical form everywhere downstream is
// 12 lowercase hex characters with no separators, which is also what the
// partition identifiers are built from.
package mac

import "strings"

// Normalize lowercases s and strips the common separator characters.
// It does not validate; pair with Valid before using the result in identifiers
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ':' || c == '-' || c == '.':
			continue
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Valid reports whether s is exactly 12 lowercase hex characters.
// Only addresses passing Valid may ever be spliced into a table name
func Valid(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Prefix returns the 6-character vendor prefix of a normalized address,
// or "" when the address is too short
func Prefix(s string) string {
	if len(s) < 6 {
		return ""
	}
	return s[:6]
}

// ContainsNUL reports whether any of the given strings embeds a NUL byte.
// Postgres text columns reject NUL, so such events are dropped at the door
func ContainsNUL(ss ...string) bool {
	for _, s := range ss {
		if strings.IndexByte(s, 0) >= 0 {
			return true
		}
	}
	return false
}
