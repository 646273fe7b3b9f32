// Package pairtree maps identifiers onto Pairtree directory hierarchies and
// stores derivative files in them.
package pairtree

import (
	"path"
	"strings"
)

const (
	Root        = "pairtree_root"
	PrefixFile  = "pairtree_prefix"
	VersionFile = "pairtree_version0_1"

	versionText = "This directory conforms to Pairtree Version 0.1. Updated spec: " +
		"https://confluence.ucop.edu/display/Curation/PairTree\n"
)

const hexDigits = "0123456789abcdef"

// EncodeID applies Pairtree identifier cleaning: reserved and non-visible
// bytes become ^hh, then '/', ':' and '.' are replaced by '=', '+' and ','.
func EncodeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))

	for i := 0; i < len(id); i++ {
		c := id[i]
		if needsHexEscape(c) {
			b.WriteByte('^')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
			continue
		}
		switch c {
		case '/':
			b.WriteByte('=')
		case ':':
			b.WriteByte('+')
		case '.':
			b.WriteByte(',')
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// DecodeID reverses EncodeID.
func DecodeID(encoded string) string {
	var b strings.Builder
	b.Grow(len(encoded))

	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		switch c {
		case '=':
			b.WriteByte('/')
		case '+':
			b.WriteByte(':')
		case ',':
			b.WriteByte('.')
		case '^':
			if i+2 < len(encoded) {
				hi, ok1 := unhex(encoded[i+1])
				lo, ok2 := unhex(encoded[i+2])
				if ok1 && ok2 {
					b.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func needsHexEscape(c byte) bool {
	if c < 0x21 || c > 0x7e {
		return true
	}
	return strings.IndexByte(`"*+,<=>?\^|`, c) >= 0
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Shorties splits the encoded id into two-character path segments; the last
// segment holds a single character when the length is odd.
func Shorties(id string) []string {
	encoded := EncodeID(id)
	parts := make([]string, 0, (len(encoded)+1)/2)
	for len(encoded) > 2 {
		parts = append(parts, encoded[:2])
		encoded = encoded[2:]
	}
	if encoded != "" {
		parts = append(parts, encoded)
	}
	return parts
}

// MapToPath returns base/<shorties of id>/<encoded dirName>, using forward
// slashes so the result can double as a URL path.
func MapToPath(base, id, dirName string) string {
	parts := append([]string{base}, Shorties(id)...)
	parts = append(parts, EncodeID(dirName))
	return path.Join(parts...)
}

// StripPrefix removes prefix from the start of id.
func StripPrefix(id, prefix string) string {
	return strings.TrimPrefix(id, prefix)
}
