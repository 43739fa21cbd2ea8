package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize lowercases and trims an address so uniqueness checks are
// case-insensitive.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Valid reports whether address is a bare RFC 5322 address (no display name).
func Valid(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Address == address
}

// DisplayName returns the trimmed contact name, or one derived from the local
// part of the address when the name is blank ("ada.lovelace@x.io" -> "Ada Lovelace").
func DisplayName(name, address string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}

	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "there"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
