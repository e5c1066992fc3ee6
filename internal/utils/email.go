package utils

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// local@domain.tld, no whitespace
var addrShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@.]+$`)

var (
	ErrEmailEmpty   = errors.New("email address is empty")
	ErrEmailInvalid = errors.New("email address is not valid")
)

// NormalizeEmail returns the canonical form accounts are keyed by.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func IsValidEmail(addr string) bool {
	return ValidateEmail(addr) == nil
}

// ValidateEmail accepts a bare address only. Display names ("Ann <a@b.c>")
// parse under RFC 5322 but are rejected, as are dotless domains.
func ValidateEmail(addr string) error {
	if addr == "" {
		return ErrEmailEmpty
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || !addrShape.MatchString(addr) {
		return ErrEmailInvalid
	}
	return nil
}
