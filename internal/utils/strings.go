package utils

import (
	"net/mail"
	"strings"

	"github.com/samber/lo"
)

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSeat upper-cases and trims a seat identifier.
func NormalizeSeat(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSeats cleans seat identifiers while keeping request order.
// Blank entries are dropped; duplicates are kept so callers can reject them.
func NormalizeSeats(seats []string) []string {
	return lo.Filter(lo.Map(seats, func(s string, _ int) string {
		return NormalizeSeat(s)
	}), func(s string, _ int) bool {
		return s != ""
	})
}

// DuplicateSeats returns seats listed more than once.
func DuplicateSeats(seats []string) []string {
	return lo.FindDuplicates(seats)
}

// SplitSeatList splits comma/semicolon separated seat strings into cleaned slices.
func SplitSeatList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	return NormalizeSeats(parts)
}

// ValidEmail accepts a bare address (no display name).
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, ".")
}
