package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrQueryEmpty is returned when the query is empty or whitespace-only after trim.
	ErrQueryEmpty = errors.New("query is required")

	ErrQueryTooLong = errors.New("query too long")

	// ErrQueryInvalidChars is returned when the query contains characters no
	// Indonesian place name uses.
	ErrQueryInvalidChars = errors.New("query contains invalid characters")
)

// MaxQueryLength bounds city queries in runes.
const MaxQueryLength = 100

// ValidateQuery trims a city query, enforces MaxQueryLength and restricts it
// to letters, digits, space, comma, hyphen, dot and apostrophe
// ("Pangkal Pinang", "Bau-Bau", "Kab. Bogor", "Ma'rang").
func ValidateQuery(input string) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrQueryEmpty
	}
	if len(r) > MaxQueryLength {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// ValidatePrefix is the autocomplete variant: an empty prefix is allowed and
// means "clear suggestions".
func ValidatePrefix(input string) (string, error) {
	s, err := ValidateQuery(input)
	if errors.Is(err, ErrQueryEmpty) {
		return "", nil
	}
	return s, err
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
