// Package contact normalizes and classifies recipient contact values (phone
// numbers and email addresses) attached to letter notifications.
package contact

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes avoid recompilation on every call.
var (
	// reEmail is intentionally conservative: local@domain.tld with a 2+ letter TLD.
	reEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// reLocalPhone is the short local format: eight digits starting with 6, 8 or 9.
	reLocalPhone = regexp.MustCompile(`^[689]\d{7}$`)

	// reIntlPhone is E.164: "+" then 7 to 15 digits, no leading zero.
	reIntlPhone = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
)

// Kind classifies a contact value.
type Kind int

const (
	KindUnknown Kind = iota
	KindEmail
	KindLocalPhone
	KindIntlPhone
)

func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindLocalPhone:
		return "local_phone"
	case KindIntlPhone:
		return "intl_phone"
	default:
		return "unknown"
	}
}

// LooksLikeEmail returns true if s matches a conservative email pattern.
//
// This is not a full RFC 5322 parser; it targets the addresses people type
// into a spreadsheet.
func LooksLikeEmail(s string) bool {
	return reEmail.MatchString(strings.TrimSpace(s))
}

// NormalizePhone strips the separators people commonly type into phone
// numbers (spaces, dashes, dots, parentheses). It does not add or remove a
// country prefix.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LooksLikePhone reports whether s, after NormalizePhone, is either a local or
// an international phone number.
func LooksLikePhone(s string) bool {
	k := Classify(s)
	return k == KindLocalPhone || k == KindIntlPhone
}

// Classify returns the kind of contact value s holds.
func Classify(s string) Kind {
	if LooksLikeEmail(s) {
		return KindEmail
	}
	p := NormalizePhone(s)
	switch {
	case reLocalPhone.MatchString(p):
		return KindLocalPhone
	case reIntlPhone.MatchString(p):
		return KindIntlPhone
	}
	return KindUnknown
}
