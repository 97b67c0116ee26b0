// Package validate holds the stateless checks that gate each stage of
// generation. Every check returns nil or the first violation found, as a
// *schema.Error of a distinct kind.
package validate

import (
	"regexp"
	"strings"

	"prefill/internal/combination"
	"prefill/internal/contact"
	"prefill/internal/schema"
)

var (
	// reFieldID is a form field identifier: 24 hex characters.
	reFieldID = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

	// reFormURL is a form's public URL: https://form.gov.sg/<24 hex>.
	reFormURL = regexp.MustCompile(`^https://form\.gov\.sg/[0-9a-fA-F]{24}$`)
)

// Notification methods accepted by Recipients.
const (
	MethodSMS   = "sms"
	MethodEmail = "email"
)

// Table checks the parsed source before any mapping: it must have rows, no
// duplicate headers after trimming, and every required header. Blank headers
// name no column and are ignored.
func Table(t schema.Table, requiredHeaders []string) error {
	seen := make(map[string]struct{}, len(t.Headers))
	for _, h := range t.Headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			return schema.Errorf(schema.ErrStructuralCsv, "duplicate header %q", h)
		}
		seen[h] = struct{}{}
	}
	if len(seen) == 0 {
		return schema.Errorf(schema.ErrStructuralCsv, "file has no header row")
	}
	if len(t.Rows) == 0 {
		return schema.Errorf(schema.ErrStructuralCsv, "file has no data rows")
	}
	for _, want := range requiredHeaders {
		if _, ok := seen[want]; !ok {
			return schema.Errorf(schema.ErrStructuralCsv, "missing required header %q", want)
		}
	}
	return nil
}

// FieldID checks one field identifier. index is the source row (0-based) or
// -1 when not row-bound.
func FieldID(id string, index int) error {
	if !reFieldID.MatchString(id) {
		return schema.FieldErrorf(schema.ErrIdentifierFormat, id, index, "field id must be 24 hexadecimal characters")
	}
	return nil
}

// FormURL checks the base URL links are generated from.
func FormURL(u string) error {
	if !reFormURL.MatchString(u) {
		return schema.Errorf(schema.ErrURLFormat, "%q is not of the form https://form.gov.sg/<24 hex id>", u)
	}
	return nil
}

// Complete checks that every required field has a non-empty value in every
// combination. Fields absent from a combination count as empty.
func Complete(fields schema.FieldSet, combos []combination.Combination) error {
	required := fields.Required()
	for _, c := range combos {
		for _, f := range required {
			v, _ := c.Value(f.Name)
			if strings.TrimSpace(v) == "" {
				return schema.FieldErrorf(schema.ErrRequiredFieldMissing, f.Name, c.Index, "required value is empty")
			}
		}
	}
	return nil
}

// Recipients checks every recipient against the notification method: SMS
// recipients must be local (8 digits starting 6, 8 or 9) or international
// (+country code) numbers, email recipients must look like local@domain.tld.
func Recipients(method string, recipients []string) error {
	check := contact.LooksLikeEmail
	switch method {
	case MethodEmail:
	case MethodSMS:
		check = contact.LooksLikePhone
	default:
		return schema.Errorf(schema.ErrRecipientFormat, "unknown notification method %q", method)
	}
	for i, r := range recipients {
		if !check(r) {
			return schema.FieldErrorf(schema.ErrRecipientFormat, "recipient", i, "%q is not a valid %s recipient", r, method)
		}
	}
	return nil
}

// Count checks that a side list (e.g. recipients) has one entry per
// combination.
func Count(name string, got, want int) error {
	if got != want {
		return schema.FieldErrorf(schema.ErrCountMismatch, name, -1, "%d entries supplied for %d combinations", got, want)
	}
	return nil
}
