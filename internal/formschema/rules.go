package formschema

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Rules tell the extractor where the fields are on a page. The zero value
// is not useful; start from DefaultRules.
type Rules struct {
	// FieldSelector matches the input elements that carry a field id.
	FieldSelector string `json:"field_selector"`

	// IDAttr is the attribute holding the id.
	IDAttr string `json:"id_attr"`

	// IDMatch filters attribute values. When it has a capture group, group 1
	// is the id.
	IDMatch string `json:"id_match"`

	// LabelSelector, when set, finds the label text inside the nearest
	// ancestor (up to three levels) that contains a match. Otherwise the
	// label comes from <label for=id>, then aria-label, then placeholder.
	LabelSelector string `json:"label_selector,omitempty"`
}

// DefaultRules match form elements whose id is a 24 hex character field id.
func DefaultRules() Rules {
	return Rules{
		FieldSelector: "input[id], textarea[id], select[id]",
		IDAttr:        "id",
		IDMatch:       `^([0-9a-fA-F]{24})$`,
	}
}

// LoadRules reads a JSON rules file; missing keys keep their defaults.
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	b, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read rules file: %w", err)
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("parse rules json: %w", err)
	}
	if strings.TrimSpace(r.FieldSelector) == "" || strings.TrimSpace(r.IDAttr) == "" {
		return r, fmt.Errorf("rules need field_selector and id_attr")
	}
	if _, err := r.compile(); err != nil {
		return r, err
	}
	return r, nil
}

func (r Rules) compile() (*regexp.Regexp, error) {
	if strings.TrimSpace(r.IDMatch) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(r.IDMatch)
	if err != nil {
		return nil, fmt.Errorf("invalid id_match regex: %w", err)
	}
	return re, nil
}

// applyRegexFilter returns "" when re does not match, group 1 when re has a
// group, else the full match.
func applyRegexFilter(value string, re *regexp.Regexp) string {
	if value == "" || re == nil {
		return value
	}
	sm := re.FindStringSubmatch(value)
	if len(sm) == 0 {
		return ""
	}
	if len(sm) > 1 {
		return sm[1]
	}
	return sm[0]
}
