// Package letters submits generated letter requests to the letter backend
// as one bulk request.
package letters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"prefill/internal/output"
)

// BulkRequest is the body of POST /v1/letters/bulks.
type BulkRequest struct {
	TemplateID         int                 `json:"templateId"`
	LettersParams      []map[string]string `json:"lettersParams"`
	NotificationMethod string              `json:"notificationMethod,omitempty"`
	Recipients         []string            `json:"recipients,omitempty"`
}

// BulkResult is the backend's answer. Exactly one of BatchID and Errors is
// set.
type BulkResult struct {
	BatchID string
	Errors  []APIError
}

// APIError is one rejection reason. ID, when present, is the index of the
// offending letter.
type APIError struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts a numeric or string id.
func (e *APIError) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID      json.RawMessage `json:"id"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Message = raw.Message
	e.ID = ""
	if id := bytes.TrimSpace(raw.ID); len(id) > 0 && !bytes.Equal(id, []byte("null")) {
		var s string
		if json.Unmarshal(id, &s) == nil {
			e.ID = s
		} else {
			e.ID = string(id)
		}
	}
	return nil
}

func (e APIError) String() string {
	if e.ID == "" {
		return e.Message
	}
	return "letter " + e.ID + ": " + e.Message
}

// Notification attaches recipients to a bulk request. Method is "sms" or
// "email".
type Notification struct {
	Method     string
	Recipients []string
}

// BuildBulkRequest assembles the request body. templateID must be a positive
// integer. A nil or method-less notification sends no recipients; otherwise
// there must be one recipient per letter.
func BuildBulkRequest(templateID string, reqs []output.LetterRequest, n *Notification) (BulkRequest, error) {
	id, err := strconv.Atoi(strings.TrimSpace(templateID))
	if err != nil || id <= 0 {
		return BulkRequest{}, fmt.Errorf("letters: template id %q is not a positive integer", templateID)
	}
	if len(reqs) == 0 {
		return BulkRequest{}, fmt.Errorf("letters: no letters to submit")
	}

	out := BulkRequest{
		TemplateID:    id,
		LettersParams: make([]map[string]string, len(reqs)),
	}
	for i, r := range reqs {
		out.LettersParams[i] = r.Params
	}

	if n == nil || n.Method == "" {
		return out, nil
	}
	if len(n.Recipients) != len(reqs) {
		return BulkRequest{}, fmt.Errorf("letters: %d recipients for %d letters", len(n.Recipients), len(reqs))
	}
	out.NotificationMethod = strings.ToUpper(n.Method)
	out.Recipients = append([]string(nil), n.Recipients...)
	return out, nil
}
