package formschema

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"prefill/internal/schema"
)

const page = `<html><body><form>
  <div class="field">
    <label for="67488bb37e8c75e33b9f9191">Full   name *</label>
    <input id="67488bb37e8c75e33b9f9191" required>
  </div>
  <div class="field">
    <span class="q">Email address</span>
    <input id="67488f8e088e833537af24aa" aria-label="Email" type="email">
  </div>
  <div class="field">
    <textarea id="aaaaaaaaaaaaaaaaaaaaaaaa" placeholder="Remarks"></textarea>
  </div>
  <input id="67488bb37e8c75e33b9f9191">
  <input id="search">
</form></body></html>`

func TestExtract_DefaultRules(t *testing.T) {
	t.Parallel()

	got, err := Extract(page, DefaultRules())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := schema.FieldSet{
		{Name: "67488bb37e8c75e33b9f9191", Description: "Full name", Required: true},
		{Name: "67488f8e088e833537af24aa", Description: "Email"},
		{Name: "aaaaaaaaaaaaaaaaaaaaaaaa", Description: "Remarks"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
}

func TestExtract_LabelSelectorWins(t *testing.T) {
	t.Parallel()

	r := DefaultRules()
	r.LabelSelector = "span.q, label"
	got, err := Extract(page, r)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got[1].Description != "Email address" {
		t.Fatalf("description=%q, want %q", got[1].Description, "Email address")
	}
}

func TestExtract_NoFields(t *testing.T) {
	t.Parallel()

	if _, err := Extract(`<input id="x">`, DefaultRules()); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(p, []byte(`{"field_selector":"[data-field]","id_attr":"data-field","id_match":"^f-([0-9a-f]{24})$"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRules(p)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	got, err := Extract(`<div data-field="f-bbbbbbbbbbbbbbbbbbbbbbbb" aria-required="true" aria-label="Name"></div>`, r)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0].Name != "bbbbbbbbbbbbbbbbbbbbbbbb" || !got[0].Required {
		t.Fatalf("got=%+v", got)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"id_match":"("}`), 0o600)
	if _, err := LoadRules(bad); err == nil {
		t.Fatalf("expected regex error")
	}
}

func TestLoader_StdinAndNon2xx(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil, time.Second)
	html, err := l.Load(context.Background(), Input{Stdin: strings.NewReader("<p>x</p>")})
	if err != nil || html != "<p>x</p>" {
		t.Fatalf("Load(stdin)=%q, %v", html, err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err = NewLoader(srv.Client(), 2*time.Second).Load(context.Background(), Input{URL: srv.URL})
	if err == nil || !strings.Contains(err.Error(), "http status 403") || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestDebugPrintSelector_TextOnly verifies trimmed text and a blank line
// between matches.
func TestDebugPrintSelector_TextOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := DebugPrintSelector(&buf, `<div id="x">  A  </div><div id="x">B</div>`, "div#x", true); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if want := "A\n\nB\n\n"; buf.String() != want {
		t.Fatalf("unexpected output:\nwant=%q\ngot=%q", want, buf.String())
	}
}
