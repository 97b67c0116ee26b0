package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"prefill/internal/schema"
)

const formPage = `<html><body><form>
  <label for="67488bb37e8c75e33b9f9191">Full name *</label>
  <input id="67488bb37e8c75e33b9f9191" required>
  <input id="67488f8e088e833537af24aa" aria-label="Email">
  <input id="search">
</form></body></html>`

func runWith(t *testing.T, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errBuf bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errBuf, http.DefaultClient)
	return out.String(), errBuf.String(), code
}

func TestRun_StdinJSON(t *testing.T) {
	t.Parallel()

	stdout, stderr, code := runWith(t, formPage)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr)
	}

	var got schema.FieldSet
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not valid json: %v; out=%s", err, stdout)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fields, got %d: %+v", len(got), got)
	}
	if got[0].Name != "67488bb37e8c75e33b9f9191" || got[0].Description != "Full name" || !got[0].Required {
		t.Fatalf("unexpected first field: %+v", got[0])
	}
}

func TestRun_CSVTemplate(t *testing.T) {
	t.Parallel()

	stdout, stderr, code := runWith(t, formPage, "-format", "csv")
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr)
	}
	want := "FieldID,values,description\n" +
		"67488bb37e8c75e33b9f9191,,Full name\n" +
		"67488f8e088e833537af24aa,,Email\n"
	if stdout != want {
		t.Fatalf("unexpected csv:\nwant=%q\ngot=%q", want, stdout)
	}
}

func TestRun_YAML(t *testing.T) {
	t.Parallel()

	stdout, stderr, code := runWith(t, formPage, "-format", "yaml")
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr)
	}
	var doc struct {
		Fields schema.FieldSet `yaml:"fields"`
	}
	if err := yaml.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("stdout is not valid yaml: %v; out=%s", err, stdout)
	}
	if len(doc.Fields) != 2 || doc.Fields[1].Description != "Email" {
		t.Fatalf("unexpected fields: %+v", doc.Fields)
	}
}

func TestRun_RulesFile(t *testing.T) {
	t.Parallel()

	rules := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(rules, []byte(`{"id_match":"^(search)$"}`), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	stdout, stderr, code := runWith(t, formPage, "-rules", rules)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, `"name": "search"`) {
		t.Fatalf("expected the search field, got:\n%s", stdout)
	}
}

func TestRun_DebugSelectorText(t *testing.T) {
	t.Parallel()

	stdout, stderr, code := runWith(t, `<div id="x">  A  </div><div id="x">B</div>`, "-selector", "div#x", "-text")
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr)
	}
	if want := "A\n\nB\n\n"; stdout != want {
		t.Fatalf("unexpected output:\nwant=%q\ngot=%q", want, stdout)
	}
}

func TestRun_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/form" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(formPage))
	}))
	t.Cleanup(srv.Close)

	var out, errBuf bytes.Buffer
	code := run(context.Background(), []string{"-url", srv.URL + "/form", "-timeout", "2s"}, nil, &out, &errBuf, srv.Client())
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "67488f8e088e833537af24aa") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	out.Reset()
	errBuf.Reset()
	code = run(context.Background(), []string{"-url", srv.URL + "/missing"}, nil, &out, &errBuf, srv.Client())
	if code != 1 || !strings.Contains(errBuf.String(), "http status 404") {
		t.Fatalf("expected exit 1 with status error; code=%d stderr=%s", code, errBuf.String())
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stdin string
		args  []string
		code  int
		want  string
	}{
		{name: "bad flag", args: []string{"-nope"}, code: 2},
		{name: "bad format", stdin: formPage, args: []string{"-format", "xml"}, code: 2, want: "invalid -format"},
		{name: "missing rules", stdin: formPage, args: []string{"-rules", "/nonexistent/rules.json"}, code: 2, want: "load rules"},
		{name: "no fields", stdin: "<p>nothing</p>", code: 1, want: "extract:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, stderr, code := runWith(t, tt.stdin, tt.args...)
			if code != tt.code {
				t.Fatalf("code=%d want %d; stderr=%s", code, tt.code, stderr)
			}
			if tt.want != "" && !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr %q does not contain %q", stderr, tt.want)
			}
		})
	}
}
