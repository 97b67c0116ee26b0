package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestError_UnwrapsToKind(t *testing.T) {
	t.Parallel()

	err := FieldErrorf(ErrRequiredFieldMissing, "email", 2, "value is empty")
	if !errors.Is(err, ErrRequiredFieldMissing) {
		t.Fatalf("errors.Is(%v, ErrRequiredFieldMissing)=false", err)
	}
	if errors.Is(err, ErrEmptyValues) {
		t.Fatalf("error must not match an unrelated kind: %v", err)
	}

	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("errors.As failed for %T", err)
	}
	if se.Field != "email" || se.Index != 2 {
		t.Fatalf("Field=%q Index=%d, want email/2", se.Field, se.Index)
	}

	got := err.Error()
	for _, want := range []string{"required field missing", "field=email", "row=3", "value is empty"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Error()=%q, want contains %q", got, want)
		}
	}
}

func TestErrorf_NoLocation(t *testing.T) {
	t.Parallel()

	err := Errorf(ErrURLFormat, "bad url %q", "http://x")
	if got := err.Error(); got != `url format error: bad url "http://x"` {
		t.Fatalf("Error()=%q", got)
	}
}

func TestFieldSet_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fs      FieldSet
		wantErr string
	}{
		{name: "ok", fs: FieldSet{{Name: "a"}, {Name: "b"}}},
		{name: "empty_set", fs: nil, wantErr: "empty"},
		{name: "blank_name", fs: FieldSet{{Name: " "}}, wantErr: "name is empty"},
		{name: "duplicate", fs: FieldSet{{Name: "a"}, {Name: "a"}}, wantErr: "duplicate"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.fs.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate()=%v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate()=%v, want contains %q", err, tc.wantErr)
			}
		})
	}
}

func TestTable_Column(t *testing.T) {
	t.Parallel()

	tbl := Table{
		Headers: []string{"a", "b"},
		Rows:    []Row{{"a": "1", "b": "2"}, {"a": "3"}},
	}
	got := tbl.Column("b")
	if len(got) != 2 || got[0] != "2" || got[1] != "" {
		t.Fatalf("Column(b)=%q", got)
	}
	if !tbl.HasHeader("a") || tbl.HasHeader("c") {
		t.Fatalf("HasHeader mismatch")
	}
}
