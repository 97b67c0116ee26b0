package contact

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Kind
	}{
		{in: "a@x.com", want: KindEmail},
		{in: "  first.last+tag@sub.example.sg ", want: KindEmail},
		{in: "a@x", want: KindUnknown},
		{in: "a@x.c", want: KindUnknown},
		{in: "91234567", want: KindLocalPhone},
		{in: "6123 4567", want: KindLocalPhone},
		{in: "71234567", want: KindUnknown},
		{in: "9123456", want: KindUnknown},
		{in: "+65 9123 4567", want: KindIntlPhone},
		{in: "+1 (415) 555-0100", want: KindIntlPhone},
		{in: "+0123456789", want: KindUnknown},
		{in: "", want: KindUnknown},
	}
	for _, tc := range tests {
		if got := Classify(tc.in); got != tc.want {
			t.Fatalf("Classify(%q)=%s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	if got := NormalizePhone(" +65 (9123)-45.67 "); got != "+6591234567" {
		t.Fatalf("NormalizePhone=%q", got)
	}
}

func TestLooksLikePhone(t *testing.T) {
	t.Parallel()

	if !LooksLikePhone("81234567") || !LooksLikePhone("+6581234567") {
		t.Fatalf("expected phones to be accepted")
	}
	if LooksLikePhone("a@x.com") {
		t.Fatalf("email is not a phone")
	}
}
