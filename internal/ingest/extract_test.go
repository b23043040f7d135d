package ingest

import (
	"strings"
	"testing"
)

func TestExtractTextPlain(t *testing.T) {
	t.Parallel()

	text, err := ExtractText(MIMEPlainText, []byte("Jane Doe\n\nSenior   Engineer\tGo, Postgres\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect := "Jane Doe Senior Engineer Go, Postgres"
	if text != expect {
		t.Fatalf("expected %q, got %q", expect, text)
	}
}

func TestExtractTextUnsupportedType(t *testing.T) {
	t.Parallel()

	if _, err := ExtractText("image/png", []byte{0x89}); err == nil {
		t.Fatal("expected error for unsupported content type")
	} else if !strings.Contains(err.Error(), "unsupported file type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractTextMalformedPDF(t *testing.T) {
	t.Parallel()

	if _, err := ExtractText(MIMEPDF, []byte("definitely not a pdf")); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "already clean",
			input:  "a b c",
			expect: "a b c",
		},
		{
			name:   "mixed whitespace",
			input:  " a\t\tb\n\nc ",
			expect: "a b c",
		},
		{
			name:   "empty",
			input:  "   ",
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalize(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
