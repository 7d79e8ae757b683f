package llm

import "testing"

func TestSanitize(t *testing.T) {
	if got := Sanitize("  plain\x00 text\x00\n"); got != "plain text" {
		t.Fatalf("Sanitize = %q", got)
	}
	if got := Sanitize("\x00\x00 "); got != "" {
		t.Fatalf("Sanitize = %q, want empty", got)
	}
}
