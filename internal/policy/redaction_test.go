package policy

import (
	"strings"
	"testing"
)

func TestRedactEmail(t *testing.T) {
	out, changed := RedactPII("reach me at sam.doe+test@example.co.uk about the ticket")
	if !changed {
		t.Fatalf("changed = false")
	}
	if strings.Contains(out, "@") {
		t.Fatalf("email survived redaction: %q", out)
	}
	if !strings.Contains(out, "[REDACTED_EMAIL]") {
		t.Fatalf("missing marker: %q", out)
	}
}

func TestRedactPhone(t *testing.T) {
	out, changed := RedactPII("call +1 (555) 867-5309 after lunch")
	if !changed || !strings.Contains(out, "[REDACTED_PHONE]") {
		t.Fatalf("out = %q, changed = %v", out, changed)
	}
}

func TestRedactCardBeforePhone(t *testing.T) {
	out, _ := RedactPII("card on file is 4111 1111 1111 1111 thanks")
	if !strings.Contains(out, "[REDACTED_CARD]") {
		t.Fatalf("card not masked as card: %q", out)
	}
	if strings.Contains(out, "[REDACTED_PHONE]") {
		t.Fatalf("card leaked into phone redaction: %q", out)
	}
}

func TestRedactCleanTextUnchanged(t *testing.T) {
	in := "the deploy finished and the cache is warm"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("out = %q, changed = %v, want untouched input", out, changed)
	}
}
