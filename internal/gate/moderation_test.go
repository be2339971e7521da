package gate

import (
	"strings"
	"testing"
)

func TestLengthCheckedBeforeContent(t *testing.T) {
	m := NewModerator(280, WordListMatcher{"blocked"})

	// 281 clean characters: TOO_LONG even though content is fine
	v := m.Evaluate(strings.Repeat("a", 281))
	if v.Allowed || v.Reason != ReasonTooLong {
		t.Fatalf("verdict = %+v, want TOO_LONG", v)
	}

	// over-length AND disallowed: length wins
	v = m.Evaluate(strings.Repeat("blocked ", 40))
	if v.Allowed || v.Reason != ReasonTooLong {
		t.Fatalf("verdict = %+v, want TOO_LONG before MODERATION", v)
	}
}

func TestCleanMessageAllowed(t *testing.T) {
	m := NewModerator(280, WordListMatcher{"blocked"})
	v := m.Evaluate(strings.Repeat("x", 50))
	if !v.Allowed || v.Reason != "" {
		t.Fatalf("verdict = %+v, want allowed", v)
	}
	if v := m.Evaluate(strings.Repeat("b", 280)); !v.Allowed {
		t.Fatalf("exactly max length should pass: %+v", v)
	}
}

func TestDisallowedContentRejected(t *testing.T) {
	m := NewModerator(280, WordListMatcher{"blocked", "banned"})
	for _, text := range []string{"this is blocked", "BLOCKED!", "pre-Banned-post"} {
		v := m.Evaluate(text)
		if v.Allowed || v.Reason != ReasonModeration {
			t.Fatalf("Evaluate(%q) = %+v, want MODERATION", text, v)
		}
	}
}

func TestNilMatcherAllowsEverything(t *testing.T) {
	m := NewModerator(0, nil)
	if v := m.Evaluate("anything at all"); !v.Allowed {
		t.Fatalf("verdict = %+v, want allowed", v)
	}
}
