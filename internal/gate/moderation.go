package gate

import "strings"

// DefaultMaxChatLen bounds chat message length in runes.
const DefaultMaxChatLen = 280

// Reason codes for rejected messages.
const (
	ReasonTooLong    = "TOO_LONG"
	ReasonModeration = "MODERATION"
)

// Verdict is the outcome of evaluating one message. Computed per message,
// never stored.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Matcher is the lexical-matching collaborator consulted for disallowed
// content.
type Matcher interface {
	HasDisallowedContent(text string) bool
}

// Moderator is a deterministic, stateless content filter. The length check
// runs before the content check.
type Moderator struct {
	maxLen  int
	matcher Matcher
}

func NewModerator(maxLen int, matcher Matcher) *Moderator {
	if maxLen <= 0 {
		maxLen = DefaultMaxChatLen
	}
	if matcher == nil {
		matcher = WordListMatcher(nil)
	}
	return &Moderator{maxLen: maxLen, matcher: matcher}
}

// MaxLen returns the configured length limit.
func (m *Moderator) MaxLen() int { return m.maxLen }

func (m *Moderator) Evaluate(text string) Verdict {
	if len([]rune(text)) > m.maxLen {
		return Verdict{Reason: ReasonTooLong}
	}
	if m.matcher.HasDisallowedContent(text) {
		return Verdict{Reason: ReasonModeration}
	}
	return Verdict{Allowed: true}
}

// WordListMatcher flags text containing any of its terms, case-insensitive.
type WordListMatcher []string

func (w WordListMatcher) HasDisallowedContent(text string) bool {
	lowered := strings.ToLower(text)
	for _, term := range w {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
