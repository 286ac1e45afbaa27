package chat

import "regexp"

// RestrictedKeywords are the product areas the assistant must not discuss.
// Matched on word boundaries in both customer messages and model replies.
var RestrictedKeywords = []string{
	"credit card", "loan", "investment", "mortgage", "insurance",
	"wealth management", "stock", "trading", "mutual fund", "bond",
}

// KeywordMatcher reports whether text mentions any of a fixed keyword set.
type KeywordMatcher struct {
	patterns []*regexp.Regexp
}

// NewKeywordMatcher compiles word-boundary matchers for each keyword.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	m := &KeywordMatcher{patterns: make([]*regexp.Regexp, 0, len(keywords))}
	for _, kw := range keywords {
		m.patterns = append(m.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return m
}

// Match reports whether text contains any keyword as a complete word.
func (m *KeywordMatcher) Match(text string) bool {
	for _, re := range m.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
