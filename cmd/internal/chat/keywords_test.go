package chat

import "testing"

func TestKeywordMatcher(t *testing.T) {
	t.Parallel()

	m := NewKeywordMatcher(RestrictedKeywords)

	cases := []struct {
		name string
		in   string
		want bool
	}{
		{name: "loan", in: "I want a loan", want: true},
		{name: "case insensitive", in: "tell me about CREDIT CARD offers", want: true},
		{name: "multi word keyword", in: "do you offer wealth management services?", want: true},
		{name: "plural not a whole word", in: "mortgage rates please", want: true},
		{name: "substring does not match", in: "I live in Stockholm", want: false},
		{name: "bond inside a word", in: "vagabonding around", want: false},
		{name: "clean balance query", in: "what is my account balance?", want: false},
		{name: "empty", in: "", want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := m.Match(tc.in); got != tc.want {
				t.Fatalf("Match(%q)=%v want=%v", tc.in, got, tc.want)
			}
		})
	}
}
