package dialogue

import "testing"

func TestSanitizeSpeechText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello there.", "Hello there."},
		{"fenced code", "before ```code\nblock``` after", "before after"},
		{"inline code", "use `rm -rf` now", "use now"},
		{"url", "see https://example.com/docs for info", "see for info"},
		{"markup", "*bold* _emphasis_ #tag", "bold emphasis tag"},
		{"emoji", "nice 🎉 work", "nice work"},
		{"whitespace", "  spaced\t\nout  ", "spaced out"},
		{"keeps sentence punctuation", "Really? Yes! Done.", "Really? Yes! Done."},
		{"empty", "", ""},
		{"only emoji", "👍", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeSpeechText(tc.in); got != tc.want {
				t.Fatalf("sanitizeSpeechText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
