package persona

import (
	"strings"
	"testing"
)

func TestDirectiveB2BIncludesBuyerProfile(t *testing.T) {
	cfg := Config{
		Channel:    ChannelB2B,
		Product:    "payroll software",
		Difficulty: DifficultyMedium,
		Business:   BusinessBuyer{Persona: "Head of Finance", Industry: "logistics"},
	}

	got := Directive(cfg)
	for _, want := range []string{
		"B2B sales roleplay",
		"Head of Finance",
		"logistics",
		"payroll software",
		"neutral and cautious",
		"Final score out of 10",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Directive() missing %q in:\n%s", want, got)
		}
	}
}

func TestDirectiveB2CIncludesConsumerProfile(t *testing.T) {
	cfg := Config{
		Channel:    ChannelB2C,
		Industry:   "fitness",
		Product:    "annual gym membership",
		Difficulty: DifficultyEasy,
		Consumer:   ConsumerBuyer{Customer: "first-time", Age: "25-34", Income: "middle", Motivation: "health"},
	}

	got := Directive(cfg)
	for _, want := range []string{
		"B2C sales roleplay",
		"first-time buyer aged 25-34",
		"middle income group",
		"annual gym membership",
		"receptive and cooperative",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Directive() missing %q in:\n%s", want, got)
		}
	}
}

func TestDirectiveIsDeterministic(t *testing.T) {
	cfg := Config{Channel: ChannelB2B, Product: "CRM", Difficulty: DifficultyHard,
		Business: BusinessBuyer{Persona: "CTO", Industry: "fintech"}}
	if Directive(cfg) != Directive(cfg) {
		t.Fatalf("Directive() must be deterministic for equal configs")
	}
}

func TestParseDifficulty(t *testing.T) {
	cases := []struct {
		raw  string
		want Difficulty
	}{
		{"easy", DifficultyEasy},
		{" Medium ", DifficultyMedium},
		{"hard", DifficultyHard},
		{"brutal", DifficultyHard},
		{"", DifficultyHard},
	}
	for _, tc := range cases {
		if got := ParseDifficulty(tc.raw); got != tc.want {
			t.Fatalf("ParseDifficulty(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestParseChannel(t *testing.T) {
	if got := ParseChannel("B2B"); got != ChannelB2B {
		t.Fatalf("ParseChannel(B2B) = %q", got)
	}
	if got := ParseChannel("b2c"); got != ChannelB2C {
		t.Fatalf("ParseChannel(b2c) = %q", got)
	}
	if got := ParseChannel("retail"); got != ChannelB2C {
		t.Fatalf("ParseChannel(retail) = %q, want %q", got, ChannelB2C)
	}
}

func TestOpeningLineMentionsProduct(t *testing.T) {
	line := OpeningLine(Config{Product: "CRM seats"})
	if !strings.Contains(line, "CRM seats") {
		t.Fatalf("OpeningLine() = %q, want product mention", line)
	}
}
