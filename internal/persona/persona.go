// Package persona renders the immutable roleplay configuration captured at
// session start into the system directive that scripts the simulated buyer.
package persona

import (
	"fmt"
	"strings"
)

// Channel is the distribution channel the roleplay simulates.
type Channel string

const (
	ChannelB2B Channel = "b2b"
	ChannelB2C Channel = "b2c"
)

// Difficulty parametrizes how cooperative the simulated buyer is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// BusinessBuyer describes the counterpart for a B2B roleplay.
type BusinessBuyer struct {
	Persona  string
	Industry string
}

// ConsumerBuyer describes the counterpart for a B2C roleplay.
type ConsumerBuyer struct {
	Customer   string
	Age        string
	Income     string
	Motivation string
}

// Config is captured once at session start and never re-derived.
type Config struct {
	Channel    Channel
	Industry   string
	Product    string
	Difficulty Difficulty
	Business   BusinessBuyer
	Consumer   ConsumerBuyer
}

// ParseChannel maps the wire value onto a channel; anything other than "b2b"
// is treated as consumer, matching the client contract.
func ParseChannel(raw string) Channel {
	if strings.EqualFold(strings.TrimSpace(raw), string(ChannelB2B)) {
		return ChannelB2B
	}
	return ChannelB2C
}

// ParseDifficulty normalizes the wire value. Unknown tiers render the hard
// prospect, the strictest behavior.
func ParseDifficulty(raw string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(DifficultyEasy):
		return DifficultyEasy
	case string(DifficultyMedium):
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// difficultyText is the closed lookup of prospect temperament per tier.
var difficultyText = map[Difficulty]string{
	DifficultyEasy: "As the prospect you are receptive and cooperative. " +
		"You reveal your pain points right away, making it easy to address your needs. " +
		"Your objections are minimal and simple, providing a low-stress roleplay experience.",
	DifficultyMedium: "As the prospect you are neutral and cautious. " +
		"You do not reveal your pain points upfront, instead framing the conversation as shopping around or ensuring you have the best options. " +
		"You provide decent pushback in the form of a couple of common objections, requiring the seller to navigate the conversation skillfully.",
	DifficultyHard: "As the prospect you are challenging and resistant, extremely skeptical but still professional. " +
		"You safeguard your pain points, requiring the seller to drag them out of you through probing questions and rapport-building. " +
		"You provide multiple objections and may include a bit of snark while maintaining professionalism, testing the seller's ability to remain composed and persuasive.",
}

// Directive renders the deterministic system prompt for the configuration.
func Directive(cfg Config) string {
	var b strings.Builder

	channelLabel := "B2C"
	if cfg.Channel == ChannelB2B {
		channelLabel = "B2B"
	}
	fmt.Fprintf(&b, "You are participating in a virtual %s sales roleplay. This is a first time offline meeting.\n", channelLabel)

	if cfg.Channel == ChannelB2B {
		fmt.Fprintf(&b, "You are playing the role of the buyer, who is %s at a %s company. ", cfg.Business.Persona, cfg.Business.Industry)
		fmt.Fprintf(&b, "I am a salesperson at a %s company selling %s.\n", cfg.Business.Industry, cfg.Product)
	} else {
		fmt.Fprintf(&b, "You are playing the role of the %s buyer aged %s in the %s income group, focused on %s. ",
			cfg.Consumer.Customer, cfg.Consumer.Age, cfg.Consumer.Income, cfg.Consumer.Motivation)
		fmt.Fprintf(&b, "I am a salesperson at a %s company selling %s.\n", cfg.Industry, cfg.Product)
	}

	b.WriteString(difficultyText[ParseDifficulty(string(cfg.Difficulty))])
	b.WriteString("\n\nYOUR BEHAVIOR:\n")
	b.WriteString("- Engage with me in a realistic way.\n")
	b.WriteString("- Respond as the buyer until I ask for feedback.\n")
	fmt.Fprintf(&b, "- When I ask for feedback, switch to a professional %s sales coach, analyze the entire conversation, and respond in the following format:\n", channelLabel)
	b.WriteString("- 5 things done well (each with a keyword and explanation)\n")
	b.WriteString("- 5 areas to improve (each with a keyword and explanation)\n")
	b.WriteString("- Final score out of 10 with justification\n")
	b.WriteString("- Tangible tips to improve future performance\n")

	return b.String()
}

// OpeningLine is the scripted salesperson greeting seeded as the first user
// entry so the buyer persona has something to react to.
func OpeningLine(cfg Config) string {
	return fmt.Sprintf("Hi, thanks for taking the time to meet today. I'd love to learn more about your needs and see if our %s might be a good fit.", cfg.Product)
}

// ToneDirective steers speech synthesis toward the buyer's delivery.
func ToneDirective(Config) string {
	return "Speak in a skeptical, questioning tone, like a buyer who is unsure and probing for more information before making a decision."
}

// FeedbackDirective is the fixed out-of-character switch appended before the
// terminal coaching turn.
const FeedbackDirective = "Please now switch out of character and provide your detailed feedback as per the system prompt."
