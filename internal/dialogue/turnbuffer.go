package dialogue

import (
	"regexp"
	"strings"
)

// speakableUnitTokens is the size threshold at which an accumulated buffer is
// cut into a speakable unit even without sentence-terminal punctuation.
const speakableUnitTokens = 20

var sentenceTailPattern = regexp.MustCompile(`[.?!]\s*$`)

// TurnBuffer accumulates streamed text deltas and decides when a speakable
// unit is ready for synthesis. Each finalized unit is the whole accumulated
// buffer; the buffer resets after every cut.
type TurnBuffer struct {
	buf strings.Builder
}

// Append adds a delta and reports whether the accumulated buffer became a
// speakable unit: at least 20 whitespace-delimited tokens, or sentence-terminal
// punctuation at the tail, whichever comes first.
func (b *TurnBuffer) Append(delta string) (unit string, ready bool) {
	b.buf.WriteString(delta)
	text := b.buf.String()
	if len(strings.Fields(text)) >= speakableUnitTokens || sentenceTailPattern.MatchString(text) {
		b.buf.Reset()
		return text, true
	}
	return "", false
}

// Flush returns any non-empty remainder once the delta stream has ended.
func (b *TurnBuffer) Flush() (unit string, ok bool) {
	text := b.buf.String()
	b.buf.Reset()
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}
