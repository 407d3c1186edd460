package ai

import (
	"regexp"
	"strings"
)

var (
	speakerLabelRe = regexp.MustCompile(`\[SPEAKER_\d+\]:`)
	timestampRe    = regexp.MustCompile(`\[\d+:\d+\]`)
	bracketedRe    = regexp.MustCompile(`\[.*?\]`)
	hasLetterRe    = regexp.MustCompile(`[a-zA-Z]`)

	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[\s.,!?\-]+$`),
		regexp.MustCompile(`(?i)^(ring|ringing|beep|tone|music|silence|noise|static|hum|buzz|click)+[\s,.]*$`),
		regexp.MustCompile(`(?i)^(uh|um|hmm|ah|oh|eh|er)+[\s,.]*$`),
		regexp.MustCompile(`(?i)^(hello|hi|hey|bye|goodbye|thank you|thanks|okay|ok|yes|no|yeah|yep|nope)[\s,.!?]*$`),
	}

	conversationalIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\b(what|how|when|where|why|who|can|could|would|should|is|are|do|does|have|has)\b`),
		regexp.MustCompile(`\b(please|need|want|help|service|account|order|appointment|document|license)\b`),
		regexp.MustCompile(`\b(yes|no|okay|sure|right|correct|exactly|understand)\b`),
		regexp.MustCompile(`\b(sir|madam|mam|mr|mrs|miss)\b`),
		regexp.MustCompile(`\b(call|calling|phone|number|contact|reach)\b`),
		regexp.MustCompile(`\b(thank|thanks|welcome|sorry|excuse)\b`),
	}
)

// ValidateTranscript reports whether a transcript carries enough
// conversational content to be worth analyzing, and the reason when not.
// Short recordings of ring tones, hold music, or a lone greeting all fail.
func ValidateTranscript(transcript string) (bool, string) {
	cleaned := strings.TrimSpace(transcript)
	if cleaned == "" {
		return false, "empty transcript"
	}
	if len(cleaned) < 20 {
		return false, "transcript too short"
	}

	textOnly := speakerLabelRe.ReplaceAllString(cleaned, "")
	textOnly = timestampRe.ReplaceAllString(textOnly, "")
	textOnly = bracketedRe.ReplaceAllString(textOnly, "")
	textOnly = strings.TrimSpace(textOnly)

	var words []string
	for _, w := range strings.Fields(textOnly) {
		if len(w) >= 2 && hasLetterRe.MatchString(w) {
			words = append(words, w)
		}
	}
	if len(words) < 5 {
		return false, "insufficient content"
	}

	textLower := strings.ToLower(strings.TrimSpace(textOnly))
	for _, p := range noisePatterns {
		if p.MatchString(textLower) {
			return false, "transcript contains only noise or minimal interaction"
		}
	}

	unique := map[string]struct{}{}
	for _, w := range words {
		if len(w) >= 3 {
			unique[strings.ToLower(w)] = struct{}{}
		}
	}
	if len(unique) < 3 {
		return false, "transcript contains repetitive non-conversational content"
	}

	hasConversation := false
	for _, p := range conversationalIndicators {
		if p.MatchString(textLower) {
			hasConversation = true
			break
		}
	}
	if !hasConversation && len(words) < 15 {
		return false, "transcript lacks conversational content"
	}

	return true, ""
}
