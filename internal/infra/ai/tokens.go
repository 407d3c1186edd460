package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoder() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		// GetEncoding may fetch BPE data over the network on first use;
		// a nil encoder switches all callers to the byte heuristic.
		e, err := tiktoken.GetEncoding(tokenEncoding)
		if err == nil {
			enc = e
		}
	})
	return enc
}

// CountTokens estimates the token length of text, using tiktoken when the
// encoding is available and a bytes/4 heuristic otherwise.
func CountTokens(text string) int {
	if e := encoder(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// TruncateToBudget trims text to at most maxTokens tokens. Transcripts
// longer than the model context window get their tail cut; the opening of a
// call carries the intent, so the head is what the analyzer needs.
func TruncateToBudget(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if e := encoder(); e != nil {
		ids := e.Encode(text, nil, nil)
		if len(ids) <= maxTokens {
			return text
		}
		return e.Decode(ids[:maxTokens])
	}
	maxBytes := maxTokens * 4
	if len(text) <= maxBytes {
		return text
	}
	return text[:maxBytes]
}
