// Package summarize condenses policy text into a short plain-language digest.
package summarize

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when there is nothing to summarize.
var ErrEmptyText = errors.New("no text to summarize")

// Summarizer turns cleaned policy text into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Passthrough returns the text unchanged. It is used when no model is
// configured, so the stored "summary" is the cleaned policy itself.
type Passthrough struct{}

// Summarize implements Summarizer.
func (Passthrough) Summarize(_ context.Context, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// promptHeader asks for a TL;DR covering what readers care about most.
const promptHeader = `Below is a privacy policy. Please read it in full, then produce a clear, concise bullet-point summary that covers: What data they collect. How they use that data (and for what purposes). Who they share it with (e.g., affiliates, partners, advertisers). How long they retain the data. Key user rights/controls (how people can access, delete, or restrict their data). Other notable 'gotchas' or disclaimers (location tracking, law enforcement disclosures, child protection, etc.).
Provide the summary in simple TL;DR language and keep it focused on core takeaways. Omit fluff. Plain text only:`

// Prompt returns the full model prompt for text.
func Prompt(text string) string {
	return promptHeader + "\n\n" + text
}
