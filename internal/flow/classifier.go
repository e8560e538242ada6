// Package flow implements the intake conversation orchestrator: step
// classification, answer normalization, flow advancement, off-topic redirects,
// the AI conversational fallback and phone capture with lead handoff.
package flow

import (
	"strings"
	"unicode"
)

// Keyword tables driving step classification. They are explicit data so the
// heuristics can be unit-tested and extended without touching control flow.
var (
	// legalAreaKeywords are the tokens that indicate a legal practice area.
	legalAreaKeywords = []string{
		"penal", "criminal", "civil", "trabalhista", "trabalho",
		"família", "familia", "divórcio", "divorcio",
		"empresarial", "comercial", "contrato",
	}

	// affirmativeWords and negativeWords classify scheduling-preference answers.
	affirmativeWords = []string{"sim", "yes", "quero", "gostaria", "pode", "claro", "ok"}
	negativeWords    = []string{"não", "nao", "no", "nope", "talvez", "depois"}

	// nameRejectTokens are words that disqualify a message as a full name.
	nameRejectTokens = []string{"olá", "oi", "hello", "como", "ajuda", "preciso"}

	// situationRejectPrefixes disqualify a message as a situation description.
	situationRejectPrefixes = []string{"olá", "oi", "como", "você", "qual", "quando"}
)

// IsPhoneShaped reports whether the message is plausibly a phone number:
// between 10 and 13 digits after stripping everything else.
func IsPhoneShaped(message string) bool {
	n := len(ExtractDigits(message))
	return n >= 10 && n <= 13
}

// ExtractDigits strips all non-digit runes from the message.
func ExtractDigits(message string) string {
	var b strings.Builder
	for _, r := range message {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsStepResponse decides whether the message is an answer attempt for the
// given step, as opposed to an off-topic or conversational message. It is a
// shape gate only: a message it accepts may still fail strict normalization.
func IsStepResponse(message string, stepID int) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return false
	}

	// Anything matching a known distraction category is never a step answer.
	if _, matched := OffTopicReply(message); matched {
		return false
	}

	switch stepID {
	case 1:
		// Full name: at least two words of reasonable length, none of which
		// is a greeting or help request.
		words := strings.Fields(msg)
		if len(words) < 2 || len(msg) < 4 {
			return false
		}
		for _, w := range words {
			if len(w) < 2 {
				return false
			}
		}
		for _, token := range nameRejectTokens {
			if strings.Contains(msg, token) {
				return false
			}
		}
		return true
	case 2:
		// Practice area: any short phrase qualifies as an attempt; the
		// normalizer enforces that it maps to a known area.
		return len(msg) >= 3
	case 3:
		// Situation description: needs some substance and must not open like
		// a greeting or a question back at us.
		if len(msg) < 10 {
			return false
		}
		for _, prefix := range situationRejectPrefixes {
			if strings.HasPrefix(msg, prefix) {
				return false
			}
		}
		return true
	case 4:
		// Scheduling preference: yes/no style tokens.
		return containsAnyWord(msg, affirmativeWords) || containsAnyWord(msg, negativeWords)
	}

	// Steps beyond the canonical four: accept anything non-empty.
	return true
}

// containsAnyWord reports whether any of the given tokens occurs in msg.
func containsAnyWord(msg string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}
