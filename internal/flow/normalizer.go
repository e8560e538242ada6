package flow

import (
	"strings"
	"unicode"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

// legalAreaSynonyms maps area keywords to their canonical practice-area names.
// Checked in order so more specific synonyms win over generic ones.
var legalAreaSynonyms = []struct {
	keyword   string
	canonical string
}{
	{"criminal", "Penal"},
	{"penal", "Penal"},
	{"trabalhista", "Trabalhista"},
	{"trabalho", "Trabalhista"},
	{"família", "Família"},
	{"familia", "Família"},
	{"divórcio", "Família"},
	{"divorcio", "Família"},
	{"empresarial", "Empresarial"},
	{"comercial", "Empresarial"},
	{"contrato", "Empresarial"},
	{"civil", "Civil"},
}

// NormalizeAnswer validates and canonicalizes an answer for the given step.
// It returns a ValidationError when the answer cannot be accepted; the caller
// re-presents the step without advancing.
func NormalizeAnswer(answer string, stepID int) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", models.NewValidationError(stepID, "empty answer")
	}

	switch stepID {
	case 1:
		words := strings.Fields(answer)
		if len(words) < 2 {
			return "", models.NewValidationError(stepID, "full name requires at least two words")
		}
		for i, w := range words {
			words[i] = capitalizeWord(w)
		}
		return strings.Join(words, " "), nil
	case 2:
		lower := strings.ToLower(answer)
		for _, syn := range legalAreaSynonyms {
			if strings.Contains(lower, syn.keyword) {
				return syn.canonical, nil
			}
		}
		return "", models.NewValidationError(stepID, "no recognized legal area")
	case 3:
		if len(answer) < 10 {
			return "", models.NewValidationError(stepID, "situation description too short")
		}
		return answer, nil
	case 4:
		lower := strings.ToLower(answer)
		if containsAnyWord(lower, affirmativeWords) {
			return "Sim", nil
		}
		if containsAnyWord(lower, negativeWords) {
			return "Não", nil
		}
		return "", models.NewValidationError(stepID, "expected a yes or no answer")
	}

	return answer, nil
}

// capitalizeWord uppercases the first rune and lowercases the rest.
func capitalizeWord(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) == 0 {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
