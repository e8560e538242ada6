package flow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

// User-facing phone capture texts.
const (
	phoneRequestMessage = "Obrigado pelas informações! Para finalizar, preciso do seu número de WhatsApp com DDD (exemplo: 11999999999):"
	invalidPhoneMessage = "Número inválido. Por favor, digite no formato com DDD (exemplo: 11999999999):"
)

// CanonicalizePhone validates the digit count and expands the number to the
// international dialing form used for WhatsApp delivery. Brazilian numbers:
// a 10-digit number gets the mobile "9" inserted after the area code, an
// 11-digit number gets the country code prefixed, and numbers already carrying
// the country code pass through.
func CanonicalizePhone(digits string) (string, error) {
	if len(digits) < models.MinPhoneDigits || len(digits) > models.MaxPhoneDigits {
		return "", models.NewValidationError(0, fmt.Sprintf("phone number has %d digits, expected %d to %d",
			len(digits), models.MinPhoneDigits, models.MaxPhoneDigits))
	}

	switch {
	case len(digits) == 10:
		return "55" + digits[:2] + "9" + digits[2:], nil
	case len(digits) == 11:
		return "55" + digits, nil
	case strings.HasPrefix(digits, "55"):
		return digits, nil
	default:
		return "55" + digits, nil
	}
}

// buildLeadAnswers assembles the lead answer list from the session responses,
// in step order, with the captured phone appended as the final answer.
func buildLeadAnswers(flowDef *models.FlowDefinition, responses map[string]string, phone string) []models.LeadAnswer {
	steps := make([]models.Step, len(flowDef.Steps))
	copy(steps, flowDef.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].ID < steps[j].ID })

	var answers []models.LeadAnswer
	for _, st := range steps {
		if answer := responses[st.FieldName()]; answer != "" {
			answers = append(answers, models.LeadAnswer{ID: st.ID, Answer: answer})
		}
	}
	answers = append(answers, models.LeadAnswer{ID: flowDef.LastStepID() + 1, Answer: phone})
	return answers
}

// composeHandoffMessage builds the WhatsApp notification summarizing the
// captured case. The situation is truncated so the summary stays scannable.
func composeHandoffMessage(responses map[string]string) string {
	name := responseOrDefault(responses, "step_1", "Cliente")
	area := responseOrDefault(responses, "step_2", "não informada")
	situation := responseOrDefault(responses, "step_3", "não detalhada")
	situation = truncateRunes(situation, models.MaxSituationSummaryLength)

	return fmt.Sprintf(`Olá %s! 👋

Recebemos sua solicitação através do nosso site e estamos aqui para ajudá-lo com questões jurídicas.

Nossa equipe especializada está pronta para analisar seu caso.

📄 Resumo do caso:
- 👤 Nome: %s
- 📌 Área: %s
- 📝 Situação: %s

Nossa equipe entrará em contato em breve.`, name, name, area, situation)
}

// composePhoneConfirmation builds the user-facing confirmation. It always
// reports the captured digits and whether the WhatsApp delivery succeeded.
func composePhoneConfirmation(digits string, dispatched bool) string {
	status := "✅ Mensagem enviada para seu WhatsApp!"
	if !dispatched {
		status = "⚠️ Houve um problema ao enviar a mensagem do WhatsApp, mas suas informações foram salvas."
	}
	return fmt.Sprintf(`Número confirmado: %s 📱

Perfeito! Suas informações foram registradas com sucesso. Nossa equipe entrará em contato em breve.

%s`, digits, status)
}

func responseOrDefault(responses map[string]string, field, def string) string {
	if v := responses[field]; v != "" {
		return v
	}
	return def
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
