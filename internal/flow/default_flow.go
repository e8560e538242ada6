package flow

import (
	"time"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

// DefaultFlowDefinition returns the canonical four-step intake flow used to
// seed an empty store at bootstrap. Lawyers can replace it by saving a new
// definition; the orchestrator never depends on this exact shape.
func DefaultFlowDefinition() models.FlowDefinition {
	now := time.Now().UTC()
	return models.FlowDefinition{
		Steps: []models.Step{
			{
				ID:           1,
				Question:     "Olá! Para começar, qual é o seu nome completo?",
				Field:        "step_1",
				ErrorMessage: "Por favor, informe seu nome completo.",
			},
			{
				ID:           2,
				Question:     "Em qual área do direito você precisa de ajuda?\n\n• Penal\n• Civil\n• Trabalhista\n• Família\n• Empresarial",
				Field:        "step_2",
				ErrorMessage: "Por favor, escolha uma das áreas: Penal, Civil, Trabalhista, Família ou Empresarial.",
			},
			{
				ID:           3,
				Question:     "Por favor, descreva brevemente sua situação ou problema jurídico.",
				Field:        "step_3",
				ErrorMessage: "Por favor, descreva sua situação com mais detalhes.",
			},
			{
				ID:           4,
				Question:     "Gostaria de agendar uma consulta com nosso advogado especializado? (Sim ou Não)",
				Field:        "step_4",
				ErrorMessage: "Por favor, responda Sim ou Não.",
			},
		},
		CompletionMessage: "Perfeito, {step_1}! Suas informações foram registradas com sucesso. Nossa equipe especializada analisará seu caso e entrará em contato em breve para agendar sua consulta.",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
