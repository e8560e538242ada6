package flow

import "strings"

// offTopicCategory is one known distraction topic mapped to a canned reply.
type offTopicCategory struct {
	name     string
	keywords []string
	reply    string
}

// offTopicCategories is the redirect table. Categories are checked in order,
// first match wins, so more specific phrases come before generic ones.
var offTopicCategories = []offTopicCategory{
	{
		name:     "pricing",
		keywords: []string{"quanto custa", "preço", "preco", "valor", "honorários", "honorarios", "quanto cobra", "quanto vou pagar"},
		reply:    "Os honorários dependem da análise do seu caso e são combinados diretamente com o advogado responsável.",
	},
	{
		name:     "who_will_help",
		keywords: []string{"quem vai me atender", "qual advogado", "quem é o advogado", "quem e o advogado", "quem vai cuidar"},
		reply:    "Seu caso será atendido por um advogado especializado na área correspondente.",
	},
	{
		name:     "timing",
		keywords: []string{"quanto tempo", "demora", "prazo", "quando vão", "quando vao"},
		reply:    "O prazo varia conforme o caso; o advogado poderá estimar após a análise inicial.",
	},
	{
		name:     "location",
		keywords: []string{"onde fica", "endereço", "endereco", "localização", "localizacao", "qual cidade"},
		reply:    "Atendemos de forma on-line e presencial; o endereço é informado no agendamento da consulta.",
	},
	{
		name:     "process",
		keywords: []string{"como funciona", "o que acontece depois", "como é o processo", "como e o processo", "quais as etapas"},
		reply:    "Coletamos algumas informações básicas e em seguida nossa equipe entra em contato para orientá-lo.",
	},
	{
		name:     "small_talk",
		keywords: []string{"tudo bem", "como vai", "bom dia", "boa tarde", "boa noite"},
		reply:    "Olá! Tudo bem? Estou aqui para agilizar o seu atendimento.",
	},
	{
		name:     "credentials",
		keywords: []string{"são advogados", "sao advogados", "é advogado mesmo", "e advogado mesmo", "oab", "são de verdade"},
		reply:    "Sim, nossa equipe é formada por advogados inscritos na OAB.",
	},
	{
		name:     "track_record",
		keywords: []string{"já ganharam", "ja ganharam", "casos ganhos", "têm experiência", "tem experiência", "tem experiencia"},
		reply:    "Nossa equipe tem ampla experiência nas áreas em que atua.",
	},
	{
		name:     "urgency",
		keywords: []string{"urgente", "emergência", "emergencia", "o quanto antes", "fui preso", "foi preso"},
		reply:    "Entendo a urgência. Quanto antes concluirmos estas perguntas, mais rápido um advogado poderá atendê-lo.",
	},
}

// greetingTokens are bare greetings/acknowledgements matched as whole messages.
var greetingTokens = []string{
	"oi", "olá", "ola", "hello", "hey",
	"obrigado", "obrigada", "valeu", "blz", "beleza",
}

const greetingReply = "Olá! Vamos continuar seu atendimento."

// OffTopicReply matches the message against the redirect table and the bare
// greeting list. It returns the canned reply and whether anything matched.
// It never looks at session state; re-anchoring to the current step is the
// orchestrator's job.
func OffTopicReply(message string) (string, bool) {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return "", false
	}

	for _, cat := range offTopicCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(msg, kw) {
				return cat.reply, true
			}
		}
	}

	bare := strings.Trim(msg, "!?.,…")
	for _, token := range greetingTokens {
		if bare == token {
			return greetingReply, true
		}
	}

	return "", false
}
