package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/genai"
	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/BTreeMap/IntakePipe/internal/store"
	"github.com/BTreeMap/IntakePipe/internal/util"
)

// Defaults for the orchestrator's external call handling.
const (
	// DefaultFallbackTimeout bounds one AI fallback generation.
	DefaultFallbackTimeout = 15 * time.Second
	// DefaultFlowCacheTTL is how long a loaded flow definition is served
	// before the store is consulted again.
	DefaultFlowCacheTTL = 5 * time.Minute
)

// Canned texts used when a dependency cannot produce a reply.
const (
	fallbackText = "Desculpe, não consegui processar sua mensagem no momento. " +
		"Para continuar, por favor responda à pergunta anterior ou entre em contato conosco diretamente."
	gatewayFallbackText = "Obrigado pela sua mensagem. Nossa equipe analisará e retornará em breve."
	missingStepText     = "Como posso ajudá-lo?"
)

// Dispatcher delivers outbound handoff notifications. messaging.Service
// satisfies this; tests inject fakes.
type Dispatcher interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Opts holds configuration options for the orchestrator.
type Opts struct {
	// GenAI is the conversational fallback client. Optional: without it,
	// unmatched messages get the bare current-step prompt.
	GenAI genai.Generator
	// Dispatcher sends WhatsApp handoff notifications. Optional: without it,
	// phone confirmations report degraded delivery.
	Dispatcher Dispatcher
	// FallbackTimeout bounds one AI generation call.
	FallbackTimeout time.Duration
	// FlowCacheTTL is the freshness window of the cached flow definition.
	FlowCacheTTL time.Duration
}

// Option configures the orchestrator.
type Option func(*Opts)

// WithGenAI sets the conversational fallback client.
func WithGenAI(g genai.Generator) Option {
	return func(o *Opts) { o.GenAI = g }
}

// WithDispatcher sets the handoff notification dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Opts) { o.Dispatcher = d }
}

// WithFallbackTimeout overrides the AI fallback timeout.
func WithFallbackTimeout(d time.Duration) Option {
	return func(o *Opts) { o.FallbackTimeout = d }
}

// WithFlowCacheTTL overrides the flow cache freshness window.
func WithFlowCacheTTL(d time.Duration) Option {
	return func(o *Opts) { o.FlowCacheTTL = d }
}

// Orchestrator routes each inbound message to exactly one handler: phone
// capture, the structured flow, the off-topic redirect table, or the AI
// conversational fallback. It is constructed once per process with its
// collaborators injected; there is no package-level instance.
type Orchestrator struct {
	store           store.Store
	gen             genai.Generator
	dispatcher      Dispatcher
	fallbackTimeout time.Duration
	flowCacheTTL    time.Duration

	// Flow definition cache. Sessions themselves are not locked: callers are
	// expected to send at most one in-flight message per session, and a
	// concurrent duplicate is an accepted last-write-wins race.
	flowMu       sync.Mutex
	cachedFlow   *models.FlowDefinition
	flowCachedAt time.Time
}

// NewOrchestrator creates an orchestrator backed by the given session store.
func NewOrchestrator(st store.Store, opts ...Option) *Orchestrator {
	cfg := Opts{
		FallbackTimeout: DefaultFallbackTimeout,
		FlowCacheTTL:    DefaultFlowCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewOrchestrator: created",
		"genai_configured", cfg.GenAI != nil,
		"dispatcher_configured", cfg.Dispatcher != nil,
		"fallback_timeout", cfg.FallbackTimeout)
	return &Orchestrator{
		store:           st,
		gen:             cfg.GenAI,
		dispatcher:      cfg.Dispatcher,
		fallbackTimeout: cfg.FallbackTimeout,
		flowCacheTTL:    cfg.FlowCacheTTL,
	}
}

// EnsureDefaultFlow seeds the canonical intake flow when the store carries no
// flow definition yet. Called once at bootstrap.
func (o *Orchestrator) EnsureDefaultFlow() error {
	existing, err := o.store.GetFlowDefinition()
	if err != nil {
		return fmt.Errorf("failed to check flow definition: %w", err)
	}
	if existing != nil {
		slog.Debug("Orchestrator.EnsureDefaultFlow: flow already present", "steps", len(existing.Steps))
		return nil
	}
	def := DefaultFlowDefinition()
	if err := o.store.SaveFlowDefinition(def); err != nil {
		return fmt.Errorf("failed to seed default flow: %w", err)
	}
	slog.Info("Orchestrator.EnsureDefaultFlow: seeded default intake flow", "steps", len(def.Steps))
	return nil
}

// conversationFlow returns the active flow definition, serving a cached copy
// within the freshness window. A store failure falls back to a stale cache
// when one exists; without any cache the error is surfaced to the caller.
func (o *Orchestrator) conversationFlow() (*models.FlowDefinition, error) {
	o.flowMu.Lock()
	defer o.flowMu.Unlock()

	if o.cachedFlow != nil && time.Since(o.flowCachedAt) < o.flowCacheTTL {
		return o.cachedFlow, nil
	}

	def, err := o.store.GetFlowDefinition()
	if err != nil {
		if o.cachedFlow != nil {
			slog.Warn("Orchestrator.conversationFlow: store failed, serving stale cache", "error", err)
			return o.cachedFlow, nil
		}
		slog.Error("Orchestrator.conversationFlow: store failed with no cache", "error", err)
		return nil, fmt.Errorf("failed to load conversation flow: %w", err)
	}
	if def == nil {
		slog.Error("Orchestrator.conversationFlow: no flow configured")
		return nil, models.ErrNoFlowConfigured
	}
	if err := def.Validate(); err != nil {
		slog.Error("Orchestrator.conversationFlow: invalid flow definition", "error", err)
		return nil, err
	}

	o.cachedFlow = def
	o.flowCachedAt = time.Now()
	slog.Debug("Orchestrator.conversationFlow: loaded from store", "steps", len(def.Steps))
	return def, nil
}

// StartConversation allocates a session and returns the first step's prompt.
// Fails with ErrNoFlowConfigured when no flow is defined.
func (o *Orchestrator) StartConversation(sessionID string) (models.StartResult, error) {
	flowDef, err := o.conversationFlow()
	if err != nil {
		return models.StartResult{}, err
	}

	if sessionID == "" {
		sessionID = util.GenerateSessionID()
	}

	first, ok := flowDef.FirstStep()
	if !ok {
		return models.StartResult{}, models.ErrEmptyFlow
	}

	sess := models.NewSession(sessionID, models.PlatformWeb)
	sess.CurrentStep = first.ID
	if err := o.store.SaveSession(sess); err != nil {
		slog.Error("Orchestrator.StartConversation: failed to save session", "error", err, "sessionID", sessionID)
		return models.StartResult{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	slog.Info("Orchestrator.StartConversation: session created", "sessionID", sessionID, "stepID", first.ID)
	return models.StartResult{
		SessionID:   sessionID,
		Question:    first.Question,
		StepID:      first.ID,
		IsFinalStep: len(flowDef.Steps) == 1,
	}, nil
}

// ProcessMessage is the top-level dispatch for one inbound message. The
// decision order is: phone capture, messaging-gateway conversational bypass,
// structured flow advancement, off-topic redirect, AI fallback.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID string, platform models.Platform) (models.OrchestrationResult, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return models.OrchestrationResult{}, models.ErrEmptyMessage
	}
	if len(message) > models.MaxMessageLength {
		return models.OrchestrationResult{}, models.ErrMessageTooLong
	}
	if !models.IsValidPlatform(platform) {
		return models.OrchestrationResult{}, fmt.Errorf("%w: %s", models.ErrInvalidPlatform, platform)
	}
	if sessionID == "" {
		sessionID = util.GenerateSessionID()
	}

	slog.Debug("Orchestrator.ProcessMessage: dispatching",
		"sessionID", sessionID, "platform", platform, "length", len(trimmed))

	sess, err := o.loadOrCreateSession(sessionID, platform)
	if err != nil {
		return models.OrchestrationResult{}, err
	}
	sess.MessageCount++

	// Phone capture applies once the flow is complete and until a number is
	// captured; afterwards digit-shaped messages fall through so duplicate
	// submissions never re-trigger the handoff.
	if sess.FlowCompleted && !sess.PhoneCollected && IsPhoneShaped(trimmed) {
		return o.phoneBranch(ctx, sess, trimmed)
	}

	// The messaging gateway is reserved for free-form assistance; its traffic
	// never enters the structured flow.
	if platform == models.PlatformMessagingGateway {
		return o.conversationalBranch(ctx, sess, trimmed, gatewayFallbackText)
	}

	if !sess.FlowCompleted && IsStepResponse(trimmed, sess.CurrentStep) {
		return o.structuredBranch(ctx, sess, trimmed)
	}

	return o.redirectBranch(ctx, sess, trimmed)
}

// loadOrCreateSession fetches the session or bootstraps a new one so unknown
// session ids never error out of the message path.
func (o *Orchestrator) loadOrCreateSession(sessionID string, platform models.Platform) (*models.Session, error) {
	sess, err := o.store.GetSession(sessionID)
	if err != nil {
		slog.Error("Orchestrator.loadOrCreateSession: store failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if sess == nil {
		created := models.NewSession(sessionID, platform)
		sess = &created
		slog.Info("Orchestrator.loadOrCreateSession: created new session", "sessionID", sessionID, "platform", platform)
	}
	return sess, nil
}

// structuredBranch runs normalization and flow advancement for a message the
// classifier accepted for the current step.
func (o *Orchestrator) structuredBranch(ctx context.Context, sess *models.Session, message string) (models.OrchestrationResult, error) {
	flowDef, err := o.conversationFlow()
	if err != nil {
		return models.OrchestrationResult{}, err
	}

	response, advanced := o.advanceFlow(sess, flowDef, message)
	sess.Touch()
	if err := o.store.SaveSession(*sess); err != nil {
		slog.Error("Orchestrator.structuredBranch: failed to save session", "error", err, "sessionID", sess.SessionID)
		return models.OrchestrationResult{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return models.OrchestrationResult{
		ResponseType:   models.ResponseTypeStructuredStep,
		SessionID:      sess.SessionID,
		Platform:       sess.Platform,
		Response:       response,
		CurrentStep:    sess.CurrentStep,
		StepAdvanced:   advanced,
		FlowCompleted:  sess.FlowCompleted,
		PhoneCollected: sess.PhoneCollected,
		MessageCount:   sess.MessageCount,
	}, nil
}

// advanceFlow stores the normalized answer and moves to the next step, or
// completes the flow and asks for the phone number. On a normalization
// failure it returns the step's error prompt without mutating progress.
func (o *Orchestrator) advanceFlow(sess *models.Session, flowDef *models.FlowDefinition, message string) (string, bool) {
	step, ok := flowDef.StepByID(sess.CurrentStep)
	if !ok {
		slog.Error("Orchestrator.advanceFlow: current step missing from flow",
			"sessionID", sess.SessionID, "currentStep", sess.CurrentStep)
		return missingStepText, false
	}

	normalized, err := NormalizeAnswer(message, step.ID)
	if err != nil {
		slog.Debug("Orchestrator.advanceFlow: answer rejected",
			"sessionID", sess.SessionID, "stepID", step.ID, "error", err)
		return step.ErrorPrompt(), false
	}

	sess.Responses[step.FieldName()] = normalized
	slog.Debug("Orchestrator.advanceFlow: answer stored",
		"sessionID", sess.SessionID, "stepID", step.ID, "field", step.FieldName())

	if next, ok := nextStepAfter(flowDef, step.ID); ok {
		sess.CurrentStep = next.ID
		slog.Info("Orchestrator.advanceFlow: advanced",
			"sessionID", sess.SessionID, "fromStep", step.ID, "toStep", next.ID)
		return next.Question, true
	}

	sess.FlowCompleted = true
	slog.Info("Orchestrator.advanceFlow: flow completed", "sessionID", sess.SessionID)
	completion := flowDef.RenderCompletionMessage(sess.Responses)
	return completion + "\n\n" + phoneRequestMessage, true
}

// nextStepAfter finds the step with the smallest id greater than the given
// one, so flows with gaps in their numbering still advance.
func nextStepAfter(flowDef *models.FlowDefinition, id int) (models.Step, bool) {
	var next models.Step
	found := false
	for _, st := range flowDef.Steps {
		if st.ID > id && (!found || st.ID < next.ID) {
			next = st
			found = true
		}
	}
	return next, found
}

// redirectBranch answers off-topic messages from the canned table, re-anchored
// to the pending question. Unmatched messages go to the AI fallback when one
// is configured, else the bare pending prompt is repeated.
func (o *Orchestrator) redirectBranch(ctx context.Context, sess *models.Session, message string) (models.OrchestrationResult, error) {
	reply, matched := OffTopicReply(message)
	if !matched && o.gen != nil {
		return o.conversationalBranch(ctx, sess, message, fallbackText)
	}

	anchor := o.anchorPrompt(sess)
	response := anchor
	if matched {
		response = reply
		if anchor != "" {
			response = reply + "\n\n" + anchor
		}
	}
	if response == "" {
		response = missingStepText
	}

	sess.Touch()
	if err := o.store.SaveSession(*sess); err != nil {
		slog.Error("Orchestrator.redirectBranch: failed to save session", "error", err, "sessionID", sess.SessionID)
		return models.OrchestrationResult{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	slog.Debug("Orchestrator.redirectBranch: redirect produced",
		"sessionID", sess.SessionID, "matched", matched, "currentStep", sess.CurrentStep)
	return models.OrchestrationResult{
		ResponseType:   models.ResponseTypeStructuredRedirect,
		SessionID:      sess.SessionID,
		Platform:       sess.Platform,
		Response:       response,
		CurrentStep:    sess.CurrentStep,
		FlowCompleted:  sess.FlowCompleted,
		PhoneCollected: sess.PhoneCollected,
		MessageCount:   sess.MessageCount,
	}, nil
}

// anchorPrompt returns the question the user still owes an answer to: the
// current step's prompt, or the phone request after completion.
func (o *Orchestrator) anchorPrompt(sess *models.Session) string {
	if sess.FlowCompleted {
		if !sess.PhoneCollected {
			return phoneRequestMessage
		}
		return ""
	}
	flowDef, err := o.conversationFlow()
	if err != nil {
		return ""
	}
	step, ok := flowDef.StepByID(sess.CurrentStep)
	if !ok {
		return ""
	}
	return step.Question
}

// conversationalBranch generates an AI reply bounded by the fallback timeout,
// degrading to the given canned text on any failure.
func (o *Orchestrator) conversationalBranch(ctx context.Context, sess *models.Session, message, degraded string) (models.OrchestrationResult, error) {
	responseType := models.ResponseTypeConversational
	reply, err := o.generateConversational(ctx, sess, message)
	if err != nil {
		slog.Warn("Orchestrator.conversationalBranch: fallback degraded",
			"error", err, "sessionID", sess.SessionID)
		reply = degraded
		responseType = models.ResponseTypeConversationalFallback
	}

	sess.Touch()
	if err := o.store.SaveSession(*sess); err != nil {
		slog.Error("Orchestrator.conversationalBranch: failed to save session", "error", err, "sessionID", sess.SessionID)
		return models.OrchestrationResult{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return models.OrchestrationResult{
		ResponseType:   responseType,
		SessionID:      sess.SessionID,
		Platform:       sess.Platform,
		Response:       reply,
		CurrentStep:    sess.CurrentStep,
		FlowCompleted:  sess.FlowCompleted,
		PhoneCollected: sess.PhoneCollected,
		MessageCount:   sess.MessageCount,
	}, nil
}

// generateConversational calls the AI client with session context. The call
// is bounded by the configured timeout and never mutates flow progress.
func (o *Orchestrator) generateConversational(ctx context.Context, sess *models.Session, message string) (string, error) {
	if o.gen == nil {
		return "", fmt.Errorf("conversational fallback not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, o.fallbackTimeout)
	defer cancel()

	systemPrompt := "Você é um assistente jurídico de um escritório de advocacia. " +
		"Responda de forma curta e objetiva (no máximo 2 frases), sempre profissional. " +
		"Se o usuário estiver desviando do fluxo de atendimento, lembre-o gentilmente de responder a pergunta pendente."
	userPrompt := fmt.Sprintf("Passo atual: %d\nInformações já coletadas: %s\n\nO usuário disse: %q",
		sess.CurrentStep, formatResponses(sess.Responses), message)

	reply, err := o.gen.GeneratePrompt(ctx, systemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", models.ErrFallbackTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("empty conversational reply")
	}
	return reply, nil
}

// formatResponses renders collected answers for the AI context prompt.
func formatResponses(responses map[string]string) string {
	if len(responses) == 0 {
		return "nenhuma"
	}
	fields := make([]string, 0, len(responses))
	for f := range responses {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+responses[f])
	}
	return strings.Join(parts, "; ")
}

// phoneBranch handles a phone-shaped message after flow completion.
func (o *Orchestrator) phoneBranch(ctx context.Context, sess *models.Session, message string) (models.OrchestrationResult, error) {
	response, collected, err := o.collectPhone(ctx, sess, message)
	if err != nil {
		return models.OrchestrationResult{}, err
	}
	return models.OrchestrationResult{
		ResponseType:   models.ResponseTypePhoneCollected,
		SessionID:      sess.SessionID,
		Platform:       sess.Platform,
		Response:       response,
		CurrentStep:    sess.CurrentStep,
		FlowCompleted:  sess.FlowCompleted,
		PhoneCollected: collected,
		MessageCount:   sess.MessageCount,
	}, nil
}

// collectPhone validates and canonicalizes the number, persists the session,
// submits the lead record and dispatches the WhatsApp handoff. Lead and
// dispatch failures degrade the confirmation but never fail the request.
func (o *Orchestrator) collectPhone(ctx context.Context, sess *models.Session, raw string) (string, bool, error) {
	digits := ExtractDigits(raw)
	formatted, err := CanonicalizePhone(digits)
	if err != nil {
		slog.Debug("Orchestrator.collectPhone: invalid number",
			"sessionID", sess.SessionID, "digits", len(digits))
		sess.Touch()
		if saveErr := o.store.SaveSession(*sess); saveErr != nil {
			return "", false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, saveErr)
		}
		return invalidPhoneMessage, false, nil
	}

	sess.PhoneNumber = digits
	sess.PhoneFormatted = formatted
	sess.PhoneCollected = true
	sess.Touch()
	if err := o.store.SaveSession(*sess); err != nil {
		slog.Error("Orchestrator.collectPhone: failed to save session", "error", err, "sessionID", sess.SessionID)
		return "", false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	flowDef, flowErr := o.conversationFlow()
	if flowErr != nil {
		slog.Warn("Orchestrator.collectPhone: flow unavailable for lead assembly, using default shape", "error", flowErr)
		def := DefaultFlowDefinition()
		flowDef = &def
	}

	lead := models.Lead{
		SessionID: sess.SessionID,
		Answers:   buildLeadAnswers(flowDef, sess.Responses, digits),
		Phone:     digits,
		Status:    models.LeadStatusNew,
		Source:    string(sess.Platform),
	}
	if leadID, err := o.store.SaveLead(lead); err != nil {
		// Lead persistence must not block the user-facing confirmation.
		slog.Error("Orchestrator.collectPhone: failed to save lead", "error", err, "sessionID", sess.SessionID)
	} else {
		slog.Info("Orchestrator.collectPhone: lead saved", "leadID", leadID, "sessionID", sess.SessionID)
	}

	dispatched := false
	if o.dispatcher != nil {
		if err := o.dispatcher.SendMessage(ctx, formatted, composeHandoffMessage(sess.Responses)); err != nil {
			slog.Error("Orchestrator.collectPhone: handoff dispatch failed", "error", err, "sessionID", sess.SessionID)
		} else {
			dispatched = true
			slog.Info("Orchestrator.collectPhone: handoff dispatched", "sessionID", sess.SessionID, "to", formatted)
		}
	} else {
		slog.Warn("Orchestrator.collectPhone: no dispatcher configured, skipping handoff", "sessionID", sess.SessionID)
	}

	return composePhoneConfirmation(digits, dispatched), true, nil
}

// SubmitPhone is the direct phone submission path used by the web API outside
// the normal message flow.
func (o *Orchestrator) SubmitPhone(ctx context.Context, phoneNumber, sessionID string) (models.PhoneSubmissionResult, error) {
	sess, err := o.store.GetSession(sessionID)
	if err != nil {
		return models.PhoneSubmissionResult{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if sess == nil {
		return models.PhoneSubmissionResult{}, models.ErrSessionNotFound
	}

	response, collected, err := o.collectPhone(ctx, sess, phoneNumber)
	if err != nil {
		return models.PhoneSubmissionResult{}, err
	}
	return models.PhoneSubmissionResult{
		Status:         "success",
		Message:        response,
		PhoneCollected: collected,
	}, nil
}

// GetSessionContext returns a read-only view of a session's progress.
func (o *Orchestrator) GetSessionContext(sessionID string) (models.SessionContext, error) {
	sess, err := o.store.GetSession(sessionID)
	if err != nil {
		return models.SessionContext{}, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if sess == nil {
		return models.SessionContext{Exists: false}, nil
	}

	totalSteps := 0
	if flowDef, err := o.conversationFlow(); err == nil {
		totalSteps = len(flowDef.Steps)
	}

	return models.SessionContext{
		Exists:         true,
		SessionID:      sess.SessionID,
		Platform:       sess.Platform,
		CurrentStep:    sess.CurrentStep,
		TotalSteps:     totalSteps,
		FlowCompleted:  sess.FlowCompleted,
		PhoneCollected: sess.PhoneCollected,
		Responses:      sess.Responses,
		MessageCount:   sess.MessageCount,
		CreatedAt:      sess.CreatedAt,
		LastUpdated:    sess.LastUpdated,
	}, nil
}

// ServiceStatus summarizes the health of the orchestrator's collaborators.
type ServiceStatus struct {
	OverallStatus   string          `json:"overall_status"`
	StoreStatus     string          `json:"store_status"`
	AIStatus        string          `json:"ai_status"`
	MessagingStatus string          `json:"messaging_status"`
	Features        map[string]bool `json:"features"`
}

// Status reports overall service health. The store is load-bearing: a store
// failure makes the whole service unhealthy, a missing AI client only
// degrades it.
func (o *Orchestrator) Status() ServiceStatus {
	storeStatus := "active"
	if _, err := o.store.GetFlowDefinition(); err != nil {
		storeStatus = "error"
	}
	aiStatus := "not_configured"
	if o.gen != nil {
		aiStatus = "active"
	}
	messagingStatus := "not_configured"
	if o.dispatcher != nil {
		messagingStatus = "active"
	}

	overall := "active"
	switch {
	case storeStatus != "active":
		overall = "error"
	case aiStatus != "active":
		overall = "degraded"
	}

	return ServiceStatus{
		OverallStatus:   overall,
		StoreStatus:     storeStatus,
		AIStatus:        aiStatus,
		MessagingStatus: messagingStatus,
		Features: map[string]bool{
			"structured_flow":      storeStatus == "active",
			"ai_responses":         aiStatus == "active",
			"fallback_mode":        storeStatus == "active" && aiStatus != "active",
			"whatsapp_integration": messagingStatus == "active",
			"lead_collection":      storeStatus == "active",
		},
	}
}
