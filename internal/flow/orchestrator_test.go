package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/BTreeMap/IntakePipe/internal/store"
)

// fakeGen implements genai.Generator for orchestrator tests.
type fakeGen struct {
	reply string
	err   error
	calls int
}

func (f *fakeGen) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

// fakeDispatcher records outbound handoff notifications.
type fakeDispatcher struct {
	to    string
	body  string
	err   error
	calls int
}

func (f *fakeDispatcher) SendMessage(ctx context.Context, to, body string) error {
	f.calls++
	f.to = to
	f.body = body
	return f.err
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.SaveFlowDefinition(DefaultFlowDefinition()); err != nil {
		t.Fatalf("failed to seed flow: %v", err)
	}
	return NewOrchestrator(st, opts...), st
}

func TestStartConversation(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	result, err := orch.StartConversation("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SessionID == "" {
		t.Error("expected generated session id")
	}
	if result.StepID != 1 {
		t.Errorf("expected step 1, got %d", result.StepID)
	}
	if !strings.Contains(result.Question, "nome completo") {
		t.Errorf("expected first step question, got %q", result.Question)
	}
	if result.IsFinalStep {
		t.Error("four step flow must not report final step at step 1")
	}
}

func TestStartConversation_NoFlowConfigured(t *testing.T) {
	orch := NewOrchestrator(store.NewInMemoryStore())
	_, err := orch.StartConversation("")
	if !errors.Is(err, models.ErrNoFlowConfigured) {
		t.Fatalf("expected ErrNoFlowConfigured, got %v", err)
	}
}

func TestEnsureDefaultFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	orch := NewOrchestrator(st)
	if err := orch.EnsureDefaultFlow(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, err := st.GetFlowDefinition()
	if err != nil || def == nil {
		t.Fatalf("expected seeded flow, got %v, %v", def, err)
	}
	if len(def.Steps) != 4 {
		t.Errorf("expected 4 steps, got %d", len(def.Steps))
	}
}

func TestProcessMessage_InputValidation(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := orch.ProcessMessage(ctx, "   ", "s1", models.PlatformWeb); !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := orch.ProcessMessage(ctx, strings.Repeat("a", models.MaxMessageLength+1), "s1", models.PlatformWeb); !errors.Is(err, models.ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
	if _, err := orch.ProcessMessage(ctx, "oi", "s1", models.Platform("sms")); !errors.Is(err, models.ErrInvalidPlatform) {
		t.Errorf("expected ErrInvalidPlatform, got %v", err)
	}
}

func TestProcessMessage_FullIntakeWalkthrough(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	orch, st := newTestOrchestrator(t, WithDispatcher(dispatcher))
	ctx := context.Background()

	start, err := orch.StartConversation("")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sid := start.SessionID

	// Step 1: full name advances to step 2.
	res, err := orch.ProcessMessage(ctx, "Maria Silva", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("step 1 failed: %v", err)
	}
	if res.ResponseType != models.ResponseTypeStructuredStep || !res.StepAdvanced {
		t.Fatalf("expected structured advance, got %+v", res)
	}
	if res.CurrentStep != 2 {
		t.Errorf("expected current step 2, got %d", res.CurrentStep)
	}
	if !strings.Contains(res.Response, "área do direito") {
		t.Errorf("expected step 2 prompt, got %q", res.Response)
	}

	// Step 2: no legal area keyword fails normalization, step stays put.
	res, err = orch.ProcessMessage(ctx, "socorro", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("step 2 rejection failed: %v", err)
	}
	if res.StepAdvanced {
		t.Error("expected no advance on rejected answer")
	}
	if res.CurrentStep != 2 {
		t.Errorf("expected step to remain 2, got %d", res.CurrentStep)
	}
	if !strings.Contains(res.Response, "Penal, Civil, Trabalhista") {
		t.Errorf("expected step 2 error text, got %q", res.Response)
	}

	// Step 2 again: recognized area advances.
	res, err = orch.ProcessMessage(ctx, "trabalhista", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("step 2 failed: %v", err)
	}
	if res.CurrentStep != 3 || !res.StepAdvanced {
		t.Fatalf("expected advance to step 3, got %+v", res)
	}

	// Step 3: situation description.
	res, err = orch.ProcessMessage(ctx, "Fui demitida sem justa causa e não recebi as verbas", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("step 3 failed: %v", err)
	}
	if res.CurrentStep != 4 || !res.StepAdvanced {
		t.Fatalf("expected advance to step 4, got %+v", res)
	}

	// Step 4: final answer completes the flow and asks for the phone.
	res, err = orch.ProcessMessage(ctx, "sim", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("step 4 failed: %v", err)
	}
	if !res.FlowCompleted {
		t.Fatal("expected flow completed")
	}
	if !strings.Contains(res.Response, "número de WhatsApp") {
		t.Errorf("expected phone request appended, got %q", res.Response)
	}
	if !strings.Contains(res.Response, "Maria Silva") {
		t.Errorf("expected completion message rendered with name, got %q", res.Response)
	}

	sess, _ := st.GetSession(sid)
	if len(sess.Responses) != 4 {
		t.Errorf("expected 4 responses after completion, got %d", len(sess.Responses))
	}
	if sess.Responses["step_2"] != "Trabalhista" {
		t.Errorf("expected normalized area, got %q", sess.Responses["step_2"])
	}
	if sess.Responses["step_4"] != "Sim" {
		t.Errorf("expected normalized preference, got %q", sess.Responses["step_4"])
	}

	// Phone capture: lead saved, handoff dispatched, confirmation has digits.
	res, err = orch.ProcessMessage(ctx, "11987654321", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("phone capture failed: %v", err)
	}
	if res.ResponseType != models.ResponseTypePhoneCollected || !res.PhoneCollected {
		t.Fatalf("expected phone collected, got %+v", res)
	}
	if !strings.Contains(res.Response, "11987654321") {
		t.Errorf("confirmation must contain the digits, got %q", res.Response)
	}
	if dispatcher.calls != 1 {
		t.Fatalf("expected 1 handoff dispatch, got %d", dispatcher.calls)
	}
	if dispatcher.to != "5511987654321" {
		t.Errorf("expected canonical recipient, got %q", dispatcher.to)
	}
	if !strings.Contains(dispatcher.body, "Trabalhista") {
		t.Errorf("expected case summary in handoff, got %q", dispatcher.body)
	}

	leads, err := st.ListLeads(10)
	if err != nil {
		t.Fatalf("list leads failed: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	if len(leads[0].Answers) != 5 {
		t.Errorf("expected 5 lead answers, got %d", len(leads[0].Answers))
	}
	if leads[0].Phone != "11987654321" {
		t.Errorf("expected lead phone 11987654321, got %q", leads[0].Phone)
	}

	// Idempotence: a second digit-shaped message must not re-trigger handoff.
	res, err = orch.ProcessMessage(ctx, "11987654321", sid, models.PlatformWeb)
	if err != nil {
		t.Fatalf("duplicate phone message failed: %v", err)
	}
	if res.ResponseType == models.ResponseTypePhoneCollected {
		t.Error("duplicate phone submission re-entered phone capture")
	}
	if dispatcher.calls != 1 {
		t.Errorf("expected no extra dispatch, got %d calls", dispatcher.calls)
	}
	leads, _ = st.ListLeads(10)
	if len(leads) != 1 {
		t.Errorf("expected still 1 lead, got %d", len(leads))
	}
}

func TestProcessMessage_OffTopicRedirect(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	ctx := context.Background()

	start, _ := orch.StartConversation("")
	res, err := orch.ProcessMessage(ctx, "quanto custa?", start.SessionID, models.PlatformWeb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResponseType != models.ResponseTypeStructuredRedirect {
		t.Fatalf("expected redirect, got %s", res.ResponseType)
	}
	if !strings.Contains(res.Response, "honorários") {
		t.Errorf("expected pricing reply, got %q", res.Response)
	}
	if !strings.Contains(res.Response, "nome completo") {
		t.Errorf("expected re-anchor to current step prompt, got %q", res.Response)
	}

	sess, _ := st.GetSession(start.SessionID)
	if len(sess.Responses) != 0 {
		t.Error("off-topic message must not mutate responses")
	}
	if sess.CurrentStep != 1 {
		t.Errorf("off-topic message must not advance the step, got %d", sess.CurrentStep)
	}
}

func TestProcessMessage_UnmatchedWithoutAI(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	ctx := context.Background()

	start, _ := orch.StartConversation("")
	// Single word: not a name, not off-topic, no AI configured.
	res, err := orch.ProcessMessage(ctx, "hm", start.SessionID, models.PlatformWeb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResponseType != models.ResponseTypeStructuredRedirect {
		t.Fatalf("expected redirect, got %s", res.ResponseType)
	}
	if !strings.Contains(res.Response, "nome completo") {
		t.Errorf("expected bare step prompt, got %q", res.Response)
	}
}

func TestProcessMessage_UnmatchedWithAI(t *testing.T) {
	gen := &fakeGen{reply: "Claro, posso ajudar com isso."}
	orch, _ := newTestOrchestrator(t, WithGenAI(gen))
	ctx := context.Background()

	start, _ := orch.StartConversation("")
	res, err := orch.ProcessMessage(ctx, "hm", start.SessionID, models.PlatformWeb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResponseType != models.ResponseTypeConversational {
		t.Fatalf("expected conversational, got %s", res.ResponseType)
	}
	if res.Response != "Claro, posso ajudar com isso." {
		t.Errorf("expected AI reply, got %q", res.Response)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generation call, got %d", gen.calls)
	}
}

func TestProcessMessage_AIFailureDegrades(t *testing.T) {
	gen := &fakeGen{err: errors.New("upstream down")}
	orch, _ := newTestOrchestrator(t, WithGenAI(gen))
	ctx := context.Background()

	start, _ := orch.StartConversation("")
	res, err := orch.ProcessMessage(ctx, "hm", start.SessionID, models.PlatformWeb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResponseType != models.ResponseTypeConversationalFallback {
		t.Fatalf("expected conversational fallback, got %s", res.ResponseType)
	}
	if res.Response != fallbackText {
		t.Errorf("expected canned fallback text, got %q", res.Response)
	}
}

func TestProcessMessage_GatewayBypassesFlow(t *testing.T) {
	gen := &fakeGen{reply: "Posso ajudar."}
	orch, st := newTestOrchestrator(t, WithGenAI(gen))
	ctx := context.Background()

	// A perfectly valid step answer still goes conversational on the gateway.
	res, err := orch.ProcessMessage(ctx, "Maria Silva", "5511987654321", models.PlatformMessagingGateway)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResponseType != models.ResponseTypeConversational {
		t.Fatalf("expected conversational, got %s", res.ResponseType)
	}

	sess, _ := st.GetSession("5511987654321")
	if sess == nil {
		t.Fatal("expected gateway session bootstrapped")
	}
	if len(sess.Responses) != 0 || sess.CurrentStep != 1 {
		t.Error("gateway traffic must never enter the structured flow")
	}
}

func TestProcessMessage_GatewayDegradesWithoutAI(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	ctx := context.Background()

	res, err := orch.ProcessMessage(ctx, "Maria Silva", "5511987654321", models.PlatformMessagingGateway)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResponseType != models.ResponseTypeConversationalFallback {
		t.Fatalf("expected conversational fallback, got %s", res.ResponseType)
	}
	if res.Response != gatewayFallbackText {
		t.Errorf("expected gateway fallback text, got %q", res.Response)
	}
}

func TestProcessMessage_MessageCountIncrements(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	ctx := context.Background()

	start, _ := orch.StartConversation("")
	orch.ProcessMessage(ctx, "quanto custa?", start.SessionID, models.PlatformWeb)
	orch.ProcessMessage(ctx, "Maria Silva", start.SessionID, models.PlatformWeb)

	sess, _ := st.GetSession(start.SessionID)
	if sess.MessageCount != 2 {
		t.Errorf("expected message count 2, got %d", sess.MessageCount)
	}
}

func TestSubmitPhone(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	orch, st := newTestOrchestrator(t, WithDispatcher(dispatcher))
	ctx := context.Background()

	sess := models.NewSession("web_test1", models.PlatformWeb)
	sess.FlowCompleted = true
	sess.Responses = map[string]string{"step_1": "Maria Silva"}
	if err := st.SaveSession(sess); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	result, err := orch.SubmitPhone(ctx, "(11) 98765-4321", "web_test1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.PhoneCollected {
		t.Error("expected phone collected")
	}
	if !strings.Contains(result.Message, "11987654321") {
		t.Errorf("expected digits in confirmation, got %q", result.Message)
	}
	if dispatcher.to != "5511987654321" {
		t.Errorf("expected canonical recipient, got %q", dispatcher.to)
	}
}

func TestSubmitPhone_InvalidNumber(t *testing.T) {
	orch, st := newTestOrchestrator(t)
	ctx := context.Background()

	sess := models.NewSession("web_test2", models.PlatformWeb)
	if err := st.SaveSession(sess); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	result, err := orch.SubmitPhone(ctx, "123", "web_test2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PhoneCollected {
		t.Error("expected phone not collected for invalid number")
	}
	if !strings.Contains(result.Message, "inválido") {
		t.Errorf("expected invalid number prompt, got %q", result.Message)
	}
}

func TestSubmitPhone_UnknownSession(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	_, err := orch.SubmitPhone(context.Background(), "11987654321", "missing")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGetSessionContext(t *testing.T) {
	orch, _ := newTestOrchestrator(t)

	ctxView, err := orch.GetSessionContext("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctxView.Exists {
		t.Error("expected exists=false for unknown session")
	}

	start, _ := orch.StartConversation("")
	ctxView, err = orch.GetSessionContext(start.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctxView.Exists {
		t.Fatal("expected exists=true")
	}
	if ctxView.CurrentStep != 1 {
		t.Errorf("expected current step 1, got %d", ctxView.CurrentStep)
	}
	if ctxView.TotalSteps != 4 {
		t.Errorf("expected 4 total steps, got %d", ctxView.TotalSteps)
	}
}

func TestStatus(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	status := orch.Status()
	if status.OverallStatus != "degraded" {
		t.Errorf("expected degraded without AI, got %s", status.OverallStatus)
	}
	if !status.Features["structured_flow"] {
		t.Error("expected structured flow feature active")
	}
	if status.Features["ai_responses"] {
		t.Error("expected AI feature inactive")
	}

	gen := &fakeGen{reply: "ok"}
	orchAI, _ := newTestOrchestrator(t, WithGenAI(gen))
	if got := orchAI.Status().OverallStatus; got != "active" {
		t.Errorf("expected active with AI, got %s", got)
	}
}
