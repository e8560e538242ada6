// Package models defines the core data structures for IntakePipe.
//
// It includes the intake session, flow definition, orchestration results and
// lead records that are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Platform identifies the origin channel of an inbound message.
type Platform string

const (
	// PlatformWeb is the website chat widget. Messages from this platform go
	// through the structured intake flow.
	PlatformWeb Platform = "web"
	// PlatformMessagingGateway is the WhatsApp gateway. Messages from this
	// platform bypass the structured flow and are handled conversationally.
	PlatformMessagingGateway Platform = "whatsapp"
)

// IsValidPlatform checks if the given platform is supported.
func IsValidPlatform(p Platform) bool {
	switch p {
	case PlatformWeb, PlatformMessagingGateway:
		return true
	default:
		return false
	}
}

// ResponseType classifies which branch of the orchestrator produced a reply.
type ResponseType string

const (
	// ResponseTypeStructuredStep indicates the message was accepted as an
	// answer for the current step and the flow advanced (or completed).
	ResponseTypeStructuredStep ResponseType = "structured_step"
	// ResponseTypeStructuredRedirect indicates an off-topic message was
	// answered from the canned redirect table and re-anchored to the step.
	ResponseTypeStructuredRedirect ResponseType = "structured_redirect"
	// ResponseTypeConversational indicates the AI fallback produced the reply.
	ResponseTypeConversational ResponseType = "conversational"
	// ResponseTypeConversationalFallback indicates the AI was unavailable or
	// timed out and the canned fallback text was used instead.
	ResponseTypeConversationalFallback ResponseType = "conversational_fallback"
	// ResponseTypePhoneCollected indicates a phone number was captured and
	// the handoff sequence ran.
	ResponseTypePhoneCollected ResponseType = "phone_collected"
	// ResponseTypeError indicates the request failed before any branch could
	// produce a user-facing reply.
	ResponseTypeError ResponseType = "error"
)

// Validation limits for intake input.
const (
	// MaxMessageLength caps inbound message bodies.
	MaxMessageLength = 4096
	// MaxSituationSummaryLength is how much of the situation description is
	// carried into the handoff notification.
	MaxSituationSummaryLength = 150
	// MinPhoneDigits and MaxPhoneDigits bound a plausible phone number after
	// stripping non-digits (DDD+number up to country-code-prefixed mobile).
	MinPhoneDigits = 10
	MaxPhoneDigits = 13
)

// Error variables for better error handling and testability.
var (
	ErrNoFlowConfigured  = errors.New("no conversation flow configured")
	ErrEmptyMessage      = errors.New("message cannot be empty")
	ErrMessageTooLong    = errors.New("message exceeds maximum length")
	ErrInvalidPlatform   = errors.New("invalid platform")
	ErrSessionNotFound   = errors.New("session not found")
	ErrStoreUnavailable  = errors.New("session store unavailable")
	ErrStepNotFound      = errors.New("step not found in flow definition")
	ErrFallbackTimeout   = errors.New("conversational fallback timed out")
	ErrDispatchFailed    = errors.New("notification dispatch failed")
	ErrEmptyFlow         = errors.New("flow definition has no steps")
	ErrDuplicateStepID   = errors.New("flow definition has duplicate step ids")
	ErrNonPositiveStepID = errors.New("flow step ids must be positive")
)

// ValidationError reports user input that could not be normalized for a step.
// It is recoverable: the orchestrator re-presents the step's error prompt and
// does not advance the flow.
type ValidationError struct {
	StepID int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer for step %d: %s", e.StepID, e.Reason)
}

// NewValidationError creates a ValidationError for the given step.
func NewValidationError(stepID int, reason string) *ValidationError {
	return &ValidationError{StepID: stepID, Reason: reason}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Session tracks one end user's progress through the intake flow.
type Session struct {
	SessionID      string            `json:"session_id"`
	Platform       Platform          `json:"platform"`
	CurrentStep    int               `json:"current_step"`
	Responses      map[string]string `json:"responses"`
	FlowCompleted  bool              `json:"flow_completed"`
	PhoneCollected bool              `json:"phone_collected"`
	PhoneNumber    string            `json:"phone_number,omitempty"`
	PhoneFormatted string            `json:"phone_formatted,omitempty"`
	MessageCount   int               `json:"message_count"`
	CreatedAt      time.Time         `json:"created_at"`
	LastUpdated    time.Time         `json:"last_updated"`
}

// NewSession creates a fresh session positioned at the first step.
func NewSession(sessionID string, platform Platform) Session {
	now := time.Now().UTC()
	return Session{
		SessionID:   sessionID,
		Platform:    platform,
		CurrentStep: 1,
		Responses:   make(map[string]string),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Touch refreshes the last-updated timestamp.
func (s *Session) Touch() {
	s.LastUpdated = time.Now().UTC()
}

// Step is one question/answer unit of the intake flow.
type Step struct {
	ID           int    `json:"id"`
	Question     string `json:"question"`
	Field        string `json:"field,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FieldName returns the response key for this step, defaulting to "step_<id>"
// when no explicit field is configured.
func (st Step) FieldName() string {
	if st.Field != "" {
		return st.Field
	}
	return fmt.Sprintf("step_%d", st.ID)
}

// ErrorPrompt returns the configured error text for the step, falling back to
// the step's question when none is configured.
func (st Step) ErrorPrompt() string {
	if st.ErrorMessage != "" {
		return st.ErrorMessage
	}
	return st.Question
}

// FlowDefinition is the ordered list of intake steps plus the completion
// message, sourced externally and cached by the orchestrator.
type FlowDefinition struct {
	Steps             []Step    `json:"steps"`
	CompletionMessage string    `json:"completion_message"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// StepByID resolves a step by id. Step ids are looked up, never used as array
// indices, so flows with gaps in their numbering still resolve correctly.
func (f *FlowDefinition) StepByID(id int) (Step, bool) {
	for _, st := range f.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// FirstStep returns the step with the lowest id.
func (f *FlowDefinition) FirstStep() (Step, bool) {
	var first Step
	found := false
	for _, st := range f.Steps {
		if !found || st.ID < first.ID {
			first = st
			found = true
		}
	}
	return first, found
}

// LastStepID returns the highest step id in the flow.
func (f *FlowDefinition) LastStepID() int {
	max := 0
	for _, st := range f.Steps {
		if st.ID > max {
			max = st.ID
		}
	}
	return max
}

// Validate performs structural validation on a flow definition.
func (f *FlowDefinition) Validate() error {
	if len(f.Steps) == 0 {
		return ErrEmptyFlow
	}
	seen := make(map[int]bool, len(f.Steps))
	for _, st := range f.Steps {
		if st.ID <= 0 {
			return ErrNonPositiveStepID
		}
		if seen[st.ID] {
			return ErrDuplicateStepID
		}
		seen[st.ID] = true
	}
	return nil
}

// RenderCompletionMessage substitutes {field} placeholders in the completion
// message with collected responses.
func (f *FlowDefinition) RenderCompletionMessage(responses map[string]string) string {
	msg := f.CompletionMessage
	for field, answer := range responses {
		msg = strings.ReplaceAll(msg, "{"+field+"}", answer)
	}
	return msg
}

// OrchestrationResult is the typed outcome of one ProcessMessage call.
type OrchestrationResult struct {
	ResponseType   ResponseType `json:"response_type"`
	SessionID      string       `json:"session_id"`
	Platform       Platform     `json:"platform"`
	Response       string       `json:"response"`
	CurrentStep    int          `json:"current_step,omitempty"`
	StepAdvanced   bool         `json:"step_advanced,omitempty"`
	FlowCompleted  bool         `json:"flow_completed"`
	PhoneCollected bool         `json:"phone_collected"`
	MessageCount   int          `json:"message_count"`
	Error          string       `json:"error,omitempty"`
}

// StartResult is returned when a new conversation is started.
type StartResult struct {
	SessionID   string `json:"session_id"`
	Question    string `json:"question"`
	StepID      int    `json:"step_id"`
	IsFinalStep bool   `json:"is_final_step"`
}

// PhoneSubmissionResult is returned by the direct phone submission operation.
type PhoneSubmissionResult struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	PhoneCollected bool   `json:"phone_collected"`
}

// SessionContext is a read-only view of a session's progress.
type SessionContext struct {
	Exists         bool              `json:"exists"`
	SessionID      string            `json:"session_id,omitempty"`
	Platform       Platform          `json:"platform,omitempty"`
	CurrentStep    int               `json:"current_step,omitempty"`
	TotalSteps     int               `json:"total_steps,omitempty"`
	FlowCompleted  bool              `json:"flow_completed,omitempty"`
	PhoneCollected bool              `json:"phone_collected,omitempty"`
	Responses      map[string]string `json:"responses,omitempty"`
	MessageCount   int               `json:"message_count,omitempty"`
	CreatedAt      time.Time         `json:"created_at,omitempty"`
	LastUpdated    time.Time         `json:"last_updated,omitempty"`
}

// LeadAnswer is one collected answer in a finalized lead record.
type LeadAnswer struct {
	ID     int    `json:"id"`
	Answer string `json:"answer"`
}

// LeadStatus tracks the lifecycle of a lead record.
type LeadStatus string

const (
	// LeadStatusNew indicates the lead was just captured.
	LeadStatusNew LeadStatus = "new"
	// LeadStatusContacted indicates the team has reached out.
	LeadStatusContacted LeadStatus = "contacted"
)

// Lead is the finalized collected-answers record submitted once intake
// completes and a phone number is captured.
type Lead struct {
	ID        string       `json:"id,omitempty"`
	SessionID string       `json:"session_id"`
	Answers   []LeadAnswer `json:"answers"`
	Phone     string       `json:"phone"`
	Status    LeadStatus   `json:"status"`
	Source    string       `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
}
