package types

import (
	"site-server/internal/billing"
	"site-server/internal/chat"
	"site-server/internal/responder"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type QuickReplyRequest struct {
	Label string `json:"label"`
}

// ChatResponse carries the user's message and, once delivered, the
// assistant's reply. Reply is nil while awaitingReply is true.
type ChatResponse struct {
	SessionID     string          `json:"sessionId"`
	Message       chat.Message    `json:"message"`
	Reply         *chat.Message   `json:"reply,omitempty"`
	Topic         responder.Topic `json:"topic"`
	AwaitingReply bool            `json:"awaitingReply"`
	Transcript    string          `json:"transcript,omitempty"`
}

type WidgetRequest struct {
	// Open sets the state; omitted toggles it.
	Open *bool `json:"open,omitempty"`
}

type WidgetResponse struct {
	SessionID string `json:"sessionId"`
	Open      bool   `json:"open"`
}

type CheckoutRequest struct {
	PlanID       string `json:"planId"`
	BillingCycle string `json:"billingCycle"`
}

type VerifyResponse struct {
	Success bool `json:"success"`
	billing.Verification
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type PlansResponse struct {
	Currency string         `json:"currency"`
	Plans    []billing.Plan `json:"plans"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
