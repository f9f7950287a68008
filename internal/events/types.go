// Package events defines the canonical event schema for the workflow engine.
// All emitters and listeners MUST use these types for event processing.
package events

import (
	"strings"
	"time"
)

// Kind identifies a domain event type. Values use the
// "<category>.<verb>" form, e.g. "invoice.created".
type Kind string

const (
	ProposalAccepted        Kind = "proposal.accepted"
	ContractSigned          Kind = "contract.signed"
	ProjectStatusChanged    Kind = "project.status_changed"
	MilestoneCompleted      Kind = "project.milestone_completed"
	InvoiceCreated          Kind = "invoice.created"
	InvoicePaid             Kind = "invoice.paid"
	InvoiceOverdue          Kind = "invoice.overdue"
	DeliverableApproved     Kind = "deliverable.approved"
	DeliverableDeleted      Kind = "deliverable.deleted"
	QuestionnaireCompleted  Kind = "questionnaire.completed"
	DocumentRequestApproved Kind = "document_request.approved"
	ClientCreated           Kind = "client.created"
)

// IsValid checks if the kind is a known event type.
func (k Kind) IsValid() bool {
	switch k {
	case ProposalAccepted, ContractSigned, ProjectStatusChanged,
		MilestoneCompleted, InvoiceCreated, InvoicePaid, InvoiceOverdue,
		DeliverableApproved, DeliverableDeleted, QuestionnaireCompleted,
		DocumentRequestApproved, ClientCreated:
		return true
	default:
		return false
	}
}

// Category returns the leading segment of the kind ("invoice" for
// "invoice.created"). The condition evaluator uses it to resolve nested
// context lookups.
func (k Kind) Category() string {
	s := string(k)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// IsDeletion reports whether the kind records a removal. Audit entries for
// deletion events carry no new value.
func (k Kind) IsDeletion() bool {
	return strings.HasSuffix(string(k), ".deleted")
}

// Payload is the typed payload carried by an event. Context flattens the
// payload into the map consumed by trigger conditions and persisted with
// the event row.
type Payload interface {
	Kind() Kind
	Context() map[string]any
}

// Event is an immutable record of something that happened in the business
// domain. Created on every emit, never mutated.
type Event struct {
	ID          string         `json:"id" bson:"_id"`
	Type        Kind           `json:"event_type" bson:"event_type"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
	Context     map[string]any `json:"context" bson:"context"`
	TriggeredBy string         `json:"triggered_by,omitempty" bson:"triggered_by,omitempty"`

	// CausationID links an event emitted from inside a listener back to the
	// event that listener was handling. Empty for top-level emits.
	CausationID string `json:"causation_id,omitempty" bson:"causation_id,omitempty"`
	ChainDepth  int    `json:"chain_depth,omitempty" bson:"chain_depth,omitempty"`
}
