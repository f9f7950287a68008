package events

// Payload structs for each event kind. Context() produces the flat map the
// condition evaluator and the event row see; the nested category object is
// assembled by the evaluator, not here.

// ProposalAcceptedPayload is emitted when a client accepts a proposal.
type ProposalAcceptedPayload struct {
	ProposalID int64
	ClientID   int64
	Amount     float64
	Title      string
}

func (ProposalAcceptedPayload) Kind() Kind { return ProposalAccepted }

func (p ProposalAcceptedPayload) Context() map[string]any {
	return map[string]any{
		"proposal_id": p.ProposalID,
		"client_id":   p.ClientID,
		"amount":      p.Amount,
		"title":       p.Title,
	}
}

// ContractSignedPayload is emitted when a contract receives its signature.
type ContractSignedPayload struct {
	ContractID int64
	ProjectID  int64
	ClientID   int64
	SignedBy   string
}

func (ContractSignedPayload) Kind() Kind { return ContractSigned }

func (p ContractSignedPayload) Context() map[string]any {
	return map[string]any{
		"contract_id": p.ContractID,
		"project_id":  p.ProjectID,
		"client_id":   p.ClientID,
		"signed_by":   p.SignedBy,
	}
}

// ProjectStatusChangedPayload is emitted whenever a project transitions
// between statuses, including transitions performed by automations.
type ProjectStatusChangedPayload struct {
	ProjectID int64
	OldStatus string
	NewStatus string
}

func (ProjectStatusChangedPayload) Kind() Kind { return ProjectStatusChanged }

func (p ProjectStatusChangedPayload) Context() map[string]any {
	return map[string]any{
		"project_id": p.ProjectID,
		"old_status": p.OldStatus,
		"new_status": p.NewStatus,
	}
}

// MilestoneCompletedPayload is emitted when a project milestone is marked
// complete.
type MilestoneCompletedPayload struct {
	MilestoneID int64
	ProjectID   int64
	Title       string
}

func (MilestoneCompletedPayload) Kind() Kind { return MilestoneCompleted }

func (p MilestoneCompletedPayload) Context() map[string]any {
	return map[string]any{
		"milestone_id": p.MilestoneID,
		"project_id":   p.ProjectID,
		"title":        p.Title,
	}
}

// InvoicePayload covers the invoice lifecycle kinds; the kind is provided at
// construction so created/paid/overdue share one shape.
type InvoicePayload struct {
	Event     Kind
	InvoiceID int64
	ClientID  int64
	ProjectID int64
	Amount    float64
	Status    string
}

func (p InvoicePayload) Kind() Kind { return p.Event }

func (p InvoicePayload) Context() map[string]any {
	return map[string]any{
		"invoice_id": p.InvoiceID,
		"client_id":  p.ClientID,
		"project_id": p.ProjectID,
		"amount":     p.Amount,
		"status":     p.Status,
	}
}

// DeliverablePayload covers deliverable.approved and deliverable.deleted.
type DeliverablePayload struct {
	Event         Kind
	DeliverableID int64
	ProjectID     int64
	Title         string
}

func (p DeliverablePayload) Kind() Kind { return p.Event }

func (p DeliverablePayload) Context() map[string]any {
	return map[string]any{
		"deliverable_id": p.DeliverableID,
		"project_id":     p.ProjectID,
		"title":          p.Title,
	}
}

// QuestionnaireCompletedPayload is emitted when a client submits a
// questionnaire.
type QuestionnaireCompletedPayload struct {
	QuestionnaireID int64
	ProjectID       int64
	ClientID        int64
}

func (QuestionnaireCompletedPayload) Kind() Kind { return QuestionnaireCompleted }

func (p QuestionnaireCompletedPayload) Context() map[string]any {
	return map[string]any{
		"questionnaire_id": p.QuestionnaireID,
		"project_id":       p.ProjectID,
		"client_id":        p.ClientID,
	}
}

// DocumentRequestApprovedPayload is emitted when an uploaded document is
// approved.
type DocumentRequestApprovedPayload struct {
	RequestID int64
	ProjectID int64
	ClientID  int64
	Title     string
}

func (DocumentRequestApprovedPayload) Kind() Kind { return DocumentRequestApproved }

func (p DocumentRequestApprovedPayload) Context() map[string]any {
	return map[string]any{
		"document_request_id": p.RequestID,
		"project_id":          p.ProjectID,
		"client_id":           p.ClientID,
		"title":               p.Title,
	}
}

// ClientCreatedPayload is emitted when a new client signs up.
type ClientCreatedPayload struct {
	ClientID int64
	Email    string
	Name     string
}

func (ClientCreatedPayload) Kind() Kind { return ClientCreated }

func (p ClientCreatedPayload) Context() map[string]any {
	return map[string]any{
		"client_id": p.ClientID,
		"email":     p.Email,
		"name":      p.Name,
	}
}
