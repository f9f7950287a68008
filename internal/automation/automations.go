// Package automation registers the domain business rules that run in
// response to workflow events: proposal acceptance, contract signature,
// milestone invoicing, and client notifications. Every handler is idempotent
// and treats missing entities as a soft no-op.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clientflow/internal/events"
	"clientflow/internal/services"
	"clientflow/internal/storage"
	"clientflow/internal/workflow"
)

// Bus is the slice of the workflow engine the automations use.
type Bus interface {
	On(kind events.Kind, l workflow.Listener)
	Emit(ctx context.Context, payload events.Payload, opts ...workflow.EmitOption)
}

// ReminderScheduler is the slice of the scheduler the automations call to
// manage reminder cadences.
type ReminderScheduler interface {
	StartWelcomeSequence(ctx context.Context, clientID int64) (int, error)
	CancelContractReminders(ctx context.Context, projectID int64) (int64, error)
}

// Project statuses the automations care about.
const (
	projectActive = "active"
)

// paymentKeywords mark a milestone title as payment-bearing.
var paymentKeywords = []string{"payment", "deposit", "invoice", "balance"}

// Automations holds the domain listeners registered against the bus at
// startup.
type Automations struct {
	domain   storage.DomainStore
	invoices services.InvoiceService
	email    services.EmailService
	audit    services.AuditLogger
	sched    ReminderScheduler
	bus      Bus
	logger   *slog.Logger
}

func New(
	domain storage.DomainStore,
	invoices services.InvoiceService,
	email services.EmailService,
	audit services.AuditLogger,
	sched ReminderScheduler,
	logger *slog.Logger,
) *Automations {
	return &Automations{
		domain:   domain,
		invoices: invoices,
		email:    email,
		audit:    audit,
		sched:    sched,
		logger:   logger.With("component", "automations"),
	}
}

// Register subscribes every automation handler. Called once at process
// start.
func (a *Automations) Register(bus Bus) {
	a.bus = bus

	bus.On(events.ProposalAccepted, a.onProposalAccepted)
	bus.On(events.ContractSigned, a.onContractSigned)
	bus.On(events.MilestoneCompleted, a.onMilestoneCompleted)
	bus.On(events.DeliverableApproved, a.onDeliverableApproved)
	bus.On(events.QuestionnaireCompleted, a.onQuestionnaireCompleted)
	bus.On(events.InvoicePaid, a.onInvoicePaid)
	bus.On(events.DocumentRequestApproved, a.onDocumentRequestApproved)
	bus.On(events.ClientCreated, a.onClientCreated)
}

// onProposalAccepted creates or refreshes the project behind an accepted
// proposal. A proposal without a linked project gets a fresh active project
// with default milestones; a re-acceptance updates the existing project
// instead of duplicating it. The client is notified either way.
func (a *Automations) onProposalAccepted(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.ProposalAcceptedPayload)
	if !ok {
		a.logger.Warn("unexpected payload for proposal.accepted", "event_id", evt.ID)
		return nil
	}

	proposal, err := a.domain.GetProposal(ctx, p.ProposalID)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("accepted proposal not found", "proposal_id", p.ProposalID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load proposal %d: %w", p.ProposalID, err)
	}

	if proposal.ProjectID == 0 {
		projectID, err := a.domain.CreateProject(ctx, &storage.Project{
			ClientID:   proposal.ClientID,
			ProposalID: proposal.ID,
			Name:       proposal.Title,
			Status:     projectActive,
		})
		if err != nil {
			return fmt.Errorf("failed to create project for proposal %d: %w", proposal.ID, err)
		}
		if err := a.domain.LinkProposalProject(ctx, proposal.ID, projectID); err != nil {
			return fmt.Errorf("failed to link proposal %d to project %d: %w", proposal.ID, projectID, err)
		}
		if err := a.domain.CreateMilestones(ctx, defaultMilestones(projectID)); err != nil {
			return fmt.Errorf("failed to create default milestones: %w", err)
		}
		a.logger.Info("created project for accepted proposal",
			"proposal_id", proposal.ID, "project_id", projectID)
	} else {
		err := a.domain.UpdateProject(ctx, proposal.ProjectID, map[string]any{
			"status": projectActive,
			"name":   proposal.Title,
		})
		if err != nil {
			return fmt.Errorf("failed to update project %d: %w", proposal.ProjectID, err)
		}
		a.logger.Info("updated existing project for re-accepted proposal",
			"proposal_id", proposal.ID, "project_id", proposal.ProjectID)
	}

	client, ok := a.clientWithEmail(ctx, proposal.ClientID)
	if !ok {
		return nil
	}
	return a.email.SendEmail(ctx, client.Email,
		"Your proposal has been accepted",
		fmt.Sprintf("Hi %s, your proposal %q is accepted and the project is underway.", client.Name, proposal.Title))
}

// defaultMilestones is the starter plan attached to a newly created project.
func defaultMilestones(projectID int64) []*storage.Milestone {
	titles := []string{"Kickoff", "Midpoint review", "Final delivery"}
	ms := make([]*storage.Milestone, len(titles))
	for i, title := range titles {
		ms[i] = &storage.Milestone{
			ProjectID: projectID,
			Title:     title,
			Status:    "pending",
			SortOrder: i,
		}
	}
	return ms
}

// onContractSigned activates the target project, audits the signature,
// stops the signature-reminder cadence and re-emits project.status_changed
// so other listeners react uniformly. A project that is already active is
// left untouched and nothing is re-emitted.
func (a *Automations) onContractSigned(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.ContractSignedPayload)
	if !ok {
		a.logger.Warn("unexpected payload for contract.signed", "event_id", evt.ID)
		return nil
	}

	projectID := p.ProjectID
	if projectID == 0 && p.ContractID != 0 {
		contract, err := a.domain.GetContract(ctx, p.ContractID)
		if err != nil {
			a.logger.Warn("contract not found", "contract_id", p.ContractID)
			return nil
		}
		projectID = contract.ProjectID
	}
	if projectID == 0 {
		a.logger.Warn("contract.signed without resolvable project", "event_id", evt.ID)
		return nil
	}

	project, err := a.domain.GetProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("signed contract's project not found", "project_id", projectID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project %d: %w", projectID, err)
	}

	if project.Status == projectActive {
		return nil
	}

	oldStatus := project.Status
	if err := a.domain.SetProjectStatus(ctx, projectID, projectActive); err != nil {
		return fmt.Errorf("failed to activate project %d: %w", projectID, err)
	}

	if a.audit != nil {
		entry := services.AuditEntry{
			Action:     "contract.signed",
			EntityType: "project",
			EntityID:   projectID,
			OldValue:   map[string]any{"status": oldStatus},
			NewValue:   map[string]any{"status": projectActive},
			Actor:      p.SignedBy,
			At:         time.Now(),
		}
		if err := a.audit.Log(ctx, entry); err != nil {
			a.logger.Error("failed to audit contract signature", "project_id", projectID, "error", err)
		}
	}

	if _, err := a.sched.CancelContractReminders(ctx, projectID); err != nil {
		a.logger.Error("failed to cancel contract reminders", "project_id", projectID, "error", err)
	}

	a.bus.Emit(ctx, events.ProjectStatusChangedPayload{
		ProjectID: projectID,
		OldStatus: oldStatus,
		NewStatus: projectActive,
	})
	return nil
}

// onMilestoneCompleted generates a milestone invoice when the completed
// milestone is payment-bearing. The invoice-existence check is mandatory:
// a milestone whose invoice already exists never triggers a second creation.
func (a *Automations) onMilestoneCompleted(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.MilestoneCompletedPayload)
	if !ok {
		a.logger.Warn("unexpected payload for milestone completion", "event_id", evt.ID)
		return nil
	}

	milestone, err := a.domain.GetMilestone(ctx, p.MilestoneID)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("completed milestone not found", "milestone_id", p.MilestoneID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load milestone %d: %w", p.MilestoneID, err)
	}

	project, err := a.domain.GetProject(ctx, milestone.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("milestone's project not found", "project_id", milestone.ProjectID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project %d: %w", milestone.ProjectID, err)
	}

	deliverables, err := a.domain.ListDeliverablesByMilestone(ctx, milestone.ID)
	if err != nil {
		return fmt.Errorf("failed to load deliverables for milestone %d: %w", milestone.ID, err)
	}

	amount, isPayment := paymentAmount(milestone, deliverables)
	if !isPayment {
		return nil
	}

	exists, err := a.domain.MilestoneInvoiceExists(ctx, milestone.ID)
	if err != nil {
		return fmt.Errorf("invoice existence check failed for milestone %d: %w", milestone.ID, err)
	}
	if exists {
		a.logger.Info("invoice already exists for milestone, skipping",
			"milestone_id", milestone.ID)
		return nil
	}

	invoice, err := a.invoices.CreateMilestoneInvoice(ctx, milestone.ID, project.ID, project.ClientID, amount)
	if err != nil {
		return fmt.Errorf("failed to create milestone invoice: %w", err)
	}
	a.logger.Info("created milestone invoice",
		"milestone_id", milestone.ID, "invoice_id", invoice.ID, "amount", invoice.Amount)

	a.bus.Emit(ctx, events.InvoicePayload{
		Event:     events.InvoiceCreated,
		InvoiceID: invoice.ID,
		ClientID:  invoice.ClientID,
		ProjectID: invoice.ProjectID,
		Amount:    invoice.Amount,
		Status:    invoice.Status,
	})
	return nil
}

// paymentAmount decides whether a milestone is payment-bearing, from its
// title keywords or deliverables carrying a price, and sums that price.
func paymentAmount(m *storage.Milestone, deliverables []*storage.Deliverable) (float64, bool) {
	var total float64
	for _, d := range deliverables {
		total += d.Price
	}
	if total > 0 {
		return total, true
	}

	title := strings.ToLower(m.Title)
	for _, kw := range paymentKeywords {
		if strings.Contains(title, kw) {
			return 0, true
		}
	}
	return 0, false
}

// onDeliverableApproved notifies the owning client that their deliverable
// was approved.
func (a *Automations) onDeliverableApproved(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.DeliverablePayload)
	if !ok {
		a.logger.Warn("unexpected payload for deliverable.approved", "event_id", evt.ID)
		return nil
	}

	deliverable, err := a.domain.GetDeliverable(ctx, p.DeliverableID)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("approved deliverable not found", "deliverable_id", p.DeliverableID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load deliverable %d: %w", p.DeliverableID, err)
	}

	client, ok := a.projectClient(ctx, deliverable.ProjectID)
	if !ok {
		return nil
	}
	return a.email.SendEmail(ctx, client.Email,
		"Deliverable approved",
		fmt.Sprintf("Hi %s, the deliverable %q has been approved.", client.Name, deliverable.Title))
}

// onQuestionnaireCompleted thanks the client for a completed questionnaire.
func (a *Automations) onQuestionnaireCompleted(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.QuestionnaireCompletedPayload)
	if !ok {
		a.logger.Warn("unexpected payload for questionnaire completion", "event_id", evt.ID)
		return nil
	}

	client, ok := a.clientWithEmail(ctx, p.ClientID)
	if !ok {
		return nil
	}
	return a.email.SendEmail(ctx, client.Email,
		"Thanks for completing the questionnaire",
		fmt.Sprintf("Hi %s, we received your questionnaire answers and will follow up shortly.", client.Name))
}

// onInvoicePaid sends a payment receipt.
func (a *Automations) onInvoicePaid(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.InvoicePayload)
	if !ok {
		a.logger.Warn("unexpected payload for invoice.paid", "event_id", evt.ID)
		return nil
	}

	invoice, err := a.invoices.GetInvoiceByID(ctx, p.InvoiceID)
	if err != nil {
		a.logger.Warn("paid invoice not found", "invoice_id", p.InvoiceID, "error", err)
		return nil
	}

	client, ok := a.clientWithEmail(ctx, invoice.ClientID)
	if !ok {
		return nil
	}
	return a.email.SendEmail(ctx, client.Email,
		"Payment received",
		fmt.Sprintf("Hi %s, we received your payment of %.2f for invoice #%d. Thank you!",
			client.Name, invoice.Amount, invoice.ID))
}

// onDocumentRequestApproved notifies the client their document was approved.
func (a *Automations) onDocumentRequestApproved(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.DocumentRequestApprovedPayload)
	if !ok {
		a.logger.Warn("unexpected payload for document request approval", "event_id", evt.ID)
		return nil
	}

	client, ok := a.clientWithEmail(ctx, p.ClientID)
	if !ok {
		return nil
	}
	return a.email.SendEmail(ctx, client.Email,
		"Document approved",
		fmt.Sprintf("Hi %s, your document %q has been approved.", client.Name, p.Title))
}

// onClientCreated seeds the client's welcome email sequence. Seeding is
// guarded by the client's started-at marker, so replays are harmless.
func (a *Automations) onClientCreated(ctx context.Context, evt events.Event, payload events.Payload) error {
	p, ok := payload.(events.ClientCreatedPayload)
	if !ok {
		a.logger.Warn("unexpected payload for client.created", "event_id", evt.ID)
		return nil
	}

	if _, err := a.sched.StartWelcomeSequence(ctx, p.ClientID); err != nil {
		return fmt.Errorf("failed to start welcome sequence for client %d: %w", p.ClientID, err)
	}
	return nil
}

// clientWithEmail loads a client and checks for a usable address. A missing
// client or blank email logs a warning and reports not-ok; it never errors.
func (a *Automations) clientWithEmail(ctx context.Context, clientID int64) (*storage.Client, bool) {
	client, err := a.domain.GetClient(ctx, clientID)
	if err != nil {
		a.logger.Warn("client not found for notification", "client_id", clientID, "error", err)
		return nil, false
	}
	if client.Email == "" {
		a.logger.Warn("client has no email, skipping notification", "client_id", clientID)
		return nil, false
	}
	return client, true
}

// projectClient resolves a project's owning client with a usable email.
func (a *Automations) projectClient(ctx context.Context, projectID int64) (*storage.Client, bool) {
	project, err := a.domain.GetProject(ctx, projectID)
	if err != nil {
		a.logger.Warn("project not found for notification", "project_id", projectID, "error", err)
		return nil, false
	}
	return a.clientWithEmail(ctx, project.ClientID)
}
