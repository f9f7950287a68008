// Package storage defines the persistence types and store interfaces for the
// workflow engine and the domain entities its automations touch.
package storage

import (
	"context"
	"errors"
	"time"

	"clientflow/internal/events"
	"clientflow/internal/workflow/condition"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned when trying to create a record that already exists
	ErrExists = errors.New("record already exists")
)

// Trigger is a stored declarative rule binding an event type and condition
// to an action. Owned by admin tooling; the engine only reads active rows.
type Trigger struct {
	ID        int64  `bson:"_id"`
	Name      string `bson:"name"`
	EventType string `bson:"event_type"`

	// Conditions is the raw stored condition object; nil always matches.
	Conditions map[string]any `bson:"conditions,omitempty"`

	// ConditionExpr is an optional CEL expression evaluated in addition to
	// Conditions, for rules the suffix DSL cannot express.
	ConditionExpr string `bson:"condition_expr,omitempty"`

	ActionType   string         `bson:"action_type"`
	ActionConfig map[string]any `bson:"action_config,omitempty"`
	IsActive     bool           `bson:"is_active"`
	Priority     int            `bson:"priority"`

	// Parsed is the AST built from Conditions at load time.
	Parsed condition.Expr `bson:"-"`
}

// Trigger action types.
const (
	ActionSendEmail  = "send_email"
	ActionNotify     = "notify"
	ActionCreateTask = "create_task"
	ActionWebhook    = "webhook"
)

// Execution statuses for trigger logs.
const (
	ExecutionSuccess = "success"
	ExecutionFailed  = "failed"
)

// TriggerExecutionLog records one execution attempt of a trigger for an
// event. Append-only.
type TriggerExecutionLog struct {
	ID         string    `bson:"_id"`
	TriggerID  int64     `bson:"trigger_id"`
	EventID    string    `bson:"event_id"`
	Status     string    `bson:"status"`
	Error      string    `bson:"error,omitempty"`
	ExecutedAt time.Time `bson:"executed_at"`
}

// Reminder statuses shared by contract reminders and welcome emails.
const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
	ReminderSkipped = "skipped"
)

// Day offsets at which contract-signature reminders are scheduled, relative
// to contract-send time.
var ContractReminderOffsets = []int{0, 3, 7, 14}

// ContractReminder is one scheduled contract-signature reminder for a
// project. Four rows are created in bulk when a contract goes out.
type ContractReminder struct {
	ID            string    `bson:"_id"`
	ProjectID     int64     `bson:"project_id"`
	ReminderType  string    `bson:"reminder_type"`
	ScheduledDate time.Time `bson:"scheduled_date"`
	Status        string    `bson:"status"`
}

// WelcomeSequenceEmail is one scheduled onboarding email for a client.
type WelcomeSequenceEmail struct {
	ID              string    `bson:"_id"`
	ClientID        int64     `bson:"client_id"`
	EmailType       string    `bson:"email_type"`
	DaysAfterSignup int       `bson:"days_after_signup"`
	SendAt          time.Time `bson:"send_at"`
	Status          string    `bson:"status"`
}

// Domain entities. Foreign keys are plain integer references.

type Proposal struct {
	ID        int64   `bson:"_id"`
	ClientID  int64   `bson:"client_id"`
	ProjectID int64   `bson:"project_id,omitempty"` // 0 when no project is linked yet
	Title     string  `bson:"title"`
	Amount    float64 `bson:"amount"`
	Status    string  `bson:"status"`
}

type Project struct {
	ID             int64      `bson:"_id"`
	ClientID       int64      `bson:"client_id"`
	ProposalID     int64      `bson:"proposal_id,omitempty"`
	Name           string     `bson:"name"`
	Status         string     `bson:"status"`
	ContractSentAt *time.Time `bson:"contract_sent_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
}

type Contract struct {
	ID        int64      `bson:"_id"`
	ProjectID int64      `bson:"project_id"`
	ClientID  int64      `bson:"client_id"`
	Status    string     `bson:"status"`
	SentAt    *time.Time `bson:"sent_at,omitempty"`
}

type Milestone struct {
	ID        int64      `bson:"_id"`
	ProjectID int64      `bson:"project_id"`
	Title     string     `bson:"title"`
	Status    string     `bson:"status"`
	DueDate   *time.Time `bson:"due_date,omitempty"`
	SortOrder int        `bson:"sort_order"`
}

type Deliverable struct {
	ID                     int64      `bson:"_id"`
	ProjectID              int64      `bson:"project_id"`
	MilestoneID            int64      `bson:"milestone_id,omitempty"`
	Title                  string     `bson:"title"`
	Price                  float64    `bson:"price,omitempty"`
	Status                 string     `bson:"status"`
	SubmittedAt            *time.Time `bson:"submitted_at,omitempty"`
	LastApprovalReminderAt *time.Time `bson:"last_approval_reminder_at,omitempty"`
}

type Client struct {
	ID                       int64      `bson:"_id"`
	Name                     string     `bson:"name"`
	Email                    string     `bson:"email,omitempty"`
	WelcomeSequenceStartedAt *time.Time `bson:"welcome_sequence_started_at,omitempty"`
	CreatedAt                time.Time  `bson:"created_at"`
}

type Invoice struct {
	ID          int64      `bson:"_id"`
	ClientID    int64      `bson:"client_id"`
	ProjectID   int64      `bson:"project_id,omitempty"`
	MilestoneID int64      `bson:"milestone_id,omitempty"`
	Amount      float64    `bson:"amount"`
	Status      string     `bson:"status"`
	DueDate     *time.Time `bson:"due_date,omitempty"`
}

// WorkflowStore is the persistence surface of the event bus.
type WorkflowStore interface {
	// InsertEvent appends an event row. Events are immutable once written.
	InsertEvent(ctx context.Context, evt *events.Event) error

	// ListActiveTriggers returns active triggers for the event type, ordered
	// by priority descending with id ascending as the stable tie-break.
	// Conditions are parsed into Trigger.Parsed; rows whose conditions fail
	// to parse are skipped.
	ListActiveTriggers(ctx context.Context, eventType string) ([]*Trigger, error)

	// InsertTriggerLog appends one execution-log row.
	InsertTriggerLog(ctx context.Context, log *TriggerExecutionLog) error
}

// ReminderStore persists contract reminders and welcome sequence emails.
type ReminderStore interface {
	DeletePendingContractReminders(ctx context.Context, projectID int64) (int64, error)
	InsertContractReminders(ctx context.Context, reminders []*ContractReminder) error
	CancelPendingContractReminders(ctx context.Context, projectID int64) (int64, error)
	ListDueContractReminders(ctx context.Context, now time.Time) ([]*ContractReminder, error)
	SetContractReminderStatus(ctx context.Context, id string, status string) error

	InsertWelcomeEmails(ctx context.Context, emails []*WelcomeSequenceEmail) error
	CancelPendingWelcomeEmails(ctx context.Context, clientID int64) (int64, error)
	ListDueWelcomeEmails(ctx context.Context, now time.Time) ([]*WelcomeSequenceEmail, error)
	SetWelcomeEmailStatus(ctx context.Context, id string, status string) error
}

// DomainStore is the narrow read/write surface the automations need over the
// application's domain entities.
type DomainStore interface {
	GetProposal(ctx context.Context, id int64) (*Proposal, error)
	LinkProposalProject(ctx context.Context, proposalID, projectID int64) error

	CreateProject(ctx context.Context, p *Project) (int64, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	SetProjectStatus(ctx context.Context, id int64, status string) error
	UpdateProject(ctx context.Context, id int64, fields map[string]any) error

	GetContract(ctx context.Context, id int64) (*Contract, error)

	CreateMilestones(ctx context.Context, ms []*Milestone) error
	GetMilestone(ctx context.Context, id int64) (*Milestone, error)
	ListDeliverablesByMilestone(ctx context.Context, milestoneID int64) ([]*Deliverable, error)
	GetDeliverable(ctx context.Context, id int64) (*Deliverable, error)
	ListAwaitingApprovalDeliverables(ctx context.Context) ([]*Deliverable, error)
	SetApprovalReminderSent(ctx context.Context, deliverableID int64, at time.Time) error

	GetClient(ctx context.Context, id int64) (*Client, error)
	// MarkWelcomeSequenceStarted sets the client's started-at marker and
	// reports whether it was newly set. Returns false when the sequence was
	// already seeded, which guards against double-seeding.
	MarkWelcomeSequenceStarted(ctx context.Context, clientID int64, at time.Time) (bool, error)

	// MilestoneInvoiceExists reports whether an invoice is already linked to
	// the milestone. The duplicate-prevention check before invoice creation.
	MilestoneInvoiceExists(ctx context.Context, milestoneID int64) (bool, error)
}

// AnalyticsStore deletes aged raw analytics rows past a retention window.
type AnalyticsStore interface {
	DeleteAgedPageViews(ctx context.Context, before time.Time) (int64, error)
	DeleteAgedInteractionEvents(ctx context.Context, before time.Time) (int64, error)
}
