package config

import "time"

// JobConfig enables one scheduled job and sets its cadence.
type JobConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Config holds scheduler configuration.
type Config struct {
	Enabled bool `yaml:"enabled"`

	OverdueCheck       JobConfig `yaml:"overdue_check"`
	InvoiceReminders   JobConfig `yaml:"invoice_reminders"`
	InvoiceGeneration  JobConfig `yaml:"invoice_generation"`
	AnalyticsCleanup   JobConfig `yaml:"analytics_cleanup"`
	PriorityEscalation JobConfig `yaml:"priority_escalation"`
	ContractReminders  JobConfig `yaml:"contract_reminders"`
	WelcomeEmails      JobConfig `yaml:"welcome_emails"`
	ApprovalReminders  JobConfig `yaml:"approval_reminders"`

	// AnalyticsRetention is how long raw analytics rows are kept.
	AnalyticsRetention time.Duration `yaml:"analytics_retention"`

	// ApprovalReminderOffsets are the day offsets after submission at which
	// approval reminder emails go out.
	ApprovalReminderOffsets []int `yaml:"approval_reminder_offsets"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		OverdueCheck:            JobConfig{Enabled: true, Interval: time.Hour},
		InvoiceReminders:        JobConfig{Enabled: true, Interval: 15 * time.Minute},
		InvoiceGeneration:       JobConfig{Enabled: true, Interval: 6 * time.Hour},
		AnalyticsCleanup:        JobConfig{Enabled: true, Interval: 24 * time.Hour},
		PriorityEscalation:      JobConfig{Enabled: true, Interval: time.Hour},
		ContractReminders:       JobConfig{Enabled: true, Interval: time.Hour},
		WelcomeEmails:           JobConfig{Enabled: true, Interval: time.Hour},
		ApprovalReminders:       JobConfig{Enabled: true, Interval: 6 * time.Hour},
		AnalyticsRetention:      90 * 24 * time.Hour,
		ApprovalReminderOffsets: []int{2, 5, 10},
	}
}
