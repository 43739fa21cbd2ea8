package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Registration is a tenant signup record. It drives provisioning and the
// trial reminder schedule.
type Registration struct {
	ID               uuid.UUID `json:"id"`
	OrganisationName string    `json:"organisation_name"`
	Name             string    `json:"name"`
	Designation      string    `json:"designation,omitempty"`
	Email            string    `json:"email"`
	InfraSetupDone   bool      `json:"infra_setup_done"`
	// TrialReminderSentMarks holds the days-before-expiry values already
	// delivered. Append-only.
	TrialReminderSentMarks []int     `json:"trial_reminder_sent_marks"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// New builds a registration with a fresh id.
func New(organisation, name, designation, email string, now time.Time) *Registration {
	return &Registration{
		ID:                     uuid.New(),
		OrganisationName:       organisation,
		Name:                   name,
		Designation:            designation,
		Email:                  email,
		TrialReminderSentMarks: []int{},
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// HasMark reports whether the reminder for day has already been delivered.
func (r *Registration) HasMark(day int) bool {
	return slices.Contains(r.TrialReminderSentMarks, day)
}

// PendingDays returns the configured reminder days not yet delivered,
// preserving the order of configured.
func (r *Registration) PendingDays(configured []int) []int {
	pending := make([]int, 0, len(configured))
	for _, d := range configured {
		if !r.HasMark(d) {
			pending = append(pending, d)
		}
	}
	return pending
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (r *Registration) Clone() *Registration {
	c := *r
	c.TrialReminderSentMarks = slices.Clone(r.TrialReminderSentMarks)
	if c.TrialReminderSentMarks == nil {
		c.TrialReminderSentMarks = []int{}
	}
	return &c
}
