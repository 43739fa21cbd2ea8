package events

import "time"

// Type names a lifecycle transition of a registration.
type Type string

const (
	TypeRegistrationCreated   Type = "registration.created"
	TypeProvisioningSucceeded Type = "provisioning.succeeded"
	TypeProvisioningFailed    Type = "provisioning.failed"
	TypeReminderSent          Type = "reminder.sent"
)

// Event is one lifecycle record. Attributes are flat strings so every sink
// can carry them without a schema.
type Event struct {
	Type           Type              `json:"type"`
	RegistrationID string            `json:"registration_id"`
	RequestID      string            `json:"request_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}
