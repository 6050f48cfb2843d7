package exchange

import (
	"errors"
	"time"
)

// Status is the approval state of a data-exchange request. Completed is a
// valid terminal state set by an external fulfillment process; this service
// accepts and displays it but never assigns it.
type Status string

const (
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Decided reports whether the request has left the Submitted state.
func (s Status) Decided() bool {
	return s.Valid() && s != StatusSubmitted
}

// Request is a consumer institution's ask for a provider institution's
// service or data, brokered by the admin authority.
type Request struct {
	ID                      string     `json:"id"`
	ConsumerInstitutionID   string     `json:"consumer_institution_id"`
	ConsumerInstitutionName string     `json:"consumer_institution_name"`
	SubmittedBy             string     `json:"submitted_by"`
	Services                []string   `json:"services"`
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	Status                  Status     `json:"status"`
	ConversationActive      bool       `json:"conversation_active"`
	AdminNote               string     `json:"admin_note,omitempty"`
	DecisionDate            *time.Time `json:"decision_date,omitempty"`
	Reason                  string     `json:"reason,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Notification is an advisory, best-effort record of an event related to a
// request. An empty RecipientUserID means the notification is broadcast to
// every party privy to the request.
type Notification struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	RecipientUserID string    `json:"recipient_user_id,omitempty"`
	Message         string    `json:"message"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

// DefaultRejectReason is stored when an administrator rejects without
// supplying a reason.
const DefaultRejectReason = "Rejected by administrator"

var (
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("operation not allowed in current status")
)
