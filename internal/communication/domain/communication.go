package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrNotAContact rejects outbound mail to an address that resolves to no
// known contact. Checked before any remote call.
var ErrNotAContact = errors.New("recipient is not a contact in the CRM")

// EmailStatus is the sync state of a logged communication.
type EmailStatus string

const (
	StatusSent     EmailStatus = "sent"
	StatusDraft    EmailStatus = "draft"
	StatusReceived EmailStatus = "received"
	StatusFailed   EmailStatus = "failed"
)

// Direction of the message relative to the CRM user.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Communication is a logged email exchanged with a contact.
// GmailMessageID is the deduplication key: at most one row per remote
// message, enforced across overlapping polling windows.
type Communication struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	UserID   string    `json:"user_id" gorm:"index;not null"`
	Type     string    `json:"type" gorm:"default:Email"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`

	PersonID       *string `json:"person_id,omitempty" gorm:"index"`
	OrganizationID *string `json:"organization_id,omitempty" gorm:"index"`

	GmailMessageID *string     `json:"gmail_message_id,omitempty" gorm:"uniqueIndex"`
	GmailThreadID  *string     `json:"gmail_thread_id,omitempty"`
	GmailDraftID   *string     `json:"gmail_draft_id,omitempty"`
	EmailStatus    EmailStatus `json:"email_status"`
	Direction      Direction   `json:"direction"`
	LastSyncedAt   *time.Time  `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailSignature is an HTML block appended to outbound mail.
type EmailSignature struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	IsDefault bool      `json:"is_default" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteMessage is the adapter-level view of a remote mail message.
type RemoteMessage struct {
	ID       string
	ThreadID string
	Subject  string
	From     string // raw header value, possibly "Name <addr>"
	To       string
	Body     string
	Date     time.Time
}

// ExtractEmailAddress pulls the bare lower-cased address out of a header
// value like "Name <email@example.com>".
func ExtractEmailAddress(headerValue string) string {
	v := strings.TrimSpace(headerValue)
	if v == "" {
		return ""
	}
	if open := strings.Index(v, "<"); open >= 0 {
		if close := strings.Index(v[open:], ">"); close > 0 {
			return strings.ToLower(strings.TrimSpace(v[open+1 : open+close]))
		}
	}
	return strings.ToLower(v)
}
