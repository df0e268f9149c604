package repository

import (
	communicationdomain "github.com/jburchel/mobilize-crm/internal/communication/domain"
)

// CommunicationRepository defines the storage contract the mail sync engine consumes
type CommunicationRepository interface {
	// Create inserts a new communication record.
	Create(comm *communicationdomain.Communication) error
	// FindByGmailMessageID is the dedup lookup: returns nil when the remote
	// message has never been recorded.
	FindByGmailMessageID(messageID string) (*communicationdomain.Communication, error)
	// Save writes back an existing record.
	Save(comm *communicationdomain.Communication) error
}

// SignatureRepository resolves email signatures for outbound mail
type SignatureRepository interface {
	// FindByID returns a signature by id, or nil.
	FindByID(id string) (*communicationdomain.EmailSignature, error)
	// FindDefault returns the user's default signature, or nil.
	FindDefault(userID string) (*communicationdomain.EmailSignature, error)
	// FindFirst returns any signature for the user, or nil.
	FindFirst(userID string) (*communicationdomain.EmailSignature, error)
}
