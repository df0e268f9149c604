package repository

import (
	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
)

// CredentialRepository defines the interface for durable credential storage
type CredentialRepository interface {
	// Upsert writes the credential for its user, last-write-wins on UpdatedAt.
	// Safe to call repeatedly with the same token.
	Upsert(cred *credentialdomain.SyncCredential) error
	// FindByUserID returns the stored credential, or nil when there is none.
	FindByUserID(userID string) (*credentialdomain.SyncCredential, error)
	// ListAll returns every stored credential, most recently updated first.
	ListAll() ([]*credentialdomain.SyncCredential, error)
	// Delete removes the credential for a user (authorization revoked).
	Delete(userID string) error
}
