package repository

import (
	"errors"
	"time"

	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// credentialRepository implements CredentialRepository interface
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new instance of credentialRepository
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{
		db: db,
	}
}

// Upsert is an atomic ON CONFLICT write keyed by user_id. The background
// engines read without locking and tolerate a slightly stale token.
func (r *credentialRepository) Upsert(cred *credentialdomain.SyncCredential) error {
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_email", "access_token", "refresh_token",
			"token_uri", "client_id", "client_secret", "scopes", "updated_at",
		}),
	}).Create(cred).Error
}

func (r *credentialRepository) FindByUserID(userID string) (*credentialdomain.SyncCredential, error) {
	var cred credentialdomain.SyncCredential
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) ListAll() ([]*credentialdomain.SyncCredential, error) {
	var creds []*credentialdomain.SyncCredential
	if err := r.db.Order("updated_at DESC").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *credentialRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&credentialdomain.SyncCredential{}).Error
}
