package repository

import (
	"errors"

	communicationdomain "github.com/jburchel/mobilize-crm/internal/communication/domain"

	"gorm.io/gorm"
)

// signatureRepository implements SignatureRepository interface
type signatureRepository struct {
	db *gorm.DB
}

// NewSignatureRepository creates a new instance of signatureRepository
func NewSignatureRepository(db *gorm.DB) SignatureRepository {
	return &signatureRepository{
		db: db,
	}
}

func (r *signatureRepository) FindByID(id string) (*communicationdomain.EmailSignature, error) {
	var sig communicationdomain.EmailSignature
	err := r.db.Where("id = ?", id).First(&sig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sig, nil
}

func (r *signatureRepository) FindDefault(userID string) (*communicationdomain.EmailSignature, error) {
	var sig communicationdomain.EmailSignature
	err := r.db.Where("user_id = ? AND is_default = ?", userID, true).First(&sig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sig, nil
}

func (r *signatureRepository) FindFirst(userID string) (*communicationdomain.EmailSignature, error) {
	var sig communicationdomain.EmailSignature
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").First(&sig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sig, nil
}
