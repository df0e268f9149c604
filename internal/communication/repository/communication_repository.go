package repository

import (
	"errors"
	"time"

	communicationdomain "github.com/jburchel/mobilize-crm/internal/communication/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// communicationRepository implements CommunicationRepository interface
type communicationRepository struct {
	db *gorm.DB
}

// NewCommunicationRepository creates a new instance of communicationRepository
func NewCommunicationRepository(db *gorm.DB) CommunicationRepository {
	return &communicationRepository{
		db: db,
	}
}

func (r *communicationRepository) Create(comm *communicationdomain.Communication) error {
	if comm.ID == "" {
		comm.ID = uuid.New().String()
	}
	now := time.Now()
	comm.CreatedAt = now
	comm.UpdatedAt = now
	if comm.Type == "" {
		comm.Type = "Email"
	}
	return r.db.Create(comm).Error
}

func (r *communicationRepository) FindByGmailMessageID(messageID string) (*communicationdomain.Communication, error) {
	var comm communicationdomain.Communication
	err := r.db.Where("gmail_message_id = ?", messageID).First(&comm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comm, nil
}

func (r *communicationRepository) Save(comm *communicationdomain.Communication) error {
	comm.UpdatedAt = time.Now()
	return r.db.Save(comm).Error
}
