package repository

import (
	"errors"

	contactdomain "github.com/jburchel/mobilize-crm/internal/contact/domain"

	"gorm.io/gorm"
)

// contactRepository implements ContactRepository interface
type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new instance of contactRepository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{
		db: db,
	}
}

func (r *contactRepository) BuildAddressIndex() (*contactdomain.AddressIndex, error) {
	idx := contactdomain.NewAddressIndex()

	var people []contactdomain.Person
	if err := r.db.Where("email IS NOT NULL AND email <> ''").Find(&people).Error; err != nil {
		return nil, err
	}
	for _, p := range people {
		idx.Add(p.Email, contactdomain.ContactRef{Kind: contactdomain.KindPerson, ID: p.ID})
	}

	var orgs []contactdomain.Organization
	if err := r.db.Where("email IS NOT NULL AND email <> ''").Find(&orgs).Error; err != nil {
		return nil, err
	}
	for _, o := range orgs {
		idx.Add(o.Email, contactdomain.ContactRef{Kind: contactdomain.KindOrganization, ID: o.ID})
	}

	return idx, nil
}

func (r *contactRepository) FindPersonByEmail(email string) (*contactdomain.Person, error) {
	var person contactdomain.Person
	err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &person, nil
}

func (r *contactRepository) FindOrganizationByEmail(email string) (*contactdomain.Organization, error) {
	var org contactdomain.Organization
	err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}
