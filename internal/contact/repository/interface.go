package repository

import (
	contactdomain "github.com/jburchel/mobilize-crm/internal/contact/domain"
)

// ContactRepository defines the interface for contact lookups used by the
// mail sync engine
type ContactRepository interface {
	// BuildAddressIndex projects every contact with a non-empty email into
	// an address index for one sync cycle.
	BuildAddressIndex() (*contactdomain.AddressIndex, error)
	// FindPersonByEmail returns the person with the given address (case
	// insensitive), or nil.
	FindPersonByEmail(email string) (*contactdomain.Person, error)
	// FindOrganizationByEmail returns the organization with the given
	// address (case insensitive), or nil.
	FindOrganizationByEmail(email string) (*contactdomain.Organization, error)
}
