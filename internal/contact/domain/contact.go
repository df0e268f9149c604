package domain

import (
	"strings"
	"time"
)

// ContactKind distinguishes the two contact record types.
type ContactKind string

const (
	KindPerson       ContactKind = "person"
	KindOrganization ContactKind = "organization"
)

// ContactRef is a tagged reference to either a Person or an Organization.
type ContactRef struct {
	Kind ContactKind `json:"kind"`
	ID   string      `json:"id"`
}

// Person is an individual contact.
type Person struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"not null"`
	Email          string    `json:"email" gorm:"index"`
	Phone          string    `json:"phone,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Organization is an organizational contact.
type Organization struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Location  string    `json:"location,omitempty"`
	Email     string    `json:"email" gorm:"index"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddressIndex maps a lower-cased email address to its contact. It is a
// derived projection rebuilt per sync cycle, never persisted.
type AddressIndex struct {
	byAddress map[string]ContactRef
}

func NewAddressIndex() *AddressIndex {
	return &AddressIndex{byAddress: make(map[string]ContactRef)}
}

// Add registers an address. The first registration for an address wins,
// so person entries added before organization entries take priority.
func (idx *AddressIndex) Add(address string, ref ContactRef) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return
	}
	if _, ok := idx.byAddress[addr]; ok {
		return
	}
	idx.byAddress[addr] = ref
}

// Lookup resolves an address to a contact reference.
func (idx *AddressIndex) Lookup(address string) (ContactRef, bool) {
	ref, ok := idx.byAddress[strings.ToLower(strings.TrimSpace(address))]
	return ref, ok
}

// Addresses returns every indexed address.
func (idx *AddressIndex) Addresses() []string {
	out := make([]string, 0, len(idx.byAddress))
	for addr := range idx.byAddress {
		out = append(out, addr)
	}
	return out
}

// Len reports the number of indexed addresses.
func (idx *AddressIndex) Len() int {
	return len(idx.byAddress)
}
