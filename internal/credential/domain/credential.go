package domain

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned when no credential resolves for an identity.
// Callers treat it as "skip this identity this cycle", never as fatal.
var ErrNotFound = errors.New("credential not found")

// TokenUpdateFunc is called when the oauth2 transport silently refreshes
// an access token, so the durable record can be kept current.
type TokenUpdateFunc func(token *oauth2.Token) error

// SyncCredential is the durable OAuth token set for one identity.
// Exactly one row per user, upserted on every successful authorization.
type SyncCredential struct {
	UserID       string    `json:"user_id" gorm:"primaryKey"`
	AccountEmail string    `json:"account_email"`
	AccessToken  string    `json:"-" gorm:"not null"`
	RefreshToken *string   `json:"-"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"-"`
	ClientSecret string    `json:"-"`
	Scopes       string    `json:"scopes"` // space-separated
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GrantedScopes splits the stored scope string.
func (c *SyncCredential) GrantedScopes() []string {
	if c.Scopes == "" {
		return nil
	}
	return strings.Fields(c.Scopes)
}

// RefreshTokenValue returns the refresh token or "" when re-authorization
// is required instead of silent refresh.
func (c *SyncCredential) RefreshTokenValue() string {
	if c.RefreshToken == nil {
		return ""
	}
	return *c.RefreshToken
}
