package usecase

import (
	"context"

	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
	"github.com/jburchel/mobilize-crm/internal/credential/repository"

	"golang.org/x/oauth2"
)

// Resolver is one strategy for locating a usable credential.
// Returning (nil, nil) means "not here, try the next one".
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*credentialdomain.SyncCredential, error)
}

type contextKey struct{}

// NewContext attaches a request-scoped credential to the context. The live
// request path uses this so an in-flight token wins over the durable row.
func NewContext(ctx context.Context, cred *credentialdomain.SyncCredential) context.Context {
	return context.WithValue(ctx, contextKey{}, cred)
}

// FromContext returns the request-scoped credential, if any.
func FromContext(ctx context.Context) *credentialdomain.SyncCredential {
	cred, _ := ctx.Value(contextKey{}).(*credentialdomain.SyncCredential)
	return cred
}

// contextResolver resolves the credential carried by a live request context.
type contextResolver struct{}

func NewContextResolver() Resolver {
	return &contextResolver{}
}

func (r *contextResolver) Resolve(ctx context.Context, userID string) (*credentialdomain.SyncCredential, error) {
	cred := FromContext(ctx)
	if cred == nil || cred.UserID != userID {
		return nil, nil
	}
	return cred, nil
}

// durableResolver resolves the most recently updated stored credential.
type durableResolver struct {
	repo repository.CredentialRepository
}

func NewDurableResolver(repo repository.CredentialRepository) Resolver {
	return &durableResolver{repo: repo}
}

func (r *durableResolver) Resolve(ctx context.Context, userID string) (*credentialdomain.SyncCredential, error) {
	return r.repo.FindByUserID(userID)
}

// Store resolves credentials through an ordered resolver chain and persists
// new or refreshed tokens to the durable repository.
type Store struct {
	resolvers []Resolver
	repo      repository.CredentialRepository
}

// NewStore builds the standard chain: request context first, durable store second.
func NewStore(repo repository.CredentialRepository) *Store {
	return &Store{
		resolvers: []Resolver{NewContextResolver(), NewDurableResolver(repo)},
		repo:      repo,
	}
}

// NewStoreWithResolvers builds a store with an explicit resolver order.
func NewStoreWithResolvers(repo repository.CredentialRepository, resolvers ...Resolver) *Store {
	return &Store{resolvers: resolvers, repo: repo}
}

// Resolve tries each resolver in order and returns domain.ErrNotFound when
// the chain is exhausted. A resolver error ends the chain: a broken store is
// not the same as a missing credential.
func (s *Store) Resolve(ctx context.Context, userID string) (*credentialdomain.SyncCredential, error) {
	for _, r := range s.resolvers {
		cred, err := r.Resolve(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			return cred, nil
		}
	}
	return nil, credentialdomain.ErrNotFound
}

// Persist upserts the credential, keyed by user id.
func (s *Store) Persist(ctx context.Context, cred *credentialdomain.SyncCredential) error {
	return s.repo.Upsert(cred)
}

// ListIdentities returns the user ids that have a stored credential. The sync
// engines use this as the identity set for a cycle.
func (s *Store) ListIdentities(ctx context.Context) ([]*credentialdomain.SyncCredential, error) {
	return s.repo.ListAll()
}

// OnTokenRefresh returns the callback the API adapters invoke when the
// oauth2 transport silently refreshes a token, so the durable row stays
// current. Failing to persist does not fail the remote call.
func (s *Store) OnTokenRefresh(ctx context.Context, cred *credentialdomain.SyncCredential) credentialdomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		cred.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			rt := token.RefreshToken
			cred.RefreshToken = &rt
		}
		return s.Persist(ctx, cred)
	}
}
