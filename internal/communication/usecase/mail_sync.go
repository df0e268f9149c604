package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	communicationdomain "github.com/jburchel/mobilize-crm/internal/communication/domain"
	"github.com/jburchel/mobilize-crm/internal/communication/repository"
	contactdomain "github.com/jburchel/mobilize-crm/internal/contact/domain"
	contactrepository "github.com/jburchel/mobilize-crm/internal/contact/repository"
	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
	credentialusecase "github.com/jburchel/mobilize-crm/internal/credential/usecase"
	"github.com/jburchel/mobilize-crm/pkg/gmail"
)

// GmailService is the remote mail adapter contract the engine consumes
type GmailService interface {
	GetProfileEmail(ctx context.Context, accessToken, refreshToken string, onTokenRefresh credentialdomain.TokenUpdateFunc) (string, error)
	ListMessageIDs(ctx context.Context, accessToken, refreshToken, query string, maxMessages int, onTokenRefresh credentialdomain.TokenUpdateFunc) ([]string, error)
	GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh credentialdomain.TokenUpdateFunc) (*communicationdomain.RemoteMessage, error)
	SendMessage(ctx context.Context, accessToken, refreshToken string, raw []byte, onTokenRefresh credentialdomain.TokenUpdateFunc) (messageID, threadID string, err error)
	CreateDraft(ctx context.Context, accessToken, refreshToken string, raw []byte, onTokenRefresh credentialdomain.TokenUpdateFunc) (string, error)
	SendDraft(ctx context.Context, accessToken, refreshToken, draftID string, onTokenRefresh credentialdomain.TokenUpdateFunc) (messageID, threadID string, err error)
}

const (
	// DefaultLookbackDays bounds the polling window. The remote query is a
	// broad recency filter because enumerating every contact address would
	// exceed remote query-length limits.
	DefaultLookbackDays = 30
	// DefaultMaxMessagesPerCycle caps full-content fetches per cycle.
	DefaultMaxMessagesPerCycle = 100
)

// SendEmailInput is one outbound send request.
type SendEmailInput struct {
	UserID         string
	To             string
	Subject        string
	Message        string
	HTMLContent    string
	SignatureID    string
	PersonID       *string
	OrganizationID *string
}

// MailSyncEngine reconciles local communications against remote mail, and
// sends outbound mail on behalf of an identity.
type MailSyncEngine struct {
	commRepo    repository.CommunicationRepository
	sigRepo     repository.SignatureRepository
	contactRepo contactrepository.ContactRepository
	credStore   *credentialusecase.Store
	mail        GmailService

	LookbackDays        int
	MaxMessagesPerCycle int

	now func() time.Time
}

// NewMailSyncEngine creates a new mail sync engine
func NewMailSyncEngine(
	commRepo repository.CommunicationRepository,
	sigRepo repository.SignatureRepository,
	contactRepo contactrepository.ContactRepository,
	credStore *credentialusecase.Store,
	mail GmailService,
) *MailSyncEngine {
	return &MailSyncEngine{
		commRepo:            commRepo,
		sigRepo:             sigRepo,
		contactRepo:         contactRepo,
		credStore:           credStore,
		mail:                mail,
		LookbackDays:        DefaultLookbackDays,
		MaxMessagesPerCycle: DefaultMaxMessagesPerCycle,
		now:                 time.Now,
	}
}

func (e *MailSyncEngine) Name() string {
	return "gmail-sync"
}

// SendEmail sends mail to a known contact and records the attempt. The
// recipient must resolve to a contact before any remote call is made.
// A failed remote send is still recorded, with status failed, for audit.
func (e *MailSyncEngine) SendEmail(ctx context.Context, input SendEmailInput) (*communicationdomain.Communication, error) {
	cred, err := e.credStore.Resolve(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	personID, organizationID, err := e.resolveRecipient(input)
	if err != nil {
		return nil, err
	}

	signatureHTML, err := e.resolveSignature(input.UserID, input.SignatureID)
	if err != nil {
		log.Printf("[GmailSync] Error resolving signature for user %s: %v", input.UserID, err)
	}

	onRefresh := e.credStore.OnTokenRefresh(ctx, cred)

	from := cred.AccountEmail
	if profileEmail, err := e.mail.GetProfileEmail(ctx, cred.AccessToken, cred.RefreshTokenValue(), onRefresh); err == nil && profileEmail != "" {
		from = profileEmail
	}

	raw := gmail.BuildMessage(from, input.To, input.Subject, input.Message, input.HTMLContent, signatureHTML)

	now := e.now()
	comm := &communicationdomain.Communication{
		UserID:         input.UserID,
		Type:           "Email",
		Subject:        input.Subject,
		Message:        input.Message,
		DateSent:       now,
		PersonID:       personID,
		OrganizationID: organizationID,
		Direction:      communicationdomain.DirectionOutbound,
	}

	messageID, threadID, sendErr := e.mail.SendMessage(ctx, cred.AccessToken, cred.RefreshTokenValue(), raw, onRefresh)
	if sendErr != nil {
		comm.EmailStatus = communicationdomain.StatusFailed
		if createErr := e.commRepo.Create(comm); createErr != nil {
			log.Printf("[GmailSync] Error recording failed send for user %s: %v", input.UserID, createErr)
		}
		return comm, fmt.Errorf("sending email: %w", sendErr)
	}

	comm.GmailMessageID = &messageID
	comm.GmailThreadID = &threadID
	comm.EmailStatus = communicationdomain.StatusSent
	comm.LastSyncedAt = &now

	if err := e.commRepo.Create(comm); err != nil {
		return comm, fmt.Errorf("recording sent email: %w", err)
	}
	return comm, nil
}

// CreateDraft stores the message as a remote draft and records it locally
// with status draft.
func (e *MailSyncEngine) CreateDraft(ctx context.Context, input SendEmailInput) (*communicationdomain.Communication, error) {
	cred, err := e.credStore.Resolve(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	personID, organizationID, err := e.resolveRecipient(input)
	if err != nil {
		return nil, err
	}

	signatureHTML, err := e.resolveSignature(input.UserID, input.SignatureID)
	if err != nil {
		log.Printf("[GmailSync] Error resolving signature for user %s: %v", input.UserID, err)
	}

	onRefresh := e.credStore.OnTokenRefresh(ctx, cred)

	from := cred.AccountEmail
	if profileEmail, err := e.mail.GetProfileEmail(ctx, cred.AccessToken, cred.RefreshTokenValue(), onRefresh); err == nil && profileEmail != "" {
		from = profileEmail
	}

	raw := gmail.BuildMessage(from, input.To, input.Subject, input.Message, input.HTMLContent, signatureHTML)

	draftID, err := e.mail.CreateDraft(ctx, cred.AccessToken, cred.RefreshTokenValue(), raw, onRefresh)
	if err != nil {
		return nil, fmt.Errorf("creating draft: %w", err)
	}

	now := e.now()
	comm := &communicationdomain.Communication{
		UserID:         input.UserID,
		Type:           "Email",
		Subject:        input.Subject,
		Message:        input.Message,
		DateSent:       now,
		PersonID:       personID,
		OrganizationID: organizationID,
		GmailDraftID:   &draftID,
		EmailStatus:    communicationdomain.StatusDraft,
		Direction:      communicationdomain.DirectionOutbound,
	}
	if err := e.commRepo.Create(comm); err != nil {
		return comm, fmt.Errorf("recording draft: %w", err)
	}
	return comm, nil
}

// SendDraft sends a previously created draft and advances the local record
// to status sent.
func (e *MailSyncEngine) SendDraft(ctx context.Context, comm *communicationdomain.Communication) error {
	if comm.GmailDraftID == nil {
		return errors.New("communication has no draft to send")
	}

	cred, err := e.credStore.Resolve(ctx, comm.UserID)
	if err != nil {
		return err
	}

	onRefresh := e.credStore.OnTokenRefresh(ctx, cred)
	messageID, threadID, err := e.mail.SendDraft(ctx, cred.AccessToken, cred.RefreshTokenValue(), *comm.GmailDraftID, onRefresh)
	if err != nil {
		return fmt.Errorf("sending draft %s: %w", *comm.GmailDraftID, err)
	}

	now := e.now()
	comm.GmailMessageID = &messageID
	comm.GmailThreadID = &threadID
	comm.GmailDraftID = nil
	comm.EmailStatus = communicationdomain.StatusSent
	comm.DateSent = now
	comm.LastSyncedAt = &now
	return e.commRepo.Save(comm)
}

// Run executes one polling cycle across every identity with a stored
// credential, discovering remote messages that involve known contacts.
func (e *MailSyncEngine) Run(ctx context.Context) error {
	creds, err := e.credStore.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}
	if len(creds) == 0 {
		return nil
	}

	idx, err := e.contactRepo.BuildAddressIndex()
	if err != nil {
		return fmt.Errorf("building contact address index: %w", err)
	}
	if idx.Len() == 0 {
		log.Printf("[GmailSync] No contacts with email, nothing to sync")
		return nil
	}

	for _, identity := range creds {
		if err := e.syncIdentity(ctx, identity.UserID, idx); err != nil {
			log.Printf("[GmailSync] Error syncing user %s: %v", identity.UserID, err)
			continue
		}
	}

	return nil
}

func (e *MailSyncEngine) syncIdentity(ctx context.Context, userID string, idx *contactdomain.AddressIndex) error {
	cred, err := e.credStore.Resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, credentialdomain.ErrNotFound) {
			log.Printf("[GmailSync] No credential for user %s, skipping this cycle", userID)
			return nil
		}
		return err
	}

	onRefresh := e.credStore.OnTokenRefresh(ctx, cred)

	query := fmt.Sprintf("newer_than:%dd (in:inbox OR in:sent)", e.LookbackDays)
	ids, err := e.mail.ListMessageIDs(ctx, cred.AccessToken, cred.RefreshTokenValue(), query, e.MaxMessagesPerCycle, onRefresh)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	synced := 0
	for _, id := range ids {
		// Dedup by remote message id. This is the sole defense against
		// double-counting a message seen in two overlapping polling windows.
		existing, err := e.commRepo.FindByGmailMessageID(id)
		if err != nil {
			log.Printf("[GmailSync] Error checking message %s for user %s: %v", id, userID, err)
			continue
		}
		if existing != nil {
			continue
		}

		msg, err := e.mail.GetMessage(ctx, cred.AccessToken, cred.RefreshTokenValue(), id, onRefresh)
		if err != nil {
			log.Printf("[GmailSync] Error fetching message %s for user %s: %v", id, userID, err)
			continue
		}

		comm := e.classify(userID, msg, idx)
		if comm == nil {
			continue
		}

		if err := e.commRepo.Create(comm); err != nil {
			log.Printf("[GmailSync] Error recording message %s for user %s: %v", id, userID, err)
			continue
		}
		synced++
	}

	if synced > 0 {
		log.Printf("[GmailSync] Synced %d messages for user %s", synced, userID)
	}
	return nil
}

// classify decides whether a remote message is contact-related and builds
// its local record. From-known takes priority over to-known: a message from
// a contact is received regardless of its recipient. Messages involving no
// known contact are discarded.
func (e *MailSyncEngine) classify(userID string, msg *communicationdomain.RemoteMessage, idx *contactdomain.AddressIndex) *communicationdomain.Communication {
	fromAddr := communicationdomain.ExtractEmailAddress(msg.From)
	toAddr := communicationdomain.ExtractEmailAddress(msg.To)

	var ref contactdomain.ContactRef
	var status communicationdomain.EmailStatus
	var direction communicationdomain.Direction

	if r, ok := idx.Lookup(fromAddr); ok {
		ref = r
		status = communicationdomain.StatusReceived
		direction = communicationdomain.DirectionInbound
	} else if r, ok := idx.Lookup(toAddr); ok {
		ref = r
		status = communicationdomain.StatusSent
		direction = communicationdomain.DirectionOutbound
	} else {
		return nil
	}

	now := e.now()
	dateSent := msg.Date
	if dateSent.IsZero() {
		dateSent = now
	}

	messageID := msg.ID
	threadID := msg.ThreadID
	comm := &communicationdomain.Communication{
		UserID:         userID,
		Type:           "Email",
		Subject:        msg.Subject,
		Message:        msg.Body,
		DateSent:       dateSent,
		GmailMessageID: &messageID,
		GmailThreadID:  &threadID,
		EmailStatus:    status,
		Direction:      direction,
		LastSyncedAt:   &now,
	}

	switch ref.Kind {
	case contactdomain.KindPerson:
		id := ref.ID
		comm.PersonID = &id
	case contactdomain.KindOrganization:
		id := ref.ID
		comm.OrganizationID = &id
	}

	return comm
}

// resolveRecipient enforces the contact gate: an explicit contact reference
// wins, otherwise the recipient address must belong to a known contact.
func (e *MailSyncEngine) resolveRecipient(input SendEmailInput) (personID, organizationID *string, err error) {
	if input.PersonID != nil || input.OrganizationID != nil {
		return input.PersonID, input.OrganizationID, nil
	}

	person, err := e.contactRepo.FindPersonByEmail(input.To)
	if err != nil {
		return nil, nil, err
	}
	if person != nil {
		return &person.ID, nil, nil
	}

	org, err := e.contactRepo.FindOrganizationByEmail(input.To)
	if err != nil {
		return nil, nil, err
	}
	if org != nil {
		return nil, &org.ID, nil
	}

	return nil, nil, communicationdomain.ErrNotAContact
}

// resolveSignature walks the chain: explicit id, then the identity's
// default, then its first signature, then none.
func (e *MailSyncEngine) resolveSignature(userID, signatureID string) (string, error) {
	if signatureID != "" {
		sig, err := e.sigRepo.FindByID(signatureID)
		if err != nil {
			return "", err
		}
		if sig != nil {
			return sig.Content, nil
		}
		log.Printf("[GmailSync] Signature %s not found, falling back to default", signatureID)
	}

	sig, err := e.sigRepo.FindDefault(userID)
	if err != nil {
		return "", err
	}
	if sig == nil {
		sig, err = e.sigRepo.FindFirst(userID)
		if err != nil {
			return "", err
		}
	}
	if sig == nil {
		return "", nil
	}
	return sig.Content, nil
}
