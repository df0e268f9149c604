package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	communicationdomain "github.com/jburchel/mobilize-crm/internal/communication/domain"
	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"

	"github.com/emersion/go-message/mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = credentialdomain.TokenUpdateFunc

// callTimeout bounds every remote Gmail call.
const callTimeout = 30 * time.Second

type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			fmt.Printf("Failed to update token: %v\n", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// GetGmailService creates Gmail service with user's access token
func (s *Service) GetGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, token)

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// GetProfileEmail returns the authenticated account's own address.
func (s *Service) GetProfileEmail(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	profile, err := srv.Users.GetProfile("me").Context(callCtx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// ListMessageIDs lists message ids matching the query, newest first, capped
// at maxMessages to bound remote API usage per cycle.
func (s *Service) ListMessageIDs(ctx context.Context, accessToken, refreshToken, query string, maxMessages int, onTokenRefresh TokenUpdateFunc) ([]string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	user := "me"
	ids := make([]string, 0, maxMessages)
	pageToken := ""

	for {
		listQuery := srv.Users.Messages.List(user).MaxResults(500)
		if query != "" {
			listQuery = listQuery.Q(query)
		}
		if pageToken != "" {
			listQuery = listQuery.PageToken(pageToken)
		}

		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		resp, err := listQuery.Context(callCtx).Do()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve messages: %w", err)
		}

		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
			if maxMessages > 0 && len(ids) >= maxMessages {
				return ids, nil
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// GetMessage retrieves a full message and flattens it into a RemoteMessage
func (s *Service) GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh TokenUpdateFunc) (*communicationdomain.RemoteMessage, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	user := "me"
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	msg, err := srv.Users.Messages.Get(user, messageID).Format("full").Context(callCtx).Do()
	cancel()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message %s: %w", messageID, err)
	}

	remote := &communicationdomain.RemoteMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  getHeader(msg.Payload.Headers, "Subject"),
		From:     getHeader(msg.Payload.Headers, "From"),
		To:       getHeader(msg.Payload.Headers, "To"),
	}

	if dateHeader := getHeader(msg.Payload.Headers, "Date"); dateHeader != "" {
		if parsed, err := netmail.ParseDate(dateHeader); err == nil {
			remote.Date = parsed
		}
	}
	if remote.Date.IsZero() && msg.InternalDate > 0 {
		remote.Date = time.Unix(msg.InternalDate/1000, 0)
	}

	remote.Body = getMessageBody(msg.Payload)

	// Some messages carry their text only in the raw RFC822 form. Fetch and
	// parse it as a last resort, like a mail client would.
	if remote.Body == "" {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		rawMsg, err := srv.Users.Messages.Get(user, messageID).Format("raw").Context(callCtx).Do()
		cancel()
		if err == nil && rawMsg.Raw != "" {
			if raw, err := base64.URLEncoding.DecodeString(rawMsg.Raw); err == nil {
				remote.Body = extractRawBody(raw)
			}
		}
	}

	return remote, nil
}

// SendMessage sends a raw MIME message and returns the assigned remote ids
func (s *Service) SendMessage(ctx context.Context, accessToken, refreshToken string, raw []byte, onTokenRefresh TokenUpdateFunc) (messageID, threadID string, err error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	sent, err := srv.Users.Messages.Send("me", msg).Context(callCtx).Do()
	if err != nil {
		return "", "", fmt.Errorf("unable to send message: %w", err)
	}

	return sent.Id, sent.ThreadId, nil
}

// CreateDraft stores a raw MIME message as a draft
func (s *Service) CreateDraft(ctx context.Context, accessToken, refreshToken string, raw []byte, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	draft, err := srv.Users.Drafts.Create("me", &gmail.Draft{
		Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)},
	}).Context(callCtx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create draft: %w", err)
	}

	return draft.Id, nil
}

// SendDraft sends a previously created draft
func (s *Service) SendDraft(ctx context.Context, accessToken, refreshToken, draftID string, onTokenRefresh TokenUpdateFunc) (messageID, threadID string, err error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	sent, err := srv.Users.Drafts.Send("me", &gmail.Draft{Id: draftID}).Context(callCtx).Do()
	if err != nil {
		return "", "", fmt.Errorf("unable to send draft %s: %w", draftID, err)
	}

	return sent.Id, sent.ThreadId, nil
}

// BuildMessage constructs the raw multipart/alternative MIME message for an
// outbound email. The plain text part is always present; the HTML part is
// added when HTML content or a signature is supplied, with the signature
// appended to the HTML alternative.
func BuildMessage(from, to, subject, messageText, htmlContent, signatureHTML string) []byte {
	var msg bytes.Buffer
	boundary := "mobilize_alt_boundary"

	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	// Encode subject to handle non-ASCII characters (RFC 2047)
	encodedSubject := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", encodedSubject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary))

	// Plain text part
	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(messageText)
	msg.WriteString("\r\n")

	// HTML part
	htmlBody := htmlContent
	if htmlBody == "" {
		htmlBody = strings.ReplaceAll(messageText, "\n", "<br>")
		htmlBody = fmt.Sprintf("<div style=\"font-family: Arial, sans-serif; font-size: 14px;\">%s</div>", htmlBody)
	}
	if signatureHTML != "" {
		htmlBody += "<br><br><div class=\"signature\">" + signatureHTML + "</div>"
	}
	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--", boundary))

	return msg.Bytes()
}

// Helper functions

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// getMessageBody walks the payload tree preferring plain text over HTML.
func getMessageBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	// Single part message
	if payload.Body != nil && payload.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			return string(data)
		}
	}

	var htmlBody string
	var plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.MimeType == "text/plain" && plainBody == "" {
				if part.Body != nil && part.Body.Data != "" {
					if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
						plainBody = string(data)
					}
				}
			} else if part.MimeType == "text/html" && htmlBody == "" {
				if part.Body != nil && part.Body.Data != "" {
					if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
						htmlBody = string(data)
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)

	if plainBody != "" {
		return plainBody
	}
	return htmlBody
}

// extractRawBody parses an RFC822 message and returns its first text part.
func extractRawBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return ""
		}
		if err != nil {
			return ""
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			if text := strings.TrimSpace(string(body)); text != "" {
				return string(body)
			}
		}
	}
}
