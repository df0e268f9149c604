package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	credentialdomain "github.com/jburchel/mobilize-crm/internal/credential/domain"
	taskdomain "github.com/jburchel/mobilize-crm/internal/task/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = credentialdomain.TokenUpdateFunc

// DefaultCalendarID is the authenticated user's primary calendar.
const DefaultCalendarID = "primary"

// callTimeout bounds every remote calendar call. A timed-out call is a
// transient failure for that record only.
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

// GetCalendarService creates a Calendar service with the user's access token
func (s *Service) GetCalendarService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*calendar.Service, error) {
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

	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %v", err)
	}

	return srv, nil
}

// GetEvent retrieves a single event by ID
func (s *Service) GetEvent(ctx context.Context, accessToken, refreshToken, eventID string, onTokenRefresh TokenUpdateFunc) (*taskdomain.CalendarEvent, error) {
	srv, err := s.GetCalendarService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	event, err := srv.Events.Get(DefaultCalendarID, eventID).Context(callCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve event %s: %w", eventID, err)
	}

	return fromAPIEvent(event)
}

// InsertEvent creates a new event and returns it with the assigned remote ID
func (s *Service) InsertEvent(ctx context.Context, accessToken, refreshToken string, ev *taskdomain.CalendarEvent, onTokenRefresh TokenUpdateFunc) (*taskdomain.CalendarEvent, error) {
	srv, err := s.GetCalendarService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	created, err := srv.Events.Insert(DefaultCalendarID, toAPIEvent(ev)).Context(callCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create event: %w", err)
	}

	return fromAPIEvent(created)
}

// UpdateEvent overwrites an existing event with local field values
func (s *Service) UpdateEvent(ctx context.Context, accessToken, refreshToken, eventID string, ev *taskdomain.CalendarEvent, onTokenRefresh TokenUpdateFunc) (*taskdomain.CalendarEvent, error) {
	srv, err := s.GetCalendarService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	updated, err := srv.Events.Update(DefaultCalendarID, eventID, toAPIEvent(ev)).Context(callCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to update event %s: %w", eventID, err)
	}

	return fromAPIEvent(updated)
}

// DeleteEvent removes an event. Deleting an event that is already gone is
// not an error.
func (s *Service) DeleteEvent(ctx context.Context, accessToken, refreshToken, eventID string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.GetCalendarService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := srv.Events.Delete(DefaultCalendarID, eventID).Context(callCtx).Do(); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("unable to delete event %s: %w", eventID, err)
	}
	return nil
}

// IsNotFound reports whether err is a remote "event does not exist" answer.
// 410 Gone covers events deleted out-of-band.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}

// Helper functions

func toAPIEvent(ev *taskdomain.CalendarEvent) *calendar.Event {
	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: ev.Private,
		},
	}

	if ev.AllDay {
		event.Start = &calendar.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		event.End = &calendar.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		event.Start = &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		event.End = &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	}

	if ev.ReminderMinutes != nil {
		event.Reminders = &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: *ev.ReminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		}
	} else {
		event.Reminders = &calendar.EventReminders{UseDefault: true}
	}

	return event
}

func fromAPIEvent(event *calendar.Event) (*taskdomain.CalendarEvent, error) {
	ev := &taskdomain.CalendarEvent{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
	}

	if event.ExtendedProperties != nil {
		ev.Private = event.ExtendedProperties.Private
	}

	if event.Updated != "" {
		updated, err := time.Parse(time.RFC3339, event.Updated)
		if err != nil {
			return nil, fmt.Errorf("unable to parse event updated time %q: %v", event.Updated, err)
		}
		ev.Updated = updated
	}

	start, allDay, err := parseEventTime(event.Start)
	if err != nil {
		return nil, err
	}
	end, _, err := parseEventTime(event.End)
	if err != nil {
		return nil, err
	}
	ev.Start = start
	ev.End = end
	ev.AllDay = allDay

	if event.Reminders != nil && !event.Reminders.UseDefault {
		for _, o := range event.Reminders.Overrides {
			if o.Method == "popup" {
				minutes := o.Minutes
				ev.ReminderMinutes = &minutes
				break
			}
		}
	}

	return ev, nil
}

func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool, error) {
	if edt == nil {
		return time.Time{}, false, nil
	}
	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("unable to parse event date %q: %v", edt.Date, err)
		}
		return t, true, nil
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("unable to parse event datetime %q: %v", edt.DateTime, err)
		}
		return t, false, nil
	}
	return time.Time{}, false, nil
}
