// Package gcal mirrors locally stored events into a Google Calendar. Sync is
// one-way: the local event store is the source of truth and remote copies are
// tracked through Event.ExternalSyncID.
package gcal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"timeblock/internal/config"
	"timeblock/internal/storage"
	"timeblock/pkg/logx"
	"timeblock/pkg/naivetime"
)

// Sync statuses, matching the scheduler's run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// SyncError records one event that failed to sync.
type SyncError struct {
	EventID    string `json:"event_id"`
	EventTitle string `json:"event_title"`
	Error      string `json:"error"`
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Status string      `json:"status"`
	Synced int         `json:"synced"`
	Errors []SyncError `json:"errors"`
}

// Service talks to the Google Calendar API on behalf of one configured user.
type Service struct {
	cfg    config.CalendarConfig
	events storage.EventStore
	log    logx.Logger

	mu  sync.Mutex
	api *calendar.Service
}

// New returns a Service; it does not touch the network until first use.
func New(cfg config.CalendarConfig, events storage.EventStore, log logx.Logger) *Service {
	return &Service{cfg: cfg, events: events, log: log}
}

// Enabled reports whether calendar sync is configured at all.
func (s *Service) Enabled() bool { return s != nil && s.cfg.Enabled }

func (s *Service) calendarID() string {
	if s.cfg.CalendarID != "" {
		return s.cfg.CalendarID
	}
	return "primary"
}

// AuthURL builds the consent URL the user must visit to grant access.
func (s *Service) AuthURL() (string, error) {
	cfg, err := loadOAuthConfig(s.cfg.CredentialsFile)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token, caches it on disk and
// drops any stale API client.
func (s *Service) Exchange(ctx context.Context, code string) error {
	cfg, err := loadOAuthConfig(s.cfg.CredentialsFile)
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("gcal: exchange code: %w", err)
	}
	if err := saveToken(s.cfg.TokenFile, tok); err != nil {
		return err
	}
	s.mu.Lock()
	s.api = nil
	s.mu.Unlock()
	s.log.Info("calendar token stored", logx.String("token_file", s.cfg.TokenFile))
	return nil
}

// Authenticated reports whether a usable token is on disk.
func (s *Service) Authenticated(ctx context.Context) bool {
	if !s.Enabled() {
		return false
	}
	_, err := s.client(ctx)
	return err == nil
}

func (s *Service) client(ctx context.Context) (*calendar.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api != nil {
		return s.api, nil
	}
	cfg, err := loadOAuthConfig(s.cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(s.cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("gcal: not authenticated: %w", err)
	}
	api, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("gcal: build client: %w", err)
	}
	s.api = api
	return api, nil
}

// Sync pushes every local event to the remote calendar: events without an
// ExternalSyncID are inserted and linked, the rest are patched in place.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	api, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcal: list local events: %w", err)
	}

	res := &SyncResult{Status: StatusSuccess, Errors: []SyncError{}}
	for _, ev := range events {
		if err := s.pushOne(ctx, api, ev); err != nil {
			s.log.Warn("event sync failed",
				logx.String("event_id", ev.ID),
				logx.Err(err))
			res.Errors = append(res.Errors, SyncError{
				EventID:    ev.ID,
				EventTitle: ev.Title,
				Error:      err.Error(),
			})
			continue
		}
		res.Synced++
	}
	if len(res.Errors) > 0 {
		res.Status = StatusPartial
	}
	s.log.Info("calendar sync finished",
		logx.String("status", res.Status),
		logx.Int("synced", res.Synced),
		logx.Int("errors", len(res.Errors)))
	return res, nil
}

func (s *Service) pushOne(ctx context.Context, api *calendar.Service, ev storage.Event) error {
	remote := toRemote(ev)
	if ev.ExternalSyncID != "" {
		_, err := api.Events.Patch(s.calendarID(), ev.ExternalSyncID, remote).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("patch remote event: %w", err)
		}
		return nil
	}
	created, err := api.Events.Insert(s.calendarID(), remote).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert remote event: %w", err)
	}
	ev.ExternalSyncID = created.Id
	if err := s.events.PutEvent(ctx, ev); err != nil {
		return fmt.Errorf("record remote id: %w", err)
	}
	return nil
}

// Remote lists upcoming events from the remote calendar.
func (s *Service) Remote(ctx context.Context, max int64) ([]*calendar.Event, error) {
	api, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 50
	}
	call := api.Events.List(s.calendarID()).
		TimeMin(time.Now().Format(time.RFC3339)).
		MaxResults(max).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: list remote events: %w", err)
	}
	return list.Items, nil
}

// DeleteRemote removes the remote copy of a local event, if one exists.
func (s *Service) DeleteRemote(ctx context.Context, externalSyncID string) error {
	if externalSyncID == "" {
		return nil
	}
	api, err := s.client(ctx)
	if err != nil {
		return err
	}
	if err := api.Events.Delete(s.calendarID(), externalSyncID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: delete remote event: %w", err)
	}
	return nil
}

// Remote dateTime values carry no offset; the calendar's timeZone field pins
// them, mirroring the naive local convention used everywhere else.
func toRemote(ev storage.Event) *calendar.Event {
	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: naivetime.Format(ev.Start), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: naivetime.Format(ev.End), TimeZone: "UTC"},
	}
}
