package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	appLog "utrcal/internal/log"
	"utrcal/internal/model"
)

// Request is a one-shot alert handed to a Notifier.
type Request struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Sound  bool      `json:"sound"`
	FireAt time.Time `json:"fire_at"`
}

// Notifier registers and removes one-shot alerts keyed by entry id.
type Notifier interface {
	Schedule(ctx context.Context, req Request) error
	Cancel(ctx context.Context, id string) error
}

// Authorizer asks the host for permission to post alerts.
type Authorizer interface {
	RequestAuthorization(ctx context.Context) (bool, error)
}

type authorizerFunc func(ctx context.Context) (bool, error)

func (f authorizerFunc) RequestAuthorization(ctx context.Context) (bool, error) {
	return f(ctx)
}

var (
	// AllowAll grants permission immediately.
	AllowAll Authorizer = authorizerFunc(func(context.Context) (bool, error) { return true, nil })
	// DenyAll refuses permission.
	DenyAll Authorizer = authorizerFunc(func(context.Context) (bool, error) { return false, nil })
)

// Permission is the outcome of the authorization request.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// FireTime is the alert time for entry: the year, month, day, hour and
// minute of its start time, in the start time's location.
func FireTime(entry model.ClassEntry) time.Time {
	st := entry.StartTime
	return time.Date(st.Year(), st.Month(), st.Day(), st.Hour(), st.Minute(), 0, 0, st.Location())
}

// Scheduler turns entries into one-shot alerts. Every failure is logged
// and swallowed; nothing here ever reaches the caller as an error.
type Scheduler struct {
	notifier Notifier
	sound    bool

	mu         sync.Mutex
	permission Permission
}

func NewScheduler(n Notifier, sound bool) *Scheduler {
	return &Scheduler{notifier: n, sound: sound}
}

// Authorize asks once for permission. A denial or an error leaves the
// scheduler denied for good; later calls do not ask again.
func (s *Scheduler) Authorize(ctx context.Context, a Authorizer) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.permission != PermissionUnknown {
		return s.permission
	}

	granted, err := a.RequestAuthorization(ctx)
	switch {
	case err != nil:
		appLog.Error("notify: authorization request failed", err)
		s.permission = PermissionDenied
	case granted:
		appLog.Info("notify: permission granted")
		s.permission = PermissionGranted
	default:
		appLog.Info("notify: permission denied; alerts disabled")
		s.permission = PermissionDenied
	}
	return s.permission
}

func (s *Scheduler) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// Schedule registers a one-shot alert for entry keyed by its id.
// Without granted permission it does nothing.
func (s *Scheduler) Schedule(ctx context.Context, entry model.ClassEntry) {
	if s.Permission() != PermissionGranted {
		appLog.Debug("notify: schedule skipped; no permission", "id", entry.ID)
		return
	}

	req := s.request(entry)
	if err := s.notifier.Schedule(ctx, req); err != nil {
		appLog.Error("notify: schedule failed", err, "id", entry.ID, "fire_at", req.FireAt.Format(time.RFC3339))
		return
	}
	appLog.Info("notify: scheduled", "id", entry.ID, "title", entry.Title, "fire_at", req.FireAt.Format(time.RFC3339))
}

// Cancel removes any pending alert for id.
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	if err := s.notifier.Cancel(ctx, id); err != nil {
		appLog.Error("notify: cancel failed", err, "id", id)
		return
	}
	appLog.Debug("notify: cancelled", "id", id)
}

func (s *Scheduler) request(entry model.ClassEntry) Request {
	return Request{
		ID:     entry.ID,
		Title:  entry.Title,
		Body:   body(entry),
		Sound:  s.sound,
		FireAt: FireTime(entry),
	}
}

func body(entry model.ClassEntry) string {
	parts := make([]string, 0, 2)
	if entry.Location != "" {
		parts = append(parts, entry.Location)
	}
	if entry.Professor != "" {
		parts = append(parts, entry.Professor)
	}
	return strings.Join(parts, " · ")
}

// ErrFireTimeInPast is returned when a one-shot alert would never fire.
var ErrFireTimeInPast = errors.New("notify: fire time is in the past")
