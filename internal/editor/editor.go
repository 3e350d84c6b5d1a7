package editor

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"utrcal/internal/model"
)

// Draft holds the form fields of a class being composed.
type Draft struct {
	Title     string      `json:"title" validate:"required"`
	Location  string      `json:"location"`
	Professor string      `json:"professor"`
	Color     model.Color `json:"color"`
	Day       model.Day   `json:"day" validate:"weekday"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
}

// NewDraft returns the form defaults: blue, Monday, both times at now.
func NewDraft(now time.Time) Draft {
	return Draft{
		Color:     model.Blue,
		Day:       model.Mon,
		StartTime: now,
		EndTime:   now,
	}
}

// Build turns a draft into a new entry with a fresh id. Nothing is
// checked; see Validate.
func Build(d Draft) model.ClassEntry {
	return BuildWithID(uuid.NewString(), d)
}

// BuildWithID is Build with a caller-chosen id, e.g. the UID of an
// imported calendar event. An empty id gets a fresh one.
func BuildWithID(id string, d Draft) model.ClassEntry {
	if id == "" {
		id = uuid.NewString()
	}
	return Apply(model.ClassEntry{ID: id}, d)
}

// Apply copies the draft fields onto an existing entry, keeping its id.
func Apply(e model.ClassEntry, d Draft) model.ClassEntry {
	e.Title = d.Title
	e.Location = d.Location
	e.Professor = d.Professor
	e.Color = d.Color
	e.Day = d.Day
	e.StartTime = d.StartTime
	e.EndTime = d.EndTime
	return e
}

// FromEntry returns a draft prefilled from e.
func FromEntry(e model.ClassEntry) Draft {
	return Draft{
		Title:     e.Title,
		Location:  e.Location,
		Professor: e.Professor,
		Color:     e.Color,
		Day:       e.Day,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
	}
}

var ErrDismissed = errors.New("editor: session dismissed")

// Phase is the state of an editor session.
type Phase string

const (
	Composing Phase = "composing"
	Dismissed Phase = "dismissed"
)

// Session is a single editor sheet. It starts composing; saving commits
// the draft and dismisses, cancelling dismisses and discards it.
type Session struct {
	phase Phase
	draft Draft
}

func NewSession(d Draft) *Session {
	return &Session{phase: Composing, draft: d}
}

func (s *Session) Phase() Phase {
	return s.phase
}

func (s *Session) Draft() Draft {
	return s.draft
}

// Edit mutates the draft in place while composing.
func (s *Session) Edit(fn func(*Draft)) error {
	if s.phase != Composing {
		return ErrDismissed
	}
	fn(&s.draft)
	return nil
}

// Save hands the draft to commit. The session is dismissed only when
// commit succeeds, so a rejected draft can be corrected.
func (s *Session) Save(commit func(Draft) error) error {
	if s.phase != Composing {
		return ErrDismissed
	}
	if err := commit(s.draft); err != nil {
		return err
	}
	s.phase = Dismissed
	return nil
}

// Cancel dismisses the session and discards the draft.
func (s *Session) Cancel() {
	s.phase = Dismissed
	s.draft = Draft{}
}
