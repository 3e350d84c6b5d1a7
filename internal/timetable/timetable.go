// Package timetable wires the entry store, the editor and the alert
// scheduler together. Every mutation is written through to the store and
// then mirrored to the scheduler.
package timetable

import (
	"context"
	"errors"

	"utrcal/internal/editor"
	"utrcal/internal/grid"
	appLog "utrcal/internal/log"
	"utrcal/internal/model"
	"utrcal/internal/notify"
	"utrcal/internal/store"
)

var ErrNotFound = errors.New("timetable: entry not found")

type Option func(*Service)

// WithStrict makes Add and Replace reject drafts that fail
// editor.Validate.
func WithStrict(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithCancelOnRemove controls whether removing an entry also cancels its
// pending alert. Enabled by default.
func WithCancelOnRemove(cancel bool) Option {
	return func(s *Service) { s.cancelOnRemove = cancel }
}

type Service struct {
	store     *store.EntryStore
	scheduler *notify.Scheduler

	strict         bool
	cancelOnRemove bool
}

func New(st *store.EntryStore, sch *notify.Scheduler, opts ...Option) *Service {
	s := &Service{
		store:          st,
		scheduler:      sch,
		cancelOnRemove: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted entries into memory.
func (s *Service) Load() []model.ClassEntry {
	entries := s.store.Load()
	appLog.Info("timetable loaded", "entries", len(entries))
	return entries
}

func (s *Service) Entries() []model.ClassEntry {
	return s.store.Entries()
}

func (s *Service) Get(id string) (model.ClassEntry, error) {
	e, ok := s.store.Get(id)
	if !ok {
		return model.ClassEntry{}, ErrNotFound
	}
	return e, nil
}

// Grid lays out the current entries.
func (s *Service) Grid() *grid.Layout {
	return grid.Build(s.store.Entries())
}

// Add builds an entry from d, stores it and schedules its alert.
func (s *Service) Add(ctx context.Context, d editor.Draft) (model.ClassEntry, error) {
	return s.add(ctx, "", d)
}

// add stores a new entry under id, or under a fresh id when id is empty.
func (s *Service) add(ctx context.Context, id string, d editor.Draft) (model.ClassEntry, error) {
	if s.strict {
		if err := editor.Validate(d); err != nil {
			return model.ClassEntry{}, err
		}
	}

	e := editor.BuildWithID(id, d)
	s.store.Add(e)
	s.scheduler.Schedule(ctx, e)

	appLog.Info("timetable: entry added", "id", e.ID, "title", e.Title, "day", string(e.Day))
	return e, nil
}

// Replace swaps the stored entry with the same id for a new value built
// from d and reschedules its alert.
func (s *Service) Replace(ctx context.Context, id string, d editor.Draft) (model.ClassEntry, error) {
	if s.strict {
		if err := editor.Validate(d); err != nil {
			return model.ClassEntry{}, err
		}
	}

	old, ok := s.store.Get(id)
	if !ok {
		return model.ClassEntry{}, ErrNotFound
	}
	e := editor.Apply(old, d)
	if !s.store.Replace(e) {
		return model.ClassEntry{}, ErrNotFound
	}

	s.scheduler.Cancel(ctx, id)
	s.scheduler.Schedule(ctx, e)

	appLog.Info("timetable: entry replaced", "id", id)
	return e, nil
}

// Remove deletes the entry with id. Unknown ids are a no-op.
func (s *Service) Remove(ctx context.Context, id string) {
	if !s.store.Remove(id) {
		appLog.Debug("timetable: remove of unknown id ignored", "id", id)
		return
	}
	if s.cancelOnRemove {
		s.scheduler.Cancel(ctx, id)
	}
	appLog.Info("timetable: entry removed", "id", id, "alert_cancelled", s.cancelOnRemove)
}

// ScheduleAll registers alerts for every stored entry, e.g. after startup.
func (s *Service) ScheduleAll(ctx context.Context) {
	for _, e := range s.store.Entries() {
		s.scheduler.Schedule(ctx, e)
	}
}

// Upsert replaces the entry with id when it exists and otherwise adds a
// new entry stored under id, so importing the same feed twice updates the
// entries instead of duplicating them. It reports whether a new entry was
// created.
func (s *Service) Upsert(ctx context.Context, id string, d editor.Draft) (model.ClassEntry, bool, error) {
	if id != "" {
		if _, ok := s.store.Get(id); ok {
			e, err := s.Replace(ctx, id, d)
			return e, false, err
		}
	}
	e, err := s.add(ctx, id, d)
	return e, err == nil, err
}
