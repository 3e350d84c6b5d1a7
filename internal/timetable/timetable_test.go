package timetable

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utrcal/internal/editor"
	"utrcal/internal/model"
	"utrcal/internal/notify"
	"utrcal/internal/store"
)

// farFuture keeps fire times ahead of the wall clock used by LocalNotifier.
func farFuture(h int) time.Time {
	return time.Date(2099, 3, 4, h, 0, 0, 0, time.Local)
}

func wedDraft() editor.Draft {
	return editor.Draft{
		Title:     "Databases",
		Location:  "N-12",
		Professor: "Han",
		Color:     model.Blue,
		Day:       model.Wed,
		StartTime: farFuture(10),
		EndTime:   farFuture(12),
	}
}

func newService(t *testing.T, opts ...Option) (*Service, *notify.LocalNotifier, store.Slot) {
	t.Helper()
	slot := store.NewMemorySlot(nil)
	local := notify.NewLocalNotifier(nil)
	sch := notify.NewScheduler(local, true)
	sch.Authorize(context.Background(), notify.AllowAll)

	svc := New(store.NewEntryStore(slot), sch, opts...)
	svc.Load()
	return svc, local, slot
}

func TestAddThenRender(t *testing.T) {
	svc, local, slot := newService(t)
	ctx := context.Background()

	e, err := svc.Add(ctx, wedDraft())
	require.NoError(t, err)

	layout := svc.Grid()
	got := layout.At(2, 10)
	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
	assert.Empty(t, layout.At(2, 12), "end hour must not be occupied")

	// Written through to the slot.
	persisted := store.NewEntryStore(slot).Load()
	require.Len(t, persisted, 1)
	assert.Equal(t, e.ID, persisted[0].ID)

	pending := local.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].ID)
	assert.True(t, pending[0].FireAt.Equal(farFuture(10)))
}

func TestRemoveCancelsAlert(t *testing.T) {
	svc, local, _ := newService(t)
	ctx := context.Background()

	e, _ := svc.Add(ctx, wedDraft())
	svc.Remove(ctx, e.ID)
	svc.Remove(ctx, e.ID)

	assert.Empty(t, svc.Entries())
	assert.Empty(t, local.Pending(), "alert still pending after delete")
}

// Known defect of the legacy behavior: with cancellation disabled, a
// deleted entry keeps its alert and will still notify.
func TestRemoveWithoutCancelKeepsStaleAlert(t *testing.T) {
	svc, local, _ := newService(t, WithCancelOnRemove(false))
	ctx := context.Background()

	e, _ := svc.Add(ctx, wedDraft())
	svc.Remove(ctx, e.ID)

	_, err := svc.Get(e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	pending := local.Pending()
	require.Len(t, pending, 1, "want the stale alert")
	assert.Equal(t, e.ID, pending[0].ID)
}

func TestReplaceReschedules(t *testing.T) {
	svc, local, _ := newService(t)
	ctx := context.Background()

	e, _ := svc.Add(ctx, wedDraft())
	d := editor.FromEntry(e)
	d.Day = model.Fri
	d.StartTime = farFuture(14)
	d.EndTime = farFuture(16)

	got, err := svc.Replace(ctx, e.ID, d)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID, "Replace() changed the id")
	assert.Empty(t, svc.Grid().At(2, 10))
	assert.Len(t, svc.Grid().At(4, 15), 1)

	pending := local.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].FireAt.Equal(farFuture(14)))

	_, err = svc.Replace(ctx, "missing", d)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStrictModeRejectsInvalidDrafts(t *testing.T) {
	ctx := context.Background()
	bad := wedDraft()
	bad.Title = ""
	bad.EndTime = bad.StartTime

	lenient, _, _ := newService(t)
	_, err := lenient.Add(ctx, bad)
	assert.NoError(t, err)

	strict, local, _ := newService(t, WithStrict(true))
	_, err = strict.Add(ctx, bad)
	var verr *editor.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, strict.Entries(), "rejected draft must not be stored")
	assert.Empty(t, local.Pending(), "rejected draft must not be scheduled")
}

func TestScheduleAllAfterReload(t *testing.T) {
	slot := store.NewMemorySlot(nil)
	first := New(store.NewEntryStore(slot), notify.NewScheduler(notify.NewLocalNotifier(nil), false))
	ctx := context.Background()
	_, _ = first.Add(ctx, wedDraft())
	_, _ = first.Add(ctx, wedDraft())

	local := notify.NewLocalNotifier(nil)
	sch := notify.NewScheduler(local, false)
	sch.Authorize(ctx, notify.AllowAll)
	second := New(store.NewEntryStore(slot), sch)
	second.Load()
	second.ScheduleAll(ctx)

	assert.Len(t, local.Pending(), 2)
}

func TestNoPermissionStillStores(t *testing.T) {
	local := notify.NewLocalNotifier(nil)
	sch := notify.NewScheduler(local, true)
	sch.Authorize(context.Background(), notify.DenyAll)
	svc := New(store.NewEntryStore(store.NewMemorySlot(nil)), sch)

	_, err := svc.Add(context.Background(), wedDraft())
	require.NoError(t, err)
	assert.Len(t, svc.Entries(), 1)
	assert.Empty(t, local.Pending())
}

func TestUpsert(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	e, created, err := svc.Upsert(ctx, "", wedDraft())
	require.NoError(t, err)
	require.True(t, created)
	assert.NotEmpty(t, e.ID, "empty id gets a fresh one")

	d := wedDraft()
	d.Title = "Advanced Databases"
	got, created, err := svc.Upsert(ctx, e.ID, d)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "Advanced Databases", got.Title)
	assert.Len(t, svc.Entries(), 1)
}

func TestUpsertKeepsForeignUID(t *testing.T) {
	svc, local, _ := newService(t)
	ctx := context.Background()
	const uid = "course-101@uni.example"

	for i := 0; i < 3; i++ {
		e, created, err := svc.Upsert(ctx, uid, wedDraft())
		require.NoError(t, err)
		assert.Equal(t, i == 0, created, "import %d", i)
		assert.Equal(t, uid, e.ID)
	}

	assert.Len(t, svc.Entries(), 1)
	assert.Empty(t, svc.Grid().Conflicts())
	pending := local.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, uid, pending[0].ID)
}
