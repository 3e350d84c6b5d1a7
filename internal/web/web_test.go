package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utrcal/internal/config"
	"utrcal/internal/editor"
	"utrcal/internal/ics"
	"utrcal/internal/model"
	"utrcal/internal/notify"
	"utrcal/internal/shell"
	"utrcal/internal/store"
	"utrcal/internal/timetable"
)

func at(h int) time.Time {
	return time.Date(2099, 3, 4, h, 0, 0, 0, time.Local)
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...timetable.Option) (*Server, *notify.LocalNotifier) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	local := notify.NewLocalNotifier(nil)
	sch := notify.NewScheduler(local, true)
	sch.Authorize(context.Background(), notify.AllowAll)
	svc := timetable.New(store.NewEntryStore(store.NewMemorySlot(nil)), sch, opts...)
	svc.Load()

	s := NewServer(cfg, svc, local)
	s.now = func() time.Time { return time.Date(2024, 9, 4, 9, 0, 0, 0, time.Local) }
	return s, local
}

func toJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func sampleDraft() editor.Draft {
	return editor.Draft{
		Title:     "Calculus",
		Location:  "Room 301",
		Professor: "Kim",
		Color:     model.Color{Red: 1, Green: 0, Blue: 0, Opacity: 0.5},
		Day:       model.Tue,
		StartTime: at(10),
		EndTime:   at(12),
	}
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEntryLifecycle(t *testing.T) {
	s, local := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/entries", toJSON(t, sampleDraft()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.ClassEntry](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Calculus", created.Title)

	rec = do(t, h, http.MethodGet, "/api/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	d := sampleDraft()
	d.Title = "Linear Algebra"
	rec = do(t, h, http.MethodPut, "/api/entries/"+created.ID, toJSON(t, d))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Linear Algebra")

	for i := 0; i < 2; i++ {
		rec = do(t, h, http.MethodDelete, "/api/entries/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code, "DELETE %d", i)
	}
	assert.Empty(t, local.Pending(), "alert survived delete")

	rec = do(t, h, http.MethodGet, "/api/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPut, "/api/entries/missing", toJSON(t, d))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEntryErrors(t *testing.T) {
	bad := sampleDraft()
	bad.Title = ""

	tests := []struct {
		name   string
		strict bool
		body   []byte
		want   int
	}{
		{name: "malformed json", body: []byte("{"), want: http.StatusBadRequest},
		{name: "lenient accepts empty title", body: toJSON(t, bad), want: http.StatusCreated},
		{name: "strict rejects empty title", strict: true, body: toJSON(t, bad), want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil, timetable.WithStrict(tt.strict))
			rec := do(t, s.Handler(), http.MethodPost, "/api/entries", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestGridEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	do(t, h, http.MethodPost, "/api/entries", toJSON(t, sampleDraft()))
	do(t, h, http.MethodPost, "/api/entries", toJSON(t, sampleDraft()))

	got := decode[gridResponse](t, do(t, h, http.MethodGet, "/api/grid", nil))
	assert.Equal(t, []string{"월", "화", "수", "목", "금"}, got.Days)
	require.Len(t, got.Hours, 12)
	assert.Equal(t, 9, got.Hours[0])
	assert.Equal(t, 20, got.Hours[11])

	require.Len(t, got.Blocks, 2)
	assert.Equal(t, 1, got.Blocks[0].Day)
	assert.Equal(t, 10, got.Blocks[0].Hour)
	assert.Equal(t, 2, got.Blocks[0].Span)

	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, []int{10, 11}, got.Conflicts[0].Hours)
}

func TestGridPage(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	do(t, h, http.MethodPost, "/api/entries", toJSON(t, sampleDraft()))

	rec := do(t, h, http.MethodGet, "/grid", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "Calculus", "rgba(255, 0, 0, 0.500)", "span 2"} {
		assert.Contains(t, body, want)
	}
}

func TestRGBAClamps(t *testing.T) {
	got := rgba(model.Color{Red: 2, Green: -1, Blue: 0.5, Opacity: 1})
	assert.EqualValues(t, "rgba(255, 0, 128, 1.000)", got)
}

func TestICSExportImport(t *testing.T) {
	src, _ := newTestServer(t, nil)
	do(t, src.Handler(), http.MethodPost, "/api/entries", toJSON(t, sampleDraft()))

	rec := do(t, src.Handler(), http.MethodGet, "/api/timetable.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	feed := rec.Body.Bytes()
	_, err := ics.Import(feed)
	require.NoError(t, err, "exported feed does not parse")

	dst, _ := newTestServer(t, nil)
	for i, want := range []struct{ created, replaced int }{{1, 0}, {0, 1}} {
		resp := decode[importResponse](t, do(t, dst.Handler(), http.MethodPost, "/api/timetable.ics", feed))
		assert.Equal(t, want.created, resp.Created, "import %d", i)
		assert.Equal(t, want.replaced, resp.Replaced, "import %d", i)
	}
	assert.Len(t, dst.svc.Entries(), 1)

	rec = do(t, dst.Handler(), http.MethodPost, "/api/timetable.ics", []byte("garbage"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const campusFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//uni.example//courses//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:course-101@uni.example\r\n" +
	"SUMMARY:Intro to Economics\r\n" +
	"DTSTART:20990304T130000\r\n" +
	"DTEND:20990304T150000\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=WE\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImportForeignFeedTwice(t *testing.T) {
	s, local := newTestServer(t, nil)
	h := s.Handler()

	for i := 0; i < 3; i++ {
		rec := do(t, h, http.MethodPost, "/api/timetable.ics", []byte(campusFeed))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[importResponse](t, rec)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, "course-101@uni.example", resp.Entries[0].ID)
		assert.Equal(t, i == 0, resp.Created == 1, "import %d: %+v", i, resp)
	}

	entries := s.svc.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.Wed, entries[0].Day)
	assert.Empty(t, s.svc.Grid().Conflicts())
	assert.Len(t, local.Pending(), 1)
}

func TestAlertsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	do(t, h, http.MethodPost, "/api/entries", toJSON(t, sampleDraft()))

	alerts := decode[[]notify.Request](t, do(t, h, http.MethodGet, "/api/alerts", nil))
	require.Len(t, alerts, 1)
	assert.Equal(t, "Calculus", alerts[0].Title)
	assert.True(t, alerts[0].FireAt.Equal(at(10)))

	s.pending = nil
	rec := do(t, s.Handler(), http.MethodGet, "/api/alerts", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUIActions(t *testing.T) {
	s, local := newTestServer(t, nil)
	h := s.Handler()

	state := decode[uiResponse](t, do(t, h, http.MethodGet, "/api/ui", nil)).State
	assert.Equal(t, shell.TabTimetable, state.Tab)

	post := func(a shell.Action) *httptest.ResponseRecorder {
		return do(t, h, http.MethodPost, "/api/ui", toJSON(t, a))
	}

	resp := decode[uiResponse](t, post(shell.Action{Kind: shell.OpenEditor}))
	require.NotNil(t, resp.State.Editor)
	assert.Equal(t, editor.Composing, resp.State.Editor.Phase)

	post(shell.Action{Kind: shell.EditDraft, Draft: sampleDraft()})
	rec := post(shell.Action{Kind: shell.SaveDraft})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode[uiResponse](t, rec)
	require.NotNil(t, resp.Entry)
	assert.Nil(t, resp.State.Editor, "editor dismissed after commit")
	assert.Len(t, s.svc.Entries(), 1)
	assert.Len(t, local.Pending(), 1)

	post(shell.Action{Kind: shell.SelectEntry, ID: resp.Entry.ID})
	resp = decode[uiResponse](t, post(shell.Action{Kind: shell.DeleteEntry}))
	assert.Empty(t, resp.State.Selected)
	assert.Empty(t, s.svc.Entries())
	assert.Empty(t, local.Pending())

	rec = do(t, h, http.MethodPost, "/api/ui", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUIRejectedCommitKeepsEditorOpen(t *testing.T) {
	s, _ := newTestServer(t, nil, timetable.WithStrict(true))
	h := s.Handler()

	bad := sampleDraft()
	bad.Title = ""
	do(t, h, http.MethodPost, "/api/ui", toJSON(t, shell.Action{Kind: shell.OpenEditor}))
	do(t, h, http.MethodPost, "/api/ui", toJSON(t, shell.Action{Kind: shell.EditDraft, Draft: bad}))

	rec := do(t, h, http.MethodPost, "/api/ui", toJSON(t, shell.Action{Kind: shell.SaveDraft}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, s.svc.Entries())

	state := s.ui.snapshot()
	require.NotNil(t, state.Editor)
	assert.Equal(t, editor.Composing, state.Editor.Phase)
	assert.Empty(t, state.Editor.Draft.Title)
	assert.Equal(t, bad.Location, state.Editor.Draft.Location)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code, "/health stays open")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/entries", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
