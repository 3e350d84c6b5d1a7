package shell

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utrcal/internal/editor"
	"utrcal/internal/model"
)

func TestTabsAndSplash(t *testing.T) {
	s := Initial()
	require.True(t, s.Splash)
	require.Equal(t, TabTimetable, s.Tab)

	s, _ = Update(s, Action{Kind: SplashElapsed})
	s, _ = Update(s, Action{Kind: SelectTab, Tab: TabMy})
	assert.False(t, s.Splash)
	assert.Equal(t, TabMy, s.Tab)

	s, _ = Update(s, Action{Kind: SelectTab, Tab: "settings"})
	assert.Equal(t, TabMy, s.Tab, "unknown tab should be ignored")
}

func TestEditorSaveProducesCommit(t *testing.T) {
	now := time.Date(2024, 9, 2, 9, 15, 0, 0, time.Local)
	s, _ := Update(Initial(), Action{Kind: OpenEditor, Now: now})
	require.NotNil(t, s.Editor)
	require.Equal(t, editor.Composing, s.Editor.Phase)
	require.True(t, s.Editor.Draft.StartTime.Equal(now))

	d := s.Editor.Draft
	d.Title = "Statistics"
	d.Day = model.Thu
	s, cmd := Update(s, Action{Kind: EditDraft, Draft: d})
	assert.Equal(t, CommandNone, cmd.Kind, "edit produced a command")

	s, cmd = Update(s, Action{Kind: SaveDraft})
	assert.Equal(t, CommandCommit, cmd.Kind)
	assert.Equal(t, "Statistics", cmd.Draft.Title)
	assert.Equal(t, model.Thu, cmd.Draft.Day)
	assert.Nil(t, s.Editor, "save must dismiss the editor")

	_, cmd = Update(s, Action{Kind: SaveDraft})
	assert.Equal(t, CommandNone, cmd.Kind, "save without an open editor must do nothing")
}

func TestEditorCancelDiscards(t *testing.T) {
	s, _ := Update(Initial(), Action{Kind: OpenEditor, Now: time.Now()})
	s, _ = Update(s, Action{Kind: EditDraft, Draft: editor.Draft{Title: "draft"}})
	s, cmd := Update(s, Action{Kind: CancelDraft})
	assert.Nil(t, s.Editor)
	assert.Equal(t, CommandNone, cmd.Kind)

	s, _ = Update(s, Action{Kind: OpenEditor, Now: time.Now()})
	require.NotNil(t, s.Editor)
	assert.Empty(t, s.Editor.Draft.Title, "reopened editor must start from a fresh draft")
}

func TestDeleteSelected(t *testing.T) {
	s, cmd := Update(Initial(), Action{Kind: DeleteEntry})
	assert.Equal(t, CommandNone, cmd.Kind, "delete without selection must do nothing")

	s, _ = Update(s, Action{Kind: SelectEntry, ID: "e1"})
	s, cmd = Update(s, Action{Kind: DeleteEntry})
	assert.Equal(t, CommandDelete, cmd.Kind)
	assert.Equal(t, "e1", cmd.ID)
	assert.Empty(t, s.Selected)
}

func TestStateIsSerializable(t *testing.T) {
	s, _ := Update(Initial(), Action{Kind: OpenEditor, Now: time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)})
	s, _ = Update(s, Action{Kind: OpenList})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.ListSheet)
	require.NotNil(t, back.Editor)
	assert.Equal(t, editor.Composing, back.Editor.Phase)
}

func TestActionDecodesFromJSON(t *testing.T) {
	var a Action
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"select_entry","id":"e1"}`), &a))
	assert.Equal(t, SelectEntry, a.Kind)
	assert.Equal(t, "e1", a.ID)
}

func TestStartSplash(t *testing.T) {
	done := make(chan Action, 1)
	StartSplash(func(a Action) { done <- a })

	select {
	case a := <-done:
		assert.Equal(t, SplashElapsed, a.Kind)
	case <-time.After(SplashDelay + 2*time.Second):
		t.Fatal("splash never elapsed")
	}
}
