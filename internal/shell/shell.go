// Package shell holds the presentation state of the app as one plain,
// serializable value. Update is pure: it returns the next state and, when
// the timetable has to change, a Command the caller runs against the
// timetable service.
package shell

import (
	"time"

	"utrcal/internal/editor"
)

// SplashDelay is how long the splash screen stays up.
const SplashDelay = 2 * time.Second

type Tab string

const (
	TabTimetable Tab = "timetable"
	TabExams     Tab = "exams"
	TabToday     Tab = "today"
	TabAlerts    Tab = "alerts"
	TabMy        Tab = "my"
)

var Tabs = []Tab{TabTimetable, TabExams, TabToday, TabAlerts, TabMy}

// EditorState is the add-class sheet.
type EditorState struct {
	Phase editor.Phase `json:"phase"`
	Draft editor.Draft `json:"draft"`
}

type State struct {
	Splash    bool         `json:"splash"`
	Tab       Tab          `json:"tab"`
	ListSheet bool         `json:"list_sheet"`
	Selected  string       `json:"selected,omitempty"`
	Editor    *EditorState `json:"editor,omitempty"`
}

// Initial is the state at launch: splash showing, timetable tab selected.
func Initial() State {
	return State{Splash: true, Tab: TabTimetable}
}

type ActionKind string

const (
	SplashElapsed ActionKind = "splash_elapsed"
	SelectTab     ActionKind = "select_tab"
	OpenList      ActionKind = "open_list"
	CloseList     ActionKind = "close_list"
	OpenEditor    ActionKind = "open_editor"
	EditDraft     ActionKind = "edit_draft"
	SaveDraft     ActionKind = "save_draft"
	CancelDraft   ActionKind = "cancel_draft"
	SelectEntry   ActionKind = "select_entry"
	CloseDetail   ActionKind = "close_detail"
	DeleteEntry   ActionKind = "delete_entry"
)

type Action struct {
	Kind  ActionKind   `json:"kind"`
	Tab   Tab          `json:"tab,omitempty"`
	ID    string       `json:"id,omitempty"`
	Now   time.Time    `json:"now"`
	Draft editor.Draft `json:"draft"`
}

type CommandKind string

const (
	CommandNone   CommandKind = ""
	CommandCommit CommandKind = "commit"
	CommandDelete CommandKind = "delete"
)

// Command is a side effect requested by Update.
type Command struct {
	Kind  CommandKind
	Draft editor.Draft
	ID    string
}

// Update applies a to s. Actions that do not fit the current state are
// ignored and return s unchanged.
func Update(s State, a Action) (State, Command) {
	switch a.Kind {
	case SplashElapsed:
		s.Splash = false

	case SelectTab:
		if validTab(a.Tab) {
			s.Tab = a.Tab
		}

	case OpenList:
		s.ListSheet = true
	case CloseList:
		s.ListSheet = false

	case OpenEditor:
		if s.Editor == nil || s.Editor.Phase != editor.Composing {
			s.Editor = &EditorState{Phase: editor.Composing, Draft: editor.NewDraft(a.Now)}
		}

	case EditDraft:
		if composing(s) {
			s.Editor = &EditorState{Phase: editor.Composing, Draft: a.Draft}
		}

	case SaveDraft:
		if composing(s) {
			d := s.Editor.Draft
			s.Editor = nil
			return s, Command{Kind: CommandCommit, Draft: d}
		}

	case CancelDraft:
		if composing(s) {
			s.Editor = nil
		}

	case SelectEntry:
		s.Selected = a.ID
	case CloseDetail:
		s.Selected = ""

	case DeleteEntry:
		if s.Selected != "" {
			id := s.Selected
			s.Selected = ""
			return s, Command{Kind: CommandDelete, ID: id}
		}
	}
	return s, Command{}
}

func composing(s State) bool {
	return s.Editor != nil && s.Editor.Phase == editor.Composing
}

func validTab(t Tab) bool {
	for _, known := range Tabs {
		if t == known {
			return true
		}
	}
	return false
}

// StartSplash dispatches SplashElapsed once after SplashDelay. It cannot
// be cancelled.
func StartSplash(dispatch func(Action)) {
	time.AfterFunc(SplashDelay, func() {
		dispatch(Action{Kind: SplashElapsed})
	})
}
