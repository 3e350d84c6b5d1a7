package web

import (
	"net/http"
	"sync"

	"utrcal/internal/editor"
	"utrcal/internal/model"
	"utrcal/internal/shell"
)

// uiSession is the single view-shell state served to the client. Actions
// are applied one at a time, including the timetable command they yield.
type uiSession struct {
	mu    sync.Mutex
	state shell.State
}

func newUISession() *uiSession {
	u := &uiSession{state: shell.Initial()}
	shell.StartSplash(func(a shell.Action) {
		u.mu.Lock()
		u.state, _ = shell.Update(u.state, a)
		u.mu.Unlock()
	})
	return u
}

func (u *uiSession) snapshot() shell.State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

type uiResponse struct {
	State shell.State       `json:"state"`
	Entry *model.ClassEntry `json:"entry,omitempty"`
}

func (s *Server) handleUIState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, uiResponse{State: s.ui.snapshot()})
}

// handleUIAction applies one shell action and runs the command it yields.
// A rejected commit reopens the editor with the same draft.
func (s *Server) handleUIAction(w http.ResponseWriter, r *http.Request) {
	var a shell.Action
	if !decodeBody(w, r, &a) {
		return
	}
	if a.Kind == shell.OpenEditor && a.Now.IsZero() {
		a.Now = s.now()
	}

	s.ui.mu.Lock()
	defer s.ui.mu.Unlock()

	next, cmd := shell.Update(s.ui.state, a)
	resp := uiResponse{}

	switch cmd.Kind {
	case shell.CommandCommit:
		e, err := s.svc.Add(r.Context(), cmd.Draft)
		if err != nil {
			next.Editor = &shell.EditorState{Phase: editor.Composing, Draft: cmd.Draft}
			s.ui.state = next
			writeServiceError(w, err)
			return
		}
		resp.Entry = &e
	case shell.CommandDelete:
		s.svc.Remove(r.Context(), cmd.ID)
	}

	s.ui.state = next
	resp.State = next
	writeJSON(w, http.StatusOK, resp)
}
