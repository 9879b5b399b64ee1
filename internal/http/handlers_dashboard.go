package http

import (
	"context"
	"net/http"

	"groupspend/internal/core"
	"groupspend/internal/dashboard"
	"groupspend/internal/filter"
	"groupspend/internal/log"
	"groupspend/internal/report"
)

type selectedGroupsBody struct {
	GroupIDs []int64 `json:"group_ids"`
}

func (s *Server) handleGetSelectedGroups(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := s.preferences.SelectedGroups(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectedGroupsBody{GroupIDs: ids})
}

func (s *Server) handleSetSelectedGroups(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req selectedGroupsBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := s.preferences.SetSelectedGroups(r.Context(), userID, req.GroupIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectedGroupsBody{GroupIDs: ids})
}

// cycle resolves the acting user's session and filter for one reporting
// request. An explicit group selection is persisted before it is used.
func (s *Server) cycle(w http.ResponseWriter, r *http.Request) (*dashboard.Session, filter.Context, bool) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return nil, filter.Context{}, false
	}
	query := r.URL.Query()

	dates, err := parseDateRange(query, s.now())
	if err != nil {
		writeError(w, r, err)
		return nil, filter.Context{}, false
	}

	ids, present, err := parseGroupIDs(query)
	if err != nil {
		writeError(w, r, err)
		return nil, filter.Context{}, false
	}
	if present {
		ids, err = s.preferences.SetSelectedGroups(r.Context(), userID, ids)
	} else {
		ids, err = s.preferences.SelectedGroups(r.Context(), userID)
	}
	if err != nil {
		writeError(w, r, err)
		return nil, filter.Context{}, false
	}

	session, created := s.sessions.Resume(r.Header.Get(HeaderSessionID), userID, query.Get("locale"))
	w.Header().Set(HeaderSessionID, session.ID())
	if created {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Dashboard session started",
			log.FieldSessionID, session.ID(), log.FieldUserID, userID)
	}
	return session, filter.New(ids, dates), true
}

func (s *Server) reportContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.reportTimeout)
}

// handleDashboard runs one full cycle and returns all three reports.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	session, f, ok := s.cycle(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.reportContext(r)
	defer cancel()

	snap, err := session.Render(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTotalSpent(w http.ResponseWriter, r *http.Request) {
	session, f, ok := s.cycle(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.reportContext(r)
	defer cancel()

	total, err := session.TotalSpent(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, total)
}

type categoriesResponse struct {
	Start      core.Date              `json:"start"`
	End        core.Date              `json:"end"`
	Categories []report.CategoryShare `json:"categories"`
}

func (s *Server) handleSpentByCategory(w http.ResponseWriter, r *http.Request) {
	session, f, ok := s.cycle(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.reportContext(r)
	defer cancel()

	rows, err := session.SpentByCategory(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Start: f.Range().Start, End: f.Range().End, Categories: rows})
}

type groupsResponse struct {
	Start  core.Date           `json:"start"`
	End    core.Date           `json:"end"`
	Groups []report.GroupShare `json:"groups"`
}

func (s *Server) handleSpentByGroup(w http.ResponseWriter, r *http.Request) {
	session, f, ok := s.cycle(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.reportContext(r)
	defer cancel()

	rows, err := session.SpentByGroup(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{Start: f.Range().Start, End: f.Range().End, Groups: rows})
}
