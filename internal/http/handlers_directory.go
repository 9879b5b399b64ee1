package http

import (
	"net/http"

	"groupspend/internal/core"
)

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleCreateUser onboards a user with a personal group and default
// categories. It is the only endpoint that needs no acting user.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.directory.Onboard(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Email))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type createGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.directory.CreateGroup(r.Context(), userID, sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groups, err := s.directory.Groups(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []core.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

type addMemberRequest struct {
	UserID int64     `json:"user_id"`
	Role   core.Role `json:"role"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actorID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, r, core.ErrMissingUser)
		return
	}
	if req.Role == "" {
		req.Role = core.RoleMember
	}
	m, err := s.directory.AddMember(r.Context(), actorID, groupID, req.UserID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	actorID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.directory.CreateCategory(r.Context(), actorID, groupID, sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	actorID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := s.directory.Categories(r.Context(), actorID, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}
