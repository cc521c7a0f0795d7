package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/core/model"
	"github.com/jakechorley/shift-selector/pkg/core/services"
)

type shiftsSheetInfoResponse struct {
	ID         string `json:"id"`
	OffsetLeft int    `json:"offsetLeft"`
	OffsetTop  int    `json:"offsetTop"`
	Name       string `json:"name"`
}

type userResponse struct {
	TeamID    string `json:"teamId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsCaptain bool   `json:"isCaptain"`
}

type teamResponse struct {
	Members []services.TeamMember `json:"members"`
}

type sessionRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK")) //nolint:errcheck
}

func (s *Server) shiftsSheetInfoHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, shiftsSheetInfoResponse{
		ID:         s.schedule.SheetID,
		OffsetLeft: s.schedule.OffsetLeft,
		OffsetTop:  s.schedule.OffsetTop,
		Name:       s.schedule.Name,
	})
}

func (s *Server) usersMeHandler(w http.ResponseWriter, r *http.Request) {
	user := authFromContext(r.Context()).User
	s.writeJSON(w, userResponse{
		TeamID:    user.TeamID(),
		Username:  user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsCaptain: user.IsCaptain,
	})
}

func (s *Server) teamHandler(w http.ResponseWriter, r *http.Request) {
	members, err := services.TeamMembers(authFromContext(r.Context()), chi.URLParam(r, "teamId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, teamResponse{Members: members})
}

// sessionsHandler exchanges a username and password for a bearer key.
// Rejected credentials get an empty 401.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, model.ErrInvalidBody)
		return
	}
	if err := config.Validator().Struct(req); err != nil {
		s.writeError(w, r, model.ErrInvalidBody)
		return
	}

	token, err := services.Login(r.Context(), s.directory, s.logger, req.Username, req.Password)
	if err != nil {
		if model.KindOf(err) == model.KindAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, sessionResponse{Token: token})
}

func (s *Server) claimHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.claims.Claim(r.Context(), authFromContext(r.Context()), chi.URLParam(r, "shiftId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) releaseHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.claims.Release(r.Context(), authFromContext(r.Context()), chi.URLParam(r, "shiftId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
