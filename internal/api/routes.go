package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"kakrola/internal/models"
)

// RegisterRoutes вешает invite-эндпоинты на /api/invite.
func RegisterRoutes(r *mux.Router, h *Handler) {
	sub := r.PathPrefix("/api/invite").Subrouter()
	sub.HandleFunc("/accept-invite", h.AcceptInvite).Methods(http.MethodGet)
	sub.HandleFunc("/invite-project-members", h.InviteMembers(models.ScopeProject)).Methods(http.MethodPost)
	sub.HandleFunc("/invite-page-members", h.InviteMembers(models.ScopePage)).Methods(http.MethodPost)
	sub.HandleFunc("/invite-team-members", h.InviteMembers(models.ScopeTeam)).Methods(http.MethodPost)
	sub.HandleFunc("/invite-workspace-members", h.InviteMembers(models.ScopeWorkspace)).Methods(http.MethodPost)
}
