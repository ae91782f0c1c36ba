package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"kakrola/internal/auth"
	"kakrola/internal/invites"
	"kakrola/internal/logs"
	"kakrola/internal/models"
)

type Handler struct {
	acceptor Acceptor
	issuer   Issuer
	baseURL  string
}

func NewHandler(a Acceptor, i Issuer, baseURL string) *Handler {
	return &Handler{acceptor: a, issuer: i, baseURL: strings.TrimRight(baseURL, "/")}
}

// AcceptInvite — GET /api/invite/accept-invite?token=...
// Успех и NeedsAuthentication — редирект 302, ошибки — problem+json.
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	res, err := h.acceptor.Accept(r.Context(), token, auth.IdentityFrom(r.Context()))
	if err != nil {
		h.acceptProblem(w, r, err)
		return
	}

	switch res.Outcome {
	case invites.OutcomeNeedsAuthentication:
		http.Redirect(w, r, h.authURL(res, token), http.StatusFound)
	default:
		http.Redirect(w, r, h.appURL(res.Invite), http.StatusFound)
	}
}

func (h *Handler) acceptProblem(w http.ResponseWriter, r *http.Request, err error) {
	status, title := http.StatusInternalServerError, "Internal Server Error"
	switch invites.KindOf(err) {
	case invites.KindMissingToken:
		status, title = http.StatusBadRequest, "Missing token"
	case invites.KindInvalidToken:
		status, title = http.StatusBadRequest, "Invalid token"
	case invites.KindInviteExpired:
		status, title = http.StatusBadRequest, "Invite expired"
	case invites.KindReconciliationFailed:
		title = "Invite acceptance failed"
	}
	log := logs.WithRequest(r.Context()).WithError(err)
	if status >= 500 {
		log.Error("accept invite failed")
	} else {
		log.Info("accept invite rejected")
	}
	models.WriteProblem(w, status, title, err.Error(), map[string]any{
		"kind":  invites.KindOf(err),
		"reqid": logs.RequestID(r.Context()),
	})
}

// appURL — куда попадает принявший: project/page, иначе команда.
func (h *Handler) appURL(inv *models.Invite) string {
	if inv == nil {
		return h.baseURL + "/app"
	}
	switch {
	case inv.ProjectID != nil:
		return fmt.Sprintf("%s/app/project/%d", h.baseURL, *inv.ProjectID)
	case inv.PageID != nil:
		return fmt.Sprintf("%s/app/page/%d", h.baseURL, *inv.PageID)
	case inv.TeamID != nil:
		return fmt.Sprintf("%s/app/team/%d", h.baseURL, *inv.TeamID)
	}
	return h.baseURL + "/app"
}

// authURL: приглашение на email — регистрация с этим email; ссылка или
// уже принятое приглашение — вход.
func (h *Handler) authURL(res *invites.Acceptance, token string) string {
	q := url.Values{}
	if inv := res.Invite; !res.Claimed && inv != nil && inv.Email != nil {
		q.Set("email", *inv.Email)
		q.Set("token", token)
		return h.baseURL + "/auth/signup?" + q.Encode()
	}
	q.Set("token", token)
	return h.baseURL + "/auth/login?" + q.Encode()
}

// InviteMembers возвращает обработчик рассылки для scope.
func (h *Handler) InviteMembers(scope models.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			models.WriteJSON(w, http.StatusBadRequest, models.APIResponse{Message: "invalid request body: " + err.Error()})
			return
		}

		// приглашает только тот, кто вошёл, и только от своего имени
		who := auth.IdentityFrom(r.Context())
		if who == nil || who.ID != req.Inviter.ID {
			models.WriteJSON(w, http.StatusForbidden, models.APIResponse{Message: "inviter does not match the authenticated user"})
			return
		}

		res, err := h.issuer.Issue(r.Context(), invites.IssueRequest{
			Scope:   scope,
			ScopeID: req.scopeID(scope),
			Emails:  req.Emails,
			Inviter: req.Inviter,
			Role:    req.Role,
		})
		if err != nil {
			h.issueError(w, r, res, err)
			return
		}
		models.WriteJSON(w, http.StatusOK, models.APIResponse{
			Success: true,
			Message: sentMessage(res.Sent),
			Data:    models.InviteCounts{Sent: res.Sent, Skipped: res.Skipped},
		})
	}
}

func (h *Handler) issueError(w http.ResponseWriter, r *http.Request, res *invites.IssueResult, err error) {
	body := models.APIResponse{Message: err.Error()}
	status := http.StatusInternalServerError
	switch invites.KindOf(err) {
	case invites.KindInvalidRequest:
		status = http.StatusBadRequest
	case invites.KindBulkInvite:
		status = http.StatusBadRequest
		var bulk *invites.BulkError
		if errors.As(err, &bulk) {
			body.Message = bulk.Error()
		}
	case invites.KindUnauthorizedInviter:
		status = http.StatusForbidden
		body.Message = "you are not allowed to invite members here"
	default:
		body.Message = "failed to send invites"
	}
	if res != nil {
		body.Data = models.InviteCounts{Sent: res.Sent, Skipped: res.Skipped}
	}
	log := logs.WithRequest(r.Context()).WithError(err)
	if status >= 500 {
		log.Error("invite members failed")
	} else {
		log.Info("invite members rejected")
	}
	models.WriteJSON(w, status, body)
}

func sentMessage(n int) string {
	switch n {
	case 0:
		return "No new invites to send"
	case 1:
		return "1 invite sent"
	}
	return fmt.Sprintf("%d invites sent", n)
}
