package api

import (
	"context"

	"kakrola/internal/auth"
	"kakrola/internal/invites"
	"kakrola/internal/models"
)

// Acceptor — то, что нужно обработчику accept-invite.
type Acceptor interface {
	Accept(ctx context.Context, token string, who *auth.Identity) (*invites.Acceptance, error)
}

// Issuer — то, что нужно обработчикам invite-*-members.
type Issuer interface {
	Issue(ctx context.Context, req invites.IssueRequest) (*invites.IssueResult, error)
}

// InviteRequest — тело POST /api/invite/invite-*-members.
// Из *_id используется тот, что соответствует эндпоинту.
type InviteRequest struct {
	Emails    []string        `json:"emails"`
	ProjectID uint            `json:"project_id,omitempty"`
	PageID    uint            `json:"page_id,omitempty"`
	TeamID    uint            `json:"team_id,omitempty"`
	Inviter   invites.Inviter `json:"inviter"`
	Role      string          `json:"role,omitempty"`
}

func (r InviteRequest) scopeID(scope models.Scope) uint {
	switch scope {
	case models.ScopeProject:
		return r.ProjectID
	case models.ScopePage:
		return r.PageID
	}
	return r.TeamID
}
