package invites

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"kakrola/internal/cache"
	"kakrola/internal/logs"
	"kakrola/internal/models"
	"kakrola/internal/notify"
)

type IssueInviteRepo interface {
	PendingFor(ctx context.Context, scope models.Scope, scopeID uint, emails []string) ([]models.Invite, error)
	DeleteIDs(ctx context.Context, ids []uint) (int64, error)
	Create(ctx context.Context, inv *models.Invite) error
}

type IssueMemberRepo interface {
	MemberEmails(ctx context.Context, scope models.Scope, scopeID uint, emails []string) ([]string, error)
	PersonalRole(ctx context.Context, scope models.Scope, scopeID uint, profileID string) (string, error)
	TeamRole(ctx context.Context, teamID uint, profileID string) (string, error)
}

type Inviter struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type IssueRequest struct {
	Scope   models.Scope
	ScopeID uint
	Emails  []string
	Inviter Inviter
	Role    string
}

type IssueResult struct {
	Sent     int
	Skipped  int
	Invites  []models.Invite
	Failures []EmailFailure
}

// IssuerOptions — настройки рассылки приглашений.
type IssuerOptions struct {
	BaseURL    string        // для ссылок в письмах
	ExpiryDays int           // приглашение старше — не считается ожидающим
	MaxBatch   int           // максимум адресов в запросе
	CacheTTL   time.Duration // ttl кэша роли приглашающего
}

type Issuer struct {
	Invites  IssueInviteRepo
	Members  IssueMemberRepo
	Notifier notify.Notifier
	Cache    cache.Cache
	Opts     IssuerOptions
	Now      func() time.Time
}

func NewIssuer(inv IssueInviteRepo, m IssueMemberRepo, n notify.Notifier, c cache.Cache, opts IssuerOptions) *Issuer {
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &Issuer{
		Invites:  inv,
		Members:  m,
		Notifier: n,
		Cache:    c,
		Opts:     opts,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Issuer) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

// Issue создаёт по одному приглашению на каждый адрес, у которого нет ни
// членства в scope, ни действующего приглашения. Отказы по отдельным адресам
// собираются в BulkError, остальные адреса при этом обрабатываются.
func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	role, err := s.validate(&req)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req); err != nil {
		return nil, err
	}
	log := logs.WithRequest(ctx).WithFields(logrus.Fields{
		"scope":    req.Scope,
		"scope_id": req.ScopeID,
		"inviter":  req.Inviter.ID,
	})

	res := &IssueResult{}
	candidates := make([]string, 0, len(req.Emails))
	seen := make(map[string]bool, len(req.Emails))
	for _, raw := range req.Emails {
		e, ok := normalizeEmail(raw)
		if !ok {
			res.Failures = append(res.Failures, EmailFailure{Email: strings.TrimSpace(raw), Reason: "invalid email address"})
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		candidates = append(candidates, e)
	}

	// уже участники — одним запросом
	skip := make(map[string]bool)
	members, err := s.Members.MemberEmails(ctx, req.Scope, req.ScopeID, candidates)
	if err != nil {
		return nil, newError(KindInternal, fmt.Errorf("member lookup: %w", err))
	}
	for _, e := range members {
		skip[strings.ToLower(e)] = true
	}

	// действующие приглашения — одним запросом; истёкшие чистим
	pending, err := s.Invites.PendingFor(ctx, req.Scope, req.ScopeID, candidates)
	if err != nil {
		return nil, newError(KindInternal, fmt.Errorf("pending invite lookup: %w", err))
	}
	var expired []uint
	now := s.now()
	for i := range pending {
		p := &pending[i]
		if p.Expired(now, s.Opts.ExpiryDays) {
			expired = append(expired, p.ID)
			continue
		}
		if p.Email != nil {
			skip[strings.ToLower(*p.Email)] = true
		}
	}
	if n, err := s.Invites.DeleteIDs(ctx, expired); err != nil {
		log.WithError(err).Warn("expired invite cleanup failed")
	} else if n > 0 {
		log.WithField("deleted", n).Info("expired invites deleted")
	}

	for _, e := range candidates {
		if skip[e] {
			continue
		}
		email := e
		inv := models.Invite{
			Token:     uuid.NewString(),
			Email:     &email,
			Role:      role,
			Status:    models.InviteStatusPending,
			InvitedBy: req.Inviter.ID,
			CreatedAt: now,
		}
		setScope(&inv, req.Scope, req.ScopeID)
		if err := s.Invites.Create(ctx, &inv); err != nil {
			log.WithError(err).WithField("email", e).Error("invite insert failed")
			res.Failures = append(res.Failures, EmailFailure{Email: e, Reason: "could not create invite"})
			continue
		}
		res.Invites = append(res.Invites, inv)
	}

	res.Sent = len(res.Invites)
	res.Skipped = len(req.Emails) - res.Sent - len(res.Failures)
	log.WithFields(logrus.Fields{"sent": res.Sent, "skipped": res.Skipped, "failed": len(res.Failures)}).Info("invites issued")

	if len(res.Invites) > 0 {
		notices := make([]notify.InviteNotice, 0, len(res.Invites))
		for _, inv := range res.Invites {
			notices = append(notices, s.notice(req, inv))
		}
		// письма — вне запроса; приглашения уже выданы, даже если письмо не ушло
		go s.dispatch(context.WithoutCancel(ctx), notices)
	}

	if len(res.Failures) > 0 {
		return res, newError(KindBulkInvite, &BulkError{Failures: res.Failures})
	}
	return res, nil
}

func (s *Issuer) validate(req *IssueRequest) (string, error) {
	if !req.Scope.Valid() {
		return "", newError(KindInvalidRequest, fmt.Errorf("unknown scope %q", req.Scope))
	}
	if req.ScopeID == 0 {
		return "", newError(KindInvalidRequest, fmt.Errorf("%s_id is required", scopeParam(req.Scope)))
	}
	if strings.TrimSpace(req.Inviter.ID) == "" {
		return "", newError(KindInvalidRequest, fmt.Errorf("inviter.id is required"))
	}
	if len(req.Emails) == 0 {
		return "", newError(KindInvalidRequest, fmt.Errorf("emails must not be empty"))
	}
	if s.Opts.MaxBatch > 0 && len(req.Emails) > s.Opts.MaxBatch {
		return "", newError(KindInvalidRequest, fmt.Errorf("too many emails: %d > %d", len(req.Emails), s.Opts.MaxBatch))
	}
	role, ok := models.NormalizeRole(req.Scope, req.Role)
	if !ok {
		return "", newError(KindInvalidRequest, fmt.Errorf("role %q is not allowed for %s", req.Role, req.Scope))
	}
	return role, nil
}

// authorize: команда — OWNER/ADMIN, project/page — ADMIN.
// Роль читается через кэш с коротким ttl.
func (s *Issuer) authorize(ctx context.Context, req IssueRequest) error {
	scopeKey := req.Scope
	if !scopeKey.Personal() {
		scopeKey = models.ScopeTeam
	}
	key := fmt.Sprintf("inviter-role:%s:%d:%s", scopeKey, req.ScopeID, req.Inviter.ID)
	role, err := cache.Remember(ctx, s.Cache, key, s.Opts.CacheTTL, func(ctx context.Context) (string, error) {
		if req.Scope.Personal() {
			return s.Members.PersonalRole(ctx, req.Scope, req.ScopeID, req.Inviter.ID)
		}
		return s.Members.TeamRole(ctx, req.ScopeID, req.Inviter.ID)
	})
	if err != nil {
		return newError(KindInternal, fmt.Errorf("inviter role lookup: %w", err))
	}

	var allowed bool
	if req.Scope.Personal() {
		allowed = role == string(models.PersonalAdmin)
	} else {
		allowed = role == string(models.TeamRoleOwner) || role == string(models.TeamRoleAdmin)
	}
	if !allowed {
		return newError(KindUnauthorizedInviter, fmt.Errorf("profile %s cannot invite to %s %d", req.Inviter.ID, req.Scope, req.ScopeID))
	}
	return nil
}

func (s *Issuer) notice(req IssueRequest, inv models.Invite) notify.InviteNotice {
	name := strings.TrimSpace(req.Inviter.FirstName)
	if name == "" {
		name = req.Inviter.Email
	}
	return notify.InviteNotice{
		To:              *inv.Email,
		InviterName:     name,
		InviterEmail:    req.Inviter.Email,
		InviterAvatar:   req.Inviter.AvatarURL,
		Scope:           req.Scope,
		ScopeID:         req.ScopeID,
		Role:            inv.Role,
		Link:            notify.AcceptLink(s.Opts.BaseURL, inv.Token),
		InviteCreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Issuer) dispatch(ctx context.Context, notices []notify.InviteNotice) {
	for _, n := range notices {
		nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.Notifier.InviteIssued(nctx, n); err != nil {
			logs.WithRequest(ctx).WithError(err).WithField("to", n.To).Warn("invite notification failed")
		}
		cancel()
	}
}

func setScope(inv *models.Invite, scope models.Scope, id uint) {
	switch scope {
	case models.ScopeProject:
		inv.ProjectID = &id
	case models.ScopePage:
		inv.PageID = &id
	default:
		inv.TeamID = &id
	}
}

func scopeParam(scope models.Scope) string {
	if scope == models.ScopeWorkspace {
		return "team"
	}
	return string(scope)
}

// normalizeEmail: trim + lower, голый адрес без display name.
func normalizeEmail(raw string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", false
	}
	return e, true
}
