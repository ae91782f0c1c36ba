// Package notify отправляет письма-приглашения вне запроса (через очередь).
package notify

import (
	"context"
	"net/url"

	"kakrola/internal/logs"
	"kakrola/internal/models"
)

// InviteNotice — данные для письма-приглашения. Шаблон письма собирает
// потребитель очереди.
type InviteNotice struct {
	To              string       `json:"to"`
	InviterName     string       `json:"inviter_name"`
	InviterEmail    string       `json:"inviter_email"`
	InviterAvatar   string       `json:"inviter_avatar_url,omitempty"`
	Scope           models.Scope `json:"scope"`
	ScopeID         uint         `json:"scope_id"`
	Role            string       `json:"role"`
	Link            string       `json:"link"`
	InviteCreatedAt string       `json:"invite_created_at"`
}

type Notifier interface {
	InviteIssued(ctx context.Context, n InviteNotice) error
}

// AcceptLink — ссылка вида https://<app-domain>/accept-invite?token=<uuid>.
func AcceptLink(baseURL, token string) string {
	return baseURL + "/accept-invite?token=" + url.QueryEscape(token)
}

// LogNotifier — без брокера: только запись в лог.
type LogNotifier struct{}

func (LogNotifier) InviteIssued(ctx context.Context, n InviteNotice) error {
	logs.WithRequest(ctx).
		WithField("to", n.To).
		WithField("scope", n.Scope).
		WithField("scope_id", n.ScopeID).
		Info("invite notice (log only)")
	return nil
}
