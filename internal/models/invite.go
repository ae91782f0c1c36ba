package models

import "time"

type InviteStatus string

const InviteStatusPending InviteStatus = "PENDING"

// Invite — ожидающее приглашение. Email == nil — ссылка для любого,
// кто её получил. При принятии строка удаляется.
type Invite struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Token     string       `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Email     *string      `gorm:"index;size:320" json:"email,omitempty"`
	TeamID    *uint        `gorm:"index" json:"team_id,omitempty"`
	ProjectID *uint        `gorm:"index" json:"project_id,omitempty"`
	PageID    *uint        `gorm:"index" json:"page_id,omitempty"`
	Role      string       `gorm:"size:32;not null" json:"role"`
	Status    InviteStatus `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	InvitedBy string       `gorm:"size:36" json:"invited_by"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}

// AgeDays — возраст приглашения в целых сутках.
func (i *Invite) AgeDays(now time.Time) int {
	return int(now.Sub(i.CreatedAt) / (24 * time.Hour))
}

// Expired: возраст строго больше expiryDays целых суток.
func (i *Invite) Expired(now time.Time, expiryDays int) bool {
	return i.AgeDays(now) > expiryDays
}

// Target возвращает персональную цель (project/page), если она есть.
func (i *Invite) Target() (Scope, uint, bool) {
	switch {
	case i.ProjectID != nil:
		return ScopeProject, *i.ProjectID, true
	case i.PageID != nil:
		return ScopePage, *i.PageID, true
	}
	return "", 0, false
}

// ExpiryCutoff — приглашение с created_at <= cutoff истекло.
func ExpiryCutoff(now time.Time, expiryDays int) time.Time {
	return now.Add(-time.Duration(expiryDays+1) * 24 * time.Hour)
}
