package models

import "time"

// AcceptanceIntent — запись о принятии приглашения, создаётся в одной
// транзакции с удалением Invite. Флаги шагов позволяют повтору продолжить
// с места сбоя вместо дублирования.
type AcceptanceIntent struct {
	ID          uint    `gorm:"primaryKey"`
	Token       string  `gorm:"uniqueIndex;size:64;not null"`
	InviteID    uint    `gorm:"index;not null"`
	ProfileID   string  `gorm:"size:36;index;not null"`
	Email       string  `gorm:"size:320"` // email принявшего
	TeamID      *uint   `gorm:"index"`
	ProjectID   *uint   `gorm:"index"`
	PageID      *uint   `gorm:"index"`
	Role        string  `gorm:"size:32;not null"`
	InviteEmail *string `gorm:"size:320"`

	PersonalDone bool
	TeamDone     bool
	TeamInserted bool
	SeatsDone    bool
	CompletedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Шаги, которые отмечаются в AcceptanceIntent.
type IntentStep string

const (
	StepPersonal     IntentStep = "personal_done"
	StepTeam         IntentStep = "team_done"
	StepTeamInserted IntentStep = "team_inserted"
	StepSeats        IntentStep = "seats_done"
)

func (a *AcceptanceIntent) Completed() bool { return a.CompletedAt != nil }

// Invite восстанавливает снимок приглашения из intent.
func (a *AcceptanceIntent) Invite() *Invite {
	return &Invite{
		ID:        a.InviteID,
		Token:     a.Token,
		Email:     a.InviteEmail,
		TeamID:    a.TeamID,
		ProjectID: a.ProjectID,
		PageID:    a.PageID,
		Role:      a.Role,
		Status:    InviteStatusPending,
	}
}

// All — модели для AutoMigrate.
func All() []any {
	return []any{
		&Profile{}, &Team{}, &Project{}, &Page{},
		&Invite{}, &AcceptanceIntent{},
		&ProjectMember{}, &PageMember{}, &TeamMember{},
		&Subscription{},
	}
}
