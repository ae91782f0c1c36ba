package models

import (
	"time"

	"gorm.io/datatypes"
)

// PersonalSettings — настройки персонального членства.
// Order дробный: список сортируется по нему, вставки между элементами возможны.
type PersonalSettings struct {
	IsFavorite bool    `json:"is_favorite"`
	Order      float64 `json:"order"`
}

// TeamSettings — на что подписан участник команды.
type TeamSettings struct {
	Projects []uint `json:"projects"`
	Pages    []uint `json:"pages"`
	Channels []uint `json:"channels"`
}

func EmptyTeamSettings() TeamSettings {
	return TeamSettings{Projects: []uint{}, Pages: []uint{}, Channels: []uint{}}
}

type ProjectMember struct {
	ID        uint                                 `gorm:"primaryKey" json:"id"`
	ProjectID uint                                 `gorm:"index;not null" json:"project_id"`
	ProfileID string                               `gorm:"size:36;index;not null" json:"profile_id"`
	Role      string                               `gorm:"size:32;not null" json:"role"`
	Settings  datatypes.JSONType[PersonalSettings] `json:"settings"`
	CreatedAt time.Time                            `json:"created_at"`
}

type PageMember struct {
	ID        uint                                 `gorm:"primaryKey" json:"id"`
	PageID    uint                                 `gorm:"index;not null" json:"page_id"`
	ProfileID string                               `gorm:"size:36;index;not null" json:"profile_id"`
	Role      string                               `gorm:"size:32;not null" json:"role"`
	Settings  datatypes.JSONType[PersonalSettings] `json:"settings"`
	CreatedAt time.Time                            `json:"created_at"`
}

// TeamMember — одна строка на (team_id, profile_id).
type TeamMember struct {
	ID        uint                             `gorm:"primaryKey" json:"id"`
	TeamID    uint                             `gorm:"not null;uniqueIndex:uniq_team_profile,priority:1" json:"team_id"`
	ProfileID string                           `gorm:"size:36;not null;uniqueIndex:uniq_team_profile,priority:2" json:"profile_id"`
	TeamRole  string                           `gorm:"size:32;not null" json:"team_role"`
	Email     string                           `gorm:"size:320;index" json:"email"`
	Settings  datatypes.JSONType[TeamSettings] `json:"settings"`
	CreatedAt time.Time                        `json:"created_at"`
}
