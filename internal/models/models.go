package models

import "time"

// Profile — пользователь BaaS (id совпадает с sub в access-токене).
type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:320;not null" json:"email"`
	FirstName string    `gorm:"size:255" json:"first_name"`
	AvatarURL string    `gorm:"size:1024" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Team — команда/воркспейс. OwnerProfileID — владелец подписки.
type Team struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	OwnerProfileID string    `gorm:"size:36;index;not null" json:"owner_profile_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    *uint     `gorm:"index" json:"team_id,omitempty"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Page struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    *uint     `gorm:"index" json:"team_id,omitempty"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
