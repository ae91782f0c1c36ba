package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kakrola/internal/models"
)

type MemberStore struct{ db *gorm.DB }

func NewMemberStore(db *gorm.DB) *MemberStore { return &MemberStore{db: db} }

func personalTable(scope models.Scope) (table, col string, err error) {
	switch scope {
	case models.ScopeProject:
		return "project_members", "project_id", nil
	case models.ScopePage:
		return "page_members", "page_id", nil
	}
	return "", "", fmt.Errorf("%w: %q is not a personal scope", ErrUnknownScope, scope)
}

type settingsRow struct {
	Settings datatypes.JSONType[models.PersonalSettings]
}

// nextOrder = max(order) + 1 по scope, 1 — если членств ещё нет.
func nextOrder(tx *gorm.DB, scope models.Scope, scopeID uint) (float64, error) {
	table, col, err := personalTable(scope)
	if err != nil {
		return 0, err
	}
	var rows []settingsRow
	if err := tx.Table(table).Select("settings").Where(col+" = ?", scopeID).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 1, nil
	}
	top := rows[0].Settings.Data().Order
	for _, r := range rows[1:] {
		if o := r.Settings.Data().Order; o > top {
			top = o
		}
	}
	return top + 1, nil
}

// NextOrder — см. nextOrder.
func (s *MemberStore) NextOrder(ctx context.Context, scope models.Scope, scopeID uint) (float64, error) {
	return nextOrder(s.db.WithContext(ctx), scope, scopeID)
}

// AddPersonal вставляет персональное членство в конец списка scope.
// Порядок считается в той же транзакции, что и вставка.
func (s *MemberStore) AddPersonal(ctx context.Context, scope models.Scope, scopeID uint, profileID, role string) (float64, error) {
	return s.addPersonal(ctx, 0, scope, scopeID, profileID, role)
}

// AddPersonalFor — AddPersonal, который в той же транзакции отмечает
// personal_done у intent.
func (s *MemberStore) AddPersonalFor(ctx context.Context, intentID uint, scope models.Scope, scopeID uint, profileID, role string) (float64, error) {
	return s.addPersonal(ctx, intentID, scope, scopeID, profileID, role)
}

func (s *MemberStore) addPersonal(ctx context.Context, intentID uint, scope models.Scope, scopeID uint, profileID, role string) (float64, error) {
	var order float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := nextOrder(tx, scope, scopeID)
		if err != nil {
			return err
		}
		order = o
		settings := datatypes.NewJSONType(models.PersonalSettings{IsFavorite: false, Order: o})
		switch scope {
		case models.ScopeProject:
			err = tx.Create(&models.ProjectMember{ProjectID: scopeID, ProfileID: profileID, Role: role, Settings: settings}).Error
		default:
			err = tx.Create(&models.PageMember{PageID: scopeID, ProfileID: profileID, Role: role, Settings: settings}).Error
		}
		if err != nil || intentID == 0 {
			return err
		}
		return markSteps(tx, intentID, models.StepPersonal)
	})
	if err != nil {
		return 0, err
	}
	return order, nil
}

// EnsureTeamMember добавляет участника команды, если его ещё нет.
// inserted == false — строка уже была (в том числе при гонке на unique-индексе).
func (s *MemberStore) EnsureTeamMember(ctx context.Context, teamID uint, profileID, email, role string) (bool, error) {
	return s.ensureTeamMember(ctx, 0, teamID, profileID, email, role)
}

// EnsureTeamMemberFor — EnsureTeamMember, который в той же транзакции пишет
// флаги intent: team_done+team_inserted при вставке, team_done+seats_done
// если участник уже был. Повтор после сбоя видит, кто вставил строку.
func (s *MemberStore) EnsureTeamMemberFor(ctx context.Context, intentID, teamID uint, profileID, email, role string) (bool, error) {
	return s.ensureTeamMember(ctx, intentID, teamID, profileID, email, role)
}

func (s *MemberStore) ensureTeamMember(ctx context.Context, intentID, teamID uint, profileID, email, role string) (bool, error) {
	inserted, err := s.joinTeam(ctx, intentID, teamID, profileID, email, role)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// строку вставили параллельно; второй проход увидит её
		return s.joinTeam(ctx, intentID, teamID, profileID, email, role)
	}
	return inserted, err
}

func (s *MemberStore) joinTeam(ctx context.Context, intentID, teamID uint, profileID, email, role string) (bool, error) {
	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.TeamMember{}).
			Where("team_id = ? AND profile_id = ?", teamID, profileID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			inserted = false
			if intentID == 0 {
				return nil
			}
			return markSteps(tx, intentID, models.StepTeam, models.StepSeats)
		}
		m := models.TeamMember{
			TeamID:    teamID,
			ProfileID: profileID,
			TeamRole:  role,
			Email:     email,
			Settings:  datatypes.NewJSONType(models.EmptyTeamSettings()),
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		inserted = true
		if intentID == 0 {
			return nil
		}
		return markSteps(tx, intentID, models.StepTeam, models.StepTeamInserted)
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *MemberStore) CountTeamMembers(ctx context.Context, teamID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&n).Error
	return n, err
}

// MemberEmails — какие из emails (нижний регистр) уже состоят в scope. Один запрос.
func (s *MemberStore) MemberEmails(ctx context.Context, scope models.Scope, scopeID uint, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	var out []string
	if !scope.Personal() {
		err := s.db.WithContext(ctx).Model(&models.TeamMember{}).
			Where("team_id = ? AND LOWER(email) IN ?", scopeID, emails).
			Pluck("LOWER(email)", &out).Error
		return out, err
	}
	table, col, err := personalTable(scope)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Table(table).
		Joins("JOIN profiles ON profiles.id = "+table+".profile_id").
		Where(table+"."+col+" = ? AND LOWER(profiles.email) IN ?", scopeID, emails).
		Pluck("LOWER(profiles.email)", &out).Error
	return out, err
}

// PersonalRole — роль профиля в project/page, "" если не участник.
func (s *MemberStore) PersonalRole(ctx context.Context, scope models.Scope, scopeID uint, profileID string) (string, error) {
	table, col, err := personalTable(scope)
	if err != nil {
		return "", err
	}
	var roles []string
	err = s.db.WithContext(ctx).Table(table).
		Where(col+" = ? AND profile_id = ?", scopeID, profileID).
		Limit(1).
		Pluck("role", &roles).Error
	if err != nil || len(roles) == 0 {
		return "", err
	}
	return roles[0], nil
}

// TeamRole — роль профиля в команде. Владелец команды — OWNER даже без строки членства.
func (s *MemberStore) TeamRole(ctx context.Context, teamID uint, profileID string) (string, error) {
	team, err := s.Team(ctx, teamID)
	if err != nil {
		return "", err
	}
	if team == nil {
		return "", nil
	}
	if team.OwnerProfileID == profileID {
		return string(models.TeamRoleOwner), nil
	}
	var roles []string
	err = s.db.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND profile_id = ?", teamID, profileID).
		Limit(1).
		Pluck("team_role", &roles).Error
	if err != nil || len(roles) == 0 {
		return "", err
	}
	return roles[0], nil
}

// Team: nil, nil — если команды нет.
func (s *MemberStore) Team(ctx context.Context, id uint) (*models.Team, error) {
	var t models.Team
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
