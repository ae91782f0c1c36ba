package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kakrola/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyClaimed = errors.New("invite already claimed")
	ErrUnknownScope   = errors.New("unknown scope")
)

type InviteStore struct{ db *gorm.DB }

func NewInviteStore(db *gorm.DB) *InviteStore { return &InviteStore{db: db} }

// scopeColumn — колонка invites/членства для scope.
func scopeColumn(scope models.Scope) (string, error) {
	switch scope {
	case models.ScopeProject:
		return "project_id", nil
	case models.ScopePage:
		return "page_id", nil
	case models.ScopeTeam, models.ScopeWorkspace:
		return "team_id", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

// scoped ограничивает запрос приглашениями ровно этого scope:
// командные приглашения — без project/page.
func scoped(q *gorm.DB, scope models.Scope, scopeID uint) (*gorm.DB, error) {
	col, err := scopeColumn(scope)
	if err != nil {
		return nil, err
	}
	q = q.Where(col+" = ?", scopeID)
	if !scope.Personal() {
		q = q.Where("project_id IS NULL AND page_id IS NULL")
	}
	return q, nil
}

// FindByToken: nil, nil — если приглашения нет.
func (s *InviteStore) FindByToken(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InviteStore) Create(ctx context.Context, inv *models.Invite) error {
	if inv.Status == "" {
		inv.Status = models.InviteStatusPending
	}
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *InviteStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Invite{}, id).Error
}

// ClaimBy — кто забирает приглашение.
type ClaimBy struct {
	ProfileID string
	Email     string
}

// Claim атомарно удаляет PENDING-приглашение и пишет AcceptanceIntent.
// Если строку уже удалил кто-то другой — ErrAlreadyClaimed, intent не создаётся.
func (s *InviteStore) Claim(ctx context.Context, inv *models.Invite, by ClaimBy) (*models.AcceptanceIntent, error) {
	intent := &models.AcceptanceIntent{
		Token:       inv.Token,
		InviteID:    inv.ID,
		ProfileID:   by.ProfileID,
		Email:       by.Email,
		TeamID:      inv.TeamID,
		ProjectID:   inv.ProjectID,
		PageID:      inv.PageID,
		Role:        inv.Role,
		InviteEmail: inv.Email,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND token = ? AND status = ?", inv.ID, inv.Token, models.InviteStatusPending).
			Delete(&models.Invite{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrAlreadyClaimed
		}
		if err := tx.Create(intent).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyClaimed
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// PendingFor — PENDING-приглашения scope для списка email (включая истёкшие).
func (s *InviteStore) PendingFor(ctx context.Context, scope models.Scope, scopeID uint, emails []string) ([]models.Invite, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	q, err := scoped(s.db.WithContext(ctx).Model(&models.Invite{}), scope, scopeID)
	if err != nil {
		return nil, err
	}
	var out []models.Invite
	err = q.Where("status = ? AND LOWER(email) IN ?", models.InviteStatusPending, emails).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// DeleteIDs удаляет приглашения по id (ленивая чистка истёкших).
func (s *InviteStore) DeleteIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Invite{})
	return res.RowsAffected, res.Error
}

// DeleteExpired чистит все истёкшие приглашения scope.
func (s *InviteStore) DeleteExpired(ctx context.Context, scope models.Scope, scopeID uint, cutoff time.Time) (int64, error) {
	q, err := scoped(s.db.WithContext(ctx), scope, scopeID)
	if err != nil {
		return 0, err
	}
	res := q.Where("created_at <= ?", cutoff).Delete(&models.Invite{})
	return res.RowsAffected, res.Error
}
