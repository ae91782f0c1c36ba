package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"kakrola/internal/models"
)

type IntentStore struct{ db *gorm.DB }

func NewIntentStore(db *gorm.DB) *IntentStore { return &IntentStore{db: db} }

// FindByToken: nil, nil — если intent нет.
func (s *IntentStore) FindByToken(ctx context.Context, token string) (*models.AcceptanceIntent, error) {
	var in models.AcceptanceIntent
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&in).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// MarkStep выставляет флаги выполненных шагов.
func (s *IntentStore) MarkStep(ctx context.Context, id uint, steps ...models.IntentStep) error {
	return markSteps(s.db.WithContext(ctx), id, steps...)
}

// markSteps работает и внутри чужой транзакции: так шаг и его флаг
// фиксируются вместе.
func markSteps(tx *gorm.DB, id uint, steps ...models.IntentStep) error {
	if len(steps) == 0 {
		return nil
	}
	upd := make(map[string]any, len(steps))
	for _, st := range steps {
		upd[string(st)] = true
	}
	res := tx.Model(&models.AcceptanceIntent{}).Where("id = ?", id).Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IntentStore) Complete(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.AcceptanceIntent{}).
		Where("id = ?", id).
		Update("completed_at", at).Error
}
