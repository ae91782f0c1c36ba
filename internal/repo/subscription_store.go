package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"kakrola/internal/models"
)

type SubscriptionStore struct{ db *gorm.DB }

func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore { return &SubscriptionStore{db: db} }

// ForCustomer — действующая подписка плательщика; nil, nil если её нет.
func (s *SubscriptionStore) ForCustomer(ctx context.Context, profileID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("customer_profile_id = ?", profileID).
		Where("status IN ? OR status = '' OR status IS NULL", []string{"active", "trialing", "past_due"}).
		Order("updated_at desc, id desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriptionStore) SetSeats(ctx context.Context, id uint, seats int64) error {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Update("seats", seats)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
