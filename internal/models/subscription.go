package models

import "time"

// Subscription — зеркало подписки у платёжного провайдера.
// Seats — оплаченная ёмкость, должна покрывать число участников команды.
type Subscription struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID    string    `gorm:"uniqueIndex;size:255;not null" json:"subscription_id"`
	PriceID           string    `gorm:"size:255" json:"price_id"`
	Seats             int64     `gorm:"not null" json:"seats"`
	Status            string    `gorm:"size:32;index" json:"status"`
	CustomerProfileID string    `gorm:"size:36;index;not null" json:"customer_profile_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
