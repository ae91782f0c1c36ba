// Package billing — платёжный шлюз для изменения числа мест в подписке.
package billing

import (
	"context"
	"errors"

	"kakrola/internal/logs"
	"kakrola/internal/models"
)

var (
	ErrProviderDown        = errors.New("billing provider unavailable")
	ErrSubscriptionInvalid = errors.New("subscription cannot be updated")
)

// Gateway меняет оплаченное количество мест.
// idempotencyKey одинаков для повторов одной и той же операции.
type Gateway interface {
	UpdateSeats(ctx context.Context, sub *models.Subscription, quantity int64, idempotencyKey string) error
}

// LocalGateway — без внешнего провайдера (нет billing.stripe_key).
// Принимает изменение и только пишет в лог.
type LocalGateway struct{}

func (LocalGateway) UpdateSeats(ctx context.Context, sub *models.Subscription, quantity int64, idempotencyKey string) error {
	if quantity <= 0 {
		return ErrSubscriptionInvalid
	}
	logs.WithRequest(ctx).
		WithField("subscription", sub.SubscriptionID).
		WithField("quantity", quantity).
		WithField("idempotency_key", idempotencyKey).
		Info("seat update (local gateway, no provider call)")
	return nil
}
