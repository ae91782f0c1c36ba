package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"kakrola/internal/logs"
	"kakrola/internal/models"
)

// StripeGateway меняет quantity позиции подписки в Stripe.
type StripeGateway struct {
	client    *client.API
	proration string
}

func NewStripeGateway(apiKey, proration string) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	if proration == "" {
		proration = "create_prorations"
	}
	return &StripeGateway{client: sc, proration: proration}
}

func (g *StripeGateway) UpdateSeats(ctx context.Context, sub *models.Subscription, quantity int64, idempotencyKey string) error {
	if quantity <= 0 || sub == nil || sub.SubscriptionID == "" {
		return ErrSubscriptionInvalid
	}

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	remote, err := g.client.Subscriptions.Get(sub.SubscriptionID, getParams)
	if err != nil {
		return mapStripeError(err)
	}
	var items []*stripe.SubscriptionItem
	if remote.Items != nil {
		items = remote.Items.Data
	}
	item, err := pickItem(items, sub.PriceID)
	if err != nil {
		return err
	}

	params := &stripe.SubscriptionItemParams{
		Quantity:          stripe.Int64(quantity),
		ProrationBehavior: stripe.String(g.proration),
	}
	params.Context = ctx
	// повтор с тем же ключом не увеличит места второй раз
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	if _, err := g.client.SubscriptionItems.Update(item.ID, params); err != nil {
		return mapStripeError(err)
	}

	logs.WithRequest(ctx).
		WithField("subscription", sub.SubscriptionID).
		WithField("item", item.ID).
		WithField("quantity", quantity).
		Info("stripe seat quantity updated")
	return nil
}

// pickItem — позиция с нужной ценой; без price_id — единственная позиция.
func pickItem(items []*stripe.SubscriptionItem, priceID string) (*stripe.SubscriptionItem, error) {
	if priceID != "" {
		for _, it := range items {
			if it != nil && it.Price != nil && it.Price.ID == priceID {
				return it, nil
			}
		}
		return nil, fmt.Errorf("%w: no item with price %s", ErrSubscriptionInvalid, priceID)
	}
	if len(items) != 1 || items[0] == nil {
		return nil, fmt.Errorf("%w: expected exactly one item, got %d", ErrSubscriptionInvalid, len(items))
	}
	return items[0], nil
}

// mapStripeError переводит ошибки stripe-go в ошибки пакета.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrProviderDown, stripeErr.Msg)
		}
		switch stripeErr.Code {
		case stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%w: %s", ErrSubscriptionInvalid, stripeErr.Msg)
		case stripe.ErrorCodeIdempotencyKeyInUse:
			return fmt.Errorf("idempotency key collision: %s", stripeErr.Msg)
		}
		return fmt.Errorf("stripe: %s", stripeErr.Msg)
	}
	return fmt.Errorf("gateway internal error: %w", err)
}
