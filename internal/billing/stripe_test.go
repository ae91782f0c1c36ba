package billing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"kakrola/internal/models"
)

func TestPickItem(t *testing.T) {
	items := []*stripe.SubscriptionItem{
		{ID: "si_a", Price: &stripe.Price{ID: "price_a"}},
		{ID: "si_b", Price: &stripe.Price{ID: "price_b"}},
	}

	it, err := pickItem(items, "price_b")
	require.NoError(t, err)
	assert.Equal(t, "si_b", it.ID)

	_, err = pickItem(items, "price_z")
	assert.ErrorIs(t, err, ErrSubscriptionInvalid)

	_, err = pickItem(items, "")
	assert.ErrorIs(t, err, ErrSubscriptionInvalid)

	it, err = pickItem(items[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "si_a", it.ID)
}

func TestMapStripeError(t *testing.T) {
	down := &stripe.Error{HTTPStatusCode: http.StatusBadGateway, Msg: "upstream"}
	assert.ErrorIs(t, mapStripeError(down), ErrProviderDown)

	missing := &stripe.Error{HTTPStatusCode: http.StatusNotFound, Code: stripe.ErrorCodeResourceMissing, Msg: "no such subscription"}
	assert.ErrorIs(t, mapStripeError(missing), ErrSubscriptionInvalid)

	other := errors.New("dial tcp: timeout")
	assert.ErrorIs(t, mapStripeError(other), other)
}

func TestLocalGateway(t *testing.T) {
	sub := &models.Subscription{SubscriptionID: "sub_1", Seats: 3}
	assert.NoError(t, LocalGateway{}.UpdateSeats(context.Background(), sub, 4, "seats:1"))
	assert.ErrorIs(t, LocalGateway{}.UpdateSeats(context.Background(), sub, 0, "seats:1"), ErrSubscriptionInvalid)
}

func TestStripeGatewayRejectsBadInput(t *testing.T) {
	g := NewStripeGateway("sk_test_x", "")
	assert.Equal(t, "create_prorations", g.proration)
	err := g.UpdateSeats(context.Background(), &models.Subscription{}, 2, "k")
	assert.ErrorIs(t, err, ErrSubscriptionInvalid)
}
