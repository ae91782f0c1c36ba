package invites

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kakrola/internal/db/dbtest"
	"kakrola/internal/models"
	"kakrola/internal/notify"
	"kakrola/internal/repo"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type seatCall struct {
	SubscriptionID string
	Quantity       int64
	Key            string
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []seatCall
	fail  error
}

func (g *fakeGateway) UpdateSeats(_ context.Context, sub *models.Subscription, quantity int64, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, seatCall{SubscriptionID: sub.SubscriptionID, Quantity: quantity, Key: key})
	return g.fail
}

func (g *fakeGateway) Calls() []seatCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]seatCall(nil), g.calls...)
}

func (g *fakeGateway) SetFail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

type recNotifier struct {
	ch  chan notify.InviteNotice
	err error
}

func newRecNotifier(err error) *recNotifier {
	return &recNotifier{ch: make(chan notify.InviteNotice, 64), err: err}
}

func (r *recNotifier) InviteIssued(_ context.Context, n notify.InviteNotice) error {
	r.ch <- n
	return r.err
}

type acceptEnv struct {
	db  *gorm.DB
	acc *Acceptor
	gw  *fakeGateway
}

func newAcceptEnv(t *testing.T) *acceptEnv {
	t.Helper()
	d := dbtest.Open(t)
	gw := &fakeGateway{}
	acc := NewAcceptor(
		repo.NewInviteStore(d),
		repo.NewIntentStore(d),
		repo.NewMemberStore(d),
		repo.NewSubscriptionStore(d),
		gw, 7,
	)
	acc.Now = func() time.Time { return testNow }
	return &acceptEnv{db: d, acc: acc, gw: gw}
}

func (e *acceptEnv) invite(t *testing.T, inv models.Invite) *models.Invite {
	t.Helper()
	if inv.Token == "" {
		inv.Token = uuid.NewString()
	}
	if inv.Role == "" {
		inv.Role = "MEMBER"
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = testNow.Add(-24 * time.Hour)
	}
	require.NoError(t, e.db.Create(&inv).Error)
	return &inv
}

// team 7 с владельцем owner, подпиской на seats мест и used участниками.
func (e *acceptEnv) team(t *testing.T, seats int64, used int) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Team{ID: 7, Name: "core", OwnerProfileID: "owner"}).Error)
	if seats > 0 {
		require.NoError(t, e.db.Create(&models.Subscription{
			SubscriptionID:    "sub_7",
			PriceID:           "price_seat",
			Seats:             seats,
			Status:            "active",
			CustomerProfileID: "owner",
		}).Error)
	}
	ms := repo.NewMemberStore(e.db)
	for i := 0; i < used; i++ {
		_, err := ms.EnsureTeamMember(context.Background(), 7, uuid.NewString(), "", "MEMBER")
		require.NoError(t, err)
	}
}

func (e *acceptEnv) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func (e *acceptEnv) seats(t *testing.T) int64 {
	t.Helper()
	var s models.Subscription
	require.NoError(t, e.db.Where("subscription_id = ?", "sub_7").First(&s).Error)
	return s.Seats
}
