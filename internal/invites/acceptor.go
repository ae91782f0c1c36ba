package invites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"kakrola/internal/auth"
	"kakrola/internal/billing"
	"kakrola/internal/logs"
	"kakrola/internal/models"
	"kakrola/internal/repo"
)

// Репозитории, нужные принятию приглашения.
type InviteRepo interface {
	FindByToken(ctx context.Context, token string) (*models.Invite, error)
	Delete(ctx context.Context, id uint) error
	Claim(ctx context.Context, inv *models.Invite, by repo.ClaimBy) (*models.AcceptanceIntent, error)
}

type IntentRepo interface {
	FindByToken(ctx context.Context, token string) (*models.AcceptanceIntent, error)
	MarkStep(ctx context.Context, id uint, steps ...models.IntentStep) error
	Complete(ctx context.Context, id uint, at time.Time) error
}

type MemberRepo interface {
	// *For-методы отмечают шаг intent в одной транзакции со вставкой.
	AddPersonalFor(ctx context.Context, intentID uint, scope models.Scope, scopeID uint, profileID, role string) (float64, error)
	EnsureTeamMemberFor(ctx context.Context, intentID, teamID uint, profileID, email, role string) (bool, error)
	CountTeamMembers(ctx context.Context, teamID uint) (int64, error)
	Team(ctx context.Context, id uint) (*models.Team, error)
}

type SubscriptionRepo interface {
	ForCustomer(ctx context.Context, profileID string) (*models.Subscription, error)
	SetSeats(ctx context.Context, id uint, seats int64) error
}

type Outcome int

const (
	OutcomeAccepted Outcome = iota + 1
	// OutcomeNeedsAuthentication — не ошибка: вызывающий отправляет
	// пользователя на вход/регистрацию с email приглашения.
	OutcomeNeedsAuthentication
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeNeedsAuthentication:
		return "needs_authentication"
	}
	return "unknown"
}

type Acceptance struct {
	Outcome Outcome
	Invite  *models.Invite
	Resumed bool // продолжили прерванное принятие
	Claimed bool // приглашение уже забрано; продолжить может только принявший
}

// Acceptor принимает приглашение и приводит членства и места в подписке
// в согласованное состояние.
type Acceptor struct {
	Invites       InviteRepo
	Intents       IntentRepo
	Members       MemberRepo
	Subscriptions SubscriptionRepo
	Billing       billing.Gateway
	ExpiryDays    int
	Now           func() time.Time

	sf singleflight.Group
}

func NewAcceptor(inv InviteRepo, in IntentRepo, m MemberRepo, s SubscriptionRepo, gw billing.Gateway, expiryDays int) *Acceptor {
	return &Acceptor{
		Invites:       inv,
		Intents:       in,
		Members:       m,
		Subscriptions: s,
		Billing:       gw,
		ExpiryDays:    expiryDays,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (a *Acceptor) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now()
}

// Accept принимает приглашение по token от имени who (nil — не вошёл).
// Одновременные вызовы с тем же token и профилем внутри процесса
// схлопываются в один.
func (a *Acceptor) Accept(ctx context.Context, token string, who *auth.Identity) (*Acceptance, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newError(KindMissingToken, nil)
	}
	key := token + "|"
	if who != nil {
		key += who.ID
	}
	// общий результат не должен зависеть от отмены запроса первого вызывающего
	fctx := context.WithoutCancel(ctx)
	v, err, _ := a.sf.Do(key, func() (any, error) {
		return a.accept(fctx, token, who)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Acceptance), nil
}

func (a *Acceptor) accept(ctx context.Context, token string, who *auth.Identity) (*Acceptance, error) {
	log := logs.WithRequest(ctx)

	inv, err := a.Invites.FindByToken(ctx, token)
	if err != nil {
		return nil, newError(KindInternal, fmt.Errorf("invite lookup: %w", err))
	}
	if inv == nil {
		return a.resume(ctx, token, who)
	}

	// 1) срок действия: истёкшее удаляем независимо от того, кто пришёл
	if inv.Expired(a.now(), a.ExpiryDays) {
		if err := a.Invites.Delete(ctx, inv.ID); err != nil {
			log.WithError(err).WithField("invite", inv.ID).Warn("expired invite cleanup failed")
		} else {
			log.WithField("invite", inv.ID).WithField("age_days", inv.AgeDays(a.now())).Info("expired invite deleted")
		}
		return nil, newError(KindInviteExpired, nil)
	}

	// 2) кто принимает
	if !authorized(inv, who) {
		return &Acceptance{Outcome: OutcomeNeedsAuthentication, Invite: inv}, nil
	}

	// 3) забираем приглашение: удаление + intent одной транзакцией
	intent, err := a.Invites.Claim(ctx, inv, repo.ClaimBy{ProfileID: who.ID, Email: acceptEmail(who, inv)})
	if errors.Is(err, repo.ErrAlreadyClaimed) {
		return nil, newError(KindInvalidToken, err)
	}
	if err != nil {
		return nil, newError(KindInternal, fmt.Errorf("claim invite: %w", err))
	}
	return a.reconcile(ctx, intent, false)
}

// resume — приглашения уже нет. Если его забрал этот же профиль и
// не довёл до конца, продолжаем с невыполненных шагов.
func (a *Acceptor) resume(ctx context.Context, token string, who *auth.Identity) (*Acceptance, error) {
	intent, err := a.Intents.FindByToken(ctx, token)
	if err != nil {
		return nil, newError(KindInternal, fmt.Errorf("intent lookup: %w", err))
	}
	if intent == nil {
		return nil, newError(KindInvalidToken, nil)
	}
	if who == nil {
		// вернулся по той же ссылке без входа — на логин
		return &Acceptance{Outcome: OutcomeNeedsAuthentication, Invite: intent.Invite(), Claimed: true}, nil
	}
	if intent.ProfileID != who.ID {
		return nil, newError(KindInvalidToken, repo.ErrAlreadyClaimed)
	}
	if intent.Completed() {
		return &Acceptance{Outcome: OutcomeAccepted, Invite: intent.Invite()}, nil
	}
	return a.reconcile(ctx, intent, true)
}

func (a *Acceptor) reconcile(ctx context.Context, intent *models.AcceptanceIntent, resumed bool) (*Acceptance, error) {
	inv := intent.Invite()
	log := logs.WithRequest(ctx).WithFields(logrus.Fields{
		"intent":  intent.ID,
		"profile": intent.ProfileID,
		"resumed": resumed,
	})

	// персональное и командное членство независимы — параллельно;
	// места зависят только от командного шага
	var g errgroup.Group
	if scope, id, ok := inv.Target(); ok && !intent.PersonalDone {
		g.Go(func() error {
			order, err := a.Members.AddPersonalFor(ctx, intent.ID, scope, id, intent.ProfileID, intent.Role)
			if err != nil {
				return fmt.Errorf("%s membership: %w", scope, err)
			}
			log.WithField(string(scope), id).WithField("order", order).Debug("personal membership added")
			return nil
		})
	}
	if inv.TeamID != nil && !(intent.TeamDone && intent.SeatsDone) {
		g.Go(func() error { return a.reconcileTeam(ctx, intent) })
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("invite reconciliation failed")
		return nil, newError(KindReconciliationFailed, err)
	}

	if err := a.Intents.Complete(ctx, intent.ID, a.now()); err != nil {
		log.WithError(err).Error("invite reconciliation failed")
		return nil, newError(KindReconciliationFailed, fmt.Errorf("complete intent: %w", err))
	}
	log.Info("invite accepted")
	return &Acceptance{Outcome: OutcomeAccepted, Invite: inv, Resumed: resumed}, nil
}

func (a *Acceptor) reconcileTeam(ctx context.Context, intent *models.AcceptanceIntent) error {
	teamID := *intent.TeamID
	inserted := intent.TeamInserted

	if !intent.TeamDone {
		// участник уже был — места не трогаем (seats_done ставит store)
		ins, err := a.Members.EnsureTeamMemberFor(ctx, intent.ID, teamID, intent.ProfileID, intent.Email, intent.Role)
		if err != nil {
			return fmt.Errorf("team membership: %w", err)
		}
		inserted = ins
	}
	if !inserted || intent.SeatsDone {
		return nil
	}

	if err := a.reconcileSeats(ctx, teamID, intent.ID); err != nil {
		return fmt.Errorf("seat reconciliation: %w", err)
	}
	if err := a.Intents.MarkStep(ctx, intent.ID, models.StepSeats); err != nil {
		return fmt.Errorf("mark %s: %w", models.StepSeats, err)
	}
	return nil
}

// reconcileSeats докупает одно место, если новый участник не помещается
// в оплаченные. Подписку ищем по владельцу команды, не по приглашённому.
func (a *Acceptor) reconcileSeats(ctx context.Context, teamID, intentID uint) error {
	team, err := a.Members.Team(ctx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		logs.WithRequest(ctx).WithField("team", teamID).Warn("team not found, seats not reconciled")
		return nil
	}
	sub, err := a.Subscriptions.ForCustomer(ctx, team.OwnerProfileID)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}
	used, err := a.Members.CountTeamMembers(ctx, teamID)
	if err != nil {
		return err
	}
	// used уже включает нового участника
	if used-1 < sub.Seats {
		return nil
	}

	// used > seats+1 — места разошлись (параллельные принятия); догоняем до used
	qty := max(sub.Seats+1, used)
	if err := a.Billing.UpdateSeats(ctx, sub, qty, fmt.Sprintf("seats:%d", intentID)); err != nil {
		return err
	}
	if err := a.Subscriptions.SetSeats(ctx, sub.ID, qty); err != nil {
		return fmt.Errorf("store seats: %w", err)
	}
	logs.WithRequest(ctx).WithFields(logrus.Fields{
		"team":         teamID,
		"subscription": sub.SubscriptionID,
		"seats":        qty,
	}).Info("subscription seats increased")
	return nil
}

// authorized: email совпадает или приглашение-ссылка без email.
func authorized(inv *models.Invite, who *auth.Identity) bool {
	if who == nil || who.ID == "" {
		return false
	}
	if inv.Email == nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(*inv.Email), strings.TrimSpace(who.Email))
}

func acceptEmail(who *auth.Identity, inv *models.Invite) string {
	if e := strings.ToLower(strings.TrimSpace(who.Email)); e != "" {
		return e
	}
	if inv.Email != nil {
		return strings.ToLower(*inv.Email)
	}
	return ""
}
