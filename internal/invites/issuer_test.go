package invites

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"kakrola/internal/cache"
	"kakrola/internal/db/dbtest"
	"kakrola/internal/models"
	"kakrola/internal/repo"
)

type issueEnv struct {
	db  *gorm.DB
	iss *Issuer
	n   *recNotifier
}

func newIssueEnv(t *testing.T, notifyErr error) *issueEnv {
	t.Helper()
	d := dbtest.Open(t)
	n := newRecNotifier(notifyErr)
	iss := NewIssuer(repo.NewInviteStore(d), repo.NewMemberStore(d), n, cache.NewMemory(), IssuerOptions{
		BaseURL:    "https://app.kakrola.test",
		ExpiryDays: 7,
		MaxBatch:   10,
		CacheTTL:   time.Minute,
	})
	iss.Now = func() time.Time { return testNow }

	require.NoError(t, d.Create(&models.Team{ID: 7, Name: "core", OwnerProfileID: "owner"}).Error)
	require.NoError(t, d.Create(&[]models.TeamMember{
		{TeamID: 7, ProfileID: "admin", TeamRole: "ADMIN", Email: "admin@x.com"},
		{TeamID: 7, ProfileID: "plain", TeamRole: "MEMBER", Email: "member@x.com"},
	}).Error)
	require.NoError(t, d.Create(&[]models.Profile{
		{ID: "padmin", Email: "padmin@x.com"},
		{ID: "pview", Email: "pview@x.com"},
	}).Error)
	require.NoError(t, d.Create(&[]models.ProjectMember{
		{ProjectID: 5, ProfileID: "padmin", Role: "ADMIN"},
		{ProjectID: 5, ProfileID: "pview", Role: "VIEWER"},
	}).Error)
	return &issueEnv{db: d, iss: iss, n: n}
}

func (e *issueEnv) pending(t *testing.T, where string, args ...any) []models.Invite {
	t.Helper()
	var out []models.Invite
	require.NoError(t, e.db.Where(where, args...).Order("id asc").Find(&out).Error)
	return out
}

func TestIssueSkipsMembersAndPending(t *testing.T) {
	e := newIssueEnv(t, nil)
	require.NoError(t, e.db.Create(&[]models.Invite{
		{Token: "t-pending", Email: ptr("pending@x.com"), TeamID: ptr(uint(7)), Role: "MEMBER", CreatedAt: testNow.Add(-24 * time.Hour)},
		{Token: "t-old", Email: ptr("old@x.com"), TeamID: ptr(uint(7)), Role: "MEMBER", CreatedAt: testNow.Add(-10 * 24 * time.Hour)},
	}).Error)

	res, err := e.iss.Issue(context.Background(), IssueRequest{
		Scope:   models.ScopeTeam,
		ScopeID: 7,
		Emails:  []string{"member@x.com", "pending@x.com", "old@x.com", "new1@x.com", " New1@X.com ", "new2@x.com"},
		Inviter: Inviter{ID: "owner", FirstName: "Olga", Email: "owner@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 3, res.Skipped)

	invs := e.pending(t, "team_id = ?", 7)
	require.Len(t, invs, 4)
	emails := map[string]int{}
	for _, inv := range invs {
		emails[*inv.Email]++
		assert.Equal(t, "MEMBER", inv.Role)
		assert.Equal(t, models.InviteStatusPending, inv.Status)
	}
	assert.Equal(t, map[string]int{"pending@x.com": 1, "old@x.com": 1, "new1@x.com": 1, "new2@x.com": 1}, emails)
	assert.Empty(t, e.pending(t, "token = ?", "t-old"))

	got := map[string]string{}
	for i := 0; i < 3; i++ {
		select {
		case n := <-e.n.ch:
			got[n.To] = n.Link
			assert.Equal(t, "Olga", n.InviterName)
			assert.Equal(t, models.ScopeTeam, n.Scope)
		case <-time.After(2 * time.Second):
			t.Fatal("notification not dispatched")
		}
	}
	for _, inv := range res.Invites {
		assert.Equal(t, "https://app.kakrola.test/accept-invite?token="+inv.Token, got[*inv.Email])
	}
}

func TestIssueRepeatIsNoop(t *testing.T) {
	e := newIssueEnv(t, nil)
	req := IssueRequest{
		Scope:   models.ScopeWorkspace,
		ScopeID: 7,
		Emails:  []string{"a@x.com", "b@x.com"},
		Inviter: Inviter{ID: "admin"},
	}
	res, err := e.iss.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	res, err = e.iss.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, e.pending(t, "team_id = ?", 7), 2)
}

func TestIssueProjectScope(t *testing.T) {
	e := newIssueEnv(t, nil)
	res, err := e.iss.Issue(context.Background(), IssueRequest{
		Scope:   models.ScopeProject,
		ScopeID: 5,
		Emails:  []string{"pview@x.com", "fresh@x.com"},
		Inviter: Inviter{ID: "padmin"},
		Role:    "viewer",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped)

	invs := e.pending(t, "project_id = ?", 5)
	require.Len(t, invs, 1)
	assert.Equal(t, "fresh@x.com", *invs[0].Email)
	assert.Equal(t, "VIEWER", invs[0].Role)
	assert.Nil(t, invs[0].TeamID)
}

func TestIssueUnauthorizedInviter(t *testing.T) {
	cases := []struct {
		name    string
		scope   models.Scope
		scopeID uint
		inviter string
	}{
		{"team member", models.ScopeTeam, 7, "plain"},
		{"stranger", models.ScopeTeam, 7, "nobody"},
		{"unknown team", models.ScopeWorkspace, 99, "owner"},
		{"project viewer", models.ScopeProject, 5, "pview"},
		{"team admin on project", models.ScopeProject, 5, "admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newIssueEnv(t, nil)
			res, err := e.iss.Issue(context.Background(), IssueRequest{
				Scope:   tc.scope,
				ScopeID: tc.scopeID,
				Emails:  []string{"a@x.com"},
				Inviter: Inviter{ID: tc.inviter},
			})
			assert.Nil(t, res)
			assert.Equal(t, KindUnauthorizedInviter, KindOf(err))
			var n int64
			require.NoError(t, e.db.Model(&models.Invite{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestIssueInvalidEmailsReported(t *testing.T) {
	e := newIssueEnv(t, nil)
	res, err := e.iss.Issue(context.Background(), IssueRequest{
		Scope:   models.ScopeTeam,
		ScopeID: 7,
		Emails:  []string{"good@x.com", "not-an-email", "Bob <bob@x.com>"},
		Inviter: Inviter{ID: "owner"},
	})
	require.Error(t, err)
	assert.Equal(t, KindBulkInvite, KindOf(err))

	var bulk *BulkError
	require.True(t, errors.As(err, &bulk))
	require.Len(t, bulk.Failures, 2)
	assert.Equal(t, "not-an-email", bulk.Failures[0].Email)
	assert.True(t, strings.Contains(err.Error(), "not-an-email"))

	require.NotNil(t, res)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Skipped)
	assert.Len(t, e.pending(t, "team_id = ?", 7), 1)
}

func TestIssueNotificationFailureKeepsInvites(t *testing.T) {
	e := newIssueEnv(t, errors.New("smtp down"))
	res, err := e.iss.Issue(context.Background(), IssueRequest{
		Scope:   models.ScopeTeam,
		ScopeID: 7,
		Emails:  []string{"a@x.com", "b@x.com"},
		Inviter: Inviter{ID: "owner"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	for i := 0; i < 2; i++ {
		select {
		case <-e.n.ch:
		case <-time.After(2 * time.Second):
			t.Fatal("notification not attempted")
		}
	}
	assert.Len(t, e.pending(t, "team_id = ?", 7), 2)
}

func TestIssueValidation(t *testing.T) {
	many := make([]string, 11)
	for i := range many {
		many[i] = "x@x.com"
	}
	cases := []struct {
		name string
		req  IssueRequest
	}{
		{"unknown scope", IssueRequest{Scope: "channel", ScopeID: 7, Emails: []string{"a@x.com"}, Inviter: Inviter{ID: "owner"}}},
		{"no scope id", IssueRequest{Scope: models.ScopeTeam, Emails: []string{"a@x.com"}, Inviter: Inviter{ID: "owner"}}},
		{"no inviter", IssueRequest{Scope: models.ScopeTeam, ScopeID: 7, Emails: []string{"a@x.com"}}},
		{"no emails", IssueRequest{Scope: models.ScopeTeam, ScopeID: 7, Inviter: Inviter{ID: "owner"}}},
		{"too many", IssueRequest{Scope: models.ScopeTeam, ScopeID: 7, Emails: many, Inviter: Inviter{ID: "owner"}}},
		{"owner role", IssueRequest{Scope: models.ScopeTeam, ScopeID: 7, Emails: []string{"a@x.com"}, Inviter: Inviter{ID: "owner"}, Role: "OWNER"}},
		{"viewer in team", IssueRequest{Scope: models.ScopeTeam, ScopeID: 7, Emails: []string{"a@x.com"}, Inviter: Inviter{ID: "owner"}, Role: "VIEWER"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newIssueEnv(t, nil)
			_, err := e.iss.Issue(context.Background(), tc.req)
			assert.Equal(t, KindInvalidRequest, KindOf(err))
		})
	}
}

func TestIssueCachesInviterRole(t *testing.T) {
	e := newIssueEnv(t, nil)
	req := IssueRequest{Scope: models.ScopeTeam, ScopeID: 7, Emails: []string{"a@x.com"}, Inviter: Inviter{ID: "admin"}}
	_, err := e.iss.Issue(context.Background(), req)
	require.NoError(t, err)

	// понижение роли видно только после ttl
	require.NoError(t, e.db.Model(&models.TeamMember{}).Where("profile_id = ?", "admin").Update("team_role", "MEMBER").Error)
	req.Emails = []string{"b@x.com"}
	_, err = e.iss.Issue(context.Background(), req)
	require.NoError(t, err)

	e.iss.Cache = nil
	req.Emails = []string{"c@x.com"}
	_, err = e.iss.Issue(context.Background(), req)
	assert.Equal(t, KindUnauthorizedInviter, KindOf(err))
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"a@x.com":          {"a@x.com", true},
		"  A@X.Com ":       {"a@x.com", true},
		"":                 {"", false},
		"nope":             {"", false},
		"Bob <b@x.com>":    {"", false},
		"a@x.com, b@x.com": {"", false},
	}
	for in, tc := range cases {
		got, ok := normalizeEmail(in)
		assert.Equal(t, tc.ok, ok, in)
		assert.Equal(t, tc.want, got, in)
	}
}
