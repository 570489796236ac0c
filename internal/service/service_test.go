package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familysync/internal/credentials"
	"familysync/internal/database"
	"familysync/internal/database/dbtest"
	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
)

// fakeMailer records what would have been sent
type fakeMailer struct {
	mu       sync.Mutex
	welcomes []string
	invites  []string
	fail     bool
}

func (m *fakeMailer) IsEnabled() bool { return true }

func (m *fakeMailer) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.welcomes = append(m.welcomes, toEmail)
	return nil
}

func (m *fakeMailer) SendInviteCodeEmail(ctx context.Context, toEmail, inviterName, familyName, inviteCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.invites = append(m.invites, toEmail+":"+inviteCode)
	return nil
}

type testEnv struct {
	db        *database.DB
	hub       *realtime.Hub
	mailer    *fakeMailer
	memberRep *repository.MemberRepository
	auth      *AuthService
	families  *FamilyService
	calendar  *CalendarService
	tasks     *TaskService
	chat      *ChatService
	profiles  *ProfileService
	dashboard *DashboardService
	backup    *BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t)
	hub := realtime.NewHub(realtime.DefaultBufferSize)
	mailer := &fakeMailer{}

	accountRepo := repository.NewAccountRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	eventRepo := repository.NewEventRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	auth := NewAuthService(accountRepo, memberRepo, familyRepo, mailer, time.Hour)
	calendar := NewCalendarService(eventRepo, memberRepo, hub)
	tasks := NewTaskService(taskRepo, memberRepo, hub)

	return &testEnv{
		db:        db,
		hub:       hub,
		mailer:    mailer,
		memberRep: memberRepo,
		auth:      auth,
		families:  NewFamilyService(familyRepo, memberRepo, db.Dialect, hub, mailer, "UTC"),
		calendar:  calendar,
		tasks:     tasks,
		chat:      NewChatService(messageRepo, hub, 100),
		profiles:  NewProfileService(memberRepo, auth, hub),
		dashboard: NewDashboardService(calendar, tasks, memberRepo),
		backup:    NewBackupService(db),
	}
}

// user is a registered, signed-in test member
type user struct {
	sessionID string
}

func (e *testEnv) register(t *testing.T, email, name string) user {
	t.Helper()
	ctx := context.Background()
	_, _, err := e.auth.Register(ctx, email, "correct-horse", name)
	require.NoError(t, err)
	session, err := e.auth.Login(ctx, email, "correct-horse")
	require.NoError(t, err)
	return user{sessionID: session.ID}
}

// identity resolves the user's current identity, as a request would
func (e *testEnv) identity(t *testing.T, u user) *models.Identity {
	t.Helper()
	identity, err := e.auth.ResolveIdentity(context.Background(), u.sessionID)
	require.NoError(t, err)
	return identity
}

// founder registers a member and creates a family for them
func (e *testEnv) founder(t *testing.T, email, name string) (user, *models.Family) {
	t.Helper()
	u := e.register(t, email, name)
	family, err := e.families.CreateFamily(context.Background(), e.identity(t, u), "The "+name+"s", "")
	require.NoError(t, err)
	return u, family
}

func (e *testEnv) joiner(t *testing.T, email, name string, family *models.Family) user {
	t.Helper()
	u := e.register(t, email, name)
	_, err := e.families.JoinFamily(context.Background(), e.identity(t, u), family.InviteCode, "")
	require.NoError(t, err)
	return u
}

func TestRegisterStartsOnboarding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.register(t, "  Ann@Example.com ", "Ann")
	identity := env.identity(t, u)

	assert.Equal(t, "ann@example.com", identity.Account.Email)
	assert.True(t, identity.Member.IsOnboarding())
	assert.Nil(t, identity.Family)
	assert.Equal(t, []string{"ann@example.com"}, env.mailer.welcomes)

	_, err := env.tasks.ListLists(ctx, identity)
	assert.ErrorIs(t, err, models.ErrOnboarding)
	_, err = env.chat.SendText(ctx, identity, "hello")
	assert.ErrorIs(t, err, models.ErrOnboarding)
	_, err = env.calendar.ListEventsInRange(ctx, identity, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, models.ErrOnboarding)
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ann@example.com", "Ann")

	_, _, err := env.auth.Register(ctx, "ANN@example.com", "correct-horse", "Ann Again")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = env.auth.Register(ctx, "not-an-email", "correct-horse", "Bob")
	assert.Error(t, err)

	_, _, err = env.auth.Register(ctx, "bob@example.com", "short", "Bob")
	assert.Error(t, err)
}

func TestConcurrentRegisterSameEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const attempts = 6
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = env.auth.Register(ctx, "race@example.com", "correct-horse", "Racer")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrEmailTaken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestRegisterSucceedsWhenWelcomeEmailFails(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = true

	_, member, err := env.auth.Register(context.Background(), "ann@example.com", "correct-horse", "Ann")
	require.NoError(t, err)
	assert.NotNil(t, member)
}

func TestLoginAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "ann@example.com", "Ann")

	_, err := env.auth.Login(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	account, err := env.auth.ValidateSession(ctx, u.sessionID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", account.Email)

	require.NoError(t, env.profiles.SignOut(ctx, u.sessionID))
	_, err = env.auth.ValidateSession(ctx, u.sessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpiredSessionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "ann@example.com", "Ann")

	accounts := repository.NewAccountRepository(env.db)
	account, err := accounts.GetAccountByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	_, err = accounts.CreateSession(ctx, "stale-session", account.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = env.auth.ValidateSession(ctx, "stale-session")
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = env.auth.ValidateSession(ctx, "stale-session")
	assert.ErrorIs(t, err, ErrSessionNotFound, "expired sessions are deleted when seen")
}

func TestOAuthLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.auth.OAuthLogin(ctx, "google", "sub-1", "Cara@Example.com", "Cara")
	require.NoError(t, err)
	identity, err := env.auth.ResolveIdentity(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "cara@example.com", identity.Account.Email)
	assert.Equal(t, "Cara", identity.Member.Name)
	assert.True(t, identity.Member.IsOnboarding())

	again, err := env.auth.OAuthLogin(ctx, "google", "sub-1", "cara@example.com", "Cara")
	require.NoError(t, err)
	second, err := env.auth.ResolveIdentity(ctx, again.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.Account.ID, second.Account.ID)

	// A password account is linked on first OAuth sign-in with the same email
	env.register(t, "dan@example.com", "Dan")
	linked, err := env.auth.OAuthLogin(ctx, "facebook", "fb-9", "dan@example.com", "Dan")
	require.NoError(t, err)
	dan, err := env.auth.ResolveIdentity(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, "facebook", dan.Account.OAuthProvider)

	_, err = env.auth.OAuthLogin(ctx, "google", "other-sub", "dan@example.com", "Dan")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "ann@example.com", "Ann")

	family, err := env.families.CreateFamily(ctx, env.identity(t, u), "  The Smiths ", "#10B981")
	require.NoError(t, err)
	assert.Equal(t, "The Smiths", family.Name)
	assert.Equal(t, "UTC", family.Timezone)
	assert.Len(t, family.InviteCode, credentials.InviteCodeLength)
	assert.Equal(t, strings.ToLower(family.InviteCode), family.InviteCode)

	identity := env.identity(t, u)
	require.NotNil(t, identity.Family)
	assert.Equal(t, family.ID, identity.Family.ID)
	assert.Equal(t, models.RoleAdmin, identity.Member.Role)
	assert.Equal(t, "#10B981", identity.Member.Color)

	lists, err := env.tasks.ListLists(ctx, identity)
	require.NoError(t, err)
	require.Len(t, lists, 3)
	for i, want := range models.DefaultTaskLists {
		assert.Equal(t, want.Name, lists[i].Name)
		assert.Equal(t, want.Icon, lists[i].Icon)
	}

	_, err = env.families.CreateFamily(ctx, identity, "Second Family", "")
	assert.ErrorIs(t, err, ErrAlreadyInFamily)
}

func TestCreateFamilyValidation(t *testing.T) {
	env := newTestEnv(t)
	identity := env.identity(t, env.register(t, "ann@example.com", "Ann"))

	tests := []struct {
		name  string
		fname string
		color string
	}{
		{name: "blank name", fname: "   ", color: ""},
		{name: "color outside palette", fname: "The Smiths", color: "#123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.families.CreateFamily(context.Background(), identity, tt.fname, tt.color)
			assert.Error(t, err)
		})
	}
}

func TestJoinFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, family := env.founder(t, "ann@example.com", "Ann")

	sub := env.hub.Subscribe(family.ID)
	defer sub.Close()

	u := env.register(t, "bob@example.com", "Bob")
	joined, err := env.families.JoinFamily(ctx, env.identity(t, u), "  "+strings.ToUpper(family.InviteCode)+"\n", "#EF4444")
	require.NoError(t, err)
	assert.Equal(t, family.ID, joined.ID)

	identity := env.identity(t, u)
	assert.Equal(t, family.ID, identity.Family.ID)
	assert.Equal(t, models.RoleMember, identity.Member.Role, "joining never promotes")
	assert.Equal(t, "#EF4444", identity.Member.Color)

	select {
	case event := <-sub.C:
		assert.Equal(t, realtime.EventMemberUpdated, event.Type)
		assert.Equal(t, identity.Member.Summary(), event.Payload)
	case <-time.After(time.Second):
		t.Fatal("no member.updated event")
	}

	members, err := env.families.ListMembers(ctx, identity)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = env.families.JoinFamily(ctx, identity, family.InviteCode, "")
	assert.ErrorIs(t, err, ErrAlreadyInFamily)
}

func TestJoinFamilyInvalidCode(t *testing.T) {
	env := newTestEnv(t)
	env.founder(t, "ann@example.com", "Ann")
	identity := env.identity(t, env.register(t, "bob@example.com", "Bob"))

	for _, code := range []string{"zzz000", "zzzz0000", "", "   ", "abc 123", strings.Repeat("z", 65)} {
		_, err := env.families.JoinFamily(context.Background(), identity, code, "")
		require.ErrorIs(t, err, ErrInvalidInviteCode, "code %q", code)
		assert.Equal(t, "Invalid invite code. Please check and try again.", err.Error())
	}
}

func TestJoinFamilyWithImportedCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	_, err := env.db.ExecContext(ctx, `
		INSERT INTO families (id, name, invite_code, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, "family-abc", "The Abcs", "abc123", "UTC", ts, ts)
	require.NoError(t, err)

	u := env.register(t, "bob@example.com", "Bob")
	joined, err := env.families.JoinFamily(ctx, env.identity(t, u), " ABC123 ", "")
	require.NoError(t, err)
	assert.Equal(t, "family-abc", joined.ID)

	identity := env.identity(t, u)
	require.NotNil(t, identity.Family)
	assert.Equal(t, "family-abc", identity.Family.ID)
	assert.Equal(t, models.RoleMember, identity.Member.Role)
}

func TestUpdateFamily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, family := env.founder(t, "ann@example.com", "Ann")
	member := env.joiner(t, "bob@example.com", "Bob", family)

	_, err := env.families.UpdateFamily(ctx, env.identity(t, member), "Renamed", "Europe/London")
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = env.families.UpdateFamily(ctx, env.identity(t, admin), "Renamed", "Mars/Olympus")
	assert.Error(t, err)

	updated, err := env.families.UpdateFamily(ctx, env.identity(t, admin), "Renamed", "Europe/London")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "Europe/London", updated.Timezone)
	assert.Equal(t, family.InviteCode, updated.InviteCode)
}

func TestEmailInviteCode(t *testing.T) {
	env := newTestEnv(t)
	u, family := env.founder(t, "ann@example.com", "Ann")

	require.NoError(t, env.families.EmailInviteCode(context.Background(), env.identity(t, u), "grandma@example.com"))
	assert.Equal(t, []string{"grandma@example.com:" + family.InviteCode}, env.mailer.invites)

	err := env.families.EmailInviteCode(context.Background(), env.identity(t, u), "nope")
	assert.Error(t, err)
}

func TestProfileUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, family := env.founder(t, "ann@example.com", "Ann")

	member, err := env.profiles.UpdateProfile(ctx, env.identity(t, u), "Annie", "#8B5CF6")
	require.NoError(t, err)
	assert.Equal(t, "Annie", member.Name)
	assert.Equal(t, "#8B5CF6", member.Color)

	_, err = env.profiles.UpdateProfile(ctx, env.identity(t, u), "Annie", "#000000")
	assert.Error(t, err)

	code, err := env.profiles.GetInviteCode(env.identity(t, u))
	require.NoError(t, err)
	assert.Equal(t, family.InviteCode, code)

	_, err = env.profiles.UpdateLocation(ctx, env.identity(t, u), 51.5, -0.12, "Home")
	assert.ErrorIs(t, err, ErrLocationSharingDisabled)

	_, err = env.profiles.UpdatePreferences(ctx, env.identity(t, u), PreferencesInput{
		Phone: "555-0100", LocationSharing: true, Push: false, Email: true, Digest: models.DigestWeekly,
	})
	require.NoError(t, err)

	located, err := env.profiles.UpdateLocation(ctx, env.identity(t, u), 51.5, -0.12, "Home")
	require.NoError(t, err)
	require.NotNil(t, located.LastLocation)
	assert.InDelta(t, 51.5, located.LastLocation.Latitude, 1e-9)
	assert.Equal(t, models.DigestWeekly, located.Notifications.Digest)
	assert.False(t, located.Notifications.Push)

	_, err = env.profiles.UpdateLocation(ctx, env.identity(t, u), 123, 0, "")
	assert.Error(t, err)

	off, err := env.profiles.UpdatePreferences(ctx, env.identity(t, u), PreferencesInput{LocationSharing: false, Digest: models.DigestNone})
	require.NoError(t, err)
	assert.Nil(t, off.LastLocation, "turning sharing off forgets the location")
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u, family := env.founder(t, "ann@example.com", "Ann")
	env.joiner(t, "bob@example.com", "Bob", family)
	identity := env.identity(t, u)

	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	_, err := env.calendar.CreateEvent(ctx, identity, EventInput{Title: "Dentist", Start: "2025-03-10T15:00"})
	require.NoError(t, err)
	_, err = env.calendar.CreateEvent(ctx, identity, EventInput{Title: "Tomorrow", Start: "2025-03-11T08:00"})
	require.NoError(t, err)

	lists, err := env.tasks.ListLists(ctx, identity)
	require.NoError(t, err)
	_, err = env.tasks.CreateTask(ctx, identity, lists[0].ID, TaskInput{Title: "Milk"})
	require.NoError(t, err)

	dash, err := env.dashboard.Summary(ctx, identity, now)
	require.NoError(t, err)
	assert.Equal(t, "Good morning", dash.Greeting)
	require.Len(t, dash.TodayEvents, 1)
	assert.Equal(t, "Dentist", dash.TodayEvents[0].Title)
	require.Len(t, dash.UpcomingTasks, 1)
	assert.Len(t, dash.Members, 2)
}

func TestGreeting(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		hour int
		want string
	}{
		{0, "Good morning"},
		{11, "Good morning"},
		{12, "Good afternoon"},
		{17, "Good afternoon"},
		{18, "Good evening"},
		{23, "Good evening"},
	}
	for _, tt := range tests {
		at := time.Date(2025, 6, 1, tt.hour, 15, 0, 0, ny)
		assert.Equal(t, tt.want, Greeting(at.UTC(), ny), "hour %d", tt.hour)
	}
}
