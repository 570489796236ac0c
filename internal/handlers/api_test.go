package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"familysync/internal/database/dbtest"
	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/security"
	"familysync/internal/service"
)

type testServer struct {
	srv  *httptest.Server
	live *LiveHandler
	hub  *realtime.Hub
	auth *service.AuthService
	chat *service.ChatService
}

func newTestServer(t *testing.T, limiter *security.RateLimiter, providers map[string]OAuthProvider) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	hub := realtime.NewHub(realtime.DefaultBufferSize)

	accountRepo := repository.NewAccountRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	eventRepo := repository.NewEventRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	authService := service.NewAuthService(accountRepo, memberRepo, familyRepo, nil, time.Hour)
	familyService := service.NewFamilyService(familyRepo, memberRepo, db.Dialect, hub, nil, "UTC")
	calendarService := service.NewCalendarService(eventRepo, memberRepo, hub)
	taskService := service.NewTaskService(taskRepo, memberRepo, hub)
	chatService := service.NewChatService(messageRepo, hub, 50)
	profileService := service.NewProfileService(memberRepo, authService, hub)
	dashboardService := service.NewDashboardService(calendarService, taskService, memberRepo)

	if limiter == nil {
		limiter = security.NewRateLimiter(1000, time.Minute)
	}
	t.Cleanup(limiter.Stop)

	csrf := security.NewCSRFGenerator("test-secret")
	live := NewLiveHandler(chatService)

	router := NewRouter(Handlers{
		Middleware: NewMiddleware(authService, csrf, limiter),
		Auth:       NewAuthHandler(authService, csrf, providers, ""),
		Family:     NewFamilyHandler(familyService, profileService),
		Calendar:   NewCalendarHandler(calendarService),
		Task:       NewTaskHandler(taskService),
		Chat:       NewChatHandler(chatService),
		Profile:    NewProfileHandler(profileService),
		Dashboard:  NewDashboardHandler(dashboardService),
		Live:       live,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		live.Close()
		srv.Close()
	})
	return &testServer{srv: srv, live: live, hub: hub, auth: authService, chat: chatService}
}

// apiClient is one browser: its own cookie jar and CSRF token
type apiClient struct {
	t      *testing.T
	server *testServer
	client *http.Client
	csrf   string
}

func (s *testServer) newClient(t *testing.T) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{
		t:      t,
		server: s,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *apiClient) do(method, path string, body interface{}) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.server.srv.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.csrf != "" {
		req.Header.Set(security.CSRFHeader, c.csrf)
	}

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// signUp registers email and keeps the returned CSRF token
func (c *apiClient) signUp(email, name string) sessionResponse {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/auth/register", credentialsRequest{Email: email, Password: "password123", Name: name})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	session := decode[sessionResponse](c.t, resp)
	c.csrf = session.CSRFToken
	return session
}

func (c *apiClient) createFamily(name string) models.Family {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/api/family", createFamilyRequest{Name: name})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
	return decode[models.Family](c.t, resp)
}

func TestOnboardingGatesFamilyRoutes(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)

	session := client.signUp("sam@example.com", "Sam")
	assert.True(t, session.NeedsOnboard)
	assert.Nil(t, session.Family)
	assert.NotEmpty(t, session.CSRFToken)

	resp := client.do(http.MethodGet, "/api/lists", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrFamilySetupRequired, decode[errorResponse](t, resp).Error)

	family := client.createFamily("Garcia")
	assert.Len(t, family.InviteCode, 8)

	resp = client.do(http.MethodGet, "/api/lists", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lists := decode[[]models.TaskList](t, resp)
	assert.Len(t, lists, 3)

	resp = client.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[sessionResponse](t, resp)
	assert.False(t, after.NeedsOnboard)
	require.NotNil(t, after.Family)
	assert.Equal(t, family.ID, after.Family.ID)
}

func TestMutatingRoutesRequireCSRFToken(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("sam@example.com", "Sam")

	token := client.csrf
	client.csrf = ""
	resp := client.do(http.MethodPost, "/api/family", createFamilyRequest{Name: "Garcia"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	client.csrf = "not-a-token"
	resp = client.do(http.MethodPost, "/api/family", createFamilyRequest{Name: "Garcia"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	client.csrf = token
	resp = client.do(http.MethodPost, "/api/family", createFamilyRequest{Name: "Garcia"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestUnauthenticatedRequests(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)

	for _, path := range []string{"/api/session", "/api/dashboard", "/api/messages"} {
		resp := client.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestLoginAndLogout(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("sam@example.com", "Sam")

	resp := client.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = client.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = client.do(http.MethodPost, "/api/auth/login", credentialsRequest{Email: "sam@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = client.do(http.MethodPost, "/api/auth/login", credentialsRequest{Email: "SAM@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[sessionResponse](t, resp).CSRFToken)
}

func TestLoginIsRateLimited(t *testing.T) {
	server := newTestServer(t, security.NewRateLimiter(2, time.Minute), nil)
	client := server.newClient(t)

	for i := 0; i < 2; i++ {
		resp := client.do(http.MethodPost, "/api/auth/login", credentialsRequest{Email: "nobody@example.com", Password: "password123"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := client.do(http.MethodPost, "/api/auth/login", credentialsRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestJoinFamilyByInviteCode(t *testing.T) {
	server := newTestServer(t, nil, nil)
	founder := server.newClient(t)
	founder.signUp("ana@example.com", "Ana")
	family := founder.createFamily("Garcia")

	resp := founder.do(http.MethodGet, "/api/family/invite-code", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code := decode[map[string]string](t, resp)["invite_code"]
	assert.Equal(t, family.InviteCode, code)

	joiner := server.newClient(t)
	joiner.signUp("ben@example.com", "Ben")

	resp = joiner.do(http.MethodPost, "/api/family/join", joinFamilyRequest{InviteCode: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = joiner.do(http.MethodPost, "/api/family/join", joinFamilyRequest{InviteCode: " " + strings.ToUpper(code) + " "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, family.ID, decode[models.Family](t, resp).ID)

	resp = joiner.do(http.MethodPost, "/api/family/join", joinFamilyRequest{InviteCode: code})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = joiner.do(http.MethodGet, "/api/family", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Family  models.Family   `json:"family"`
		Members []models.Member `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Members, 2)

	// Only the admin may rename the family
	resp = joiner.do(http.MethodPut, "/api/family", updateFamilyRequest{Name: "Ben's", Timezone: "UTC"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = founder.do(http.MethodPut, "/api/family", updateFamilyRequest{Name: "Garcia-Lopez", Timezone: "Europe/Madrid"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Europe/Madrid", decode[models.Family](t, resp).Timezone)
}

func TestTaskRoutes(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("ana@example.com", "Ana")
	client.createFamily("Garcia")

	resp := client.do(http.MethodPost, "/api/lists", createListRequest{Name: "Garden"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	list := decode[models.TaskList](t, resp)
	assert.Equal(t, models.DefaultListIcon, list.Icon)

	resp = client.do(http.MethodPost, "/api/lists/"+list.ID+"/tasks", service.TaskInput{Title: "Mow the lawn", Points: 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decode[models.TaskWithAssignee](t, resp)
	assert.Equal(t, models.TaskStatusTodo, task.Status)

	resp = client.do(http.MethodPost, "/api/lists/missing/tasks", service.TaskInput{Title: "Nothing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = client.do(http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	toggled := decode[models.TaskWithAssignee](t, resp)
	assert.Equal(t, models.TaskStatusDone, toggled.Status)
	assert.NotNil(t, toggled.CompletedAt)

	resp = client.do(http.MethodPut, "/api/tasks/"+task.ID+"/status", taskStatusRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = client.do(http.MethodPut, "/api/tasks/"+task.ID+"/status", taskStatusRequest{Status: models.TaskStatusInProgress})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[models.TaskWithAssignee](t, resp).CompletedAt)

	resp = client.do(http.MethodGet, "/api/lists/"+list.ID+"/tasks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks := decode[listTasksResponse](t, resp)
	assert.Len(t, tasks.Remaining, 1)
	assert.Empty(t, tasks.Completed)
}

func TestCalendarRoutes(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("ana@example.com", "Ana")
	client.createFamily("Garcia")

	memberID := server.identity(t, client).Member.ID

	resp := client.do(http.MethodPost, "/api/events", service.EventInput{Title: "Dentist", Start: "2026-03-10T09:00", AttendeeIDs: []string{memberID}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	event := decode[models.CalendarEvent](t, resp)
	assert.Equal(t, time.Hour, event.EndTime.Sub(event.StartTime))

	resp = client.do(http.MethodGet, "/api/events/"+event.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[service.EventDetail](t, resp)
	assert.Equal(t, "Dentist", detail.Title)
	assert.Equal(t, "Ana", detail.Creator.Name)
	require.Len(t, detail.Attendees, 1)
	assert.Equal(t, memberID, detail.Attendees[0].MemberID)

	resp = client.do(http.MethodGet, "/api/events/no-such-event", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	outsider := server.newClient(t)
	outsider.signUp("zed@example.com", "Zed")
	outsider.createFamily("Zimmer")
	resp = outsider.do(http.MethodGet, "/api/events/"+event.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other families' events stay hidden")

	resp = client.do(http.MethodPost, "/api/events", service.EventInput{Title: "Backwards", Start: "2026-03-10T09:00", End: "2026-03-10T08:00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = client.do(http.MethodGet, "/api/events?start=2026-03-10&end=2026-03-10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.EventWithCreator](t, resp), 1)

	resp = client.do(http.MethodGet, "/api/events?start=2026-03-11&end=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = client.do(http.MethodGet, "/api/events?start=soon&end=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = client.do(http.MethodGet, "/api/calendar/2026/3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[service.MonthView](t, resp)
	assert.Len(t, view.Events, 1)
	assert.Len(t, view.Days["2026-03-10"], 1)
	require.Len(t, view.Weeks, 5)
	assert.Equal(t, service.MonthDay{Date: "2026-03-10", InMonth: true, Events: 1}, view.Weeks[1][2])
	assert.Equal(t, service.MonthDay{Date: "2026-04-04", InMonth: false, Events: 0}, view.Weeks[4][6])

	resp = client.do(http.MethodGet, "/api/calendar/2026/13", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRoutes(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("ana@example.com", "Ana")
	client.createFamily("Garcia")

	resp := client.do(http.MethodPost, "/api/messages", sendMessageRequest{Content: "   "})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = client.do(http.MethodPost, "/api/messages", sendMessageRequest{Content: "Dinner at 7"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = client.do(http.MethodPost, "/api/pings", sendPingRequest{PingType: "teleporting"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = client.do(http.MethodPost, "/api/pings", sendPingRequest{PingType: models.PingRunningLate})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ping := decode[models.MessageWithSender](t, resp)
	require.NotNil(t, ping.Content)
	assert.Equal(t, "Running late", *ping.Content)

	resp = client.do(http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[messagesResponse](t, resp)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "Dinner at 7", *history.Messages[0].Content)
	require.Len(t, history.Days, 1)

	resp = client.do(http.MethodGet, "/api/pings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pings := decode[pingsResponse](t, resp)
	assert.Len(t, pings.Available, 4)
	assert.Len(t, pings.Recent, 1)
}

func TestProfileRoutes(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("ana@example.com", "Ana")

	resp := client.do(http.MethodPut, "/api/profile", updateProfileRequest{Name: "Ana G", Color: "#EF4444"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "#EF4444", decode[models.Member](t, resp).Color)

	resp = client.do(http.MethodPut, "/api/profile", updateProfileRequest{Name: "Ana", Color: "#123456"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	client.createFamily("Garcia")

	resp = client.do(http.MethodPut, "/api/profile/location", updateLocationRequest{Latitude: 40.4, Longitude: -3.7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "location sharing is off by default")

	resp = client.do(http.MethodPut, "/api/profile/preferences", service.PreferencesInput{LocationSharing: true, Push: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Member](t, resp).LocationSharing)

	resp = client.do(http.MethodPut, "/api/profile/location", updateLocationRequest{Latitude: 40.4, Longitude: -3.7, PlaceName: "Home"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	member := decode[models.Member](t, resp)
	require.NotNil(t, member.LastLocation)
	assert.InDelta(t, 40.4, member.LastLocation.Latitude, 0.0001)

	resp = client.do(http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dashboard := decode[service.Dashboard](t, resp)
	assert.Equal(t, "Ana G", dashboard.Member.Name)
	assert.NotEmpty(t, dashboard.Greeting)
}

func TestProvidersListsConfiguredOnly(t *testing.T) {
	providers := map[string]OAuthProvider{
		"google":   {Name: "google", Label: "Google", Config: &oauth2.Config{ClientID: "id", ClientSecret: "secret"}},
		"facebook": {Name: "facebook", Label: "Facebook", Config: &oauth2.Config{}},
	}
	server := newTestServer(t, nil, providers)
	client := server.newClient(t)

	resp := client.do(http.MethodGet, "/api/auth/providers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	views := decode[[]OAuthProviderView](t, resp)
	require.Len(t, views, 1)
	assert.Equal(t, "/auth/google/start", views[0].URL)

	resp = client.do(http.MethodGet, "/auth/facebook/start", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = client.do(http.MethodGet, "/auth/google/start", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, location.Query().Get("state"))
	assert.Contains(t, location.Query().Get("redirect_uri"), "/auth/google/callback")

	resp = client.do(http.MethodGet, "/auth/google/callback?code=abc&state=forged", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func dialLive(t *testing.T, c *apiClient) *websocket.Conn {
	t.Helper()
	serverURL, err := url.Parse(c.server.srv.URL)
	require.NoError(t, err)

	header := http.Header{}
	for _, cookie := range c.client.Jar.Cookies(serverURL) {
		header.Add("Cookie", cookie.String())
	}

	wsURL := "ws" + strings.TrimPrefix(c.server.srv.URL, "http") + "/api/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type liveEnvelope struct {
	Type      realtime.EventType `json:"type"`
	Payload   json.RawMessage    `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) liveEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env liveEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestLiveSendsBacklogThenEvents(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("ana@example.com", "Ana")
	client.createFamily("Garcia")

	resp := client.do(http.MethodPost, "/api/messages", sendMessageRequest{Content: "before connecting"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn := dialLive(t, client)

	backlog := readEnvelope(t, conn)
	assert.Equal(t, realtime.EventMessagesBacklog, backlog.Type)
	assert.False(t, backlog.Timestamp.IsZero())
	var history []models.MessageWithSender
	require.NoError(t, json.Unmarshal(backlog.Payload, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "before connecting", *history[0].Content)

	resp = client.do(http.MethodPost, "/api/messages", sendMessageRequest{Content: "live"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := readEnvelope(t, conn)
	assert.Equal(t, realtime.EventMessageCreated, created.Type)
	var msg models.MessageWithSender
	require.NoError(t, json.Unmarshal(created.Payload, &msg))
	assert.Equal(t, "live", *msg.Content)
	assert.Equal(t, "Ana", msg.Sender.Name)

	resp = client.do(http.MethodPost, "/api/lists", createListRequest{Name: "Holidays"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, realtime.EventListCreated, readEnvelope(t, conn).Type)
}

func TestLiveRequiresFamily(t *testing.T) {
	server := newTestServer(t, nil, nil)
	client := server.newClient(t)
	client.signUp("ana@example.com", "Ana")

	resp := client.do(http.MethodGet, "/api/live", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
