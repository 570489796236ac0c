package handlers

import "net/http"

// Handlers groups everything the router dispatches to
type Handlers struct {
	Middleware *Middleware
	Auth       *AuthHandler
	Family     *FamilyHandler
	Calendar   *CalendarHandler
	Task       *TaskHandler
	Chat       *ChatHandler
	Profile    *ProfileHandler
	Dashboard  *DashboardHandler
	Live       *LiveHandler
}

// NewRouter registers every route and wraps the mux with request logging
func NewRouter(h Handlers) http.Handler {
	m := h.Middleware
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/auth/register", m.RateLimit(h.Auth.Register))
	mux.HandleFunc("POST /api/auth/login", m.RateLimit(h.Auth.Login))
	mux.HandleFunc("GET /api/auth/providers", h.Auth.Providers)
	mux.HandleFunc("GET /auth/{provider}/start", h.Auth.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", h.Auth.OAuthCallback)

	// Signed-in routes, open to members still onboarding
	mux.HandleFunc("GET /api/session", m.RequireAuth(h.Auth.Session))
	mux.HandleFunc("POST /api/auth/logout", m.Authed(h.Profile.Logout))
	mux.HandleFunc("POST /api/family", m.Authed(h.Family.CreateFamily))
	mux.HandleFunc("POST /api/family/join", m.Authed(h.Family.JoinFamily))
	mux.HandleFunc("PUT /api/profile", m.Authed(h.Profile.UpdateProfile))
	mux.HandleFunc("PUT /api/profile/preferences", m.Authed(h.Profile.UpdatePreferences))

	// Family routes
	mux.HandleFunc("GET /api/family", m.Family(h.Family.GetFamily))
	mux.HandleFunc("PUT /api/family", m.Family(h.Family.UpdateFamily))
	mux.HandleFunc("GET /api/family/invite-code", m.Family(h.Family.InviteCode))
	mux.HandleFunc("POST /api/family/invite", m.Family(h.Family.SendInvite))
	mux.HandleFunc("PUT /api/profile/location", m.Family(h.Profile.UpdateLocation))
	mux.HandleFunc("GET /api/dashboard", m.Family(h.Dashboard.Show))

	// Calendar
	mux.HandleFunc("GET /api/events", m.Family(h.Calendar.ListEvents))
	mux.HandleFunc("POST /api/events", m.Family(h.Calendar.CreateEvent))
	mux.HandleFunc("GET /api/events/{id}", m.Family(h.Calendar.GetEvent))
	mux.HandleFunc("GET /api/calendar/{year}/{month}", m.Family(h.Calendar.Month))

	// Tasks
	mux.HandleFunc("GET /api/lists", m.Family(h.Task.ListLists))
	mux.HandleFunc("POST /api/lists", m.Family(h.Task.CreateList))
	mux.HandleFunc("GET /api/lists/{id}/tasks", m.Family(h.Task.ListTasks))
	mux.HandleFunc("POST /api/lists/{id}/tasks", m.Family(h.Task.CreateTask))
	mux.HandleFunc("POST /api/tasks/{id}/toggle", m.Family(h.Task.ToggleTask))
	mux.HandleFunc("PUT /api/tasks/{id}/status", m.Family(h.Task.SetStatus))

	// Messaging
	mux.HandleFunc("GET /api/messages", m.Family(h.Chat.ListMessages))
	mux.HandleFunc("POST /api/messages", m.Family(h.Chat.SendMessage))
	mux.HandleFunc("GET /api/pings", m.Family(h.Chat.ListPings))
	mux.HandleFunc("POST /api/pings", m.Family(h.Chat.SendPing))
	mux.HandleFunc("GET /api/live", m.RequireFamily(h.Live.Serve))

	return Logging(mux)
}
