package api

import (
	"net/http"
	"strconv"

	"github.com/erazemk/marketbook/internal/action"
	"github.com/erazemk/marketbook/internal/model"
)

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AdminCode string `json:"adminCode"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type profileRequest struct {
	Name     model.Optional[string] `json:"name"`
	Email    model.Optional[string] `json:"email"`
	Bio      model.Optional[string] `json:"bio"`
	Phone    model.Optional[string] `json:"phone"`
	Location model.Optional[string] `json:"location"`
	Avatar   model.Optional[string] `json:"avatar"`
	Password model.Optional[string] `json:"password"`
}

// sessionResponse is a user record with a bearer token.
type sessionResponse struct {
	*model.User
	Token string `json:"token"`
}

func newSessionResponse(s *action.Session) sessionResponse {
	return sessionResponse{User: s.User, Token: s.Token}
}

// register handles POST /api/users/register.
func (rt *Router) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := rt.svc.Identity.Register(r.Context(), rt.clients.info(r), action.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newSessionResponse(session))
}

// registerAdmin handles POST /api/users/register-admin.
func (rt *Router) registerAdmin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := rt.svc.Identity.RegisterAdmin(r.Context(), rt.clients.info(r), action.Registration{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		AdminCode: req.AdminCode,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newSessionResponse(session))
}

// login handles POST /api/users/login.
func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role != "" && !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	session, err := rt.svc.Identity.Login(r.Context(), rt.clients.info(r), req.Email, req.Password, req.Role)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newSessionResponse(session))
}

// logout handles POST /api/users/logout.
func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Identity.Logout(r.Context(), UserFrom(r.Context()), rt.clients.info(r)); err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// getProfile handles GET /api/users/profile.
func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := rt.svc.Identity.Profile(r.Context(), UserFrom(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// updateProfile handles PUT /api/users/profile.
func (rt *Router) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := rt.svc.Identity.UpdateProfile(r.Context(), UserFrom(r.Context()), rt.clients.info(r), model.ProfilePatch{
		Name:     req.Name,
		Email:    req.Email,
		Bio:      req.Bio,
		Phone:    req.Phone,
		Location: req.Location,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newSessionResponse(session))
}

// listUsers handles GET /api/users.
func (rt *Router) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.svc.Identity.Users(r.Context(), UserFrom(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// listNotifications handles GET /api/users/notifications.
func (rt *Router) listNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := rt.svc.Notifications.List(r.Context(), UserFrom(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, notes)
}

// markNotificationRead handles PUT /api/users/notifications/{id}/read.
func (rt *Router) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if _, err := rt.svc.Notifications.MarkRead(r.Context(), UserFrom(r.Context()), id); err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, messageResponse{Message: "Notification marked as read"})
}

// auditLogs handles GET /api/users/audit-logs?page=&limit=.
func (rt *Router) auditLogs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)

	logs, err := rt.svc.Admin.AuditLogs(r.Context(), UserFrom(r.Context()), page, limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, logs)
}

// dashboardStats handles GET /api/users/dashboard-stats.
func (rt *Router) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.Admin.DashboardStats(r.Context(), UserFrom(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}
