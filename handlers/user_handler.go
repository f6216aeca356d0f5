package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"yardtrack/middleware"
	"yardtrack/models"
	"yardtrack/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserHandler struct {
	Repo repository.UserRepository
	JWT  *middleware.JWTManager
	Log  *zap.Logger
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Signup creates a user. Until the first admin exists anyone may sign up;
// after that only an admin may.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		fail(w, http.StatusBadRequest, "Name, email, password and role are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		fail(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if !models.ValidRole(req.Role) {
		fail(w, http.StatusBadRequest, "Role must be admin or operator")
		return
	}

	hasAdmin, err := h.Repo.HasAdmin(r.Context())
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if hasAdmin {
		raw := r.Header.Get(middleware.HeaderAuthorization)
		actor, err := h.JWT.ParseAccess(strings.TrimPrefix(raw, middleware.BearerPrefix))
		if err != nil || !strings.HasPrefix(raw, middleware.BearerPrefix) {
			fail(w, http.StatusUnauthorized, "Only an admin can create users")
			return
		}
		if !actor.IsAdmin() {
			fail(w, http.StatusForbidden, "Only an admin can create users")
			return
		}
	}

	existing, err := h.Repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if existing != nil {
		fail(w, http.StatusConflict, "A user with this email already exists")
		return
	}

	user := models.AppUser{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}
	if err := h.Repo.CreateUser(r.Context(), &user); err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	h.Log.Info("user created", zap.String("user_id", user.ID), zap.String("role", user.Role))

	user.Password = "" // hide password hash
	created(w, "User signed up successfully", user)
}

type loginResponse struct {
	middleware.Token
	User models.AppUser `json:"user"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &creds) {
		return
	}

	user, err := h.Repo.GetUserByEmail(r.Context(), creds.Email)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	if user == nil {
		fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	tok, err := h.JWT.Issue(user)
	if err != nil {
		writeError(w, h.Log, r, err)
		return
	}
	user.Password = "" // hide password hash
	ok(w, "Login successful", loginResponse{Token: tok, User: *user})
}
