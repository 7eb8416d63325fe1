package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/qr-genius/internal/auth"
	"github.com/sakif/qr-genius/internal/service"
)

// AuthHandler exposes account endpoints: registration, email/password
// login, logout, the password-reset pair, and the GitHub OAuth flow.
//
// The handler parses HTTP and writes responses; all rules (password
// length, duplicate emails, credential checks) live in service.AuthService.
type AuthHandler struct {
	auth       *service.AuthService
	github     *auth.GitHubProvider // nil when GitHub login is not configured
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil; the OAuth
// routes are only registered when it is set.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:       authService,
		github:     github,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// credentialsRequest is the body for both /api/register and /api/login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// setSessionCookie installs the signed session token as an HttpOnly
// cookie. HttpOnly keeps it away from page scripts; SameSite=Lax stops
// cross-site POSTs from carrying it. Secure should be enabled when the
// service terminates TLS itself.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// Body: {"email": "...", "password": "..."}
//
// Returns 201 with the new account's id and email. Registration does not
// log the user in — the client follows up with /api/login.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON in request body",
		})
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
	})
}

// HandleLogin verifies credentials and starts a session.
//
// HTTP: POST /api/login
// Body: {"email": "...", "password": "..."}
//
// On success the session token is set as an HttpOnly cookie; the body
// repeats the account's id and email for the client's convenience.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON in request body",
		})
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
	})
}

// HandleLogout ends the session by deleting the cookie.
//
// HTTP: POST /api/logout
//
// Sessions are stateless JWTs, so there is nothing to revoke server-side;
// the token simply stops being sent. POST (not GET) because logout changes
// state.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated account's profile.
//
// HTTP: GET /api/me
// Auth: required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't assume.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleForgotPassword starts the password-reset flow.
//
// HTTP: POST /api/forgot_password
// Body: {"email": "..."}
//
// The response is the same whether or not the address has an account, so
// the endpoint cannot be used to probe which emails are registered.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON in request body",
		})
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if an account exists for this email, a reset link has been sent",
	})
}

// HandleResetPassword completes the password-reset flow.
//
// HTTP: POST /api/reset_password/{token}
// Body: {"password": "..."}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON in request body",
		})
		return
	}

	if err := h.auth.ResetPassword(r.Context(), token, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state value in a short-lived cookie ties the eventual callback
// to this browser, which is the standard OAuth CSRF defence.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow: verify the state,
// exchange the code for a GitHub profile, upsert the account, and issue
// the same session cookie a password login gets.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	_, token, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
