package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nimbus-billing/nimbus-billing/internal/platform/httpx"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
	"github.com/nimbus-billing/nimbus-billing/internal/users"
)

// Handler wires HTTP endpoints for authentication and account management.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	users          *users.Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, userSvc *users.Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		users:          userSvc,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/profile", h.handleProfile)
	r.Put("/profile", h.handleUpdateProfile)
	r.Patch("/profile", h.handleUpdateProfile)
	r.Post("/change-password", h.handleChangePassword)
	r.Get("/users", h.handleListUsers)
}

// handleCSRF primes the session with a token for subsequent mutating calls.
func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeError, "could not issue CSRF token")
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	current := shared.UserFromContext(r.Context())
	if err := shared.RequireStaff(current); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	user, err := h.users.Register(r.Context(), users.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.PhoneNumber,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "A user with this email already exists.")
			return
		}
		h.logger.Error("register user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.OKMessage(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user": toUserResponse(user),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeError, "session unavailable")
		return
	}
	// Fresh session ID on privilege change, then rebind the CSRF token.
	if err := h.sessionManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Error("rotate session", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeError, "session unavailable")
		return
	}
	sess.Delete(shared.CSRFSessionKey)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
	}

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.OKMessage(w, http.StatusOK, "Login successful", map[string]any{
		"user":       toUserResponse(user),
		"csrf_token": token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.OKMessage(w, http.StatusOK, "Logout successful", nil)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	current := shared.UserFromContext(r.Context())
	if current == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	user, err := h.users.Get(r.Context(), current.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	current := shared.UserFromContext(r.Context())
	if current == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), current.ID, req.FullName, req.PhoneNumber)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, http.StatusOK, "Profile updated successfully", toUserResponse(user))
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	current := shared.UserFromContext(r.Context())
	if current == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid JSON payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, validationMessage(err))
		return
	}

	if err := h.users.ChangePassword(r.Context(), current.ID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, users.ErrWrongPassword) {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "Current password is incorrect.")
			return
		}
		httpx.RespondError(w, err)
		return
	}

	// Invalidate other sessions for this account by rotating the current one.
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.sessionManager.Rotate(r.Context(), sess); err != nil {
			h.logger.Warn("rotate session after password change", slog.Any("error", err))
		} else {
			sess.Delete(shared.CSRFSessionKey)
			sess.SetUser(strconv.FormatInt(current.ID, 10))
		}
	}

	httpx.OKMessage(w, http.StatusOK, "Password changed successfully", nil)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	current := shared.UserFromContext(r.Context())
	if err := shared.RequireStaff(current); err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toUserResponses(list))
}

// validationMessage flattens the first validator error into a readable string.
func validationMessage(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required."
		case "email":
			return fe.Field() + " must be a valid email address."
		case "min":
			return fe.Field() + " must be at least " + fe.Param() + " characters."
		case "eqfield":
			return "Passwords do not match."
		case "oneof":
			return fe.Field() + " must be one of: " + fe.Param() + "."
		}
		return fe.Field() + " is invalid."
	}
	return "Validation failed."
}
