package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidtube/internal/auth/credential"
	"vidtube/internal/auth/session"
	"vidtube/internal/identity"
	"vidtube/internal/projection"
)

// Handler wires the HTTP user/auth endpoints to the identity store, the
// session service and the projection store.
type Handler struct {
	log *slog.Logger
	cfg Config

	ids         identity.Store
	sessions    *session.Service
	projections projection.Store
	hasher      identity.PasswordHasher

	audit *AuditRecorder
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithAuditRecorder attaches a best-effort audit trail.
func WithAuditRecorder(a *AuditRecorder) HandlerOption {
	return func(h *Handler) { h.audit = a }
}

// NewHandler constructs the API handler.
func NewHandler(log *slog.Logger, cfg Config, ids identity.Store, sessions *session.Service, projections projection.Store, hasher identity.PasswordHasher, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if ids == nil || sessions == nil || projections == nil {
		return nil, errors.New("api: nil dependency")
	}

	h := &Handler{
		log:         log,
		cfg:         cfg,
		ids:         ids,
		sessions:    sessions,
		projections: projections,
		hasher:      hasher,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the user routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/v1/users/register", h.handleRegister)
	mux.HandleFunc("POST /api/v1/users/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/users/logout", h.handleLogout)
	mux.HandleFunc("POST /api/v1/users/refresh-token", h.handleRefresh)
	mux.HandleFunc("POST /api/v1/users/change-password", h.handleChangePassword)
	mux.HandleFunc("GET /api/v1/users/current-user", h.handleCurrentUser)
	mux.HandleFunc("PATCH /api/v1/users/update-account", h.handleUpdateAccount)
	mux.HandleFunc("GET /api/v1/users/channel/{username}", h.handleChannel)
	mux.HandleFunc("GET /api/v1/users/history", h.handleHistory)
	mux.HandleFunc("POST /api/v1/users/history", h.handleRecordWatch)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	u, err := h.ids.CreateUser(ctx, identity.CreateUserInput{
		FullName:      req.FullName,
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		AvatarURL:     req.AvatarURL,
		CoverImageURL: req.CoverImageURL,
		Now:           time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "username or email already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.Record(ctx, "auth.register", &u.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), map[string]any{
		"username": u.UsernameNorm,
	})
	writeJSON(w, http.StatusCreated, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identifier and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	u, issued, err := h.sessions.Login(ctx, identifier, req.Password, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, session.ErrNotFound):
			// Uniform response so the status does not leak which identifiers exist.
			h.audit.Record(ctx, "auth.login.failed", nil, ip, ua, map[string]any{
				"identifier": identity.NormalizeUsername(identifier),
			})
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		default:
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.Record(ctx, "auth.login.success", &u.ID, ip, ua, nil)
	h.setSessionCookies(w, issued)
	writeJSON(w, http.StatusOK, loginResponse{
		User:    toUserResponse(u),
		Session: toSessionResponse(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	refresh := h.refreshCredential(r, req)
	if refresh == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "refresh token is required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	u, issued, err := h.sessions.Refresh(ctx, refresh, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCredentialReused):
			h.audit.Record(ctx, "auth.refresh.reuse_detected", nil, ip, ua, nil)
			writeError(w, http.StatusUnauthorized, "refresh_reuse_detected", "refresh token reuse detected")
		case errors.Is(err, session.ErrCredentialInvalid):
			writeError(w, http.StatusUnauthorized, "invalid_refresh", "invalid or expired refresh token")
		case errors.Is(err, session.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthenticated", "refresh token is required")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.Record(ctx, "auth.refresh.success", &u.ID, ip, ua, nil)
	h.setSessionCookies(w, issued)
	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(issued)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.sessions.Logout(ctx, claims.Subject); err != nil && !errors.Is(err, session.ErrNotFound) {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.audit.Record(ctx, "auth.logout", &claims.Subject, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), nil)
	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "old_password and new_password are required")
		return
	}

	ctx := r.Context()
	ua, err := h.ids.GetAuthByID(ctx, claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.change_password.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	okPw, err := h.hasher.Verify(req.OldPassword, ua.PasswordHash)
	if err != nil || !okPw {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "old password is incorrect")
		return
	}

	newHash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "new password does not meet policy")
		return
	}
	if err := h.ids.UpdatePasswordHash(ctx, claims.Subject, newHash); err != nil {
		h.log.Error("auth.change_password.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.audit.Record(ctx, "auth.password_changed", &claims.Subject, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.ids.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
			return
		}
		h.log.Error("auth.current_user.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" && strings.TrimSpace(req.Email) == "" &&
		strings.TrimSpace(req.AvatarURL) == "" && strings.TrimSpace(req.CoverImageURL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "no fields to update")
		return
	}

	ctx := r.Context()
	u, err := h.ids.UpdateAccount(ctx, claims.Subject, identity.UpdateAccountInput{
		FullName:      req.FullName,
		Email:         req.Email,
		AvatarURL:     req.AvatarURL,
		CoverImageURL: req.CoverImageURL,
		Now:           time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "email already in use")
		case identity.IsNotFound(err):
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found")
		default:
			h.log.Error("auth.update_account.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.audit.Record(ctx, "auth.account_updated", &claims.Subject, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), nil)
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username is required")
		return
	}

	p, err := h.projections.ChannelProfile(r.Context(), username, claims.Subject)
	if err != nil {
		if errors.Is(err, projection.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "channel not found")
			return
		}
		h.log.Error("auth.channel.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toChannelResponse(p))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	entries, err := h.projections.WatchHistory(r.Context(), claims.Subject, h.cfg.HistoryLimit)
	if err != nil {
		h.log.Error("auth.history.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(entries))
}

func (h *Handler) handleRecordWatch(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req recordWatchRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.VideoID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "video_id is required")
		return
	}

	err := h.projections.RecordWatch(r.Context(), claims.Subject, strings.TrimSpace(req.VideoID), time.Now().UTC())
	if err != nil {
		if errors.Is(err, projection.ErrVideoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		h.log.Error("auth.record_watch.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (credential.Claims, bool) {
	signed := h.accessCredential(r)
	if signed == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
		return credential.Claims{}, false
	}
	claims, err := h.sessions.VerifyAccess(signed, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
		return credential.Claims{}, false
	}
	return claims, true
}
