package httpapi

//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/civicpulse/authcore"
)

const maxBodyBytes = 16 << 10

// Service is the slice of *authcore.Engine the handlers call.
type Service interface {
	Register(ctx context.Context, req authcore.RegisterRequest) (authcore.Receipt, error)
	ConfirmSignup(ctx context.Context, identity, code string) (authcore.Session, error)
	ResendCode(ctx context.Context, identity string, purpose authcore.Purpose) (authcore.Receipt, error)
	Login(ctx context.Context, identity, secret string) (authcore.Session, error)
	RequestLoginCode(ctx context.Context, identity string) (authcore.Receipt, error)
	LoginWithCode(ctx context.Context, identity, code string) (authcore.Session, error)
	ForgotPassword(ctx context.Context, identity string) (authcore.Receipt, error)
	ResetPassword(ctx context.Context, identity, code, newPassword string) error
	Account(ctx context.Context, accountID string) (authcore.Account, error)
	RequestEmailChange(ctx context.Context, accountID, newIdentity string) (authcore.Receipt, error)
	ConfirmEmailChange(ctx context.Context, accountID, newIdentity, code string) (authcore.Account, error)
	UnlockAccount(ctx context.Context, accountID string) (authcore.Account, error)
}

// Handler serves the JSON API over a Service.
type Handler struct {
	svc    Service
	tokens TokenParser
	logger *slog.Logger
}

// New builds the handler. A nil logger discards output.
func New(svc Service, tokens TokenParser, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Router returns a chi router with the full middleware chain applied.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, Recovery(h.logger), AccessLog(h.logger), ClientMetadata)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h.Register(r)
	return r
}

// Register mounts the /v1 routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.handleRegister)
			r.Post("/register/confirm", h.handleConfirmSignup)
			r.Post("/codes/resend", h.handleResend)
			r.Post("/login", h.handleLogin)
			r.Post("/login/code", h.handleRequestLoginCode)
			r.Post("/login/code/confirm", h.handleLoginWithCode)
			r.Post("/password/forgot", h.handleForgotPassword)
			r.Post("/password/reset", h.handleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireBearer(h.tokens))
			r.Get("/account", h.handleAccount)
			r.Post("/account/email", h.handleRequestEmailChange)
			r.Post("/account/email/confirm", h.handleConfirmEmailChange)

			r.With(RequireRole(authcore.RoleAdmin)).
				Post("/admin/accounts/{id}/unlock", h.handleUnlock)
		})
	})
}

type registerRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type identityRequest struct {
	Identity string `json:"identity"`
}

type codeRequest struct {
	Identity string    `json:"identity"`
	Code     codeField `json:"code"`
}

type resendRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type resetRequest struct {
	Identity string    `json:"identity"`
	Code     codeField `json:"code"`
	Password string    `json:"password"`
}

type emailChangeRequest struct {
	NewIdentity string    `json:"newIdentity"`
	Code        codeField `json:"code,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[registerRequest](w, r)
	if !ok {
		return
	}
	receipt, err := h.svc.Register(r.Context(), authcore.RegisterRequest{
		Identity:    req.Identity,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	h.respondReceipt(w, r, receipt, err)
}

func (h *Handler) handleConfirmSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[codeRequest](w, r)
	if !ok {
		return
	}
	session, err := h.svc.ConfirmSignup(r.Context(), req.Identity, string(req.Code))
	h.respond(w, r, http.StatusOK, session, err)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[resendRequest](w, r)
	if !ok {
		return
	}
	purpose, err := authcore.ParsePurpose(req.Purpose)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.svc.ResendCode(r.Context(), req.Identity, purpose)
	h.respondReceipt(w, r, receipt, err)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[loginRequest](w, r)
	if !ok {
		return
	}
	session, err := h.svc.Login(r.Context(), req.Identity, req.Password)
	h.respond(w, r, http.StatusOK, session, err)
}

func (h *Handler) handleRequestLoginCode(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[identityRequest](w, r)
	if !ok {
		return
	}
	receipt, err := h.svc.RequestLoginCode(r.Context(), req.Identity)
	h.respondReceipt(w, r, receipt, err)
}

func (h *Handler) handleLoginWithCode(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[codeRequest](w, r)
	if !ok {
		return
	}
	session, err := h.svc.LoginWithCode(r.Context(), req.Identity, string(req.Code))
	h.respond(w, r, http.StatusOK, session, err)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[identityRequest](w, r)
	if !ok {
		return
	}
	receipt, err := h.svc.ForgotPassword(r.Context(), req.Identity)
	h.respondReceipt(w, r, receipt, err)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[resetRequest](w, r)
	if !ok {
		return
	}
	err := h.svc.ResetPassword(r.Context(), req.Identity, string(req.Code), req.Password)
	h.respond(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	acct, err := h.svc.Account(r.Context(), claims.UID)
	h.respond(w, r, http.StatusOK, acct, err)
}

func (h *Handler) handleRequestEmailChange(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[emailChangeRequest](w, r)
	if !ok {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	receipt, err := h.svc.RequestEmailChange(r.Context(), claims.UID, req.NewIdentity)
	h.respondReceipt(w, r, receipt, err)
}

func (h *Handler) handleConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[emailChangeRequest](w, r)
	if !ok {
		return
	}
	claims, _ := ClaimsFromContext(r.Context())
	acct, err := h.svc.ConfirmEmailChange(r.Context(), claims.UID, req.NewIdentity, string(req.Code))
	h.respond(w, r, http.StatusOK, acct, err)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.UnlockAccount(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, acct, err)
}

func (h *Handler) respondReceipt(w http.ResponseWriter, r *http.Request, receipt authcore.Receipt, err error) {
	h.respond(w, r, http.StatusAccepted, receipt, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, body)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if StatusFor(err) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
	}
	writeError(w, err)
}

var errMalformedBody = errors.New("request body must be a single JSON object")

func decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, ErrorBody{Error: authcore.CodeValidation, Message: "content type must be application/json"})
		return v, false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: authcore.CodeValidation, Message: errMalformedBody.Error()})
		return v, false
	}
	if dec.More() {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: authcore.CodeValidation, Message: errMalformedBody.Error()})
		return v, false
	}
	return v, true
}
