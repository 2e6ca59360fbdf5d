package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-idm-twofa/pkg/client"
	idmerrors "github.com/tendant/simple-idm-twofa/pkg/errors"
	"github.com/tendant/simple-idm-twofa/pkg/twofa"
)

// Handle serves the two-factor method API for the authenticated user. Admins
// may act on another user by passing user_id as a query parameter.
type Handle struct {
	service    twofa.TwoFactorService
	adminRoles []string
}

type Option func(*Handle)

func WithAdminRoles(roles ...string) Option {
	return func(h *Handle) {
		h.adminRoles = roles
	}
}

func NewHandle(service twofa.TwoFactorService, opts ...Option) *Handle {
	h := &Handle{
		service:    service,
		adminRoles: []string{"admin", "superadmin"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API. It expects client.AuthUserMiddleware upstream.
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/methods", h.ListMethods)
	r.Post("/methods", h.CreateMethod)
	r.Route("/methods/{methodID}", func(r chi.Router) {
		r.Post("/enable", h.EnableMethod)
		r.Post("/disable", h.DisableMethod)
		r.Post("/check", h.CheckToken)
		r.Post("/send", h.SendToken)
	})
	return r
}

// ListMethods handles GET /methods
func (h *Handle) ListMethods(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	methods, err := h.service.ListEnabledMethods(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ListMethodsResponse{Methods: []EnabledMethodResponse{}}
	if err := copier.Copy(&resp.Methods, &methods); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// CreateMethod handles POST /methods
func (h *Handle) CreateMethod(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req CreateMethodRequest
	if !decode(w, r, &req) {
		return
	}

	send := req.shouldSend()
	id, err := h.service.AddMethod(r.Context(), user, twofa.MethodData{Type: req.Type, Value: req.Value}, send)
	if err != nil && id == "" {
		writeError(w, r, err)
		return
	}

	resp := CreateMethodResponse{ID: id, Delivered: send && err == nil}
	if err != nil {
		slog.Warn("Method created but token not delivered", "userId", user.ID, "methodId", id, "error", err)
		resp.DeliveryError = publicMessage(err)
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// EnableMethod handles POST /methods/{methodID}/enable
func (h *Handle) EnableMethod(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req TokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.EnableMethod(r.Context(), user, chi.URLParam(r, "methodID"), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Result: "success"})
}

// DisableMethod handles POST /methods/{methodID}/disable
func (h *Handle) DisableMethod(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req DisableMethodRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	if err := h.service.DisableMethod(r.Context(), user, chi.URLParam(r, "methodID"), req.Remove); err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{Result: "success"})
}

// CheckToken handles POST /methods/{methodID}/check
func (h *Handle) CheckToken(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req TokenRequest
	if !decode(w, r, &req) {
		return
	}

	valid, err := h.service.CheckToken(r.Context(), user, chi.URLParam(r, "methodID"), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, CheckTokenResponse{Valid: valid})
}

// SendToken handles POST /methods/{methodID}/send
func (h *Handle) SendToken(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	delivered, err := h.service.SendToken(r.Context(), user, chi.URLParam(r, "methodID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SendTokenResponse{Delivered: delivered})
}

// targetUser resolves whose methods the request acts on
func (h *Handle) targetUser(w http.ResponseWriter, r *http.Request) (twofa.User, bool) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		slog.Error("Failed to get authenticated user from context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return twofa.User{}, false
	}

	target := r.URL.Query().Get("user_id")
	if target == "" || target == authUser.UserId {
		return twofa.User{ID: authUser.UserId, Username: authUser.ExtraClaims.Username}, true
	}
	if !client.IsAdminWithRoles(authUser, h.adminRoles) {
		slog.Warn("User attempted to manage another user's 2FA without permission",
			"userId", authUser.UserId,
			"targetUserId", target,
			"roles", authUser.ExtraClaims.Roles)
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, ErrorResponse{Error: "forbidden: you can only manage your own 2FA"})
		return twofa.User{}, false
	}
	slog.Info("Admin user managing 2FA for another user", "adminUserId", authUser.UserId, "targetUserId", target)
	return twofa.User{ID: target}, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// decodeOptional is decode for bodies that may be empty
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// writeError maps domain errors onto their HTTP status. Anything without a
// code is logged and reported as a 500 with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := idmerrors.MapErrorCodeToHTTPStatus(idmerrors.GetCode(err))
	if status >= http.StatusInternalServerError {
		slog.Error("Two-factor request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: publicMessage(err), Code: string(idmerrors.GetCode(err))})
}

func publicMessage(err error) string {
	var e *idmerrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
