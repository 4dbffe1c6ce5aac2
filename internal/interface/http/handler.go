package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evigrid/assess-console/internal/domain/assessment"
	"github.com/evigrid/assess-console/internal/domain/auth"
	"github.com/evigrid/assess-console/internal/domain/orders"
	apperrors "github.com/evigrid/assess-console/pkg/errors"
	"github.com/evigrid/assess-console/pkg/metrics"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	assessSvc *assessment.Service
	orderSvc  *orders.Registry
	authSvc   auth.Service
	counters  *metrics.Counters
	logger    *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(assessSvc *assessment.Service, orderSvc *orders.Registry, authSvc auth.Service, counters *metrics.Counters, logger *slog.Logger) *Handler {
	return &Handler{
		assessSvc: assessSvc,
		orderSvc:  orderSvc,
		authSvc:   authSvc,
		counters:  counters,
		logger:    logger.With("component", "http.handler"),
	}
}

// Register creates a new account.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	view, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "auth_failed"
		switch {
		case apperrors.IsCode(err, "invalid_input"):
			status = http.StatusBadRequest
			code = "invalid_request"
		case apperrors.IsCode(err, "email_exists"):
			status = http.StatusConflict
			code = "email_exists"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Login authenticates with email and password.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "auth_failed"
		switch {
		case apperrors.IsCode(err, "invalid_input"):
			status = http.StatusBadRequest
			code = "invalid_request"
		case apperrors.IsCode(err, "invalid_credentials"):
			status = http.StatusUnauthorized
			code = "invalid_credentials"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		status := http.StatusUnauthorized
		code := "invalid_token"
		if !apperrors.IsCode(err, "invalid_token") {
			status = http.StatusInternalServerError
			code = "auth_failed"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Profile returns the authenticated user's account view.
func (h *Handler) Profile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	view, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "auth_failed"
		if apperrors.IsCode(err, "user_not_found") {
			status = http.StatusNotFound
			code = "not_found"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// Logout revokes linked provider tokens for the current user.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), claims.UserID); err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "auth_failed", errMessage(err), err))
		return
	}
	c.Status(http.StatusNoContent)
}

// GoogleLogin starts the Google OAuth flow.
func (h *Handler) GoogleLogin(c *gin.Context) {
	state, verifier, challenge, err := auth.NewOAuthState()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "auth_failed", "failed to create oauth state", err))
		return
	}
	url, err := h.authSvc.GoogleAuthURL(c.Request.Context(), state, challenge)
	if err != nil {
		status := http.StatusInternalServerError
		code := "auth_failed"
		if apperrors.IsCode(err, "auth_not_configured") {
			status = http.StatusServiceUnavailable
			code = "auth_not_configured"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	setOAuthStateCookie(c, state, verifier)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback completes the OAuth flow and issues tokens.
func (h *Handler) GoogleCallback(c *gin.Context) {
	stored, ok := readOAuthStateCookie(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "missing oauth state", nil))
		return
	}
	clearOAuthStateCookie(c)
	if state := c.Query("state"); state == "" || state != stored.State {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "oauth state mismatch", nil))
		return
	}
	resp, err := h.authSvc.GoogleCallback(c.Request.Context(), c.Query("code"), stored.CodeVerifier)
	if err != nil {
		status := http.StatusInternalServerError
		code := "auth_failed"
		switch {
		case apperrors.IsCode(err, "invalid_request"):
			status = http.StatusBadRequest
			code = "invalid_request"
		case apperrors.IsCode(err, "invalid_credentials"), apperrors.IsCode(err, "invalid_token"):
			status = http.StatusUnauthorized
			code = "invalid_credentials"
		case apperrors.IsCode(err, "account_linking_disabled"):
			status = http.StatusConflict
			code = "account_linking_disabled"
		case apperrors.IsCode(err, "oauth_exchange_failed"):
			status = http.StatusBadGateway
			code = "oauth_exchange_failed"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stats reports process-level submission and validation counters.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.counters.Snapshot())
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func trimmedQuery(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}
