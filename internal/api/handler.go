package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/venalabs/authbridge/internal/oauth"
	"github.com/venalabs/authbridge/internal/token"
	"github.com/venalabs/authbridge/pkg/observability"
)

// CodeExchanger redeems an authorization code for an identity token and
// builds the provider consent URL that starts the flow.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// HTTPHandler exposes the auth service over HTTP.
type HTTPHandler struct {
	svc      *token.Service
	codes    CodeExchanger
	states   oauth.StateStore
	metrics  *observability.Metrics
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler. codes and states may be nil
// when the authorization-code path is not configured.
func NewHTTPHandler(svc *token.Service, codes CodeExchanger, states oauth.StateStore, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:      svc,
		codes:    codes,
		states:   states,
		logger:   logger,
		validate: validator.New(),
	}
}

// WithMetrics attaches exchange-outcome counters to the handler.
func (h *HTTPHandler) WithMetrics(m *observability.Metrics) *HTTPHandler {
	h.metrics = m
	return h
}

func (h *HTTPHandler) countExchange(outcome string) {
	if h.metrics != nil {
		h.metrics.ExchangesTotal.WithLabelValues(outcome).Inc()
	}
}

// RegisterRoutes registers the authentication routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/google", h.exchangeGoogleToken)
		authGroup.GET("/google/start", h.startGoogleCode)
		authGroup.POST("/google/code", h.exchangeGoogleCode)
		authGroup.POST("/anonymous", h.anonymous)
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.GET("/me", h.RequireSession(), h.me)
	}

	router.GET("/.well-known/jwks.json", h.jwks)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// exchangeGoogleToken implements POST /api/auth/google. The body must
// carry idToken as a JSON string; any other shape is a 400. Everything
// downstream, malformed tokens included, is reported as a 500 with the
// cause in details.
func (h *HTTPHandler) exchangeGoogleToken(c *gin.Context) {
	var body struct {
		IDToken interface{} `json:"idToken"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID token"})
		return
	}
	idToken, ok := body.IDToken.(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID token"})
		return
	}

	cred, err := h.svc.Exchange(c.Request.Context(), idToken)
	if err != nil {
		h.countExchange("failure")
		h.logger.Error("token exchange failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"details": err.Error(),
		})
		return
	}

	h.countExchange("success")
	c.JSON(http.StatusOK, gin.H{"customToken": cred.Token})
}

// startGoogleCode begins the native-bridge flow: it issues a one-time
// state and returns the provider consent URL bound to it. The host
// shell opens the URL and later posts the resulting {code, state} to
// the code endpoint.
func (h *HTTPHandler) startGoogleCode(c *gin.Context) {
	if h.codes == nil || h.states == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "authorization-code flow not configured"})
		return
	}

	stateParam, err := h.states.Issue(c.Request.Context())
	if err != nil {
		h.logger.Error("state issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":   h.codes.AuthCodeURL(stateParam),
		"state": stateParam,
	})
}

// exchangeGoogleCode completes the native-bridge flow: the host shell
// delivered {code, state}; the server validates the one-time state,
// redeems the code and runs the normal exchange.
func (h *HTTPHandler) exchangeGoogleCode(c *gin.Context) {
	if h.codes == nil || h.states == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "authorization-code flow not configured"})
		return
	}

	var req struct {
		Code  string `json:"code" binding:"required"`
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.states.Consume(c.Request.Context(), req.State); err != nil {
		h.logger.Warn("state validation failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}

	idToken, err := h.codes.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		h.countExchange("failure")
		h.logger.Error("authorization code exchange failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"details": err.Error(),
		})
		return
	}

	cred, err := h.svc.Exchange(c.Request.Context(), idToken)
	if err != nil {
		h.countExchange("failure")
		h.logger.Error("token exchange failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"details": err.Error(),
		})
		return
	}

	h.countExchange("success")
	c.JSON(http.StatusOK, gin.H{"customToken": cred.Token})
}

func (h *HTTPHandler) anonymous(c *gin.Context) {
	cred, user, err := h.svc.SignInAnonymously(c.Request.Context())
	if err != nil {
		h.logger.Error("anonymous sign-in failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customToken": cred.Token, "user": user})
}

// SignupRequest is the email/password registration payload.
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

func (h *HTTPHandler) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, user, err := h.svc.RegisterPassword(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		var terr *token.Error
		if errors.As(err, &terr) {
			c.JSON(http.StatusConflict, gin.H{"error": terr.Message})
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"customToken": cred.Token, "user": user})
}

// LoginRequest is the email/password sign-in payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *HTTPHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, user, err := h.svc.LoginPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, token.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"customToken": cred.Token, "user": user})
}

func (h *HTTPHandler) me(c *gin.Context) {
	claims := SessionFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *HTTPHandler) jwks(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Signer().JWKS())
}
