package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subseaops/divelog/internal/auth"
	"github.com/subseaops/divelog/internal/divers"
	"github.com/subseaops/divelog/internal/dives"
	"github.com/subseaops/divelog/internal/jobs"
	"github.com/subseaops/divelog/internal/reports"
)

const (
	userIDContextKey    = "divelog_user_id"
	userEmailContextKey = "divelog_user_email"
)

var (
	errMissingAccounts   = errors.New("account service dependency required")
	errMissingTokens     = errors.New("token validator dependency required")
	errMissingJobs       = errors.New("job service dependency required")
	errMissingDivers     = errors.New("diver service dependency required")
	errMissingSessions   = errors.New("session manager dependency required")
	errMissingHistory    = errors.New("history gateway dependency required")
	errMissingReports    = errors.New("report service dependency required")
	errInvalidAuthHeader = errors.New("authorization header missing or invalid")
)

// TokenValidator validates bearer tokens on protected routes.
type TokenValidator interface {
	ValidateToken(token string) (auth.Claims, error)
}

// HistoryGateway exposes the job history listing and the cascading dive
// delete.
type HistoryGateway interface {
	ListJobHistory(ctx context.Context, jobID string) ([]dives.HistoryEntry, error)
	DeleteDive(ctx context.Context, diveID string) error
}

// Dependencies wires the HTTP surface to the domain services.
type Dependencies struct {
	Accounts   *auth.Service
	Tokens     TokenValidator
	Jobs       *jobs.Service
	Divers     *divers.Service
	Sessions   *dives.Manager
	History    HistoryGateway
	Reports    *reports.Service
	Dispatcher *RealtimeDispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewHTTPHandler assembles the gin router for the dive log API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Tokens == nil {
		return nil, errMissingTokens
	}
	if deps.Jobs == nil {
		return nil, errMissingJobs
	}
	if deps.Divers == nil {
		return nil, errMissingDivers
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.History == nil {
		return nil, errMissingHistory
	}
	if deps.Reports == nil {
		return nil, errMissingReports
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewRealtimeDispatcher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts:   deps.Accounts,
		tokens:     deps.Tokens,
		jobs:       deps.Jobs,
		divers:     deps.Divers,
		sessions:   deps.Sessions,
		history:    deps.History,
		reports:    deps.Reports,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      clock,
	}

	router.POST("/auth/signup", handler.handleSignUp)
	router.POST("/auth/signin", handler.handleSignIn)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/password", handler.handleUpdatePassword)

	protected.GET("/jobs", handler.handleListJobs)
	protected.GET("/jobs/active", handler.handleListActiveJobs)
	protected.POST("/jobs", handler.handleCreateJob)
	protected.PUT("/jobs/:id", handler.handleUpdateJob)
	protected.GET("/jobs/:id/history", handler.handleJobHistory)

	protected.GET("/divers", handler.handleListDivers)
	protected.POST("/divers", handler.handleCreateDiver)
	protected.PUT("/divers/:id", handler.handleUpdateDiver)

	protected.GET("/ranks", handler.handleListRanks)
	protected.POST("/ranks", handler.handleAddRank)
	protected.DELETE("/ranks/:id", handler.handleDeleteRank)

	protected.GET("/dives/session", handler.handleSessionState)
	protected.POST("/dives/session/start", handler.handleStartSession)
	protected.POST("/dives/session/events", handler.handleLogEvent)
	protected.PUT("/dives/session/depth", handler.handleSetDepth)
	protected.POST("/dives/session/stop", handler.handleStopSession)
	protected.POST("/dives/session/complete", handler.handleCompleteManually)
	protected.DELETE("/dives/:id", handler.handleDeleteDive)

	protected.GET("/reports/dives/:id", handler.handleDiveReport)
	protected.POST("/reports/dives/:id/events", handler.handleAddReportEvent)
	protected.PUT("/reports/events/:id", handler.handleUpdateReportEvent)
	protected.DELETE("/reports/events/:id", handler.handleDeleteReportEvent)
	protected.GET("/reports/daily", handler.handleDailyReport)

	protected.GET("/dashboard", handler.handleDashboard)
	protected.GET("/events", handler.handleEventStream)

	return router, nil
}

type httpHandler struct {
	accounts   *auth.Service
	tokens     TokenValidator
	jobs       *jobs.Service
	divers     *divers.Service
	sessions   *dives.Manager
	history    HistoryGateway
	reports    *reports.Service
	dispatcher *RealtimeDispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthHeader.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthHeader.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Set(userEmailContextKey, claims.Email)
	c.Next()
}

type credentialsRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request credentialsRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	credentials, err := h.accounts.SignUp(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_email"})
		case errors.Is(err, auth.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "weak_password"})
		case errors.Is(err, auth.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		default:
			h.logger.Error("sign up failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, toCredentialsPayload(credentials))
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request credentialsRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	credentials, err := h.accounts.SignIn(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_email"})
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		default:
			h.logger.Error("sign in failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signin_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, toCredentialsPayload(credentials))
}

type updatePasswordRequestPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *httpHandler) handleUpdatePassword(c *gin.Context) {
	var request updatePasswordRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.accounts.UpdatePassword(c.Request.Context(), c.GetString(userIDContextKey), request.CurrentPassword, request.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "weak_password"})
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		default:
			h.logger.Error("password update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "password_update_failed"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

func toCredentialsPayload(credentials auth.Credentials) credentialsResponsePayload {
	return credentialsResponsePayload{
		AccessToken: credentials.AccessToken,
		ExpiresIn:   credentials.ExpiresIn,
		TokenType:   "Bearer",
		AccountID:   credentials.AccountID,
		Email:       credentials.Email,
	}
}
