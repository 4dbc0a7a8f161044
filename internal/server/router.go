package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oncetrange/memcard/internal/auth"
	"github.com/oncetrange/memcard/internal/cards"
	"github.com/oncetrange/memcard/internal/users"
	"go.uber.org/zap"
)

const (
	accountIDContextKey = "memcard_account_id"
	claimsContextKey    = "memcard_token_claims"

	defaultHeartbeatInterval = 25 * time.Second
	maxCardsBodyBytes        = 16 << 20
)

var (
	errMissingAccountService = errors.New("account service dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingCardRepository = errors.New("card repository dependency required")
)

// AccountService registers and authenticates accounts.
type AccountService interface {
	Register(ctx context.Context, credentials users.Credentials) (users.Account, error)
	Authenticate(ctx context.Context, credentials users.Credentials) (users.Account, error)
}

// TokenManager issues, validates and revokes bearer tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, subject string) (auth.IssuedToken, error)
	ValidateToken(token string) (auth.Claims, error)
	Revoke(claims auth.Claims)
}

// CardRepository stores one collection per account.
type CardRepository interface {
	LoadAll(ctx context.Context, accountID string) ([]cards.Card, error)
	SaveAll(ctx context.Context, accountID string, collection []cards.Card) error
}

type Dependencies struct {
	Accounts AccountService
	Tokens   TokenManager
	Cards    CardRepository
	// Realtime defaults to a fresh dispatcher.
	Realtime          *RealtimeDispatcher
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Clock             func() time.Time
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Cards == nil {
		return nil, errMissingCardRepository
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		cards:     deps.Cards,
		realtime:  realtime,
		heartbeat: heartbeat,
		clock:     clock,
		logger:    logger,
	}

	api := router.Group("/api")
	api.GET("/health", handler.handleHealth)
	api.POST("/register", handler.handleRegister)
	api.POST("/login", handler.handleLogin)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/logout", handler.handleLogout)
	protected.GET("/cards", handler.handleListCards)
	protected.POST("/cards", handler.handleReplaceCards)
	protected.GET("/cards/events", handler.handleCardEvents)

	return router, nil
}

type httpHandler struct {
	accounts  AccountService
	tokens    TokenManager
	cards     CardRepository
	realtime  *RealtimeDispatcher
	heartbeat time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

type loginResponsePayload struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
}

type realtimeEventPayload struct {
	Source    string `json:"source"`
	CardCount int    `json:"card_count,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request users.Credentials
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), request)
	switch {
	case errors.Is(err, users.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
		return
	case err != nil:
		h.logger.Error("failed to register account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"username": account.Username})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request users.Credentials
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if _, err := request.Normalize(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("failed to authenticate account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	issued, err := h.tokens.IssueToken(c.Request.Context(), account.Username)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		Token:     issued.Token,
		Username:  account.Username,
		ExpiresIn: issued.ExpiresIn,
		TokenType: "Bearer",
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if claims, ok := c.Get(claimsContextKey); ok {
		if typed, ok := claims.(auth.Claims); ok {
			h.tokens.Revoke(typed)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged_out"})
}

func (h *httpHandler) handleListCards(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	collection, err := h.cards.LoadAll(c.Request.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load cards", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}
	if collection == nil {
		collection = []cards.Card{}
	}
	c.JSON(http.StatusOK, collection)
}

func (h *httpHandler) handleReplaceCards(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCardsBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cards"})
		return
	}
	collection, err := decodeCollection(body)
	if err != nil {
		h.logger.Info("rejected card collection", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cards"})
		return
	}

	if err := h.cards.SaveAll(c.Request.Context(), accountID, collection); err != nil {
		h.logger.Error("failed to save cards", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	h.realtime.Publish(RealtimeMessage{
		AccountID: accountID,
		EventType: RealtimeEventCardsChanged,
		CardCount: len(collection),
		Timestamp: h.clock().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "cards_saved", "count": len(collection)})
}

func (h *httpHandler) handleCardEvents(c *gin.Context) {
	accountID := c.GetString(accountIDContextKey)
	ctx := c.Request.Context()
	stream, cancel := h.realtime.Subscribe(ctx, accountID)
	defer cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(realtimeEventReady, h.eventPayload(0, h.clock()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, h.eventPayload(message.CardCount, message.Timestamp))
			return true
		case now := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, h.eventPayload(0, now))
			return true
		}
	})
}

func (h *httpHandler) eventPayload(cardCount int, timestamp time.Time) realtimeEventPayload {
	return realtimeEventPayload{
		Source:    realtimeSourceBackend,
		CardCount: cardCount,
		Timestamp: timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := auth.ExtractToken(c.GetHeader("Authorization"))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrRevokedToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(accountIDContextKey, claims.Subject)
	c.Set(claimsContextKey, claims)
	c.Next()
}

// decodeCollection requires a JSON array of valid cards with unique ids.
func decodeCollection(body []byte) ([]cards.Card, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("card collection must be a JSON array")
	}
	var collection []cards.Card
	if err := json.Unmarshal(trimmed, &collection); err != nil {
		return nil, err
	}
	if err := cards.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if collection == nil {
		collection = []cards.Card{}
	}
	return collection, nil
}
