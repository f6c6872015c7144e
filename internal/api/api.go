package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/recipebox/internal/audit"
	"github.com/wuwenbin0122/recipebox/internal/auth"
	"github.com/wuwenbin0122/recipebox/internal/db"
	"github.com/wuwenbin0122/recipebox/internal/models"
)

// Store is the persistence the handlers depend on; *db.Postgres and
// *db.MemoryStore both satisfy it.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
}

// Handler serves the account and recipe endpoints.
type Handler struct {
	store    Store
	hasher   *auth.Hasher
	sessions *auth.SessionManager
	recorder audit.Recorder
	logger   *zap.SugaredLogger
}

// NewHandler wires a Handler; a nil recorder or logger falls back to a no-op.
func NewHandler(store Store, hasher *auth.Hasher, sessions *auth.SessionManager, recorder audit.Recorder, logger *zap.SugaredLogger) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		store:    store,
		hasher:   hasher,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes mounts the endpoints. The router must already run the
// cookie session middleware.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/signup", h.handleSignup)
	router.POST("/login", h.handleLogin)

	authed := router.Group("")
	authed.Use(h.requireSession)
	authed.GET("/check_session", h.handleCheckSession)
	authed.DELETE("/logout", h.handleLogout)
	authed.GET("/recipes", h.handleListRecipes)
	authed.POST("/recipes", h.handleCreateRecipe)
}

const (
	msgUnauthorized     = "401 Unauthorized"
	msgUsernameUnique   = "Username must be unique"
	msgPasswordRequired = "Password must be present"
	msgPasswordTooLong  = "Password must be at most 72 bytes"
	msgInvalidPayload   = "Invalid request payload"
	msgSignupFailed     = "Signup failed"
	msgListFailed       = "Recipes could not be loaded"
	msgValidation       = "validation errors"
)

type signupRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	ImageURL *string `json:"image_url"`
	Bio      *string `json:"bio"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createRecipeRequest struct {
	Title             string `json:"title"`
	Instructions      string `json:"instructions"`
	MinutesToComplete *int   `json:"minutes_to_complete"`
}

func (h *Handler) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrors(c, http.StatusUnprocessableEntity, msgInvalidPayload)
		return
	}

	// an absent username gets the answer the NOT NULL column would give
	if req.Username == nil {
		writeErrors(c, http.StatusUnprocessableEntity, msgUsernameUnique)
		return
	}
	if req.Password == nil {
		writeErrors(c, http.StatusUnprocessableEntity, msgPasswordRequired)
		return
	}

	user := &models.User{
		Username: *req.Username,
		ImageURL: req.ImageURL,
		Bio:      req.Bio,
	}
	if err := user.SetPasswordFromPlaintext(h.hasher, *req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooLong):
			writeErrors(c, http.StatusUnprocessableEntity, msgPasswordTooLong)
		default:
			h.logger.Warnf("signup: hash password failed: %v", err)
			writeErrors(c, http.StatusUnprocessableEntity, msgSignupFailed)
		}
		return
	}

	ctx := c.Request.Context()
	if err := h.store.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate), errors.Is(err, db.ErrMissingField):
			writeErrors(c, http.StatusUnprocessableEntity, msgUsernameUnique)
		default:
			h.logger.Warnf("signup: create user failed: %v", err)
			writeErrors(c, http.StatusUnprocessableEntity, msgSignupFailed)
		}
		return
	}

	if err := h.sessions.Start(c, user.ID); err != nil {
		h.logger.Warnf("signup: start session for user %d failed: %v", user.ID, err)
		writeErrors(c, http.StatusUnprocessableEntity, msgSignupFailed)
		return
	}

	h.record(c, audit.Event{Kind: audit.KindSignup, UserID: &user.ID, Username: user.Username})
	c.JSON(http.StatusCreated, newUserResponse(user))
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeUnauthorized(c)
		return
	}

	user, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			h.logger.Warnf("login: lookup user failed: %v", err)
		}
		h.hasher.VerifyMissing(req.Password)
		h.record(c, audit.Event{Kind: audit.KindLoginFailed, Username: req.Username})
		writeUnauthorized(c)
		return
	}

	if !user.VerifyPassword(req.Password) {
		h.record(c, audit.Event{Kind: audit.KindLoginFailed, Username: req.Username})
		writeUnauthorized(c)
		return
	}

	if err := h.sessions.Start(c, user.ID); err != nil {
		h.logger.Warnf("login: start session for user %d failed: %v", user.ID, err)
		writeUnauthorized(c)
		return
	}

	h.record(c, audit.Event{Kind: audit.KindLogin, UserID: &user.ID, Username: user.Username})
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *Handler) handleCheckSession(c *gin.Context) {
	userID := currentUserID(c)

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			h.logger.Warnf("check session: lookup user %d failed: %v", userID, err)
			writeUnauthorized(c)
			return
		}
		// the bound user is gone; drop the stale session
		if _, endErr := h.sessions.End(c); endErr != nil {
			h.logger.Warnf("check session: end stale session failed: %v", endErr)
		}
		writeUnauthorized(c)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *Handler) handleLogout(c *gin.Context) {
	userID := currentUserID(c)

	ended, err := h.sessions.End(c)
	if err != nil {
		h.logger.Warnf("logout: end session failed: %v", err)
	}
	if !ended {
		writeUnauthorized(c)
		return
	}

	h.record(c, audit.Event{Kind: audit.KindLogout, UserID: &userID})
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleListRecipes(c *gin.Context) {
	recipes, err := h.store.ListRecipes(c.Request.Context())
	if err != nil {
		h.logger.Warnf("list recipes failed: %v", err)
		writeErrors(c, http.StatusUnprocessableEntity, msgListFailed)
		return
	}

	c.JSON(http.StatusOK, newRecipeResponses(recipes))
}

func (h *Handler) handleCreateRecipe(c *gin.Context) {
	userID := currentUserID(c)

	var req createRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MinutesToComplete == nil {
		writeErrors(c, http.StatusUnprocessableEntity, msgValidation)
		return
	}

	recipe := &models.Recipe{
		Title:             req.Title,
		Instructions:      req.Instructions,
		MinutesToComplete: *req.MinutesToComplete,
		UserID:            &userID,
	}

	if err := h.store.CreateRecipe(c.Request.Context(), recipe); err != nil {
		switch {
		case errors.Is(err, db.ErrForeignKey):
			// the session outlived its user
			if _, endErr := h.sessions.End(c); endErr != nil {
				h.logger.Warnf("create recipe: end stale session failed: %v", endErr)
			}
			writeUnauthorized(c)
		case errors.Is(err, models.ErrInvalidRecipe):
			h.logger.Debugf("create recipe: rejected: %v", err)
			writeErrors(c, http.StatusUnprocessableEntity, msgValidation)
		default:
			h.logger.Warnf("create recipe failed: %v", err)
			writeErrors(c, http.StatusUnprocessableEntity, msgValidation)
		}
		return
	}

	h.record(c, audit.Event{Kind: audit.KindRecipeCreated, UserID: &userID, RecipeID: &recipe.ID})
	c.JSON(http.StatusCreated, newRecipeResponse(*recipe))
}

func (h *Handler) record(c *gin.Context, event audit.Event) {
	event.ClientIP = c.ClientIP()
	if err := h.recorder.Record(c.Request.Context(), event); err != nil {
		h.logger.Warnf("audit: %v", err)
	}
}

func writeErrors(c *gin.Context, status int, messages ...string) {
	c.JSON(status, gin.H{"errors": messages})
}

func writeUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
}
