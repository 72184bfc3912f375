package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/userhub/internal/cache"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

type UserStore interface {
	Create(ctx context.Context, req user.RegisterRequest, passwordHash string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, id string, req user.UpdateRequest, passwordHash *string) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID, email, userType string) (string, error)
}

type UserHandler struct {
	store    UserStore
	jwt      TokenIssuer
	profiles cache.ProfileCache
	sf       singleflight.Group
	log      *slog.Logger
}

func NewUserHandler(store UserStore, jwt TokenIssuer, profiles cache.ProfileCache, log *slog.Logger) *UserHandler {
	return &UserHandler{
		store:    store,
		jwt:      jwt,
		profiles: profiles,
		log:      log,
	}
}

func (h *UserHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		h.log.Error("register: hash password", "err", err)
		RespondInternal(ctx, "Could not register user")
		return
	}

	u, err := h.store.Create(cctx, req, hash)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "User has already registered")
			return
		}

		h.log.Error("register: create user", "err", err)
		RespondInternal(ctx, "Could not register user")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": u.FullName + " has successfully registered",
		"user":    u.Public(),
	})
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for the store lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.store.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.Error("login: get user", "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_password", "Invalid password")
		return
	}

	token, err := h.jwt.Issue(foundUser.ID, foundUser.Email, foundUser.UserType)

	if err != nil {
		h.log.Error("login: issue token", "err", err)
		RespondInternal(ctx, "Could not generate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  foundUser.Public(),
	})
}

func (h *UserHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	var req user.UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Empty() {
		RespondBadRequest(ctx, "At least one field must be supplied", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// only hash when a new password was explicitly supplied
	var newHash *string

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)

		if err != nil {
			h.log.Error("update: hash password", "err", err)
			RespondInternal(ctx, "Could not update user")
			return
		}

		newHash = &hash
	}

	u, err := h.store.Update(cctx, id, req, newHash)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use")
		default:
			// detail stays in the server log, never in the response
			h.log.Error("update: store write", "err", err, "user_id", id)
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	if h.profiles != nil {
		if err := h.profiles.Invalidate(cctx, id); err != nil {
			h.log.Warn("update: invalidate profile cache", "err", err, "user_id", id)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": u.FullName + " has successfully updated",
		"user":    u.Public(),
	})
}

func (h *UserHandler) Dashboard(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	profile, err := h.loadProfile(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.Error("dashboard: load profile", "err", err, "user_id", userID)
		RespondInternal(ctx, "Could not load dashboard")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Accessed user dashboard route and user token verified...",
		"user":    profile,
	})
}

// loadProfile serves the public projection through the cache; concurrent
// misses for the same user collapse into one store lookup.
func (h *UserHandler) loadProfile(ctx context.Context, userID string) (user.Public, error) {
	if h.profiles != nil {
		cached, err := h.profiles.Get(ctx, userID)

		if err != nil {
			h.log.Warn("dashboard: profile cache read", "err", err, "user_id", userID)
		} else if cached != nil {
			return *cached, nil
		}
	}

	v, err, _ := h.sf.Do(userID, func() (interface{}, error) {
		u, err := h.store.GetByID(ctx, userID)

		if err != nil {
			return user.Public{}, err
		}

		p := u.Public()

		if h.profiles != nil {
			if err := h.profiles.Set(ctx, p); err != nil {
				h.log.Warn("dashboard: profile cache write", "err", err, "user_id", userID)
			}
		}

		return p, nil
	})

	if err != nil {
		return user.Public{}, err
	}

	return v.(user.Public), nil
}

// Root and RootDelete keep the original placeholder surface.

func (h *UserHandler) Root(ctx *gin.Context) {
	ctx.String(http.StatusOK, "we are at user route with get request...")
}

func (h *UserHandler) RootDelete(ctx *gin.Context) {
	ctx.String(http.StatusOK, "we are at user route with delete request...")
}
