package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo keeps accounts in process memory. It backs tests and DB-less
// runs with the same semantics as the postgres repo, including the unique
// email guarantee (held under the lock, so it is not merely advisory).
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(ctx context.Context, req user.RegisterRequest, passwordHash string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, req.Email) {
			return user.User{}, user.ErrEmailTaken
		}
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		UserType:     req.UserType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, req user.UpdateRequest, passwordHash *string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, u.Email) {
		for otherID, other := range r.items {
			if otherID != id && strings.EqualFold(other.Email, *req.Email) {
				return user.User{}, user.ErrEmailTaken
			}
		}
		u.Email = *req.Email
	}

	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.UserName != nil {
		u.UserName = *req.UserName
	}
	if req.UserType != nil {
		u.UserType = *req.UserType
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}

	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return u, nil
}
