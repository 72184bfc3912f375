package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	UserType     string    `json:"userType"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public is the projection returned to clients, so login and dashboard
// responses can never carry the password hash even if User tags change.
type Public struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	UserType  string    `json:"userType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		FullName:  u.FullName,
		UserName:  u.UserName,
		Email:     u.Email,
		UserType:  u.UserType,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required,min=3,max=100"`
	UserName string `json:"userName" binding:"required,alphanum,min=3,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=3,max=50"`
	UserType string `json:"userType" binding:"required,min=3,max=20"`
}

// UpdateRequest is a partial patch: nil fields are left untouched and the
// password is only re-hashed when one is supplied.
type UpdateRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,min=3,max=100"`
	UserName *string `json:"userName" binding:"omitempty,alphanum,min=3,max=100"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=3,max=50"`
	UserType *string `json:"userType" binding:"omitempty,min=3,max=20"`
}

func (r UpdateRequest) Empty() bool {
	return r.FullName == nil && r.UserName == nil && r.Email == nil &&
		r.Password == nil && r.UserType == nil
}
