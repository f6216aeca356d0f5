package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"yardtrack/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines the interface for user operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.AppUser) error
	GetUserByEmail(ctx context.Context, email string) (*models.AppUser, error)
	HasAdmin(ctx context.Context) (bool, error)
}

type UserRepo struct {
	Store DocumentStore
}

func NewUserRepo(store DocumentStore) *UserRepo {
	return &UserRepo{Store: store}
}

// CreateUser hashes the password and stores the user. Emails are unique.
func (r *UserRepo) CreateUser(ctx context.Context, user *models.AppUser) error {
	if user.Password == "" {
		return errors.New("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashed)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if err := r.Store.Create(ctx, CollectionUsers, user.ID, user); err != nil {
		return err
	}
	user.Version = 1
	return nil
}

// GetUserByEmail returns nil, nil when no user has that email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	var users []models.AppUser
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.Store.Query(ctx, CollectionUsers, []Filter{Eq("email", email)}, nil, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (r *UserRepo) HasAdmin(ctx context.Context) (bool, error) {
	var users []models.AppUser
	if err := r.Store.Query(ctx, CollectionUsers, []Filter{Eq("role", models.RoleAdmin)}, nil, &users); err != nil {
		return false, err
	}
	return len(users) > 0, nil
}
