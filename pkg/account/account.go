// Package account registers users and checks their credentials.
package account

import (
	"context"
	"strings"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"
	"bookswap/pkg/store"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

type Registration struct {
	Name     string      `json:"name" validate:"required,max=120"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6,max=72"`
	Mobile   string      `json:"mobile" validate:"required,max=40"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=owner seeker"`
}

type ProfileUpdate struct {
	Name   string `json:"name" validate:"omitempty,max=120"`
	Mobile string `json:"mobile" validate:"omitempty,max=40"`
}

type Service struct {
	users    store.UserStore
	validate *validator.Validate
	cost     int
}

func NewService(users store.UserStore) *Service {
	return &Service{users: users, validate: validator.New(), cost: bcrypt.DefaultCost}
}

func (s *Service) Register(ctx context.Context, reg Registration) (*models.User, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.Name = strings.TrimSpace(reg.Name)
	if err := s.validate.Struct(reg); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "invalid registration")
	}
	if reg.Role == "" {
		reg.Role = models.RoleSeeker
	}

	if _, err := s.users.GetUserByEmail(ctx, reg.Email); err == nil {
		return nil, apperr.New(apperr.Conflict, "email %s already in use", reg.Email)
	} else if !apperr.Is(err, apperr.NotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to hash password")
	}

	user := &models.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Mobile:       reg.Mobile,
		Role:         reg.Role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user owning email when password matches. Unknown
// emails and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.New(apperr.Unauthenticated, "invalid email or password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.Unauthenticated, "invalid email or password")
	}
	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUser(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	if err := s.validate.Struct(upd); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "invalid profile")
	}
	if err := s.users.UpdateUserProfile(ctx, userID, strings.TrimSpace(upd.Name), strings.TrimSpace(upd.Mobile)); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, userID)
}
