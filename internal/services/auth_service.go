package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
	"github.com/DrMneff/digital-unlock-oasis/internal/validate"
)

var (
	ErrBadCreds     = errors.New("invalid email or password")
	ErrNotConfirmed = errors.New("email address not confirmed")
	ErrEmailTaken   = errors.New("email already registered")
)

type AuthService struct {
	Users     *repos.UserRepo
	Notify    notify.Dispatcher
	PublicURL string
}

func (s *AuthService) Login(sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if !u.Confirmed {
		return nil, ErrNotConfirmed
	}
	if err := s.Users.BindSession(sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

type SignupInput struct {
	Email    string
	Name     string
	Phone    string
	Password string
}

// Signup registers an unconfirmed customer and sends the confirmation link.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	email, ok := validate.Email(in.Email)
	if !ok {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	name, ok := validate.Name(in.Name)
	if !ok {
		return nil, fmt.Errorf("%w: name", ErrInvalidInput)
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != "" {
		if phone, ok = validate.Phone(phone); !ok {
			return nil, fmt.Errorf("%w: phone", ErrInvalidInput)
		}
	}
	if !validate.Password(in.Password) {
		return nil, fmt.Errorf("%w: password", ErrInvalidInput)
	}
	if _, err := s.Users.ByEmail(email); err == nil {
		return nil, ErrEmailTaken
	}

	h, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         plainText(name),
		Phone:        phone,
		Hash:         string(h),
		Role:         domain.RoleUser,
		ConfirmToken: uuid.NewString(),
	}
	if err := s.Users.Create(u); err != nil {
		return nil, err
	}
	s.Notify.Dispatch(ctx, notify.FnConfirmationEmail, notify.Confirmation{
		Email: u.Email,
		Name:  u.Name,
		Link:  strings.TrimRight(s.PublicURL, "/") + "/confirm?token=" + u.ConfirmToken,
	})
	return &u, nil
}

func (s *AuthService) Confirm(token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidInput
	}
	u, err := s.Users.Confirm(token)
	if err != nil {
		return nil, fmt.Errorf("%w: confirmation token", ErrNotFound)
	}
	return u, nil
}

func (s *AuthService) Logout(sid string) error {
	return s.Users.UnbindSession(sid)
}

func (s *AuthService) CurrentUser(sid string) (*domain.User, error) {
	return s.Users.SessionUser(sid)
}
