// Package auth covers account lifecycle for the dating service: password
// hashing, bearer token issuance and the register/login flows over the
// profile store.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/purr4furr/purr-backend/internal/db"
	svcErr "github.com/purr4furr/purr-backend/internal/errors"
	"github.com/purr4furr/purr-backend/internal/repository"
)

const minPasswordLen = 8

// Service implements register and login on top of the profile repository.
type Service struct {
	profiles *repository.ProfileRepository
	tokens   *TokenManager
	log      *slog.Logger
}

func NewService(profiles *repository.ProfileRepository, tokens *TokenManager, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{profiles: profiles, tokens: tokens, log: log}
}

// RegisterInput carries a signup request. Email, password, first name and
// age are mandatory; the rest fill in the profile card.
type RegisterInput struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	DisplayName    string   `json:"display_name"`
	Age            int      `json:"age"`
	Gender         string   `json:"gender"`
	Sexuality      string   `json:"sexuality"`
	Fursona        string   `json:"fursona"`
	Pronouns       string   `json:"pronouns"`
	Bio            string   `json:"bio"`
	Interests      []string `json:"interests"`
	ProfilePicture string   `json:"profile_picture"`
	LocationCity   string   `json:"location_city"`
	LocationState  string   `json:"location_state"`
}

// Credentials is what a successful register or login hands back.
type Credentials struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Register creates an account and returns a fresh token. The profile is
// marked completed only when the card carries enough to be shown in feeds.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Credentials, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, svcErr.Invalid("a valid email is required")
	case len(in.Password) < minPasswordLen:
		return nil, svcErr.Invalid("password must be at least 8 characters")
	case strings.TrimSpace(in.FirstName) == "":
		return nil, svcErr.Invalid("first name is required")
	case in.Age < 18:
		return nil, svcErr.Invalid("you must be 18 or older")
	}

	if _, err := s.profiles.GetByEmail(ctx, email); err == nil {
		return nil, svcErr.Invalid("email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	p := &db.Profile{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		DisplayName:    strings.TrimSpace(in.DisplayName),
		Age:            in.Age,
		Gender:         in.Gender,
		Sexuality:      in.Sexuality,
		Fursona:        in.Fursona,
		Pronouns:       in.Pronouns,
		Bio:            in.Bio,
		Interests:      in.Interests,
		ProfilePicture: in.ProfilePicture,
		LocationCity:   in.LocationCity,
		LocationState:  in.LocationState,
	}
	if p.DisplayName == "" {
		p.DisplayName = p.FirstName
	}
	p.ProfileCompleted = p.Bio != "" && p.ProfilePicture != ""

	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("account registered", "user", p.ID)

	token, err := s.tokens.Issue(p.ID)
	if err != nil {
		return nil, err
	}
	return &Credentials{UserID: p.ID, Token: token}, nil
}

// Login checks the password and returns a fresh token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.ErrUnauthenticated
		}
		return nil, err
	}
	if !CheckPassword(p.PasswordHash, password) {
		return nil, svcErr.ErrUnauthenticated
	}

	token, err := s.tokens.Issue(p.ID)
	if err != nil {
		return nil, err
	}
	return &Credentials{UserID: p.ID, Token: token}, nil
}
