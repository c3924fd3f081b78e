// Package auth registers accounts and verifies credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/model"
	"github.com/johndosdos/chatroom/internal/store"
)

var (
	// ErrInvalidCredentials is returned when the email is unknown or the
	// password does not match.
	ErrInvalidCredentials = errors.New("internal/auth: invalid credentials")
	// ErrInvalidInput is returned when a registration field is blank.
	ErrInvalidInput = errors.New("internal/auth: email, username and password are required")
)

func HashPassword(password string) (string, error) {
	hashedPw, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("internal/auth: pw hash failed: %w", err)
	}

	return hashedPw, nil
}

func CheckPasswordHash(password, hash string) (bool, error) {
	isMatch, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("internal/auth: pw and hash comparison failed: %w", err)
	}

	return isMatch, nil
}

func MakeJWT(userID int64, tokenSecret, issuer string, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	})

	return token.SignedString([]byte(tokenSecret))
}

func ValidateJWT(tokenString, tokenSecret string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(tokenSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("internal/auth: failed to parse token: %w", err)
	}

	if !token.Valid {
		return 0, errors.New("internal/auth: token is invalid")
	}

	if claims.Subject == "" {
		return 0, errors.New("internal/auth: subject claim is missing")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("internal/auth: subject is not a user id: %w", err)
	}
	return userID, nil
}

// Users is the slice of store.Store the service needs.
type Users interface {
	CreateUser(ctx context.Context, email, username, passwordHash string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// Service implements registration and login.
type Service struct {
	users  Users
	logger zerolog.Logger
}

func NewService(users Users, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account and returns its id. A taken email yields
// store.ErrDuplicate.
func (s *Service) Register(ctx context.Context, email, username, password string) (int64, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return 0, ErrInvalidInput
	}

	hashedPw, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	user, err := s.users.CreateUser(ctx, email, username, hashedPw)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user signed up")
	return user.ID, nil
}

// Verify checks the credentials and returns the user id.
func (s *Service) Verify(ctx context.Context, email, password string) (int64, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	ok, err := CheckPasswordHash(password, user.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("cannot verify password; hash may be corrupted")
		return 0, err
	}
	if !ok {
		return 0, ErrInvalidCredentials
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user logged in")
	return user.ID, nil
}
