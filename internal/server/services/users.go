package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const minPasswordLength = 8

// UserService registers portal accounts and logs them in.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	hasher                      CredentialHasher
	logger                      logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration

	// decoy is verified against when the account does not exist, so a
	// missing user costs the same as a wrong password.
	decoy string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher CredentialHasher, cfg *config.Config, logger logging.Logger) (*UserService, error) {
	decoy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &UserService{
		db:                          db,
		repomanager:                 m,
		hasher:                      hasher,
		logger:                      logger.With("module", "users"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		decoy:                       decoy,
	}, nil
}

// Register creates a client account. A taken email yields common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, name, phone, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		Phone:        phone,
		Role:         models.RoleClient,
		PasswordHash: hash,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create user: %v", common.ErrPersistence, err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks the password and returns a signed access token. Unknown
// email and wrong password both yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.decoy)
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, fmt.Errorf("%w: load user: %v", common.ErrPersistence, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Warn(ctx, "login failed", "user_id", user.ID)
		return "", nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", nil, common.ErrorInternal
	}
	return token, user, nil
}
