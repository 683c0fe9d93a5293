package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/cryptox"
	"github.com/dmitrijs2005/gophtube/internal/server/auth"
	"github.com/dmitrijs2005/gophtube/internal/server/metrics"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"github.com/dmitrijs2005/gophtube/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionService issues, rotates and revokes token pairs. Exactly one refresh
// token is live per user: issuing a pair replaces the stored one, and a
// refresh token that no longer matches the stored value is rejected as reuse.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	options
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, opts ...Option) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		codec:       codec,
		options:     newOptions("sessions", opts),
	}
}

// IssuePair mints an access and a refresh token for userID and persists the
// refresh token. Tokens are only returned once persisted.
func (s *SessionService) IssuePair(ctx context.Context, userID string) (*TokenPair, error) {
	pair, err := s.issuePair(ctx, userID)
	if err != nil {
		s.metrics.SessionIssueFailed()
		return nil, err
	}
	s.metrics.SessionIssued()
	return pair, nil
}

func (s *SessionService) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	lookupCtx, cancel := s.storeCtx(ctx)
	exists, err := s.repomanager.Users(s.db).Exists(lookupCtx, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}
	if !exists {
		return nil, common.ErrIdentityNotFound
	}

	access, err := s.codec.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}
	refresh, err := s.codec.IssueRefresh(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}

	// The caller is gone; nobody would receive the pair.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}

	setCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repomanager.RefreshTokens(s.db).Set(setCtx, userID, refresh); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Rotate exchanges a live refresh token for a new pair. The presented token
// is verified first, then compared with the stored one, and only then is a
// new pair written.
func (s *SessionService) Rotate(ctx context.Context, presented string) (*TokenPair, error) {
	userID, err := s.codec.Verify(presented, auth.KindRefresh)
	if err != nil {
		s.metrics.Rotation(metrics.RotationInvalid)
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		s.metrics.Rotation(metrics.RotationFailed)
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}
	defer unlock()

	getCtx, cancel := s.storeCtx(ctx)
	stored, err := s.repomanager.RefreshTokens(s.db).Get(getCtx, userID)
	cancel()
	if err != nil {
		s.metrics.Rotation(metrics.RotationFailed)
		return nil, fmt.Errorf("%w: %w", common.ErrIssuanceFailed, err)
	}

	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		s.metrics.Rotation(metrics.RotationReuse)
		s.log.Warn(ctx, "refresh token reuse detected", "user_id", userID, "session_present", stored != "")
		return nil, common.ErrReuseDetected
	}

	pair, err := s.IssuePair(ctx, userID)
	if err != nil {
		s.metrics.Rotation(metrics.RotationFailed)
		return nil, err
	}
	s.metrics.Rotation(metrics.RotationRotated)
	return pair, nil
}

// Revoke drops the user's session. Revoking twice is not an error.
func (s *SessionService) Revoke(ctx context.Context, userID string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repomanager.RefreshTokens(s.db).Clear(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	s.metrics.SessionRevoked()
	return nil
}

// Login checks the password of the user identified by userName or email and
// issues a pair. Unknown users and wrong passwords fail the same way.
func (s *SessionService) Login(ctx context.Context, userName, email, password string) (*models.User, *TokenPair, error) {
	userName = strings.TrimSpace(userName)
	email = strings.TrimSpace(email)
	if userName == "" && email == "" {
		return nil, nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	user, err := s.repomanager.Users(s.db).GetByLogin(lookupCtx, userName, email)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidCredential
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, nil, common.ErrInvalidCredential
	}

	pair, err := s.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Authenticate resolves the user id carried by an access token.
func (s *SessionService) Authenticate(token string) (string, error) {
	return s.codec.Verify(token, auth.KindAccess)
}

// AccessTTL and RefreshTTL expose token lifetimes for cookie expiry.
func (s *SessionService) AccessTTL() time.Duration  { return s.codec.AccessTTL() }
func (s *SessionService) RefreshTTL() time.Duration { return s.codec.RefreshTTL() }
