package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/observability"
	"github.com/hostbridge/hostbridge/internal/repository"
	"github.com/hostbridge/hostbridge/internal/security"
)

var (
	ErrMissingCredential = errors.New("no token provided")
	ErrInvalidCredential = errors.New("invalid token")
	ErrExpiredOrRevoked  = errors.New("invalid or expired session")
	ErrEmailNotVerified  = errors.New("google email not verified")
)

// AuthService is the sole arbiter of caller authentication. A session
// credential is two proofs: a signed token and a persisted session
// row; verification requires both, which is what makes revocation
// instantaneous despite the signed token looking stateless.
type AuthService struct {
	jwtMgr      *security.JWTManager
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	identity    *IdentityService
	provider    OAuthProvider
	pepper      string
	sessionTTL  time.Duration
}

func NewAuthService(
	jwtMgr *security.JWTManager,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	identity *IdentityService,
	provider OAuthProvider,
	pepper string,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		jwtMgr:      jwtMgr,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		identity:    identity,
		provider:    provider,
		pepper:      pepper,
		sessionTTL:  sessionTTL,
	}
}

func (s *AuthService) GoogleLoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// LoginWithGoogleCode completes the provider handshake: code
// exchange, userinfo fetch, identity resolution, session issue.
func (s *AuthService) LoginWithGoogleCode(ctx context.Context, code string) (*domain.User, string, error) {
	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		observability.RecordAuthLogin("google", "exchange_error")
		return nil, "", err
	}
	info, err := s.provider.FetchUserInfo(ctx, tok)
	if err != nil {
		observability.RecordAuthLogin("google", "userinfo_error")
		return nil, "", err
	}
	if !info.EmailVerified {
		observability.RecordAuthLogin("google", "email_not_verified")
		return nil, "", ErrEmailNotVerified
	}
	user, err := s.identity.Resolve(info)
	if err != nil {
		observability.RecordAuthLogin("google", "identity_error")
		return nil, "", err
	}
	token, _, err := s.Issue(user)
	if err != nil {
		observability.RecordAuthLogin("google", "issue_error")
		return nil, "", err
	}
	observability.RecordAuthLogin("google", "success")
	return user, token, nil
}

// Issue mints a session credential with a fixed lifetime and persists
// the matching session row.
func (s *AuthService) Issue(user *domain.User) (string, time.Time, error) {
	token, err := s.jwtMgr.SignSessionToken(user.ID, user.Email, s.sessionTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(s.sessionTTL)
	session := &domain.Session{
		UserID:    user.ID,
		TokenHash: security.HashSessionToken(token, s.pepper),
		ExpiresAt: expiresAt,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks both proofs. A valid signature without a live session
// row means the session was revoked or expired; the two cases are
// deliberately indistinguishable to the caller.
func (s *AuthService) Verify(ctx context.Context, raw string) (*domain.User, error) {
	if raw == "" {
		observability.RecordSessionVerification(ctx, "missing")
		return nil, ErrMissingCredential
	}
	claims, err := s.jwtMgr.ParseSessionToken(raw)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			observability.RecordSessionVerification(ctx, "expired")
			return nil, ErrExpiredOrRevoked
		}
		observability.RecordSessionVerification(ctx, "invalid")
		return nil, ErrInvalidCredential
	}
	hash := security.HashSessionToken(raw, s.pepper)
	session, err := s.sessionRepo.FindActiveByTokenHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionVerification(ctx, "revoked")
			return nil, ErrExpiredOrRevoked
		}
		observability.RecordSessionVerification(ctx, "error")
		return nil, err
	}
	id64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uint(id64) != session.UserID {
		observability.RecordSessionVerification(ctx, "invalid")
		return nil, ErrInvalidCredential
	}
	user, err := s.userRepo.FindByID(session.UserID)
	if err != nil {
		observability.RecordSessionVerification(ctx, "error")
		return nil, err
	}
	observability.RecordSessionVerification(ctx, "valid")
	return user, nil
}

// Revoke deletes the session row for the token. Idempotent: revoking
// an absent, expired, or garbage token succeeds silently.
func (s *AuthService) Revoke(token string) error {
	if token == "" {
		observability.RecordAuthLogout("noop")
		return nil
	}
	hash := security.HashSessionToken(token, s.pepper)
	if err := s.sessionRepo.DeleteByTokenHash(hash); err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}
