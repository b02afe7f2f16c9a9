package service

import (
	"errors"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/repository"
)

// IdentityService exchanges a verified external identity assertion
// for the canonical local user record.
type IdentityService struct {
	userRepo repository.UserRepository
}

func NewIdentityService(userRepo repository.UserRepository) *IdentityService {
	return &IdentityService{userRepo: userRepo}
}

// Resolve returns the user bound to the assertion's external id,
// creating one on first sign-in. Display fields are frozen at first
// sign-in; repeat sign-ins return the stored record unchanged.
func (s *IdentityService) Resolve(info *OAuthUserInfo) (*domain.User, error) {
	user, err := s.userRepo.FindByGoogleID(info.ProviderUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	user = &domain.User{
		GoogleID:  info.ProviderUserID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}
