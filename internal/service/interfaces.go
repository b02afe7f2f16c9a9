package service

import (
	"context"
	"time"

	"github.com/hostbridge/hostbridge/internal/domain"
)

type AuthServiceInterface interface {
	GoogleLoginURL(state string) string
	LoginWithGoogleCode(ctx context.Context, code string) (*domain.User, string, error)
	Issue(user *domain.User) (string, time.Time, error)
	Verify(ctx context.Context, raw string) (*domain.User, error)
	Revoke(token string) error
}

type RelationshipServiceInterface interface {
	RequestAccess(controllerID uint, hostEmail, message string) (uint, error)
	ListHostsFor(ctx context.Context, controllerID uint) ([]HostView, error)
	ListPendingRequestsFor(hostID uint) ([]RequestView, error)
	ListControllersFor(hostID uint) ([]ControllerView, error)
	Accept(relationshipID, hostID uint) error
	Reject(relationshipID, hostID uint) error
	RevokeAsController(relationshipID, controllerID uint) error
	RevokeAsHost(relationshipID, hostID uint) error
}
