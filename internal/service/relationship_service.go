package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/observability"
	"github.com/hostbridge/hostbridge/internal/repository"
)

var (
	ErrEmailRequired              = errors.New("email is required")
	ErrHostNotFound               = errors.New("host not found")
	ErrDuplicateRelationship      = errors.New("relationship already exists")
	ErrRelationshipNotFound       = errors.New("relationship not found")
	ErrNotFoundOrAlreadyProcessed = errors.New("request not found or already processed")
)

type HostView struct {
	RelationshipID uint   `json:"relationship_id"`
	UserID         uint   `json:"user_id"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	ProfileImage   string `json:"profile_image"`
	OnlineStatus   string `json:"online_status"`
}

type RequestView struct {
	RelationshipID    uint      `json:"relationship_id"`
	DisplayName       string    `json:"display_name"`
	Email             string    `json:"email"`
	ProfileImage      string    `json:"profile_image"`
	InvitationMessage string    `json:"invitation_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type ControllerView struct {
	RelationshipID uint   `json:"relationship_id"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	ProfileImage   string `json:"profile_image"`
	Status         string `json:"status"`
}

// RelationshipService owns the controller -> host access grant
// lifecycle. Every mutation bakes the caller's identity into the
// storage predicate, so ownership checks and mutations are a single
// atomic operation.
type RelationshipService struct {
	relRepo       repository.RelationshipRepository
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	presenceCache PresenceCacheStore
	presenceTTL   time.Duration
}

func NewRelationshipService(
	relRepo repository.RelationshipRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	presenceCache PresenceCacheStore,
	presenceTTL time.Duration,
) *RelationshipService {
	if presenceCache == nil {
		presenceCache = NewNoopPresenceCacheStore()
	}
	return &RelationshipService{
		relRepo:       relRepo,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		presenceCache: presenceCache,
		presenceTTL:   presenceTTL,
	}
}

// RequestAccess creates a pending relationship from the caller to the
// user owning hostEmail. The existence pre-check gives a friendly
// error on the common path; the unique pair index is what actually
// guarantees at most one edge under concurrency.
func (s *RelationshipService) RequestAccess(controllerID uint, hostEmail, message string) (uint, error) {
	hostEmail = strings.TrimSpace(hostEmail)
	if hostEmail == "" {
		return 0, ErrEmailRequired
	}
	host, err := s.userRepo.FindByEmail(hostEmail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordRelationshipMutation("request", "host_not_found")
			return 0, ErrHostNotFound
		}
		return 0, err
	}
	exists, err := s.relRepo.ExistsForPair(controllerID, host.ID)
	if err != nil {
		return 0, err
	}
	if exists {
		observability.RecordRelationshipMutation("request", "duplicate")
		return 0, ErrDuplicateRelationship
	}
	rel := &domain.Relationship{
		ControllerID: controllerID,
		HostID:       host.ID,
		Status:       domain.RelationshipPending,
		Message:      message,
	}
	if err := s.relRepo.Create(rel); err != nil {
		if errors.Is(err, repository.ErrDuplicateRelationship) {
			observability.RecordRelationshipMutation("request", "duplicate")
			return 0, ErrDuplicateRelationship
		}
		observability.RecordRelationshipMutation("request", "error")
		return 0, err
	}
	observability.RecordRelationshipMutation("request", "success")
	return rel.ID, nil
}

// ListHostsFor returns the caller's active hosts, each annotated with
// whether the host currently holds a live session.
func (s *RelationshipService) ListHostsFor(ctx context.Context, controllerID uint) ([]HostView, error) {
	rels, err := s.relRepo.ListActiveByControllerID(controllerID)
	if err != nil {
		return nil, err
	}
	views := make([]HostView, 0, len(rels))
	for _, rel := range rels {
		if rel.Host == nil {
			continue
		}
		online, err := s.hostOnline(ctx, rel.HostID)
		if err != nil {
			return nil, err
		}
		status := "offline"
		if online {
			status = "online"
		}
		views = append(views, HostView{
			RelationshipID: rel.ID,
			UserID:         rel.Host.ID,
			DisplayName:    rel.Host.Name,
			Email:          rel.Host.Email,
			ProfileImage:   rel.Host.AvatarURL,
			OnlineStatus:   status,
		})
	}
	return views, nil
}

func (s *RelationshipService) ListPendingRequestsFor(hostID uint) ([]RequestView, error) {
	rels, err := s.relRepo.ListPendingByHostID(hostID)
	if err != nil {
		return nil, err
	}
	views := make([]RequestView, 0, len(rels))
	for _, rel := range rels {
		if rel.Controller == nil {
			continue
		}
		views = append(views, RequestView{
			RelationshipID:    rel.ID,
			DisplayName:       rel.Controller.Name,
			Email:             rel.Controller.Email,
			ProfileImage:      rel.Controller.AvatarURL,
			InvitationMessage: rel.Message,
			CreatedAt:         rel.CreatedAt,
		})
	}
	return views, nil
}

func (s *RelationshipService) ListControllersFor(hostID uint) ([]ControllerView, error) {
	rels, err := s.relRepo.ListActiveByHostID(hostID)
	if err != nil {
		return nil, err
	}
	views := make([]ControllerView, 0, len(rels))
	for _, rel := range rels {
		if rel.Controller == nil {
			continue
		}
		views = append(views, ControllerView{
			RelationshipID: rel.ID,
			DisplayName:    rel.Controller.Name,
			Email:          rel.Controller.Email,
			ProfileImage:   rel.Controller.AvatarURL,
			Status:         rel.Status,
		})
	}
	return views, nil
}

// Accept transitions pending -> active for the named host. Absent
// rows, foreign rows and already-processed rows are indistinguishable
// to the caller; existence is not leaked.
func (s *RelationshipService) Accept(relationshipID, hostID uint) error {
	return s.transition("accept", relationshipID, hostID, domain.RelationshipActive)
}

func (s *RelationshipService) Reject(relationshipID, hostID uint) error {
	return s.transition("reject", relationshipID, hostID, domain.RelationshipRejected)
}

func (s *RelationshipService) transition(action string, relationshipID, hostID uint, status string) error {
	changed, err := s.relRepo.TransitionPendingForHost(relationshipID, hostID, status)
	if err != nil {
		observability.RecordRelationshipMutation(action, "error")
		return err
	}
	if !changed {
		observability.RecordRelationshipMutation(action, "not_found")
		return ErrNotFoundOrAlreadyProcessed
	}
	observability.RecordRelationshipMutation(action, "success")
	return nil
}

func (s *RelationshipService) RevokeAsController(relationshipID, controllerID uint) error {
	deleted, err := s.relRepo.DeleteByIDForController(relationshipID, controllerID)
	if err != nil {
		observability.RecordRelationshipMutation("revoke_as_controller", "error")
		return err
	}
	if !deleted {
		observability.RecordRelationshipMutation("revoke_as_controller", "not_found")
		return ErrRelationshipNotFound
	}
	observability.RecordRelationshipMutation("revoke_as_controller", "success")
	return nil
}

func (s *RelationshipService) RevokeAsHost(relationshipID, hostID uint) error {
	deleted, err := s.relRepo.DeleteByIDForHost(relationshipID, hostID)
	if err != nil {
		observability.RecordRelationshipMutation("revoke_as_host", "error")
		return err
	}
	if !deleted {
		observability.RecordRelationshipMutation("revoke_as_host", "not_found")
		return ErrRelationshipNotFound
	}
	observability.RecordRelationshipMutation("revoke_as_host", "success")
	return nil
}

func (s *RelationshipService) hostOnline(ctx context.Context, hostID uint) (bool, error) {
	online, found, err := s.presenceCache.Get(ctx, hostID)
	if err == nil && found {
		return online, nil
	}
	// cache errors fall through to the source of truth
	online, err = s.sessionRepo.HasActiveByUserID(hostID)
	if err != nil {
		return false, err
	}
	_ = s.presenceCache.Set(ctx, hostID, online, s.presenceTTL)
	return online, nil
}
