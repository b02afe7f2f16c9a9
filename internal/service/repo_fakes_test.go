package service

import (
	"sort"
	"sync"
	"time"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/repository"
)

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, byID: map[uint]*domain.User{}}
}

func (r *inMemoryUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) FindByGoogleID(googleID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	cp.ID = r.nextID
	r.nextID++
	r.byID[cp.ID] = &cp
	user.ID = cp.ID
	return nil
}

type inMemorySessionRepo struct {
	mu     sync.Mutex
	nextID uint
	byHash map[string]*domain.Session
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{nextID: 1, byHash: map[string]*domain.Session{}}
}

func (r *inMemorySessionRepo) Create(s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.ID = r.nextID
	r.nextID++
	r.byHash[cp.TokenHash] = &cp
	return nil
}

func (r *inMemorySessionRepo) FindActiveByTokenHash(hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) DeleteByTokenHash(hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byHash, hash)
	return nil
}

func (r *inMemorySessionRepo) HasActiveByUserID(userID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byHash {
		if s.UserID == userID && s.ExpiresAt.After(time.Now()) {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemorySessionRepo) DeleteExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.byHash {
		if !s.ExpiresAt.After(time.Now()) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) expireAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byHash {
		s.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

type inMemoryRelationshipRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.Relationship
	users  *inMemoryUserRepo
}

func newInMemoryRelationshipRepo(users *inMemoryUserRepo) *inMemoryRelationshipRepo {
	return &inMemoryRelationshipRepo{nextID: 1, byID: map[uint]*domain.Relationship{}, users: users}
}

func (r *inMemoryRelationshipRepo) Create(rel *domain.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.ControllerID == rel.ControllerID && existing.HostID == rel.HostID {
			return repository.ErrDuplicateRelationship
		}
	}
	cp := *rel
	cp.ID = r.nextID
	cp.CreatedAt = time.Now()
	r.nextID++
	r.byID[cp.ID] = &cp
	rel.ID = cp.ID
	return nil
}

func (r *inMemoryRelationshipRepo) ExistsForPair(controllerID, hostID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rel := range r.byID {
		if rel.ControllerID == controllerID && rel.HostID == hostID {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryRelationshipRepo) list(match func(*domain.Relationship) bool, loadController, loadHost bool) []domain.Relationship {
	var rels []domain.Relationship
	for _, rel := range r.byID {
		if !match(rel) {
			continue
		}
		cp := *rel
		if loadController {
			if u, err := r.users.FindByID(cp.ControllerID); err == nil {
				cp.Controller = u
			}
		}
		if loadHost {
			if u, err := r.users.FindByID(cp.HostID); err == nil {
				cp.Host = u
			}
		}
		rels = append(rels, cp)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].CreatedAt.After(rels[j].CreatedAt) })
	return rels
}

func (r *inMemoryRelationshipRepo) ListActiveByControllerID(controllerID uint) ([]domain.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(rel *domain.Relationship) bool {
		return rel.ControllerID == controllerID && rel.Status == domain.RelationshipActive
	}, false, true), nil
}

func (r *inMemoryRelationshipRepo) ListPendingByHostID(hostID uint) ([]domain.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(rel *domain.Relationship) bool {
		return rel.HostID == hostID && rel.Status == domain.RelationshipPending
	}, true, false), nil
}

func (r *inMemoryRelationshipRepo) ListActiveByHostID(hostID uint) ([]domain.Relationship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(rel *domain.Relationship) bool {
		return rel.HostID == hostID && rel.Status == domain.RelationshipActive
	}, true, false), nil
}

func (r *inMemoryRelationshipRepo) TransitionPendingForHost(id, hostID uint, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.byID[id]
	if !ok || rel.HostID != hostID || rel.Status != domain.RelationshipPending {
		return false, nil
	}
	rel.Status = status
	rel.UpdatedAt = time.Now()
	return true, nil
}

func (r *inMemoryRelationshipRepo) DeleteByIDForController(id, controllerID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.byID[id]
	if !ok || rel.ControllerID != controllerID {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

func (r *inMemoryRelationshipRepo) DeleteByIDForHost(id, hostID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel, ok := r.byID[id]
	if !ok || rel.HostID != hostID {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}
