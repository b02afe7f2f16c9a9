package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/hostbridge/hostbridge/internal/domain"
	"github.com/hostbridge/hostbridge/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrRelationshipNotFound  = errors.New("relationship not found")
	ErrDuplicateRelationship = errors.New("relationship already exists")
)

type RelationshipRepository interface {
	Create(rel *domain.Relationship) error
	ExistsForPair(controllerID, hostID uint) (bool, error)
	ListActiveByControllerID(controllerID uint) ([]domain.Relationship, error)
	ListPendingByHostID(hostID uint) ([]domain.Relationship, error)
	ListActiveByHostID(hostID uint) ([]domain.Relationship, error)
	TransitionPendingForHost(id, hostID uint, status string) (bool, error)
	DeleteByIDForController(id, controllerID uint) (bool, error)
	DeleteByIDForHost(id, hostID uint) (bool, error)
}

type GormRelationshipRepository struct{ db *gorm.DB }

func NewRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &GormRelationshipRepository{db: db}
}

// Create relies on the unique (controller_id, host_id) index to close
// the duplicate race between concurrent identical requests; the
// violation is surfaced as ErrDuplicateRelationship.
func (r *GormRelationshipRepository) Create(rel *domain.Relationship) error {
	err := r.db.Create(rel).Error
	if err != nil {
		if isUniqueViolation(err) {
			observability.RecordRepositoryOperation(context.Background(), "relationship", "create", "duplicate")
			return ErrDuplicateRelationship
		}
		observability.RecordRepositoryOperation(context.Background(), "relationship", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "create", "success")
	return nil
}

func (r *GormRelationshipRepository) ExistsForPair(controllerID, hostID uint) (bool, error) {
	var count int64
	err := r.db.Model(&domain.Relationship{}).
		Where("controller_id = ? AND host_id = ?", controllerID, hostID).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "exists_for_pair", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "exists_for_pair", "success")
	return count > 0, nil
}

func (r *GormRelationshipRepository) ListActiveByControllerID(controllerID uint) ([]domain.Relationship, error) {
	var rels []domain.Relationship
	err := r.db.Preload("Host").
		Where("controller_id = ? AND status = ?", controllerID, domain.RelationshipActive).
		Order("created_at DESC").
		Find(&rels).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "list_active_by_controller", "error")
		return rels, err
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "list_active_by_controller", "success")
	return rels, nil
}

func (r *GormRelationshipRepository) ListPendingByHostID(hostID uint) ([]domain.Relationship, error) {
	var rels []domain.Relationship
	err := r.db.Preload("Controller").
		Where("host_id = ? AND status = ?", hostID, domain.RelationshipPending).
		Order("created_at DESC").
		Find(&rels).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "list_pending_by_host", "error")
		return rels, err
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "list_pending_by_host", "success")
	return rels, nil
}

func (r *GormRelationshipRepository) ListActiveByHostID(hostID uint) ([]domain.Relationship, error) {
	var rels []domain.Relationship
	err := r.db.Preload("Controller").
		Where("host_id = ? AND status = ?", hostID, domain.RelationshipActive).
		Order("created_at DESC").
		Find(&rels).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "list_active_by_host", "error")
		return rels, err
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "list_active_by_host", "success")
	return rels, nil
}

// TransitionPendingForHost performs the ownership check and the status
// transition in one conditional update, so only one concurrent caller
// can observe the pending row. Returns false when no row matched:
// absent id, wrong host, or a status other than pending.
func (r *GormRelationshipRepository) TransitionPendingForHost(id, hostID uint, status string) (bool, error) {
	res := r.db.Model(&domain.Relationship{}).
		Where("id = ? AND host_id = ? AND status = ?", id, hostID, domain.RelationshipPending).
		Update("status", status)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "transition_pending_for_host", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "transition_pending_for_host", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "transition_pending_for_host", "success")
	return true, nil
}

func (r *GormRelationshipRepository) DeleteByIDForController(id, controllerID uint) (bool, error) {
	res := r.db.Where("id = ? AND controller_id = ?", id, controllerID).Delete(&domain.Relationship{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "delete_for_controller", "error")
		return false, res.Error
	}
	outcome := "success"
	if res.RowsAffected == 0 {
		outcome = "not_found"
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "delete_for_controller", outcome)
	return res.RowsAffected > 0, nil
}

func (r *GormRelationshipRepository) DeleteByIDForHost(id, hostID uint) (bool, error) {
	res := r.db.Where("id = ? AND host_id = ?", id, hostID).Delete(&domain.Relationship{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "relationship", "delete_for_host", "error")
		return false, res.Error
	}
	outcome := "success"
	if res.RowsAffected == 0 {
		outcome = "not_found"
	}
	observability.RecordRepositoryOperation(context.Background(), "relationship", "delete_for_host", outcome)
	return res.RowsAffected > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique failed")
}
