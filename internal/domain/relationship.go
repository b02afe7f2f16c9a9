package domain

import "time"

// Relationship status lifecycle: pending -> active | rejected.
// Removal is a row deletion, never a status.
const (
	RelationshipPending  = "pending"
	RelationshipActive   = "active"
	RelationshipRejected = "rejected"
)

// Relationship is a directed controller -> host access grant. The
// (controller_id, host_id) pair is unique at the storage level so
// concurrent identical requests cannot create duplicate edges.
type Relationship struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ControllerID uint      `gorm:"uniqueIndex:idx_relationships_pair;not null" json:"controller_id"`
	HostID       uint      `gorm:"uniqueIndex:idx_relationships_pair;not null" json:"host_id"`
	Status       string    `gorm:"size:16;index;not null;default:pending" json:"status"`
	Message      string    `gorm:"size:512" json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Controller *User `gorm:"foreignKey:ControllerID" json:"-"`
	Host       *User `gorm:"foreignKey:HostID" json:"-"`
}
