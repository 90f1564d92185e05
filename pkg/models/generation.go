package models

import (
	"time"

	"gorm.io/datatypes"
)

// Generation statuses. A generation only moves forward through these,
// except for the explicit errored -> in_progress retry path.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusErrored    = "errored"
)

// Generation is one versioned attempt to provision a named service.
// Rows are never physically deleted; history is kept per (client, name).
type Generation struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	GenerationID     string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"id"`
	ClientID         string         `gorm:"type:varchar(100);not null;index" json:"client_id"`
	DatacenterID     string         `gorm:"type:varchar(100);not null" json:"datacenter_id"`
	ServiceName      string         `gorm:"type:varchar(255);not null;index" json:"name"`
	ServiceKind      string         `gorm:"type:varchar(100);not null" json:"kind"`
	GenerationNumber int64          `gorm:"not null" json:"version"`
	Status           string         `gorm:"type:varchar(50);not null" json:"status"`
	Options          datatypes.JSON `gorm:"not null" json:"options"`
	Definition       string         `gorm:"type:text" json:"definition,omitempty"`
	Result           datatypes.JSON `json:"result,omitempty"`
	Error            *string        `gorm:"type:text" json:"error,omitempty"`
	Endpoint         *string        `gorm:"type:varchar(255);not null" json:"endpoint"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Generation) TableName() string {
	return "generations"
}

// StreamID is the suffix of the generation id after its last separator,
// used downstream to correlate build log streams.
func (g *Generation) StreamID() string {
	id := g.GenerationID
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			return id[i+1:]
		}
	}
	return id
}
