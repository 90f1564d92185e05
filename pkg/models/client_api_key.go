package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClientAPIKey struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID  string         `gorm:"type:varchar(100);not null;index" json:"client_id"`
	KeyHash   string         `gorm:"type:varchar(255);not null" json:"-"`
	Name      string         `gorm:"type:varchar(100)" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ClientAPIKey) TableName() string {
	return "client_api_keys"
}
