// Package domain contains the versioned blocking rule sets shipped to
// clients. Rules are compiled and imported out of band; the API only reads
// them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformDesktop Platform = "desktop"
)

// BlockRule is one published rule set version for one platform. Newer
// versions supersede older ones; old rows stay for clients that have not
// updated yet.
type BlockRule struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Platform  Platform       `gorm:"type:text;not null;index" json:"platform"`
	Name      string         `gorm:"type:text;not null" json:"name"`
	Domains   datatypes.JSON `gorm:"not null" json:"domains"`
	Version   int            `gorm:"not null" json:"version"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (BlockRule) TableName() string { return "block_rules" }
