package domain

import "time"

// Idempotency remembers which submission a client-supplied Idempotency-Key
// produced, so a retried POST returns the original submission instead of
// creating (and processing) a second one. Keys are unique per scope.
type Idempotency struct {
	ID           string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Scope        string    `gorm:"type:VARCHAR(64) NOT NULL;uniqueIndex:ux_scope_key,priority:1"`
	Key          string    `gorm:"column:idem_key;type:VARCHAR(200) NOT NULL;uniqueIndex:ux_scope_key,priority:2"`
	SubmissionID string    `gorm:"type:CHAR(36) NOT NULL"`
	Status       int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt    time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
