package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Call record statuses. Status is free text in storage; these are the
// values the server and its clients use.
const (
	CallStatusInitiated = "initiated"
	CallStatusCompleted = "completed"
	CallStatusRejected  = "rejected"
	CallStatusMissed    = "missed"
)

// CallRecord describes one call attempt between two identities. Records
// are created when a call-request is routed and are never deleted.
type CallRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CallerID  string    `gorm:"type:varchar(100);not null;index" json:"callerId"`
	CalleeID  string    `gorm:"type:varchar(100);not null;index" json:"calleeId"`
	Duration  int       `gorm:"not null;default:0" json:"duration"`
	Status    string    `gorm:"type:varchar(32);not null" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushSubscription is a Web Push endpoint registered by a user so the
// server can notify them about calls arriving while they are offline.
type PushSubscription struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(100);not null;index" json:"user_id"`
	Endpoint  string    `gorm:"type:text;not null" json:"endpoint"`
	P256DH    string    `gorm:"type:text;not null" json:"p256dh"`
	Auth      string    `gorm:"type:text;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
