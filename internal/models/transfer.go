package models

import (
	"time"
)

type TransferStatus string

const (
	TransferDraft     TransferStatus = "draft"
	TransferDeleted   TransferStatus = "deleted"
	TransferFormed    TransferStatus = "formed"
	TransferCompleted TransferStatus = "completed"
	TransferRejected  TransferStatus = "rejected"
)

// Valid reports whether s is one of the known lifecycle states.
func (s TransferStatus) Valid() bool {
	switch s {
	case TransferDraft, TransferDeleted, TransferFormed, TransferCompleted, TransferRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s TransferStatus) Terminal() bool {
	return s == TransferDeleted || s == TransferCompleted || s == TransferRejected
}

// Transfer is the aggregate root of the lifecycle engine. At most one draft
// per sender exists at a time; the partial unique index on sender_id enforces
// that at the storage level.
type Transfer struct {
	ID          uint                `json:"id" gorm:"primaryKey"`
	Status      TransferStatus      `json:"status" gorm:"size:16;not null;index"`
	CreatedAt   time.Time           `json:"created_at" gorm:"autoCreateTime"`
	FormedAt    *time.Time          `json:"formed_at"`
	CompletedAt *time.Time          `json:"completed_at"`
	DeletedAt   *time.Time          `json:"deleted_at"`
	SenderID    uint                `json:"sender_id" gorm:"not null;index;uniqueIndex:idx_transfers_one_draft_per_sender,where:status = 'draft'"`
	Sender      User                `json:"-" gorm:"foreignKey:SenderID;constraint:OnDelete:RESTRICT"`
	ModeratorID *uint               `json:"moderator_id"`
	Moderator   *User               `json:"-" gorm:"foreignKey:ModeratorID;constraint:OnDelete:SET NULL"`
	File        string              `json:"file"`
	FileName    string              `json:"file_name"`
	FileSize    int64               `json:"file_size"`
	Recipients  []TransferRecipient `json:"-" gorm:"foreignKey:TransferID;constraint:OnDelete:CASCADE"`
}
