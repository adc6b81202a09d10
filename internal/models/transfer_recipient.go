package models

import (
	"time"
)

// TransferRecipient is the join row between a transfer and one recipient.
type TransferRecipient struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TransferID  uint       `json:"transfer_id" gorm:"not null;uniqueIndex:idx_transfer_recipient_pair"`
	RecipientID uint       `json:"recipient_id" gorm:"not null;uniqueIndex:idx_transfer_recipient_pair;index"`
	Recipient   Recipient  `json:"-" gorm:"foreignKey:RecipientID;constraint:OnDelete:RESTRICT"`
	Comment     string     `json:"comment" gorm:"size:200"`
	HasRead     bool       `json:"has_read" gorm:"not null;default:false"`
	SentAt      *time.Time `json:"sent_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
