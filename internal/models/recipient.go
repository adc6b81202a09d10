package models

import (
	"time"
)

type RecipientStatus string

const (
	RecipientActive  RecipientStatus = "active"
	RecipientDeleted RecipientStatus = "deleted"
)

type Recipient struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Name      string          `json:"name" gorm:"size:90;not null;index"`
	Desc      string          `json:"desc" gorm:"size:140"`
	Phone     string          `json:"phone" gorm:"size:18;uniqueIndex;not null"`
	City      string          `json:"city" gorm:"size:40;not null"`
	Birthdate *time.Time      `json:"birthdate" gorm:"type:date"`
	Uni       string          `json:"uni" gorm:"size:140"`
	Avatar    string          `json:"avatar"`
	Status    RecipientStatus `json:"status" gorm:"size:16;not null;default:'active';index"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (r *Recipient) IsActive() bool {
	return r.Status == RecipientActive
}
