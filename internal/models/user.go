package models

import (
	"time"
)

type User struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Password    string    `json:"-" gorm:"not null"`
	IsStaff     bool      `json:"is_staff" gorm:"not null;default:false"`
	IsSuperuser bool      `json:"is_superuser" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsModerator reports whether the user may moderate transfers and manage
// the recipient directory. Admins are moderators too.
func (u *User) IsModerator() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}
