package models

import "gorm.io/gorm"

// Host owns schedules, event types and the bookings made against them.
type Host struct {
	gorm.Model
	Username     string `gorm:"column:username;size:64;not null;uniqueIndex" json:"username"`
	FullName     string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255;not null" json:"-"`
	TimeZone     string `gorm:"column:timezone;size:64;not null;default:UTC" json:"timezone"`
}

func (Host) TableName() string {
	return "hosts"
}
