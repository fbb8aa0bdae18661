package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Name          string `gorm:"not null"`
	Email         string `gorm:"unique;not null"`
	PasswordHash  string `gorm:"not null"`
	Role          string `gorm:"default:user"` // user, admin
	TotalAttempts int    `gorm:"default:0"`
}
