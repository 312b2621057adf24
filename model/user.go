package model

import "time"

type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:text;not null"`
	Email    string `json:"email" gorm:"unique;not null;size:255"`
	Username string `json:"username" gorm:"unique;not null;size:30"`
	Password string `json:"-" gorm:"not null"`
	IsAdmin  bool   `json:"is_admin" gorm:"default:false;not null"`

	// Credits is the spendable balance. Admin accounts bypass the balance
	// check entirely and are never decremented.
	Credits          float64    `json:"credits" gorm:"default:0;not null"`
	TotalGenerations int        `json:"total_generations" gorm:"default:0;not null"`
	LastGenerationAt *time.Time `json:"last_generation_at,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null"`
}
