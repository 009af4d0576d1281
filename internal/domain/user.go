package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID                int64      `json:"id" gorm:"primaryKey"`
	Email             string     `json:"email" gorm:"uniqueIndex;not null" validate:"required,email"`
	PasswordHash      string     `json:"-" gorm:"not null"`
	Role              UserRole   `json:"role" gorm:"size:16;not null;default:user"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	IsOnline          bool       `json:"is_online" gorm:"not null;default:false"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
	PreferredLanguage string     `json:"preferred_language,omitempty" gorm:"size:8"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
