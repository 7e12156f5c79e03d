// Package models contains data structures for the blog's domain models.
package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role separates self-service accounts from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts "user" or "admin" in any case.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown role %q", s))
}

// User is a registered account. Posts are not embedded; load them through the
// post repository by author.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex;check:username <> ''" json:"username"`
	Email     string    `gorm:"size:120;not null;uniqueIndex;check:email <> ''" json:"email"`
	Password  string    `gorm:"size:255;not null;check:password <> ''" json:"-"`
	Role      Role      `gorm:"size:16;not null;default:user;check:role IN ('user','admin')" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate fills in the default role so the struct matches the stored row.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) String() string {
	return fmt.Sprintf("<User '%s'>", u.Username)
}
