package models

import "time"

type UserStatus string

const (
	StatusPending  UserStatus = "pending"  // прошёл ЭЦП, но профиль не заполнен
	StatusActive   UserStatus = "active"   // полностью зарегистрирован
	StatusInactive UserStatus = "inactive" // деактивирован администратором
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive:
		return true
	}
	return false
}

type UserRole string

const (
	RoleEmployee      UserRole = "employee"
	RoleSupervisor    UserRole = "supervisor"
	RoleAdministrator UserRole = "administrator"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleEmployee, RoleSupervisor, RoleAdministrator:
		return true
	}
	return false
}

type User struct {
	ID           int        `json:"id"`
	IIN          string     `json:"iin,omitempty"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"` // не отдаём наружу
	FullName     string     `json:"full_name,omitempty"`
	PhoneNumber  string     `json:"phone_number,omitempty"`
	Organization string     `json:"organization,omitempty"`
	Position     string     `json:"position,omitempty"`
	Status       UserStatus `json:"status"`
	Role         UserRole   `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) IsPending() bool  { return u.Status == StatusPending }
func (u *User) IsActive() bool   { return u.Status == StatusActive }
func (u *User) IsInactive() bool { return u.Status == StatusInactive }

// HasPassword reports whether the user can log in with email/password.
// EDS-only users have no credential until they set one.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }
