package auth

import (
	"encoding/json"

	"github.com/trezcool/masomo-portal/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleTeacher    = "teacher"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

var AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin, RoleSuperAdmin}

// User is the authenticated user as returned by the API on login.
type User struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	LastLoginAt core.Time `json:"last_login_at"`
	CreatedAt   core.Time `json:"created_at"`
}

// UnmarshalJSON accepts both "name" and "nom".
func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	aux := struct {
		*alias
		Nom string `json:"nom"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if u.Name == "" {
		u.Name = aux.Nom
	}
	return nil
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

func (u User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }
