package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
	RoleStore      Role = "store"
	RoleTechnician Role = "technician"
)

// Roles lists every role in a fixed order.
var Roles = []Role{RoleAdmin, RoleModerator, RoleStore, RoleTechnician}

// Operation classes checked before any field-level policy applies.
const (
	ActionCreateWork   = "create_work"
	ActionEditWork     = "edit_work"
	ActionUpdateWork   = "update_work"
	ActionDeleteWork   = "delete_work"
	ActionViewWorks    = "view_works"
	ActionViewAnalysis = "view_analysis"
)

// User is a login account. Store accounts carry the store name in Name;
// technician accounts are scoped by their ID.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Name         string             `bson:"name" json:"name"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// CreateUserRequest is the admin-only account creation body. Name is the
// store name for store accounts and the display name otherwise.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// TechnicianSummary is the assignable-technician entry shown to staff.
type TechnicianSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
	Exp      int64  `json:"exp"`
}

// Identity is the request-scoped caller: a role plus the scope that
// narrows which work orders it can see.
type Identity struct {
	Role         Role
	StoreName    string
	TechnicianID string
}

// Identity derives the caller identity from validated token claims.
func (c *Claims) Identity() Identity {
	id := Identity{Role: c.Role}
	switch c.Role {
	case RoleStore:
		id.StoreName = c.Name
	case RoleTechnician:
		id.TechnicianID = c.UserID
	}
	return id
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleModerator, RoleStore, RoleTechnician:
		return true
	default:
		return false
	}
}

// Allows reports whether the role may perform an operation class at all.
func (r Role) Allows(action string) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action != ActionDeleteWork && action != ActionViewAnalysis
	case RoleStore:
		return action == ActionCreateWork || action == ActionEditWork ||
			action == ActionUpdateWork || action == ActionViewWorks
	case RoleTechnician:
		return action == ActionUpdateWork || action == ActionViewWorks
	default:
		return false
	}
}
