package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/repair-desk/internal/models"
)

var (
	ErrWorkOrderNotFound = errors.New("work order not found")
	ErrDuplicateWorkCode = errors.New("duplicate work code")
	ErrStaleWorkOrder    = errors.New("work order changed since it was read")
)

// Scope narrows a work-order scan. Empty fields do not filter.
type Scope struct {
	Store      string
	Technician string
}

// WorkOrderCollection defines the interface for work-order persistence.
type WorkOrderCollection interface {
	InsertWorkOrder(ctx context.Context, wo models.WorkOrder) error
	FindWorkOrderByCode(ctx context.Context, code string) (*models.WorkOrder, error)
	FindWorkOrders(ctx context.Context, scope Scope) ([]models.WorkOrder, error)
	// ReplaceWorkOrder stores wo only if the stored copy still carries
	// prevUpdatedAt, otherwise it returns ErrStaleWorkOrder.
	ReplaceWorkOrder(ctx context.Context, wo models.WorkOrder, prevUpdatedAt time.Time) error
	DeleteWorkOrder(ctx context.Context, code string) error
}

// UserCollection defines the interface for login account operations.
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	// FindUsersByRole lists accounts holding role, ordered by name.
	FindUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}
