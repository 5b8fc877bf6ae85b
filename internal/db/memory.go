package db

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/repair-desk/internal/models"
)

// MemoryWorkOrderCollection keeps work orders in process memory. Values are
// copied on the way in and out so callers never share state with the store.
type MemoryWorkOrderCollection struct {
	mu     sync.RWMutex
	orders map[string]models.WorkOrder
}

// NewMemoryWorkOrderCollection creates an empty in-memory collection.
func NewMemoryWorkOrderCollection() *MemoryWorkOrderCollection {
	return &MemoryWorkOrderCollection{orders: make(map[string]models.WorkOrder)}
}

func (c *MemoryWorkOrderCollection) InsertWorkOrder(ctx context.Context, wo models.WorkOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.orders[wo.WorkCode]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkCode, wo.WorkCode)
	}
	c.orders[wo.WorkCode] = *wo.Clone()
	return nil
}

func (c *MemoryWorkOrderCollection) FindWorkOrderByCode(ctx context.Context, code string) (*models.WorkOrder, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wo, ok := c.orders[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, code)
	}
	return wo.Clone(), nil
}

func (c *MemoryWorkOrderCollection) FindWorkOrders(ctx context.Context, scope Scope) ([]models.WorkOrder, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	orders := make([]models.WorkOrder, 0, len(c.orders))
	for _, wo := range c.orders {
		if scope.Store != "" && wo.Store != scope.Store {
			continue
		}
		if scope.Technician != "" && wo.Technician != scope.Technician {
			continue
		}
		orders = append(orders, *wo.Clone())
	}
	// map order is random; keep scans repeatable
	slices.SortFunc(orders, func(a, b models.WorkOrder) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.WorkCode, b.WorkCode)
	})
	return orders, nil
}

func (c *MemoryWorkOrderCollection) ReplaceWorkOrder(ctx context.Context, wo models.WorkOrder, prevUpdatedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.orders[wo.WorkCode]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkOrderNotFound, wo.WorkCode)
	}
	if !current.UpdatedAt.Equal(prevUpdatedAt) {
		return fmt.Errorf("%w: %s", ErrStaleWorkOrder, wo.WorkCode)
	}
	c.orders[wo.WorkCode] = *wo.Clone()
	return nil
}

func (c *MemoryWorkOrderCollection) DeleteWorkOrder(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.orders[code]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkOrderNotFound, code)
	}
	delete(c.orders, code)
	return nil
}
