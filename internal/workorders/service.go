// Package workorders implements the work-order lifecycle: creation, the
// full-edit and progress-update mutation paths, the attachment ledger and
// role-scoped listing.
package workorders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/repair-desk/internal/db"
	"github.com/ukydev/repair-desk/internal/models"
	"github.com/ukydev/repair-desk/internal/notify"
)

// Service is the entry point for every work-order operation. Mutations on
// one work code are serialized; reads are not.
type Service struct {
	orders    db.WorkOrderCollection
	publisher notify.Publisher
	locks     *keyedLocks
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends an event after every accepted change.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a work-order service on top of orders.
func NewService(orders db.WorkOrderCollection, opts ...Option) *Service {
	s := &Service{
		orders:    orders,
		publisher: notify.Nop{},
		locks:     newKeyedLocks(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time at the precision MongoDB stores, so a
// read-back timestamp compares equal to the one written.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Create opens a new submitted work order. Store callers always create for
// their own store; a technician is only assigned at creation by roles that
// may write that field.
func (s *Service) Create(ctx context.Context, id models.Identity, req models.CreateRequest) (*models.WorkOrder, error) {
	if !id.Role.Allows(models.ActionCreateWork) {
		return nil, fmt.Errorf("%w: %s may not create work orders", models.ErrPermissionDenied, id.Role)
	}
	if id.Role == models.RoleStore {
		if id.StoreName == "" {
			return nil, fmt.Errorf("%w: store account has no store name", models.ErrPermissionDenied)
		}
		req.Store = id.StoreName
	}
	if models.Permission(id.Role, models.FieldTechnician, models.StatusSubmitted) != models.ReadWrite {
		req.Technician = ""
	}
	if models.Permission(id.Role, models.FieldAttachments, models.StatusSubmitted) != models.ReadWrite {
		req.Attachments = nil
	}

	wo, err := models.NewWorkOrder(req, s.clock())
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		err = s.orders.InsertWorkOrder(ctx, *wo)
		if !errors.Is(err, db.ErrDuplicateWorkCode) || attempt == 2 {
			break
		}
		wo.WorkCode = models.NewWorkCode()
	}
	if err != nil {
		return nil, fmt.Errorf("insert work order: %w", err)
	}

	log.WithFields(log.Fields{"work_code": wo.WorkCode, "store": wo.Store, "role": id.Role}).Info("work order created")
	s.publish(ctx, notify.EventCreated, id.Role, wo)
	out := wo.Project(id.Role)
	return &out, nil
}

// Get returns one work order inside the identity's scope.
func (s *Service) Get(ctx context.Context, id models.Identity, code string) (*models.WorkOrder, error) {
	if !id.Role.Allows(models.ActionViewWorks) {
		return nil, fmt.Errorf("%w: %s may not view work orders", models.ErrPermissionDenied, id.Role)
	}
	wo, err := s.load(ctx, id, code)
	if err != nil {
		return nil, err
	}
	out := wo.Project(id.Role)
	return &out, nil
}

// FullEdit applies patch to every field the role may write. Fields it may
// not write are dropped; if none remain the order is left untouched and
// ErrNoEffectiveChange is returned.
func (s *Service) FullEdit(ctx context.Context, id models.Identity, code string, patch models.WorkOrderPatch) (*models.WorkOrder, error) {
	if !id.Role.Allows(models.ActionEditWork) {
		return nil, fmt.Errorf("%w: %s may not edit work orders", models.ErrPermissionDenied, id.Role)
	}
	return s.mutate(ctx, id, code, notify.EventEdited, func(w *models.WorkOrder, now time.Time) (int, error) {
		return mergeFullEdit(id.Role, w, patch)
	})
}

// ProgressUpdate reports progress: technician, status, service and amount
// notes, plus attachments appended to the ledger. Omitted notes keep their
// previous value.
func (s *Service) ProgressUpdate(ctx context.Context, id models.Identity, code string, patch models.WorkOrderPatch, attachments []string) (*models.WorkOrder, error) {
	if !id.Role.Allows(models.ActionUpdateWork) {
		return nil, fmt.Errorf("%w: %s may not update work orders", models.ErrPermissionDenied, id.Role)
	}
	return s.mutate(ctx, id, code, notify.EventProgressed, func(w *models.WorkOrder, now time.Time) (int, error) {
		return mergeProgress(id.Role, w, patch, attachments, now)
	})
}

// AppendAttachment adds one attachment reference and returns the ledger
// revision it was stored at.
func (s *Service) AppendAttachment(ctx context.Context, id models.Identity, code, ref string) (int, error) {
	if !id.Role.Allows(models.ActionUpdateWork) {
		return 0, fmt.Errorf("%w: %s may not add attachments", models.ErrPermissionDenied, id.Role)
	}
	var revision int
	_, err := s.mutate(ctx, id, code, notify.EventAttached, func(w *models.WorkOrder, now time.Time) (int, error) {
		if models.Permission(id.Role, models.FieldAttachments, w.Status) != models.ReadWrite {
			return 0, fmt.Errorf("%w: %s may not add attachments to a %s work order", models.ErrPermissionDenied, id.Role, w.Status)
		}
		rev, err := w.AppendAttachment(ref, now)
		if err != nil {
			return 0, err
		}
		revision = rev
		return 1, nil
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// GetAttachments returns the attachments of a work order in append order.
func (s *Service) GetAttachments(ctx context.Context, id models.Identity, code string) ([]models.Attachment, error) {
	if !id.Role.Allows(models.ActionViewWorks) {
		return nil, fmt.Errorf("%w: %s may not view work orders", models.ErrPermissionDenied, id.Role)
	}
	wo, err := s.load(ctx, id, code)
	if err != nil {
		return nil, err
	}
	if wo.Attachments == nil {
		return []models.Attachment{}, nil
	}
	return wo.Attachments, nil
}

// Delete removes a work order. Only administrators may delete.
func (s *Service) Delete(ctx context.Context, id models.Identity, code string) error {
	if !id.Role.Allows(models.ActionDeleteWork) {
		return fmt.Errorf("%w: %s may not delete work orders", models.ErrPermissionDenied, id.Role)
	}
	unlock := s.locks.Lock(code)
	defer unlock()

	wo, err := s.load(ctx, id, code)
	if err != nil {
		return err
	}
	if err := s.orders.DeleteWorkOrder(ctx, code); err != nil {
		return storeError(err)
	}
	log.WithFields(log.Fields{"work_code": code, "role": id.Role}).Info("work order deleted")
	s.publish(ctx, notify.EventDeleted, id.Role, wo)
	return nil
}

// List returns the work orders visible to the identity after filtering,
// date bounding and sorting. Every call reads current state.
func (s *Service) List(ctx context.Context, id models.Identity, opts ListOptions) ([]models.WorkOrder, error) {
	orders, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return Query(orders, id, opts), nil
}

// FilterOptions lists the distinct values the caller can filter on.
type FilterOptions struct {
	EquipmentModels []string        `json:"equipment_models"`
	Stores          []string        `json:"stores"`
	Statuses        []models.Status `json:"statuses"`
}

// FilterOptions collects distinct equipment models and stores among the
// work orders visible to the identity.
func (s *Service) FilterOptions(ctx context.Context, id models.Identity) (*FilterOptions, error) {
	orders, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	opts := &FilterOptions{EquipmentModels: []string{}, Stores: []string{}, Statuses: models.Statuses}
	for _, w := range Query(orders, id, ListOptions{}) {
		if w.EquipmentModel != "" && !slices.Contains(opts.EquipmentModels, w.EquipmentModel) {
			opts.EquipmentModels = append(opts.EquipmentModels, w.EquipmentModel)
		}
		if w.Store != "" && !slices.Contains(opts.Stores, w.Store) {
			opts.Stores = append(opts.Stores, w.Store)
		}
	}
	slices.Sort(opts.EquipmentModels)
	slices.Sort(opts.Stores)
	return opts, nil
}

// Overview summarizes work orders by status.
type Overview struct {
	Works        int                   `json:"works"`
	Stores       int                   `json:"stores"`
	StatusCounts map[models.Status]int `json:"status_counts"`
}

// Overview counts all work orders per status. Every status is present,
// zero-filled.
func (s *Service) Overview(ctx context.Context, id models.Identity) (*Overview, error) {
	if !id.Role.Allows(models.ActionViewAnalysis) {
		return nil, fmt.Errorf("%w: %s may not view analysis", models.ErrPermissionDenied, id.Role)
	}
	orders, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	ov := &Overview{StatusCounts: make(map[models.Status]int, len(models.Statuses))}
	for _, st := range models.Statuses {
		ov.StatusCounts[st] = 0
	}
	stores := map[string]bool{}
	for _, w := range orders {
		if !w.VisibleTo(id) {
			continue
		}
		ov.Works++
		ov.StatusCounts[w.Status]++
		stores[w.Store] = true
	}
	ov.Stores = len(stores)
	return ov, nil
}

// mutate runs fn on a private copy of the work order while holding the
// work code's lock and stores the copy only if fn succeeds and applied at
// least one change.
func (s *Service) mutate(ctx context.Context, id models.Identity, code, event string, fn func(w *models.WorkOrder, now time.Time) (int, error)) (*models.WorkOrder, error) {
	unlock := s.locks.Lock(code)
	defer unlock()

	current, err := s.load(ctx, id, code)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	now := s.clock()
	fields := log.Fields{"work_code": code, "role": id.Role, "event": event}

	applied, err := fn(next, now)
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("work order change rejected")
		return nil, err
	}
	if applied == 0 {
		log.WithFields(fields).Warn("work order change had no permitted fields")
		return nil, fmt.Errorf("%w: %s may not write any requested field of %s", models.ErrNoEffectiveChange, id.Role, code)
	}

	next.UpdatedAt = now
	if err := s.orders.ReplaceWorkOrder(ctx, *next, current.UpdatedAt); err != nil {
		log.WithFields(fields).WithError(err).Error("work order write failed")
		return nil, storeError(err)
	}

	fields["status"] = next.Status
	fields["applied"] = applied
	log.WithFields(fields).Info("work order updated")
	s.publish(ctx, event, id.Role, next)
	out := next.Project(id.Role)
	return &out, nil
}

// load fetches a work order and hides it from identities whose scope does
// not include it.
func (s *Service) load(ctx context.Context, id models.Identity, code string) (*models.WorkOrder, error) {
	wo, err := s.orders.FindWorkOrderByCode(ctx, code)
	if err != nil {
		return nil, storeError(err)
	}
	if !wo.VisibleTo(id) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, code)
	}
	return wo, nil
}

func (s *Service) visible(ctx context.Context, id models.Identity) ([]models.WorkOrder, error) {
	if !id.Role.Allows(models.ActionViewWorks) {
		return nil, fmt.Errorf("%w: %s may not view work orders", models.ErrPermissionDenied, id.Role)
	}
	var scope db.Scope
	switch id.Role {
	case models.RoleStore:
		scope.Store = id.StoreName
	case models.RoleTechnician:
		scope.Technician = id.TechnicianID
	}
	if (id.Role == models.RoleStore && scope.Store == "") || (id.Role == models.RoleTechnician && scope.Technician == "") {
		return []models.WorkOrder{}, nil
	}
	orders, err := s.orders.FindWorkOrders(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("find work orders: %w", err)
	}
	return orders, nil
}

func (s *Service) publish(ctx context.Context, event string, role models.Role, wo *models.WorkOrder) {
	e := notify.Event{
		Type:     event,
		WorkCode: wo.WorkCode,
		Store:    wo.Store,
		Status:   wo.Status,
		Role:     role,
		At:       s.clock(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.WithFields(log.Fields{"work_code": wo.WorkCode, "event": event}).WithError(err).Warn("event publish failed")
	}
}

func storeError(err error) error {
	switch {
	case errors.Is(err, db.ErrWorkOrderNotFound):
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	case errors.Is(err, db.ErrStaleWorkOrder):
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	default:
		return err
	}
}
