package workorders

import (
	"fmt"
	"slices"
	"time"

	"github.com/ukydev/repair-desk/internal/models"
)

// FilterAll is the pass-through value for any equality filter.
const FilterAll = "all"

// Filters are optional equality predicates combined with AND. An empty
// value or FilterAll does not filter.
type Filters struct {
	Status         models.Status
	EquipmentModel string
	Store          string
}

// SortField selects the timestamp a sort key orders by.
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortKey is one stable sort pass.
type SortKey struct {
	Field SortField
	Order SortOrder
}

// DefaultSort orders by creation then update time, newest first.
var DefaultSort = []SortKey{
	{Field: SortByCreatedAt, Order: Desc},
	{Field: SortByUpdatedAt, Order: Desc},
}

// DateRange bounds the visit date inclusively. A zero Start or End leaves
// that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ListOptions configures a listing. Sort keys are applied in order as stable
// passes, so the last key dominates and earlier keys break its ties. A nil
// Sort uses DefaultSort.
type ListOptions struct {
	Filters   Filters
	Sort      []SortKey
	DateRange *DateRange
}

// Validate rejects unknown statuses, sort keys and inverted ranges.
func (o ListOptions) Validate() error {
	if s := o.Filters.Status; s != "" && s != FilterAll && !s.Valid() {
		return fmt.Errorf("%w: unknown status filter %q", models.ErrValidation, s)
	}
	for _, k := range o.Sort {
		if k.Field != SortByCreatedAt && k.Field != SortByUpdatedAt {
			return fmt.Errorf("%w: unknown sort field %q", models.ErrValidation, k.Field)
		}
		if k.Order != Asc && k.Order != Desc {
			return fmt.Errorf("%w: unknown sort order %q", models.ErrValidation, k.Order)
		}
	}
	if r := o.DateRange; r != nil && !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("%w: date range ends before it starts", models.ErrValidation)
	}
	return nil
}

// Query narrows orders to the identity's scope, applies the filters and the
// date range, sorts, and projects each result for the identity's role.
// orders is not modified.
func Query(orders []models.WorkOrder, id models.Identity, opts ListOptions) []models.WorkOrder {
	out := make([]models.WorkOrder, 0, len(orders))
	for i := range orders {
		w := &orders[i]
		if !w.VisibleTo(id) {
			continue
		}
		if !opts.Filters.match(w) {
			continue
		}
		if !opts.DateRange.contains(w.Date) {
			continue
		}
		out = append(out, *w)
	}

	keys := opts.Sort
	if keys == nil {
		keys = DefaultSort
	}
	for _, k := range keys {
		slices.SortStableFunc(out, k.compare)
	}

	for i := range out {
		out[i] = out[i].Project(id.Role)
	}
	return out
}

func (f Filters) match(w *models.WorkOrder) bool {
	if !matches(string(f.Status), string(w.Status)) {
		return false
	}
	if !matches(f.EquipmentModel, w.EquipmentModel) {
		return false
	}
	return matches(f.Store, w.Store)
}

func matches(want, got string) bool {
	return want == "" || want == FilterAll || want == got
}

func (r *DateRange) contains(d time.Time) bool {
	if r == nil {
		return true
	}
	day := truncateDay(d)
	if !r.Start.IsZero() && day.Before(truncateDay(r.Start)) {
		return false
	}
	if !r.End.IsZero() && day.After(truncateDay(r.End)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (k SortKey) compare(a, b models.WorkOrder) int {
	ta, tb := a.CreatedAt, b.CreatedAt
	if k.Field == SortByUpdatedAt {
		ta, tb = a.UpdatedAt, b.UpdatedAt
	}
	c := ta.Compare(tb)
	if k.Order == Desc {
		return -c
	}
	return c
}
