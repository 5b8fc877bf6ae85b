package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/repair-desk/internal/middleware"
	"github.com/ukydev/repair-desk/internal/models"
	"github.com/ukydev/repair-desk/internal/workorders"
)

const maxBodyBytes = 1 << 20

// WorkOrderHandler exposes the work-order service over HTTP.
type WorkOrderHandler struct {
	service *workorders.Service
}

// NewWorkOrderHandler creates a new work-order handler
func NewWorkOrderHandler(service *workorders.Service) *WorkOrderHandler {
	return &WorkOrderHandler{service: service}
}

// Guard wraps a route with a check for the action it performs.
type Guard func(action string) func(http.Handler) http.Handler

// Register mounts the work-order routes on mux. A nil guard mounts them
// unwrapped.
func (h *WorkOrderHandler) Register(mux *http.ServeMux, guard Guard) {
	routes := []struct {
		pattern string
		action  string
		handler http.HandlerFunc
	}{
		{"POST /api/works", models.ActionCreateWork, h.Create},
		{"GET /api/works", models.ActionViewWorks, h.List},
		{"GET /api/works/options", models.ActionViewWorks, h.FilterOptions},
		{"GET /api/works/overview", models.ActionViewAnalysis, h.Overview},
		{"GET /api/works/{code}", models.ActionViewWorks, h.Get},
		{"PUT /api/works/{code}/edit", models.ActionEditWork, h.Edit},
		{"PUT /api/works/{code}/update", models.ActionUpdateWork, h.Update},
		{"DELETE /api/works/{code}", models.ActionDeleteWork, h.Delete},
		{"GET /api/works/{code}/images", models.ActionViewWorks, h.GetImages},
		{"POST /api/works/{code}/images", models.ActionUpdateWork, h.PostImage},
	}
	for _, rt := range routes {
		var handler http.Handler = rt.handler
		if guard != nil {
			handler = guard(rt.action)(handler)
		}
		mux.Handle(rt.pattern, handler)
	}
}

// progressRequest is the body of a progress update: the patch fields plus
// attachment references to append.
type progressRequest struct {
	models.WorkOrderPatch
	Attachments []string `json:"attachments,omitempty"`
}

type imageRequest struct {
	Ref string `json:"ref"`
}

type imageResponse struct {
	WorkCode string `json:"work_code"`
	Revision int    `json:"revision"`
}

// Create opens a new work order.
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.CreateRequest
	if !decode(w, r, &req) {
		return
	}
	wo, err := h.service.Create(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wo)
}

// List returns the caller's work orders filtered and sorted by the query
// string: status, equipment_model, store, start, end and sort.
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	orders, err := h.service.List(r.Context(), id, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Get returns one work order.
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	wo, err := h.service.Get(r.Context(), id, r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

// Edit applies a full edit.
func (h *WorkOrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var patch models.WorkOrderPatch
	if !decode(w, r, &patch) {
		return
	}
	wo, err := h.service.FullEdit(r.Context(), id, r.PathValue("code"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

// Update applies a progress update.
func (h *WorkOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if !decode(w, r, &req) {
		return
	}
	wo, err := h.service.ProgressUpdate(r.Context(), id, r.PathValue("code"), req.WorkOrderPatch, req.Attachments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

// Delete removes a work order.
func (h *WorkOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, r.PathValue("code")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetImages lists a work order's attachments.
func (h *WorkOrderHandler) GetImages(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	attachments, err := h.service.GetAttachments(r.Context(), id, r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachments)
}

// PostImage appends one attachment reference.
func (h *WorkOrderHandler) PostImage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req imageRequest
	if !decode(w, r, &req) {
		return
	}
	code := r.PathValue("code")
	rev, err := h.service.AppendAttachment(r.Context(), id, code, req.Ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, imageResponse{WorkCode: code, Revision: rev})
}

// FilterOptions returns the values the caller can filter on.
func (h *WorkOrderHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	opts, err := h.service.FilterOptions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// Overview returns the status breakdown of visible work orders.
func (h *WorkOrderHandler) Overview(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	overview, err := h.service.Overview(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return models.Identity{}, false
	}
	return claims.Identity(), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// parseListOptions reads filters, an inclusive date range and a sort
// specification such as "created_at:desc,updated_at:asc".
func parseListOptions(r *http.Request) (workorders.ListOptions, error) {
	q := r.URL.Query()
	opts := workorders.ListOptions{
		Filters: workorders.Filters{
			Status:         models.Status(q.Get("status")),
			EquipmentModel: q.Get("equipment_model"),
			Store:          q.Get("store"),
		},
	}

	start, end := q.Get("start"), q.Get("end")
	if start != "" || end != "" {
		var dr workorders.DateRange
		var err error
		if start != "" {
			if dr.Start, err = models.ParseDate(start); err != nil {
				return opts, fmt.Errorf("%w: start: %v", models.ErrValidation, err)
			}
		}
		if end != "" {
			if dr.End, err = models.ParseDate(end); err != nil {
				return opts, fmt.Errorf("%w: end: %v", models.ErrValidation, err)
			}
		}
		opts.DateRange = &dr
	}

	if raw := q.Get("sort"); raw != "" {
		opts.Sort = []workorders.SortKey{}
		for _, part := range strings.Split(raw, ",") {
			field, order, found := strings.Cut(strings.TrimSpace(part), ":")
			if !found {
				order = string(workorders.Desc)
			}
			opts.Sort = append(opts.Sort, workorders.SortKey{
				Field: workorders.SortField(field),
				Order: workorders.SortOrder(order),
			})
		}
	}
	return opts, opts.Validate()
}

// writeError maps service error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrImmutableField), errors.Is(err, models.ErrNoEffectiveChange):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Work order request failed")
		http.Error(w, "Internal server error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
