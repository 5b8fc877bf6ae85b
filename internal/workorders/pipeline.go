package workorders

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/repair-desk/internal/models"
)

// mergeFullEdit applies every patch field the role may write to w and
// returns how many were applied. Fields the role may not write are dropped.
// A work_code that differs from the target's is an error, never a drop.
func mergeFullEdit(role models.Role, w *models.WorkOrder, patch models.WorkOrderPatch) (int, error) {
	if err := patch.Apply(w, models.FieldWorkCode); err != nil {
		return 0, err
	}
	return mergeFields(role, w, patch)
}

// mergeProgress applies a progress update: the narrow progress fields, any
// resent descriptive field the role may write, and new attachments appended
// through the ledger. A resent work_code is ignored.
func mergeProgress(role models.Role, w *models.WorkOrder, patch models.WorkOrderPatch, refs []string, now time.Time) (int, error) {
	before := w.Status
	applied, err := mergeFields(role, w, patch)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return applied, nil
	}
	if models.Permission(role, models.FieldAttachments, before) != models.ReadWrite {
		log.WithFields(log.Fields{"work_code": w.WorkCode, "role": role, "count": len(refs)}).
			Debug("dropping attachments the role may not append")
		return applied, nil
	}
	for _, ref := range refs {
		if _, err := w.AppendAttachment(ref, now); err != nil {
			return 0, err
		}
	}
	return applied + 1, nil
}

// mergeFields evaluates permissions against the status the order had before
// this request, so a status change in the same patch cannot widen access.
func mergeFields(role models.Role, w *models.WorkOrder, patch models.WorkOrderPatch) (int, error) {
	before := w.Status
	applied := 0
	for _, f := range patch.Fields() {
		if f == models.FieldWorkCode {
			continue
		}
		if models.Permission(role, f, before) != models.ReadWrite {
			log.WithFields(log.Fields{"work_code": w.WorkCode, "role": role, "field": f}).
				Debug("dropping field the role may not write")
			continue
		}
		if err := patch.Apply(w, f); err != nil {
			return 0, err
		}
		applied++
	}
	return applied, nil
}
