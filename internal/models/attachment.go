package models

import (
	"fmt"
	"strings"
	"time"
)

// Attachment is an opaque reference to an uploaded image, stamped with the
// ledger revision it was appended at.
type Attachment struct {
	Ref      string    `bson:"ref" json:"ref"`
	Revision int       `bson:"revision" json:"revision"`
	AddedAt  time.Time `bson:"added_at" json:"added_at"`
}

// AppendAttachment adds ref to the end of the ledger and returns the new
// revision. Existing entries are never removed or reordered.
func (w *WorkOrder) AppendAttachment(ref string, now time.Time) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("%w: attachment reference is empty", ErrValidation)
	}
	w.AttachmentRevision++
	w.Attachments = append(w.Attachments, Attachment{
		Ref:      ref,
		Revision: w.AttachmentRevision,
		AddedAt:  now,
	})
	return w.AttachmentRevision, nil
}

// AttachmentRefs returns the attachment references in append order.
func (w *WorkOrder) AttachmentRefs() []string {
	refs := make([]string, 0, len(w.Attachments))
	for _, a := range w.Attachments {
		refs = append(refs, a.Ref)
	}
	return refs
}
