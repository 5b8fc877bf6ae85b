package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaidBy records who pays for a service visit.
type PaidBy string

const (
	PaidByStore    PaidBy = "store"
	PaidByCustomer PaidBy = "customer"
)

// Valid reports whether p is one of the known payers.
func (p PaidBy) Valid() bool {
	return p == PaidByStore || p == PaidByCustomer
}

// DateLayout is the calendar-date form accepted for the visit date.
const DateLayout = "2006-01-02"

// WorkOrder represents one equipment repair or maintenance visit.
type WorkOrder struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	WorkCode            string             `bson:"work_code" json:"work_code"`
	Store               string             `bson:"store" json:"store,omitempty"`
	Date                time.Time          `bson:"date" json:"date,omitempty"`
	EquipmentModel      string             `bson:"equipment_model" json:"equipment_model,omitempty"`
	ServiceVisitType    string             `bson:"service_visit_type" json:"service_visit_type,omitempty"`
	IssueAboutEquipment string             `bson:"issue_about_equipment" json:"issue_about_equipment,omitempty"`
	CustomerName        string             `bson:"customer_name" json:"customer_name,omitempty"`
	CustomerAddress     string             `bson:"customer_address" json:"customer_address,omitempty"`
	CustomerPhoneNumber string             `bson:"customer_phone_number" json:"customer_phone_number,omitempty"`
	ServiceUpdates      string             `bson:"service_updates" json:"service_updates,omitempty"`
	AmountUpdates       string             `bson:"amount_updates" json:"amount_updates,omitempty"`
	Technician          string             `bson:"technician,omitempty" json:"technician,omitempty"`
	Status              Status             `bson:"status" json:"status,omitempty"`
	AmountPaidBy        PaidBy             `bson:"amount_paid_by" json:"amount_paid_by,omitempty"`
	Attachments         []Attachment       `bson:"attachments" json:"attachments,omitempty"`
	AttachmentRevision  int                `bson:"attachment_revision" json:"attachment_revision"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

// CreateRequest carries the fields supplied when a work order is opened.
type CreateRequest struct {
	Store               string   `json:"store"`
	Date                string   `json:"date"`
	EquipmentModel      string   `json:"equipment_model"`
	ServiceVisitType    string   `json:"service_visit_type"`
	IssueAboutEquipment string   `json:"issue_about_equipment"`
	CustomerName        string   `json:"customer_name"`
	CustomerAddress     string   `json:"customer_address"`
	CustomerPhoneNumber string   `json:"customer_phone_number"`
	AmountPaidBy        PaidBy   `json:"amount_paid_by"`
	Technician          string   `json:"technician"`
	Attachments         []string `json:"attachments"`
}

// NewWorkOrder validates req and builds a submitted work order with a fresh
// work code. Every missing or malformed field is reported in one error.
func NewWorkOrder(req CreateRequest, now time.Time) (*WorkOrder, error) {
	var problems []string
	required := []struct {
		field Field
		value string
	}{
		{FieldStore, req.Store},
		{FieldDate, req.Date},
		{FieldEquipmentModel, req.EquipmentModel},
		{FieldCustomerName, req.CustomerName},
		{FieldCustomerPhoneNumber, req.CustomerPhoneNumber},
		{FieldAmountPaidBy, string(req.AmountPaidBy)},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, fmt.Sprintf("%s is required", r.field))
		}
	}

	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		d, err := ParseDate(req.Date)
		if err != nil {
			problems = append(problems, err.Error())
		}
		date = d
	}
	if req.AmountPaidBy != "" && !req.AmountPaidBy.Valid() {
		problems = append(problems, fmt.Sprintf("amount_paid_by %q is not one of store, customer", req.AmountPaidBy))
	}
	for _, ref := range req.Attachments {
		if strings.TrimSpace(ref) == "" {
			problems = append(problems, "attachment reference is empty")
			break
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}

	w := &WorkOrder{
		WorkCode:            NewWorkCode(),
		Store:               strings.TrimSpace(req.Store),
		Date:                date,
		EquipmentModel:      strings.TrimSpace(req.EquipmentModel),
		ServiceVisitType:    req.ServiceVisitType,
		IssueAboutEquipment: req.IssueAboutEquipment,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerAddress:     req.CustomerAddress,
		CustomerPhoneNumber: strings.TrimSpace(req.CustomerPhoneNumber),
		AmountPaidBy:        req.AmountPaidBy,
		Technician:          req.Technician,
		Status:              StatusSubmitted,
		Attachments:         []Attachment{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, ref := range req.Attachments {
		if _, err := w.AppendAttachment(ref, now); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// NewWorkCode returns a fresh work code.
func NewWorkCode() string {
	return "WO-" + strings.ToUpper(uuid.NewString())
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns
// the calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not a calendar date", s)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Clone returns a deep copy of w.
func (w *WorkOrder) Clone() *WorkOrder {
	c := *w
	if w.Attachments != nil {
		c.Attachments = make([]Attachment, len(w.Attachments))
		copy(c.Attachments, w.Attachments)
	}
	return &c
}

// Project returns a copy of w with every field the role may not see cleared.
func (w *WorkOrder) Project(role Role) WorkOrder {
	c := *w.Clone()
	for _, f := range Fields {
		if Permission(role, f, w.Status) == Hidden {
			c.clear(f)
		}
	}
	return c
}

func (w *WorkOrder) clear(f Field) {
	switch f {
	case FieldWorkCode:
		w.WorkCode = ""
	case FieldStore:
		w.Store = ""
	case FieldDate:
		w.Date = time.Time{}
	case FieldEquipmentModel:
		w.EquipmentModel = ""
	case FieldServiceVisitType:
		w.ServiceVisitType = ""
	case FieldIssueAboutEquipment:
		w.IssueAboutEquipment = ""
	case FieldCustomerName:
		w.CustomerName = ""
	case FieldCustomerAddress:
		w.CustomerAddress = ""
	case FieldCustomerPhoneNumber:
		w.CustomerPhoneNumber = ""
	case FieldServiceUpdates:
		w.ServiceUpdates = ""
	case FieldAmountUpdates:
		w.AmountUpdates = ""
	case FieldTechnician:
		w.Technician = ""
	case FieldStatus:
		w.Status = ""
	case FieldAmountPaidBy:
		w.AmountPaidBy = ""
	case FieldAttachments:
		w.Attachments = nil
		w.AttachmentRevision = 0
	case FieldCreatedAt:
		w.CreatedAt = time.Time{}
	case FieldUpdatedAt:
		w.UpdatedAt = time.Time{}
	}
}

// VisibleTo reports whether the identity's scope includes w.
func (w *WorkOrder) VisibleTo(id Identity) bool {
	switch id.Role {
	case RoleAdmin, RoleModerator:
		return true
	case RoleStore:
		return id.StoreName != "" && w.Store == id.StoreName
	case RoleTechnician:
		return id.TechnicianID != "" && w.Technician == id.TechnicianID
	default:
		return false
	}
}
