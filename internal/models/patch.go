package models

import (
	"fmt"
	"strings"
)

// WorkOrderPatch is a partial update. A nil field was omitted and means
// "no change"; a non-nil field carries a value, including an empty one.
// Unknown JSON keys are ignored.
type WorkOrderPatch struct {
	WorkCode            *string `json:"work_code,omitempty"`
	Store               *string `json:"store,omitempty"`
	Date                *string `json:"date,omitempty"`
	EquipmentModel      *string `json:"equipment_model,omitempty"`
	ServiceVisitType    *string `json:"service_visit_type,omitempty"`
	IssueAboutEquipment *string `json:"issue_about_equipment,omitempty"`
	CustomerName        *string `json:"customer_name,omitempty"`
	CustomerAddress     *string `json:"customer_address,omitempty"`
	CustomerPhoneNumber *string `json:"customer_phone_number,omitempty"`
	ServiceUpdates      *string `json:"service_updates,omitempty"`
	AmountUpdates       *string `json:"amount_updates,omitempty"`
	Technician          *string `json:"technician,omitempty"`
	Status              *Status `json:"status,omitempty"`
	AmountPaidBy        *PaidBy `json:"amount_paid_by,omitempty"`
}

// Fields returns the fields present in p, in canonical order.
func (p WorkOrderPatch) Fields() []Field {
	present := []struct {
		field Field
		set   bool
	}{
		{FieldWorkCode, p.WorkCode != nil},
		{FieldStore, p.Store != nil},
		{FieldDate, p.Date != nil},
		{FieldEquipmentModel, p.EquipmentModel != nil},
		{FieldServiceVisitType, p.ServiceVisitType != nil},
		{FieldIssueAboutEquipment, p.IssueAboutEquipment != nil},
		{FieldCustomerName, p.CustomerName != nil},
		{FieldCustomerAddress, p.CustomerAddress != nil},
		{FieldCustomerPhoneNumber, p.CustomerPhoneNumber != nil},
		{FieldServiceUpdates, p.ServiceUpdates != nil},
		{FieldAmountUpdates, p.AmountUpdates != nil},
		{FieldTechnician, p.Technician != nil},
		{FieldStatus, p.Status != nil},
		{FieldAmountPaidBy, p.AmountPaidBy != nil},
	}
	var fields []Field
	for _, f := range present {
		if f.set {
			fields = append(fields, f.field)
		}
	}
	return fields
}

// Apply writes the patch value of field f into w. Status changes go through
// the lifecycle check. w is left unchanged when an error is returned.
func (p WorkOrderPatch) Apply(w *WorkOrder, f Field) error {
	switch f {
	case FieldWorkCode:
		if p.WorkCode != nil && *p.WorkCode != w.WorkCode {
			return fmt.Errorf("%w: work_code %q cannot change to %q", ErrImmutableField, w.WorkCode, *p.WorkCode)
		}
	case FieldStore:
		v, err := requiredText(f, p.Store)
		if err != nil {
			return err
		}
		w.Store = v
	case FieldDate:
		if p.Date == nil {
			return nil
		}
		d, err := ParseDate(*p.Date)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		w.Date = d
	case FieldEquipmentModel:
		v, err := requiredText(f, p.EquipmentModel)
		if err != nil {
			return err
		}
		w.EquipmentModel = v
	case FieldServiceVisitType:
		w.ServiceVisitType = deref(p.ServiceVisitType, w.ServiceVisitType)
	case FieldIssueAboutEquipment:
		w.IssueAboutEquipment = deref(p.IssueAboutEquipment, w.IssueAboutEquipment)
	case FieldCustomerName:
		v, err := requiredText(f, p.CustomerName)
		if err != nil {
			return err
		}
		w.CustomerName = v
	case FieldCustomerAddress:
		w.CustomerAddress = deref(p.CustomerAddress, w.CustomerAddress)
	case FieldCustomerPhoneNumber:
		v, err := requiredText(f, p.CustomerPhoneNumber)
		if err != nil {
			return err
		}
		w.CustomerPhoneNumber = v
	case FieldServiceUpdates:
		w.ServiceUpdates = deref(p.ServiceUpdates, w.ServiceUpdates)
	case FieldAmountUpdates:
		w.AmountUpdates = deref(p.AmountUpdates, w.AmountUpdates)
	case FieldTechnician:
		if p.Technician != nil {
			w.Technician = strings.TrimSpace(*p.Technician)
		}
	case FieldStatus:
		if p.Status != nil {
			return w.SetStatus(*p.Status)
		}
	case FieldAmountPaidBy:
		if p.AmountPaidBy == nil {
			return nil
		}
		if !p.AmountPaidBy.Valid() {
			return fmt.Errorf("%w: amount_paid_by %q is not one of store, customer", ErrValidation, *p.AmountPaidBy)
		}
		w.AmountPaidBy = *p.AmountPaidBy
	}
	return nil
}

func requiredText(f Field, v *string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: %s is absent", ErrValidation, f)
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, f)
	}
	return s, nil
}

func deref(v *string, current string) string {
	if v == nil {
		return current
	}
	return *v
}
