package models

// Access is the level a role has on a single work-order field.
type Access int

const (
	Hidden Access = iota
	ReadOnly
	ReadWrite
)

func (a Access) String() string {
	switch a {
	case ReadWrite:
		return "read_write"
	case ReadOnly:
		return "read_only"
	default:
		return "hidden"
	}
}

// Field names a work-order field for policy lookups.
type Field string

const (
	FieldWorkCode            Field = "work_code"
	FieldStore               Field = "store"
	FieldDate                Field = "date"
	FieldEquipmentModel      Field = "equipment_model"
	FieldServiceVisitType    Field = "service_visit_type"
	FieldIssueAboutEquipment Field = "issue_about_equipment"
	FieldCustomerName        Field = "customer_name"
	FieldCustomerAddress     Field = "customer_address"
	FieldCustomerPhoneNumber Field = "customer_phone_number"
	FieldServiceUpdates      Field = "service_updates"
	FieldAmountUpdates       Field = "amount_updates"
	FieldTechnician          Field = "technician"
	FieldStatus              Field = "status"
	FieldAmountPaidBy        Field = "amount_paid_by"
	FieldAttachments         Field = "attachments"
	FieldCreatedAt           Field = "created_at"
	FieldUpdatedAt           Field = "updated_at"
)

// Fields lists every work-order field in canonical order.
var Fields = []Field{
	FieldWorkCode,
	FieldStore,
	FieldDate,
	FieldEquipmentModel,
	FieldServiceVisitType,
	FieldIssueAboutEquipment,
	FieldCustomerName,
	FieldCustomerAddress,
	FieldCustomerPhoneNumber,
	FieldServiceUpdates,
	FieldAmountUpdates,
	FieldTechnician,
	FieldStatus,
	FieldAmountPaidBy,
	FieldAttachments,
	FieldCreatedAt,
	FieldUpdatedAt,
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Store accounts may change these only while the order is still submitted.
var storeIntakeFields = map[Field]bool{
	FieldDate:                true,
	FieldEquipmentModel:      true,
	FieldServiceVisitType:    true,
	FieldIssueAboutEquipment: true,
	FieldCustomerName:        true,
	FieldCustomerAddress:     true,
	FieldCustomerPhoneNumber: true,
	FieldAmountPaidBy:        true,
	FieldAttachments:         true,
}

var progressFields = map[Field]bool{
	FieldTechnician:     true,
	FieldStatus:         true,
	FieldServiceUpdates: true,
	FieldAmountUpdates:  true,
}

var technicianFields = map[Field]bool{
	FieldStatus:         true,
	FieldServiceUpdates: true,
	FieldAmountUpdates:  true,
	FieldAttachments:    true,
}

// Permission returns the access a role has on a field of a work order in
// the given status. It is defined for every role and field; unknown roles
// and fields are Hidden.
func Permission(role Role, field Field, status Status) Access {
	if !field.Valid() {
		return Hidden
	}
	switch role {
	case RoleAdmin:
		return ReadWrite
	case RoleModerator:
		if progressFields[field] {
			return ReadWrite
		}
		return ReadOnly
	case RoleStore:
		if status == StatusSubmitted && storeIntakeFields[field] {
			return ReadWrite
		}
		return ReadOnly
	case RoleTechnician:
		if technicianFields[field] {
			return ReadWrite
		}
		return ReadOnly
	default:
		return Hidden
	}
}
