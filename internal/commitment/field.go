package commitment

import (
	"time"

	dErrors "askme/pkg/domain-errors"
)

// FieldType identifies a personal attribute a holder can commit to.
// Invariant: the value must be one of the supported field tags; the tag is
// part of the field-hash preimage, so it is wire- and storage-stable.
//
// Usage: construct via ParseFieldType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type FieldType string

const (
	FieldFullName   FieldType = "full_name"
	FieldDOB        FieldType = "dob"
	FieldPassportID FieldType = "passport_id"
)

// validFieldTypes is the single source of truth for supported fields.
var validFieldTypes = map[FieldType]bool{
	FieldFullName:   true,
	FieldDOB:        true,
	FieldPassportID: true,
}

// ParseFieldType constructs a FieldType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseFieldType(s string) (FieldType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "field type cannot be empty")
	}
	f := FieldType(s)
	if !validFieldTypes[f] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported field type: "+s)
	}
	return f, nil
}

// IsValid checks if the field type is one of the supported enum values.
func (f FieldType) IsValid() bool { return validFieldTypes[f] }

// String returns the wire tag.
func (f FieldType) String() string { return string(f) }

// DisplayName returns the human-readable label for the field.
func (f FieldType) DisplayName() string {
	switch f {
	case FieldFullName:
		return "Full Name"
	case FieldDOB:
		return "Date of Birth"
	case FieldPassportID:
		return "Passport/ID Number"
	default:
		return string(f)
	}
}

// FieldTypes returns all supported field types in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{FieldFullName, FieldDOB, FieldPassportID}
}

// FieldCommitment is the derived, non-reversible record standing in for a raw
// field value. It is created or overwritten whenever the holder sets the
// field and destroyed when the value is cleared; it never outlives the value.
type FieldCommitment struct {
	Type      FieldType `json:"type"`
	ValueHash string    `json:"valueHash"`
	FieldHash string    `json:"fieldHash"`
	UpdatedAt time.Time `json:"updatedAt"`
}
