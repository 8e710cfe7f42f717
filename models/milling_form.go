package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// millingFormNamespace scopes the deterministic form IDs. Deriving the ID from
// the order ID makes Start Milling retry-safe: a second attempt for the same
// order produces the same primary key instead of a duplicate snapshot.
var millingFormNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// MillingForm is an immutable snapshot of the milling instructions for an
// order, captured at the moment the order enters the milling state. Later
// edits to the order never touch this record; it is the historical record of
// what the milling lab was told to do.
type MillingForm struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	ManufacturingItemID uint      `gorm:"not null;uniqueIndex" json:"manufacturingItemId"`

	// Copied appliance descriptors
	PatientName          string  `gorm:"not null" json:"patientName"`
	ArchType             string  `gorm:"not null" json:"archType"`
	UpperApplianceType   *string `json:"upperApplianceType,omitempty"`
	LowerApplianceType   *string `json:"lowerApplianceType,omitempty"`
	UpperApplianceNumber *string `json:"upperApplianceNumber,omitempty"`
	LowerApplianceNumber *string `json:"lowerApplianceNumber,omitempty"`
	Shade                string  `gorm:"not null" json:"shade"`
	Material             *string `json:"material,omitempty"`
	ScrewType            *string `json:"screwType,omitempty"`

	// Milling fields as supplied when milling started
	MillingLocation  string  `gorm:"not null" json:"millingLocation"`
	GingivaColor     *string `json:"gingivaColor,omitempty"`
	StainedAndGlazed *string `json:"stainedAndGlazed,omitempty"`
	Cementation      *string `json:"cementation,omitempty"`
	AdditionalNotes  *string `json:"additionalNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for the MillingForm model
func (MillingForm) TableName() string {
	return "milling_forms"
}

// MillingFormID returns the deterministic form ID for a given order.
func MillingFormID(orderID uint) string {
	return uuid.NewSHA1(millingFormNamespace, []byte(fmt.Sprintf("manufacturing-order/%d", orderID))).String()
}
