package models

import (
	"time"

	"gorm.io/gorm"
)

// Manufacturing order statuses. The two pending states depend on the order's
// manufacturing method; completed is terminal.
const (
	StatusPendingPrinting = "pending-printing"
	StatusPendingMilling  = "pending-milling"
	StatusPrinting        = "printing"
	StatusMilling         = "milling"
	StatusInTransit       = "in-transit"
	StatusInspection      = "inspection"
	StatusCompleted       = "completed"
)

// Arch types
const (
	ArchUpper = "upper"
	ArchLower = "lower"
	ArchDual  = "dual"
)

// Manufacturing methods
const (
	MethodPrinting = "printing"
	MethodMilling  = "milling"
)

// Yes/no fields persisted as strings
const (
	YesValue = "yes"
	NoValue  = "no"
)

// Inspection checklist results
const (
	ChecklistPass = "pass"
	ChecklistFail = "fail"
)

// Inspection outcomes
const (
	InspectionApproved = "approved"
	InspectionRejected = "rejected"
)

// ApplianceTiBarSuperstructure is the appliance type whose milling requires an
// explicit cementation decision.
const ApplianceTiBarSuperstructure = "ti-bar-superstructure"

// ManufacturingOrder represents a single appliance fabrication job. Case
// descriptors are set once when a completed lab script is converted and are
// never edited afterwards; lifecycle fields are only written by the transition
// engine. JSON field names and enumerated values are part of the persisted
// contract and must not be renamed.
type ManufacturingOrder struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Case descriptors, immutable after creation
	PatientName          string  `gorm:"not null;index" json:"patientName"`
	ArchType             string  `gorm:"not null" json:"archType"` // upper, lower, dual
	UpperApplianceType   *string `json:"upperApplianceType,omitempty"`
	LowerApplianceType   *string `json:"lowerApplianceType,omitempty"`
	UpperApplianceNumber *string `json:"upperApplianceNumber,omitempty"`
	LowerApplianceNumber *string `json:"lowerApplianceNumber,omitempty"`
	IsNightguardNeeded   string  `gorm:"not null;default:'no'" json:"isNightguardNeeded"` // yes, no
	UpperNightguardNumber *string `json:"upperNightguardNumber,omitempty"`
	LowerNightguardNumber *string `json:"lowerNightguardNumber,omitempty"`
	Shade                string  `gorm:"not null" json:"shade"`
	Material             *string `json:"material,omitempty"`
	ScrewType            *string `json:"screwType,omitempty"`
	ManufacturingMethod  string  `gorm:"not null" json:"manufacturingMethod"` // printing, milling

	// Lifecycle state, mutated only by the transition engine
	Status string `gorm:"not null;index" json:"status"`

	// Milling-path fields, populated by the Start Milling workflow
	MillingLocation  *string `json:"millingLocation,omitempty"`
	GingivaColor     *string `json:"gingivaColor,omitempty"`
	StainedAndGlazed *string `json:"stainedAndGlazed,omitempty"` // yes, no
	Cementation      *string `json:"cementation,omitempty"`      // yes, no
	AdditionalNotes  *string `json:"additionalNotes,omitempty"`

	// Shipping fields, populated by the Shipped by Lab workflow
	TrackingNumber *string `json:"trackingNumber,omitempty"`
	TrackingLink   *string `json:"trackingLink,omitempty"`

	// Printing completion fields
	PrintingCompletedAt     *time.Time `json:"printingCompletedAt,omitempty"`
	PrintingCompletedBy     *string    `json:"printingCompletedBy,omitempty"`
	PrintingCompletedByName *string    `json:"printingCompletedByName,omitempty"`

	// Inspection checklist, each pass or fail
	PrintQuality       *string `json:"printQuality,omitempty"`
	PhysicalDefects    *string `json:"physicalDefects,omitempty"`
	ScrewAccessChannel *string `json:"screwAccessChannel,omitempty"`
	MuaPlatform        *string `json:"muaPlatform,omitempty"`

	InspectionStatus          *string    `json:"inspectionStatus,omitempty"` // approved, rejected
	InspectionCompletedAt     *time.Time `json:"inspectionCompletedAt,omitempty"`
	InspectionCompletedBy     *string    `json:"inspectionCompletedBy,omitempty"`
	InspectionCompletedByName *string    `json:"inspectionCompletedByName,omitempty"`

	// S3 key for the QC photo taken during inspection
	InspectionPhotoS3Key *string `json:"inspectionPhotoS3Key,omitempty"`
	InspectionPhotoURL   *string `gorm:"-" json:"inspectionPhotoUrl,omitempty"` // computed, presigned URL

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the ManufacturingOrder model
func (ManufacturingOrder) TableName() string {
	return "manufacturing_orders"
}

// InitialStatus returns the status a new order starts in, derived from its
// manufacturing method.
func InitialStatus(manufacturingMethod string) string {
	if manufacturingMethod == MethodMilling {
		return StatusPendingMilling
	}
	return StatusPendingPrinting
}

// NeedsCementation reports whether the order carries a ti-bar superstructure
// appliance on either arch, which makes the cementation decision mandatory
// when milling starts.
func (o *ManufacturingOrder) NeedsCementation() bool {
	if o.UpperApplianceType != nil && *o.UpperApplianceType == ApplianceTiBarSuperstructure {
		return true
	}
	if o.LowerApplianceType != nil && *o.LowerApplianceType == ApplianceTiBarSuperstructure {
		return true
	}
	return false
}

// IsTerminal reports whether the order has reached its final state.
func (o *ManufacturingOrder) IsTerminal() bool {
	return o.Status == StatusCompleted
}
